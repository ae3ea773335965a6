// Binary gossipclient is an interactive demo client exercising the wire
// protocol end-to-end. It is not a supported peer SDK.
package main

import (
	"bufio"
	"fmt"
	"log"
	"net"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"gossiprouter/address"
	"gossiprouter/client"
	"gossiprouter/wire"
)

func main() {
	app := &cli.App{
		Name:                   "gossipclient",
		Usage:                  "Interactive demo client for a gossiprouter server.",
		Action:                 run,
		UseShortOptionHandling: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "server",
				Aliases:  []string{"s"},
				Usage:    "Connect to the gossiprouter server at the provided `HOSTNAME`.",
				Required: true,
			},
			&cli.UintFlag{
				Name:     "port",
				Aliases:  []string{"p"},
				Usage:    "Connect to the given `PORT` of the gossiprouter server.",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "group",
				Usage: "Group to CONNECT into on startup.",
				Value: "default",
			},
			&cli.StringFlag{
				Name:  "name",
				Usage: "Logical name to register, if any.",
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func run(c *cli.Context) error {
	endpoint := fmt.Sprintf("%s:%d", c.String("server"), c.Uint("port"))
	conn, err := net.Dial("tcp", endpoint)
	if err != nil {
		return err
	}

	cli2 := client.New(conn, nil)
	addr := address.NewLogical()

	var name *string
	if n := c.String("name"); n != "" {
		name = &n
	}
	group := c.String("group")

	status, err := cli2.Connect(group, addr, name, nil)
	if err != nil {
		return err
	}
	if status != wire.CmdConnectOK {
		return fmt.Errorf("CONNECT failed with status %v", status)
	}
	log.Printf("connected to %s as %s in group %q", endpoint, addr, group)

	printHelp()
	startInteractive(cli2, group, addr)
	return nil
}

func printHelp() {
	log.Println("Interactive help:")
	log.Println(" list")
	log.Println("\t- List the members of the group, including this client")
	log.Println(" send <dest-address|*> <message>")
	log.Println("\t- Send a message to one member (by address) or '*' for the whole group")
	log.Println(" quit")
}

func startInteractive(c *client.Client, group string, self address.Logical) {
	defer c.Close()

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		line := scanner.Text()
		fields := strings.SplitN(line, " ", 3)
		if len(fields) == 0 || fields[0] == "" {
			continue
		}

		switch fields[0] {
		case "list":
			members, err := c.ListGroup(group)
			if err != nil {
				log.Printf("error: %v", err)
				continue
			}
			for _, m := range members {
				log.Printf("  %s", m.LogicalAddr)
			}

		case "send":
			if len(fields) < 3 {
				log.Println("usage: send <dest-address|*> <message>")
				continue
			}
			var dest *address.Logical
			if fields[1] != "*" {
				parsed, err := parseAddress(fields[1])
				if err != nil {
					log.Printf("bad address: %v", err)
					continue
				}
				dest = &parsed
			}
			if err := c.Send(group, dest, []byte(fields[2])); err != nil {
				log.Printf("error: %v", err)
			}

		case "quit":
			return

		default:
			log.Printf("unrecognised command %q", fields[0])
		}
	}
}

func parseAddress(s string) (address.Logical, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return address.Logical{}, err
	}
	return address.Logical(u), nil
}
