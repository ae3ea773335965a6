// Binary gossiprouter runs the rendezvous-and-relay server.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"gossiprouter/server"
)

func main() {
	app := &cli.App{
		Name:                   "gossiprouter",
		Usage:                  "A rendezvous-and-relay server: discovery directory, message relay, and liveness fan-out for a group of peers.",
		Action:                 run,
		UseShortOptionHandling: true,
		Flags: []cli.Flag{
			&cli.UintFlag{
				Name:  "port",
				Usage: "Listen on the given `PORT` for incoming TCP connections.",
				Value: 12001,
			},
			&cli.StringFlag{
				Name:  "bind_addr",
				Usage: "Bind the listener to the given `HOST` (default: all interfaces).",
				Value: "",
			},
			&cli.UintFlag{
				Name:  "backlog",
				Usage: "TCP listen `BACKLOG` size (recorded, not enforceable via Go's net package).",
				Value: 1000,
			},
			&cli.Int64Flag{
				Name:  "expiry",
				Usage: "Idle session expiry in `MILLISECONDS` (<= 0 disables the sweeper).",
				Value: 60000,
			},
			&cli.Int64Flag{
				Name:  "solinger",
				Usage: "SO_LINGER in `MILLISECONDS` applied to each accepted socket.",
				Value: 2000,
			},
			&cli.Int64Flag{
				Name:  "sotimeout",
				Usage: "SO_TIMEOUT (socket read timeout) in `MILLISECONDS`; 0 disables it.",
				Value: 0,
			},
			&cli.BoolFlag{
				Name:  "jmx",
				Usage: "Accepted for CLI parity; the management facade it names is out of scope.",
				Value: false,
			},
			&cli.BoolFlag{
				Name:  "discard_loopbacks",
				Usage: "Exclude the sender from its own multicast fan-out.",
				Value: true,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func run(c *cli.Context) error {
	logger, err := zap.NewProduction()
	if err != nil {
		return err
	}
	defer logger.Sync()

	cfg := server.Config{
		BindAddr:         c.String("bind_addr"),
		Port:             uint16(c.Uint("port")),
		Backlog:          int(c.Uint("backlog")),
		ExpiryMillis:     c.Int64("expiry"),
		SoLingerMillis:   c.Int64("solinger"),
		SoTimeoutMillis:  c.Int64("sotimeout"),
		IncludeLoopbacks: !c.Bool("discard_loopbacks"),
		JMX:              c.Bool("jmx"),
		Log:              logger,
	}

	srv := server.New(cfg)
	if err := srv.Start(); err != nil {
		return err
	}
	logger.Info("gossiprouter listening", zap.Uint16("port", cfg.Port))

	quit := make(chan os.Signal, 2)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}
