// Package client is a thin, deliberately minimal peer stub for exercising
// the wire protocol end-to-end. It is not a supported peer SDK: the full
// client's reconnection and staleness handling are out of scope (the
// protocol surface is what's specified, not a peer implementation).
//
// A Client is not safe to use for a synchronous request (Connect,
// Disconnect, ListGroup) concurrently with Listen on the same connection —
// the server may push an unsolicited MESSAGE or SUSPECT frame at any time,
// and a request/response exchange has no way to tell that frame apart from
// its own expected reply on a shared read side. Callers pick one mode per
// connection: request/response, or Listen.
package client

import (
	"fmt"
	"net"
	"sync"

	"go.uber.org/zap"

	"gossiprouter/address"
	"gossiprouter/wire"
)

type Client struct {
	conn net.Conn
	log  *zap.Logger

	writeMu sync.Mutex
}

func New(conn net.Conn, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{conn: conn, log: log}
}

func (c *Client) write(rec *wire.Record) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return rec.WriteTo(c.conn)
}

// Connect registers addr in group, optionally binding name and physical,
// and returns the server's status reply.
func (c *Client) Connect(group string, addr address.Logical, name *string, physical *address.Physical) (wire.Command, error) {
	rec := &wire.Record{Command: wire.CmdConnect, Group: &group, Addr: &addr, LogicalName: name, Physical: physical}
	if err := c.write(rec); err != nil {
		return 0, fmt.Errorf("client: CONNECT write: %w", err)
	}
	status, err := wire.ReadU8(c.conn)
	if err != nil {
		return 0, fmt.Errorf("client: CONNECT reply: %w", err)
	}
	return wire.Command(status), nil
}

// Disconnect removes addr from group and returns the server's status
// reply.
func (c *Client) Disconnect(group string, addr address.Logical) (wire.Command, error) {
	rec := &wire.Record{Command: wire.CmdDisconnect, Group: &group, Addr: &addr}
	if err := c.write(rec); err != nil {
		return 0, fmt.Errorf("client: DISCONNECT write: %w", err)
	}
	status, err := wire.ReadU8(c.conn)
	if err != nil {
		return 0, fmt.Errorf("client: DISCONNECT reply: %w", err)
	}
	return wire.Command(status), nil
}

// ListGroup issues a GOSSIP_GET and returns the member list.
func (c *Client) ListGroup(group string) ([]wire.PingData, error) {
	rec := &wire.Record{Command: wire.CmdGossipGet, Group: &group}
	if err := c.write(rec); err != nil {
		return nil, fmt.Errorf("client: GOSSIP_GET write: %w", err)
	}
	count, err := wire.ReadU16(c.conn)
	if err != nil {
		return nil, fmt.Errorf("client: GOSSIP_GET count: %w", err)
	}
	members := make([]wire.PingData, 0, count)
	for i := uint16(0); i < count; i++ {
		pd, err := wire.ReadPingData(c.conn)
		if err != nil {
			return nil, fmt.Errorf("client: GOSSIP_GET member %d: %w", i, err)
		}
		members = append(members, *pd)
	}
	return members, nil
}

// Send relays payload within group. dest nil means multicast to the whole
// group; MESSAGE has no reply, so this returns as soon as the write
// completes.
func (c *Client) Send(group string, dest *address.Logical, payload []byte) error {
	rec := &wire.Record{Command: wire.CmdMessage, Group: &group, Addr: dest, Payload: payload}
	if err := c.write(rec); err != nil {
		return fmt.Errorf("client: MESSAGE write: %w", err)
	}
	return nil
}

// Ping refreshes this session's freshness timestamp server-side.
func (c *Client) Ping() error {
	return c.write(&wire.Record{Command: wire.CmdPing})
}

// Listen runs a dedicated read loop, decoding every incoming frame (MESSAGE
// or SUSPECT) and invoking handler, until the connection errors or closes.
func (c *Client) Listen(handler func(*wire.Record)) error {
	for {
		rec, err := wire.ReadRecord(c.conn)
		if err != nil {
			return err
		}
		handler(rec)
	}
}

// Close sends CLOSE and tears down the underlying connection.
func (c *Client) Close() error {
	_ = c.write(&wire.Record{Command: wire.CmdClose})
	return c.conn.Close()
}
