package wire

import (
	"fmt"
	"io"

	"gossiprouter/address"
)

// Record is the single on-the-wire message envelope: a command tag plus a
// fixed set of optional fields, each gated by its own presence flag. Field
// order on the wire is command, group, addr, logical_name, physical,
// payload — this order must not change, it is the framing contract.
type Record struct {
	Command     Command
	Group       *string
	Addr        *address.Logical
	LogicalName *string
	Physical    *address.Physical
	Payload     []byte
}

// WriteTo encodes r in wire field order.
func (r *Record) WriteTo(w io.Writer) error {
	if err := WriteU8(w, byte(r.Command)); err != nil {
		return err
	}
	if err := WriteASCIIString(w, r.Group); err != nil {
		return err
	}
	if err := WriteLogicalAddress(w, r.Addr); err != nil {
		return err
	}
	if err := WriteASCIIString(w, r.LogicalName); err != nil {
		return err
	}
	if err := WritePhysicalAddress(w, r.Physical); err != nil {
		return err
	}
	return WriteByteBlock(w, r.Payload)
}

// ReadRecord decodes one Record from r in wire field order.
func ReadRecord(r io.Reader) (*Record, error) {
	cmdByte, err := ReadU8(r)
	if err != nil {
		return nil, err
	}
	rec := &Record{Command: Command(cmdByte)}

	rec.Group, err = ReadASCIIString(r)
	if err != nil {
		return nil, fmt.Errorf("wire: reading group: %w", err)
	}
	rec.Addr, err = ReadLogicalAddress(r)
	if err != nil {
		return nil, fmt.Errorf("wire: reading addr: %w", err)
	}
	rec.LogicalName, err = ReadASCIIString(r)
	if err != nil {
		return nil, fmt.Errorf("wire: reading logical_name: %w", err)
	}
	rec.Physical, err = ReadPhysicalAddress(r)
	if err != nil {
		return nil, fmt.Errorf("wire: reading physical: %w", err)
	}
	rec.Payload, err = ReadByteBlock(r)
	if err != nil {
		return nil, fmt.Errorf("wire: reading payload: %w", err)
	}
	return rec, nil
}

// PingData is the per-member payload of a GOSSIP_GET reply.
type PingData struct {
	LogicalAddr address.Logical
	IsServer    bool
	LogicalName *string
	Physical    *address.Physical
}

func (p *PingData) WriteTo(w io.Writer) error {
	addr := p.LogicalAddr
	if err := WriteLogicalAddress(w, &addr); err != nil {
		return err
	}
	isServer := byte(0)
	if p.IsServer {
		isServer = 1
	}
	if err := WriteU8(w, isServer); err != nil {
		return err
	}
	if err := WriteASCIIString(w, p.LogicalName); err != nil {
		return err
	}
	return WritePhysicalAddress(w, p.Physical)
}

func ReadPingData(r io.Reader) (*PingData, error) {
	addr, err := ReadLogicalAddress(r)
	if err != nil {
		return nil, err
	}
	if addr == nil {
		return nil, fmt.Errorf("wire: ping data with null logical address")
	}
	isServerByte, err := ReadU8(r)
	if err != nil {
		return nil, err
	}
	name, err := ReadASCIIString(r)
	if err != nil {
		return nil, err
	}
	phys, err := ReadPhysicalAddress(r)
	if err != nil {
		return nil, err
	}
	return &PingData{
		LogicalAddr: *addr,
		IsServer:    isServerByte != 0,
		LogicalName: name,
		Physical:    phys,
	}, nil
}
