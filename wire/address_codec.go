package wire

import (
	"fmt"
	"io"

	"github.com/google/uuid"

	"gossiprouter/address"
)

// WriteLogicalAddress writes a nullable logical address as a one-byte
// presence flag followed, if present, by its 16 raw identity bytes.
func WriteLogicalAddress(w io.Writer, addr *address.Logical) error {
	if addr == nil {
		return WriteU8(w, 0)
	}
	if err := WriteU8(w, 1); err != nil {
		return err
	}
	raw := uuid.UUID(*addr)
	_, err := w.Write(raw[:])
	return err
}

func ReadLogicalAddress(r io.Reader) (*address.Logical, error) {
	flag, err := ReadU8(r)
	if err != nil {
		return nil, err
	}
	if flag == 0 {
		return nil, nil
	}
	var raw [16]byte
	if _, err := io.ReadFull(r, raw[:]); err != nil {
		return nil, err
	}
	addr := address.Logical(uuid.UUID(raw))
	return &addr, nil
}

// WritePhysicalAddress writes a nullable physical address as a presence
// flag followed, if present, by an ASCII host string and a 16-bit port.
func WritePhysicalAddress(w io.Writer, p *address.Physical) error {
	if p == nil {
		return WriteU8(w, 0)
	}
	if err := WriteU8(w, 1); err != nil {
		return err
	}
	host := p.Host
	if err := WriteASCIIString(w, &host); err != nil {
		return err
	}
	return WriteU16(w, p.Port)
}

func ReadPhysicalAddress(r io.Reader) (*address.Physical, error) {
	flag, err := ReadU8(r)
	if err != nil {
		return nil, err
	}
	if flag == 0 {
		return nil, nil
	}
	host, err := ReadASCIIString(r)
	if err != nil {
		return nil, err
	}
	if host == nil {
		return nil, fmt.Errorf("wire: physical address present but host is null")
	}
	port, err := ReadU16(r)
	if err != nil {
		return nil, err
	}
	return &address.Physical{Host: *host, Port: port}, nil
}
