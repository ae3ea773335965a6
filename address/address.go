// Package address defines the router's two address kinds: a LogicalAddress
// stable across reconnects, and a PhysicalAddress treated as an opaque
// transport endpoint blob.
package address

import (
	"fmt"

	"github.com/google/uuid"
)

// Logical is an opaque, universally-unique peer identity. It is comparable
// and hashable, so it can be used directly as a map key.
type Logical uuid.UUID

// NewLogical mints a fresh, universally-unique logical address.
func NewLogical() Logical {
	return Logical(uuid.New())
}

func (l Logical) String() string {
	return uuid.UUID(l).String()
}

// Physical is a transport endpoint, opaque to everything except the peers
// that dial it.
type Physical struct {
	Host string
	Port uint16
}

func (p Physical) String() string {
	return fmt.Sprintf("%s:%d", p.Host, p.Port)
}
