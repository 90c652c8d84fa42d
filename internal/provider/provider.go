// Package provider defines the capability contract a process-variable
// backend implements, plus the registry the server resolves PV names
// through.
package provider

import (
	"github.com/epicsgo/caserver/internal/dbr"
	"github.com/epicsgo/caserver/internal/protocol"
)

// Provider supplies values for the PVs it claims. Implementations must
// be safe for concurrent use; the server calls into them from many
// circuit goroutines at once.
type Provider interface {
	// Provides reports whether this backend owns the named PV.
	Provides(name string) bool

	// ReadValue fetches the current value and metadata in whatever
	// kind is natural to the backend. The requested type is advisory;
	// conversion to the client's type is the encoding layer's job. A
	// nil request is used to learn the native type and count reported
	// to new channels.
	ReadValue(name string, requested *dbr.Type) (dbr.Dbr, error)

	// AccessRight reports what the given client may do with the PV.
	AccessRight(name, user, host string) protocol.AccessRight

	// WriteValue applies a client write. Values arrive as string
	// tokens; the backend owns parsing.
	WriteValue(name string, tokens []string) error

	// Monitor subscribes to value changes. Snapshots arrive on the
	// returned channel; the PV name is pushed to trigger whenever a
	// new snapshot is available so the dispatch loop can wake. The
	// returned cancel func releases the subscription; callers must
	// invoke it exactly when the subscription ends or the backend
	// keeps publishing into a dead buffer forever.
	Monitor(name string, mask protocol.MonitorMask, trigger chan<- string) (<-chan dbr.Dbr, func(), error)
}

// Base supplies the default behavior for optional capabilities:
// read-only access, writes rejected, monitoring unavailable. Embed it
// and override what the backend actually supports.
type Base struct{}

func (Base) AccessRight(name, user, host string) protocol.AccessRight {
	return protocol.ReadOnly
}

func (Base) WriteValue(name string, tokens []string) error {
	return protocol.ErrNoWtAccess
}

func (Base) Monitor(name string, mask protocol.MonitorMask, trigger chan<- string) (<-chan dbr.Dbr, func(), error) {
	return nil, nil, protocol.ErrUnavailInServ
}
