package provider

import (
	"errors"
	"testing"
	"time"

	"github.com/epicsgo/caserver/internal/dbr"
	"github.com/epicsgo/caserver/internal/protocol"
)

type namedProvider struct {
	Base
	prefix string
}

func (p *namedProvider) Provides(name string) bool {
	return len(name) >= len(p.prefix) && name[:len(p.prefix)] == p.prefix
}

func (p *namedProvider) ReadValue(name string, requested *dbr.Type) (dbr.Dbr, error) {
	return &dbr.NumericRecord[int32]{
		Payload:     dbr.Scalar(int32(1)),
		LastUpdated: time.Now(),
	}, nil
}

func TestRegistryRegisterAndResolve(t *testing.T) {
	r := NewRegistry()
	if err := r.Register("alpha", &namedProvider{prefix: "a:"}); err != nil {
		t.Fatalf("register alpha: %v", err)
	}
	if err := r.Register("beta", &namedProvider{prefix: "b:"}); err != nil {
		t.Fatalf("register beta: %v", err)
	}

	p, ok := r.Resolve("b:pressure")
	if !ok {
		t.Fatalf("expected b:pressure to resolve")
	}
	if !p.Provides("b:pressure") {
		t.Fatalf("resolved provider does not claim the pv")
	}
	if _, ok := r.Resolve("c:unknown"); ok {
		t.Fatalf("unexpected resolution for unowned pv")
	}
}

func TestRegistryResolutionOrder(t *testing.T) {
	first := &namedProvider{prefix: "pv:"}
	second := &namedProvider{prefix: "pv:"}
	r := NewRegistry()
	if err := r.Register("first", first); err != nil {
		t.Fatalf("register first: %v", err)
	}
	if err := r.Register("second", second); err != nil {
		t.Fatalf("register second: %v", err)
	}

	p, ok := r.Resolve("pv:x")
	if !ok || p != Provider(first) {
		t.Fatalf("expected first registered provider to win")
	}
}

func TestRegistryRejectsDuplicatesAndNil(t *testing.T) {
	r := NewRegistry()
	if err := r.Register("alpha", &namedProvider{prefix: "a:"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := r.Register("alpha", &namedProvider{prefix: "x:"}); !errors.Is(err, ErrProviderExists) {
		t.Fatalf("expected ErrProviderExists, got %v", err)
	}
	if err := r.Register("nil", nil); !errors.Is(err, ErrProviderNil) {
		t.Fatalf("expected ErrProviderNil, got %v", err)
	}
	if err := r.Register("  ", &namedProvider{}); !errors.Is(err, ErrInvalidID) {
		t.Fatalf("expected ErrInvalidID, got %v", err)
	}
}

func TestBaseDefaults(t *testing.T) {
	var b Base
	if got := b.AccessRight("pv", "user", "host"); got != protocol.ReadOnly {
		t.Fatalf("default access right = %v, want read-only", got)
	}
	if err := b.WriteValue("pv", []string{"1"}); !errors.Is(err, protocol.ErrNoWtAccess) {
		t.Fatalf("expected ErrNoWtAccess, got %v", err)
	}
	if _, _, err := b.Monitor("pv", protocol.MonitorValue, nil); !errors.Is(err, protocol.ErrUnavailInServ) {
		t.Fatalf("expected ErrUnavailInServ, got %v", err)
	}
}
