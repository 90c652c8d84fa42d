package provider

import (
	"math"
	"strings"
	"sync"
	"time"

	"github.com/epicsgo/caserver/internal/dbr"
	"github.com/epicsgo/caserver/internal/observability"
	"github.com/epicsgo/caserver/internal/protocol"
)

// Sim is a self-contained provider exposing a handful of synthetic
// PVs, mainly useful for soak-testing clients and the circuit layer.
//
//	sim:counter  LONG,   increments once per tick
//	sim:ramp     DOUBLE, sawtooth over 0..100
//	sim:wave     DOUBLE, 10-element sine snapshot
//	sim:state    ENUM,   toggles OFF/ON
type Sim struct {
	Base

	interval time.Duration

	mu     sync.Mutex
	tick   int64
	pvs    map[string]*simPV
	stop   chan struct{}
	wg     sync.WaitGroup
	sealed bool
}

type simPV struct {
	bcast    *Broadcast
	triggers []chan<- string
	running  bool
}

// NewSim creates a simulated provider whose monitors fire every
// interval.
func NewSim(interval time.Duration) *Sim {
	if interval <= 0 {
		interval = time.Second
	}
	return &Sim{
		interval: interval,
		pvs:      make(map[string]*simPV),
		stop:     make(chan struct{}),
	}
}

func (s *Sim) Provides(name string) bool {
	switch name {
	case "sim:counter", "sim:ramp", "sim:wave", "sim:state":
		return true
	}
	return false
}

func (s *Sim) ReadValue(name string, requested *dbr.Type) (dbr.Dbr, error) {
	if !s.Provides(name) {
		return nil, protocol.ErrGetFail
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked(name), nil
}

func (s *Sim) Monitor(name string, mask protocol.MonitorMask, trigger chan<- string) (<-chan dbr.Dbr, func(), error) {
	if !s.Provides(name) {
		return nil, nil, protocol.ErrGetFail
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sealed {
		return nil, nil, protocol.ErrUnavailInServ
	}
	pv, ok := s.pvs[name]
	if !ok {
		pv = &simPV{bcast: NewBroadcast(8)}
		s.pvs[name] = pv
	}
	ch, id := pv.bcast.Subscribe()
	if trigger != nil {
		pv.triggers = append(pv.triggers, trigger)
	}
	if !pv.running {
		pv.running = true
		s.wg.Add(1)
		go s.run(name, pv)
	}
	return ch, func() { pv.bcast.Unsubscribe(id) }, nil
}

// Close stops every monitor loop and tears down subscriptions.
func (s *Sim) Close() {
	s.mu.Lock()
	if s.sealed {
		s.mu.Unlock()
		return
	}
	s.sealed = true
	s.mu.Unlock()

	close(s.stop)
	s.wg.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, pv := range s.pvs {
		pv.bcast.Close()
	}
}

func (s *Sim) run(name string, pv *simPV) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.mu.Lock()
			s.tick++
			rec := s.snapshotLocked(name)
			triggers := pv.triggers
			s.mu.Unlock()

			if dropped := pv.bcast.Publish(rec); dropped > 0 {
				observability.RecordMonitorEvents("sim", 0, dropped)
			}
			for _, tr := range triggers {
				select {
				case tr <- name:
				default:
				}
			}
		}
	}
}

func (s *Sim) snapshotLocked(name string) dbr.Dbr {
	now := time.Now()
	switch {
	case strings.HasSuffix(name, "counter"):
		return &dbr.NumericRecord[int32]{
			Units:       "counts",
			Payload:     dbr.Scalar(int32(42 + s.tick)),
			LastUpdated: now,
		}
	case strings.HasSuffix(name, "ramp"):
		return &dbr.NumericRecord[float64]{
			Units:       "percent",
			Payload:     dbr.Scalar(math.Mod(float64(s.tick), 100)),
			LastUpdated: now,
		}
	case strings.HasSuffix(name, "wave"):
		wave := make([]float64, 10)
		for i := range wave {
			wave[i] = math.Sin(2 * math.Pi * float64(int64(i)+s.tick) / 10)
		}
		return &dbr.NumericRecord[float64]{
			Units:       "V",
			Payload:     dbr.Array(wave),
			LastUpdated: now,
		}
	default:
		return &dbr.EnumRecord{
			Labels:      map[uint16]string{0: "OFF", 1: "ON"},
			Index:       uint16(s.tick % 2),
			LastUpdated: now,
		}
	}
}
