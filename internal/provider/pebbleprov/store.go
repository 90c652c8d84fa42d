// Package pebbleprov is a persistent provider: PV records live as JSON
// documents in a pebble key-value store, keyed by PV name. Writes from
// clients are parsed and persisted, so values survive restarts.
package pebbleprov

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/pebble"

	"github.com/epicsgo/caserver/internal/dbr"
	"github.com/epicsgo/caserver/internal/observability"
	"github.com/epicsgo/caserver/internal/protocol"
	"github.com/epicsgo/caserver/internal/provider"
)

const (
	kindDouble = "double"
	kindString = "string"
)

// document is the stored shape of one PV.
type document struct {
	Kind      string    `json:"kind"`
	Scalar    bool      `json:"scalar,omitempty"`
	Values    []float64 `json:"values,omitempty"`
	Text      string    `json:"text,omitempty"`
	Units     string    `json:"units,omitempty"`
	Precision *uint16   `json:"precision,omitempty"`
	Status    int16     `json:"status,omitempty"`
	Severity  int16     `json:"severity,omitempty"`
	UpdatedNS int64     `json:"updated_ns"`
}

// Store is a Provider backed by a pebble database.
type Store struct {
	provider.Base

	db *pebble.DB

	mu     sync.Mutex
	bcasts map[string]*provider.Broadcast
	trigs  map[string][]chan<- string
}

// Open opens (or creates) the database at path.
func Open(path string) (*Store, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("pebbleprov: open %s: %w", path, err)
	}
	return &Store{
		db:     db,
		bcasts: make(map[string]*provider.Broadcast),
		trigs:  make(map[string][]chan<- string),
	}, nil
}

// Close flushes and closes the database and ends every subscription.
func (s *Store) Close() error {
	s.mu.Lock()
	for _, b := range s.bcasts {
		b.Close()
	}
	s.bcasts = make(map[string]*provider.Broadcast)
	s.mu.Unlock()
	return s.db.Close()
}

func (s *Store) Provides(name string) bool {
	_, err := s.load(name)
	return err == nil
}

func (s *Store) ReadValue(name string, requested *dbr.Type) (dbr.Dbr, error) {
	doc, err := s.load(name)
	if err != nil {
		return nil, protocol.ErrGetFail
	}
	return doc.record(), nil
}

func (s *Store) AccessRight(name, user, host string) protocol.AccessRight {
	return protocol.ReadWrite
}

// WriteValue parses the client's tokens: if every token parses as a
// number the PV becomes a double (array when more than one token),
// otherwise the raw text is stored as a string value.
func (s *Store) WriteValue(name string, tokens []string) error {
	if len(tokens) == 0 {
		return protocol.ErrPutFail
	}

	doc := document{UpdatedNS: time.Now().UnixNano()}
	values := make([]float64, 0, len(tokens))
	numeric := true
	for _, tok := range tokens {
		v, err := strconv.ParseFloat(strings.TrimSpace(tok), 64)
		if err != nil {
			numeric = false
			break
		}
		values = append(values, v)
	}
	if numeric {
		doc.Kind = kindDouble
		doc.Scalar = len(values) == 1
		doc.Values = values
	} else {
		doc.Kind = kindString
		doc.Text = strings.Join(tokens, " ")
	}

	if prev, err := s.load(name); err == nil {
		doc.Units = prev.Units
		doc.Precision = prev.Precision
	}

	if err := s.store(name, doc); err != nil {
		return protocol.ErrPutFail
	}
	s.notify(name, doc.record())
	return nil
}

func (s *Store) Monitor(name string, mask protocol.MonitorMask, trigger chan<- string) (<-chan dbr.Dbr, func(), error) {
	if _, err := s.load(name); err != nil {
		return nil, nil, protocol.ErrGetFail
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bcasts[name]
	if !ok {
		b = provider.NewBroadcast(8)
		s.bcasts[name] = b
	}
	ch, id := b.Subscribe()
	if trigger != nil {
		s.trigs[name] = append(s.trigs[name], trigger)
	}
	return ch, func() { b.Unsubscribe(id) }, nil
}

// Seed stores an initial record for name unless one already exists.
func (s *Store) Seed(name string, d dbr.Dbr) error {
	if _, err := s.load(name); err == nil {
		return nil
	}
	doc, err := documentFrom(d)
	if err != nil {
		return err
	}
	return s.store(name, doc)
}

func (s *Store) notify(name string, rec dbr.Dbr) {
	s.mu.Lock()
	b := s.bcasts[name]
	triggers := s.trigs[name]
	s.mu.Unlock()

	if b != nil {
		if dropped := b.Publish(rec); dropped > 0 {
			observability.RecordMonitorEvents("store", 0, dropped)
		}
	}
	for _, tr := range triggers {
		select {
		case tr <- name:
		default:
		}
	}
}

func (s *Store) load(name string) (document, error) {
	data, closer, err := s.db.Get([]byte(name))
	if err != nil {
		return document{}, err
	}
	defer closer.Close()

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return document{}, err
	}
	return doc, nil
}

func (s *Store) store(name string, doc document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	return s.db.Set([]byte(name), data, pebble.NoSync)
}

func (d document) record() dbr.Dbr {
	ts := time.Unix(0, d.UpdatedNS)
	switch d.Kind {
	case kindString:
		return &dbr.StringRecord{
			Status:      d.Status,
			Severity:    d.Severity,
			Text:        d.Text,
			LastUpdated: ts,
		}
	default:
		rec := &dbr.NumericRecord[float64]{
			Status:      d.Status,
			Severity:    d.Severity,
			Precision:   d.Precision,
			Units:       d.Units,
			LastUpdated: ts,
		}
		if d.Scalar && len(d.Values) == 1 {
			rec.Payload = dbr.Scalar(d.Values[0])
		} else {
			rec.Payload = dbr.Array(d.Values)
		}
		return rec
	}
}

func documentFrom(d dbr.Dbr) (document, error) {
	doc := document{UpdatedNS: d.Timestamp().UnixNano()}
	doc.Status, doc.Severity = d.AlarmStatus()

	switch rec := d.(type) {
	case *dbr.StringRecord:
		doc.Kind = kindString
		doc.Text = rec.Text
		return doc, nil
	case *dbr.NumericRecord[float64]:
		doc.Kind = kindDouble
		doc.Units = rec.Units
		doc.Precision = rec.Precision
		doc.Scalar = rec.Payload.IsScalar()
		doc.Values = rec.Payload.Elements()
		return doc, nil
	default:
		// Everything numeric round-trips through double.
		conv, err := dbr.Convert(d, dbr.BasicDouble)
		if err != nil {
			return document{}, err
		}
		return documentFrom(conv)
	}
}
