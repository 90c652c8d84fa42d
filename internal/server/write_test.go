package server

import (
	"encoding/binary"
	"errors"
	"math"
	"testing"

	"github.com/epicsgo/caserver/internal/dbr"
	"github.com/epicsgo/caserver/internal/protocol"
)

func TestWriteTokensNumericKinds(t *testing.T) {
	long := make([]byte, 8)
	binary.BigEndian.PutUint32(long, uint32(1200))

	double := make([]byte, 8)
	binary.BigEndian.PutUint64(double, math.Float64bits(77.4))

	cases := []struct {
		name    string
		code    uint16
		count   uint32
		payload []byte
		want    []string
	}{
		{"long scalar", uint16(dbr.BasicLong), 1, long, []string{"1200"}},
		{"double scalar", uint16(dbr.BasicDouble), 1, double, []string{"77.4"}},
		{"char", uint16(dbr.BasicChar), 1, []byte{0x85, 0, 0, 0, 0, 0, 0, 0}, []string{"-123"}},
		{"enum", uint16(dbr.BasicEnum), 1, []byte{0x01, 0x2C, 0, 0, 0, 0, 0, 0}, []string{"300"}},
		{"zero count means one", uint16(dbr.BasicLong), 0, long, []string{"1200"}},
	}
	for _, tc := range cases {
		got, err := writeTokens(tc.code, tc.count, tc.payload)
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		if len(got) != len(tc.want) {
			t.Fatalf("%s: tokens = %v", tc.name, got)
		}
		for i := range tc.want {
			if got[i] != tc.want[i] {
				t.Fatalf("%s: token[%d] = %q, want %q", tc.name, i, got[i], tc.want[i])
			}
		}
	}
}

func TestWriteTokensArray(t *testing.T) {
	payload := make([]byte, 8)
	binary.BigEndian.PutUint16(payload[0:2], uint16(500))
	binary.BigEndian.PutUint16(payload[2:4], 12)

	got, err := writeTokens(uint16(dbr.BasicInt), 2, payload)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 2 || got[0] != "500" || got[1] != "12" {
		t.Fatalf("tokens = %v", got)
	}
}

func TestWriteTokensString(t *testing.T) {
	payload := make([]byte, 40)
	copy(payload, "ramp mode")

	got, err := writeTokens(uint16(dbr.BasicString), 1, payload)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 1 || got[0] != "ramp mode" {
		t.Fatalf("tokens = %v", got)
	}
}

func TestWriteTokensRejects(t *testing.T) {
	statusCode := dbr.Type{Basic: dbr.BasicLong, Category: dbr.CatStatus}.Code()
	if _, err := writeTokens(statusCode, 1, make([]byte, 16)); !errors.Is(err, protocol.ErrBadType) {
		t.Fatalf("status category accepted: %v", err)
	}
	if _, err := writeTokens(200, 1, nil); !errors.Is(err, protocol.ErrBadType) {
		t.Fatalf("bad code accepted: %v", err)
	}
	if _, err := writeTokens(uint16(dbr.BasicDouble), 2, make([]byte, 8)); !errors.Is(err, protocol.ErrBadCount) {
		t.Fatalf("short payload accepted: %v", err)
	}
}
