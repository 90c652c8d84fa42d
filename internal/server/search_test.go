package server

import (
	"encoding/binary"
	"testing"

	"github.com/rs/zerolog"

	"github.com/epicsgo/caserver/internal/config"
	"github.com/epicsgo/caserver/internal/protocol"
	"github.com/epicsgo/caserver/internal/provider"
)

func searchServer(t *testing.T) *Server {
	t.Helper()
	reg := provider.NewRegistry()
	if err := reg.Register("stub", newStubProvider("stub:val")); err != nil {
		t.Fatalf("register: %v", err)
	}
	return New(config.Default(), reg, zerolog.Nop())
}

func searchDatagram(cid uint32, name string) []byte {
	version := protocol.EncodeHeader(protocol.Header{
		Command:   protocol.CmdVersion,
		DataCount: uint32(protocol.MinorProtocolVersion),
	})
	payload := append([]byte(name), 0)
	for len(payload)%8 != 0 {
		payload = append(payload, 0)
	}
	search := protocol.EncodeHeader(protocol.Header{
		Command:     protocol.CmdSearch,
		PayloadSize: uint32(len(payload)),
		DataType:    5, // reply flag: do not reply on miss
		DataCount:   uint32(protocol.MinorProtocolVersion),
		Param1:      cid,
		Param2:      cid,
	})
	out := append(version, search...)
	return append(out, payload...)
}

func TestSearchReplyForOwnedPV(t *testing.T) {
	s := searchServer(t)

	reply := s.searchReplies(searchDatagram(311, "stub:val"), 5064)
	if len(reply) != protocol.HeaderSize+8 {
		t.Fatalf("reply length = %d", len(reply))
	}
	h, err := protocol.DecodeHeader(reply)
	if err != nil {
		t.Fatalf("decode reply: %v", err)
	}
	if h.Command != protocol.CmdSearch {
		t.Fatalf("reply command = %v", h.Command)
	}
	if h.DataType != 5064 {
		t.Fatalf("reply port = %d", h.DataType)
	}
	if h.Param1 != 0xFFFFFFFF || h.Param2 != 311 {
		t.Fatalf("reply params = %#x/%d", h.Param1, h.Param2)
	}
	if got := binary.BigEndian.Uint16(reply[protocol.HeaderSize:]); got != protocol.MinorProtocolVersion {
		t.Fatalf("reply version = %d", got)
	}
}

func TestSearchSilenceForUnknownPV(t *testing.T) {
	s := searchServer(t)
	if reply := s.searchReplies(searchDatagram(312, "nobody:home"), 5064); len(reply) != 0 {
		t.Fatalf("expected silence, got %d bytes", len(reply))
	}
}

func TestSearchMultipleNamesInOneDatagram(t *testing.T) {
	s := searchServer(t)

	datagram := searchDatagram(1, "stub:val")
	datagram = append(datagram, searchDatagram(2, "nobody:home")...)
	datagram = append(datagram, searchDatagram(3, "stub:val")...)

	reply := s.searchReplies(datagram, 5064)
	if len(reply) != 2*(protocol.HeaderSize+8) {
		t.Fatalf("reply length = %d", len(reply))
	}
	first, _ := protocol.DecodeHeader(reply)
	second, _ := protocol.DecodeHeader(reply[protocol.HeaderSize+8:])
	if first.Param2 != 1 || second.Param2 != 3 {
		t.Fatalf("cids = %d/%d", first.Param2, second.Param2)
	}
}

func TestSearchIgnoresTruncatedDatagram(t *testing.T) {
	s := searchServer(t)
	datagram := searchDatagram(4, "stub:val")
	if reply := s.searchReplies(datagram[:len(datagram)-3], 5064); len(reply) != 0 {
		t.Fatalf("truncated datagram produced a reply")
	}
}
