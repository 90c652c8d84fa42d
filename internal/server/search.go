package server

import (
	"encoding/binary"
	"errors"
	"net"

	"github.com/epicsgo/caserver/internal/protocol"
)

// serveSearch answers UDP name searches. A datagram holds a run of
// 16-byte headers; searches for names no provider claims are ignored,
// never answered with NotFound.
func (s *Server) serveSearch(conn *net.UDPConn, port uint16) {
	defer s.wg.Done()

	buf := make([]byte, 65536)
	for {
		n, peer, err := conn.ReadFromUDP(buf)
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				s.log.Warn().Err(err).Msg("search socket read failed")
			}
			return
		}
		if reply := s.searchReplies(buf[:n], port); len(reply) > 0 {
			if _, err := conn.WriteToUDP(reply, peer); err != nil {
				s.log.Warn().Err(err).Str("peer", peer.String()).Msg("search reply failed")
			}
		}
	}
}

// searchReplies walks every message in one datagram and collects the
// replies for the names this server owns.
func (s *Server) searchReplies(datagram []byte, port uint16) []byte {
	var out []byte
	for len(datagram) >= protocol.HeaderSize {
		h, err := protocol.DecodeHeader(datagram)
		if err != nil {
			return out
		}
		end := protocol.HeaderSize + int(h.PayloadSize)
		if end > len(datagram) {
			return out
		}
		msg := datagram[:end]
		datagram = datagram[end:]

		if h.Command != protocol.CmdSearch {
			continue
		}
		name := cString(msg[protocol.HeaderSize:])
		_, found := s.reg.Resolve(name)
		s.recordSearch(found)
		if !found {
			continue
		}
		s.log.Debug().Str("pv", name).Msg("search hit")
		out = append(out, searchReply(port, h.Param2)...)
	}
	return out
}

// searchReply builds the found response: our TCP port in the data type
// field, the client's channel id echoed, and the minor version in the
// payload.
func searchReply(port uint16, cid uint32) []byte {
	payload := make([]byte, 8)
	binary.BigEndian.PutUint16(payload[0:2], protocol.MinorProtocolVersion)

	head := protocol.EncodeHeader(protocol.Header{
		Command:     protocol.CmdSearch,
		PayloadSize: uint32(len(payload)),
		DataType:    port,
		Param1:      0xFFFFFFFF,
		Param2:      cid,
	})
	return append(head, payload...)
}
