package server

import (
	"context"
	"net"
	"time"

	"github.com/epicsgo/caserver/internal/protocol"
)

// serveBeacons announces the server on the beacon address at the
// configured period. Beacon ids increase monotonically so clients can
// spot a restarted server.
func (s *Server) serveBeacons(ctx context.Context, port uint16) {
	defer s.wg.Done()

	conn, err := net.Dial("udp", s.cfg.BeaconAddr)
	if err != nil {
		s.log.Warn().Err(err).Str("addr", s.cfg.BeaconAddr).Msg("beacon socket unavailable")
		return
	}
	defer conn.Close()

	ticker := time.NewTicker(s.cfg.BeaconPeriod())
	defer ticker.Stop()

	var id uint32
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			id++
			frame := protocol.EncodeHeader(protocol.Header{
				Command:  protocol.CmdBeacon,
				DataType: port,
				Param1:   id,
			})
			if _, err := conn.Write(frame); err != nil {
				s.log.Warn().Err(err).Msg("beacon send failed")
				return
			}
		}
	}
}
