package core

import (
	"encoding/json"

	"github.com/avdeyev/scenesync-server/internal/proto"
)

// HandleMessage is the single entry point for inbound client messages
// from either channel. It decodes the envelope, routes to the matching
// handler with the originating connection bound as a parameter, and
// never crashes on garbage: malformed or unrecognized messages are
// logged and discarded without dropping the connection.
func (s *Server) HandleMessage(connID string, raw []byte) {
	var in proto.Inbound
	if err := json.Unmarshal(raw, &in); err != nil {
		s.log.Warn().Err(err).Str("conn_id", connID).Msg("malformed message discarded")
		return
	}

	switch in.Type {
	case proto.InboundTypeConnectionRequest:
		var req proto.ConnectionRequestData
		if err := json.Unmarshal(in.Data, &req); err != nil {
			s.log.Warn().Err(err).Str("conn_id", connID).Msg("malformed connection request")
			return
		}
		s.handleConnectionRequest(connID, req)

	case proto.InboundTypeSpawnRequest:
		var req proto.SpawnRequestData
		if err := json.Unmarshal(in.Data, &req); err != nil {
			s.log.Warn().Err(err).Str("conn_id", connID).Msg("malformed spawn request")
			return
		}
		s.handleSpawnRequest(connID, req)

	case proto.InboundTypeTransform:
		var req proto.TransformData
		if err := json.Unmarshal(in.Data, &req); err != nil {
			s.log.Warn().Err(err).Str("conn_id", connID).Msg("malformed transform update")
			return
		}
		s.handleTransform(connID, req)

	default:
		s.log.Warn().Str("conn_id", connID).Str("type", in.Type).Msg("unknown message kind discarded")
	}
}
