package core

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/avdeyev/scenesync-server/internal/auth"
	"github.com/avdeyev/scenesync-server/internal/proto"
)

// Sender is the outbound transport surface the core emits through.
// Reliable sends are ordered and guaranteed while the connection lives;
// unreliable sends are best-effort datagrams. Sends to a gone connection
// are silently dropped by the implementation.
type Sender interface {
	SendReliable(connID string, msg proto.Outbound)
	BroadcastReliable(msg proto.Outbound)
	SendUnreliable(connID string, msg proto.Outbound)
	BroadcastUnreliable(msg proto.Outbound)
}

// connState tracks a connection through its lifecycle. A connection
// starts unauthenticated, becomes authenticated on a successful
// connection request, and is forgotten entirely on disconnect.
type connState struct {
	username      string
	authenticated bool
}

// Server is the session core: it owns the authoritative reaction to
// every inbound request, validating against the account registry and
// scene, mutating them, and emitting replies and broadcasts. Handlers
// run concurrently, one goroutine per connection; the registries guard
// themselves and the connection table has its own mutex.
type Server struct {
	log      *zerolog.Logger
	accounts *AccountRegistry
	scene    *Scene
	sender   Sender
	tokens   *auth.TokenConfig

	mu    sync.Mutex
	conns map[string]*connState

	// emitMu serializes every mutate-then-notify pair on the reliable
	// channel (spawn+broadcast, disconnect+destroys, auth reply+scene
	// snapshot). Without it a connection joining concurrently with a
	// spawn can receive the same object twice, once from the broadcast
	// and once from its snapshot, or see a destroy before the
	// snapshot's instantiate and resurrect a dead object.
	emitMu sync.Mutex
}

// NewServer constructs the session core around shared state. Nothing is
// reached through globals; transports feed it via the Handle* methods.
func NewServer(accounts *AccountRegistry, scene *Scene, sender Sender, tokens *auth.TokenConfig, logger *zerolog.Logger) *Server {
	return &Server{
		log:      logger,
		accounts: accounts,
		scene:    scene,
		sender:   sender,
		tokens:   tokens,
		conns:    make(map[string]*connState),
	}
}

// HandleConnect registers a fresh, unauthenticated connection.
func (s *Server) HandleConnect(connID string) {
	s.mu.Lock()
	s.conns[connID] = &connState{}
	s.mu.Unlock()

	s.log.Info().Str("conn_id", connID).Msg("connection opened")
}

// HandleDisconnect reconciles the shared scene with an abrupt
// disconnect: the account is released, every object the connection owns
// is removed, and one destroy notification per removed object goes out
// on the reliable channel. Safe to call for unknown or already-closed
// connections.
func (s *Server) HandleDisconnect(connID string) {
	s.mu.Lock()
	state, known := s.conns[connID]
	delete(s.conns, connID)
	s.mu.Unlock()

	s.accounts.Deactivate(connID)

	s.emitMu.Lock()
	removed := s.scene.RemoveOwnedBy(connID)
	for _, id := range removed {
		s.sender.BroadcastReliable(proto.Outbound{
			Type: proto.OutboundTypeDestroy,
			Data: proto.DestroyData{ID: id},
		})
	}
	s.emitMu.Unlock()

	if !known {
		return
	}
	s.log.Info().
		Str("conn_id", connID).
		Str("username", state.username).
		Int("objects_removed", len(removed)).
		Msg("connection closed")
}

func (s *Server) handleConnectionRequest(connID string, req proto.ConnectionRequestData) {
	s.mu.Lock()
	state, known := s.conns[connID]
	alreadyAuthed := known && state.authenticated
	s.mu.Unlock()
	if !known {
		return
	}
	if alreadyAuthed {
		s.replyFailure(connID, req.Mode, "connection is already authenticated")
		return
	}

	switch req.Mode {
	case proto.ModeLogin:
		s.handleLogin(connID, req)
	case proto.ModeRegister:
		s.handleRegister(connID, req)
	default:
		s.sendError(connID, ErrCodeBadRequest, "unknown connection mode")
	}
}

func (s *Server) handleLogin(connID string, req proto.ConnectionRequestData) {
	// One failure message for unknown username and wrong password, so
	// login attempts cannot enumerate registered usernames.
	if !s.accounts.Authenticate(req.Username, req.Password) {
		s.replyFailure(connID, req.Mode, "username or password is incorrect")
		return
	}
	if err := s.accounts.Activate(connID, req.Username); err != nil {
		s.replyFailure(connID, req.Mode, "account is already logged in")
		return
	}
	s.completeAuth(connID, req.Username, req.Mode)
}

func (s *Server) handleRegister(connID string, req proto.ConnectionRequestData) {
	if err := s.accounts.Register(req.Username, req.Password); err != nil {
		switch err {
		case ErrDuplicateAccount:
			s.replyFailure(connID, req.Mode, "username already exists")
		case ErrInvalidUsername:
			s.replyFailure(connID, req.Mode, "username must be 3-32 characters")
		default:
			s.log.Error().Err(err).Str("conn_id", connID).Msg("register failed")
			s.replyFailure(connID, req.Mode, "registration failed")
		}
		return
	}
	// A freshly registered account cannot be active elsewhere; if this
	// still fails the registry is in an unexpected state.
	if err := s.accounts.Activate(connID, req.Username); err != nil {
		s.log.Error().Err(err).Str("username", req.Username).Msg("activate after register failed")
		s.replyFailure(connID, req.Mode, "account is already logged in")
		return
	}
	s.completeAuth(connID, req.Username, req.Mode)
}

// completeAuth transitions the connection to authenticated, sends the
// success reply with the datagram token, then replays the scene so the
// new participant reconstructs shared state.
func (s *Server) completeAuth(connID, username, mode string) {
	s.mu.Lock()
	state, known := s.conns[connID]
	if known {
		state.username = username
		state.authenticated = true
	}
	s.mu.Unlock()
	if !known {
		// Connection vanished while authenticating; release the
		// account so it does not stay active with no holder.
		s.accounts.Deactivate(connID)
		return
	}

	token, err := auth.GenerateDatagramToken(s.tokens, connID)
	if err != nil {
		s.log.Error().Err(err).Str("conn_id", connID).Msg("generate datagram token")
	}

	s.emitMu.Lock()
	s.sender.SendReliable(connID, proto.Outbound{
		Type: proto.OutboundTypeConnectionResponse,
		Data: proto.ConnectionResponseData{
			Success:       true,
			Mode:          mode,
			ConnectionID:  connID,
			DatagramToken: token,
		},
	})

	for _, obj := range s.scene.Snapshot() {
		s.sender.SendReliable(connID, instantiateMessage(obj))
	}
	s.emitMu.Unlock()

	s.log.Info().Str("conn_id", connID).Str("username", username).Str("mode", mode).Msg("authenticated")
}

func (s *Server) handleSpawnRequest(connID string, req proto.SpawnRequestData) {
	if !s.isAuthenticated(connID) {
		s.sendError(connID, ErrCodeUnauthorized, "not authenticated")
		return
	}

	s.emitMu.Lock()
	obj := s.scene.Spawn(connID, PrefabID(req.PrefabID), vecFromWire(req.Position))
	s.sender.BroadcastReliable(instantiateMessage(obj))
	s.emitMu.Unlock()

	s.log.Debug().
		Int64("object_id", obj.ID).
		Str("owner", connID).
		Int32("prefab_id", req.PrefabID).
		Msg("object spawned")
}

// handleTransform applies a pose to any live object. Ownership is not
// checked: the scene is a shared table and anyone may reposition any
// token. A pose for an id that is already gone is a stale unreliable
// message and is dropped without a broadcast.
func (s *Server) handleTransform(connID string, req proto.TransformData) {
	if !s.isAuthenticated(connID) {
		s.sendError(connID, ErrCodeUnauthorized, "not authenticated")
		return
	}

	ok := s.scene.UpdateTransform(req.ID, Transform{
		Position: vecFromWire(req.Position),
		Scale:    vecFromWire(req.Scale),
		Rotation: req.Rotation,
		FlipX:    req.FlipX,
		FlipY:    req.FlipY,
	})
	if !ok {
		s.log.Debug().Int64("object_id", req.ID).Msg("transform for unknown object dropped")
		return
	}

	s.sender.BroadcastUnreliable(proto.Outbound{
		Type: proto.OutboundTypeTransform,
		Data: req,
	})
}

func (s *Server) isAuthenticated(connID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.conns[connID]
	return ok && state.authenticated
}

func (s *Server) replyFailure(connID, mode, message string) {
	s.sender.SendReliable(connID, proto.Outbound{
		Type: proto.OutboundTypeConnectionResponse,
		Data: proto.ConnectionResponseData{
			Success: false,
			Message: message,
			Mode:    mode,
		},
	})
}

func (s *Server) sendError(connID, code, msg string) {
	s.sender.SendReliable(connID, proto.Outbound{
		Type:  proto.OutboundTypeError,
		Error: &proto.Error{Code: code, Msg: msg},
	})
}

func instantiateMessage(obj NetworkGameObject) proto.Outbound {
	return proto.Outbound{
		Type: proto.OutboundTypeInstantiate,
		Data: proto.InstantiateData{
			ID:       obj.ID,
			OwnerID:  obj.OwnerID,
			Position: vecToWire(obj.Transform.Position),
			PrefabID: int32(obj.PrefabID),
		},
	}
}

func vecFromWire(v proto.Vec2) Vec2 { return Vec2{X: v.X, Y: v.Y} }
func vecToWire(v Vec2) proto.Vec2   { return proto.Vec2{X: v.X, Y: v.Y} }
