package core

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/avdeyev/scenesync-server/internal/auth"
	"github.com/avdeyev/scenesync-server/internal/proto"
)

// sentMessage is one outbound message captured by the recording sender.
type sentMessage struct {
	channel   string // "reliable" or "unreliable"
	broadcast bool
	connID    string
	msg       proto.Outbound
}

// recordingSender captures everything the core emits.
type recordingSender struct {
	mu   sync.Mutex
	sent []sentMessage
}

func (r *recordingSender) SendReliable(connID string, msg proto.Outbound) {
	r.record(sentMessage{channel: "reliable", connID: connID, msg: msg})
}

func (r *recordingSender) BroadcastReliable(msg proto.Outbound) {
	r.record(sentMessage{channel: "reliable", broadcast: true, msg: msg})
}

func (r *recordingSender) SendUnreliable(connID string, msg proto.Outbound) {
	r.record(sentMessage{channel: "unreliable", connID: connID, msg: msg})
}

func (r *recordingSender) BroadcastUnreliable(msg proto.Outbound) {
	r.record(sentMessage{channel: "unreliable", broadcast: true, msg: msg})
}

func (r *recordingSender) record(m sentMessage) {
	r.mu.Lock()
	r.sent = append(r.sent, m)
	r.mu.Unlock()
}

// all returns a copy of everything sent so far.
func (r *recordingSender) all() []sentMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]sentMessage, len(r.sent))
	copy(out, r.sent)
	return out
}

// reset drops captured messages.
func (r *recordingSender) reset() {
	r.mu.Lock()
	r.sent = nil
	r.mu.Unlock()
}

// ofType filters captured messages by outbound type.
func (r *recordingSender) ofType(msgType string) []sentMessage {
	var out []sentMessage
	for _, m := range r.all() {
		if m.msg.Type == msgType {
			out = append(out, m)
		}
	}
	return out
}

// reliableTo filters unicast reliable messages for one connection.
func (r *recordingSender) reliableTo(connID string) []sentMessage {
	var out []sentMessage
	for _, m := range r.all() {
		if m.channel == "reliable" && !m.broadcast && m.connID == connID {
			out = append(out, m)
		}
	}
	return out
}

// fanoutSender delivers messages the way the hub does: unicasts land
// in one connection's inbox, broadcasts in every inbox registered at
// send time. It lets tests inspect the exact stream one connection saw.
type fanoutSender struct {
	mu      sync.Mutex
	inboxes map[string][]proto.Outbound
}

func newFanoutSender() *fanoutSender {
	return &fanoutSender{inboxes: make(map[string][]proto.Outbound)}
}

// connect opens an inbox for connID, mirroring hub registration.
func (f *fanoutSender) connect(connID string) {
	f.mu.Lock()
	f.inboxes[connID] = nil
	f.mu.Unlock()
}

func (f *fanoutSender) SendReliable(connID string, msg proto.Outbound) {
	f.deliver(connID, msg)
}

func (f *fanoutSender) BroadcastReliable(msg proto.Outbound) {
	f.deliverAll(msg)
}

func (f *fanoutSender) SendUnreliable(connID string, msg proto.Outbound) {
	f.deliver(connID, msg)
}

func (f *fanoutSender) BroadcastUnreliable(msg proto.Outbound) {
	f.deliverAll(msg)
}

func (f *fanoutSender) deliver(connID string, msg proto.Outbound) {
	f.mu.Lock()
	if _, ok := f.inboxes[connID]; ok {
		f.inboxes[connID] = append(f.inboxes[connID], msg)
	}
	f.mu.Unlock()
}

func (f *fanoutSender) deliverAll(msg proto.Outbound) {
	f.mu.Lock()
	for id := range f.inboxes {
		f.inboxes[id] = append(f.inboxes[id], msg)
	}
	f.mu.Unlock()
}

// inbox returns a copy of everything delivered to connID so far.
func (f *fanoutSender) inbox(connID string) []proto.Outbound {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]proto.Outbound, len(f.inboxes[connID]))
	copy(out, f.inboxes[connID])
	return out
}

func newTestServer(t *testing.T) (*Server, *Scene, *recordingSender) {
	t.Helper()

	logger := zerolog.Nop()
	sender := &recordingSender{}
	scene := NewScene()
	tokens := &auth.TokenConfig{
		Secret: []byte("test-secret-change-me"),
		Issuer: "test",
		TTL:    time.Minute,
	}
	server := NewServer(NewAccountRegistry(nil), scene, sender, tokens, &logger)
	return server, scene, sender
}

// mustEnvelope marshals a request envelope the way clients frame them.
func mustEnvelope(t *testing.T, msgType string, payload any) []byte {
	t.Helper()

	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	raw, err := json.Marshal(proto.Inbound{Type: msgType, Data: data})
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	return raw
}

// sendInbound routes a request through the dispatcher the way the
// transports do, exercising envelope decoding as well.
func sendInbound(t *testing.T, s *Server, connID, msgType string, payload any) {
	t.Helper()
	s.HandleMessage(connID, mustEnvelope(t, msgType, payload))
}

func mustConnectionResponse(t *testing.T, m sentMessage) proto.ConnectionResponseData {
	t.Helper()

	resp, ok := m.msg.Data.(proto.ConnectionResponseData)
	if !ok {
		t.Fatalf("expected connection response data, got %T", m.msg.Data)
	}
	return resp
}
