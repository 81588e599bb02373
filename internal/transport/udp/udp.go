// Package udp implements the unreliable channel: a single datagram
// socket carrying high-frequency transform updates that may drop or
// reorder. A client opens the channel by sending a udp_hello datagram
// with the token it received on the reliable channel; that binds its
// remote address to the authenticated connection.
package udp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/rs/zerolog"

	"github.com/avdeyev/scenesync-server/internal/auth"
	"github.com/avdeyev/scenesync-server/internal/proto"
	"github.com/avdeyev/scenesync-server/internal/transport"
)

const maxDatagramSize = 64 * 1024

// Server owns the UDP socket and the address<->connection binding.
// It implements the unreliable half of the core's Sender.
type Server struct {
	conn    *net.UDPConn
	handler transport.Handler
	tokens  *auth.TokenConfig
	log     *zerolog.Logger

	mu         sync.Mutex
	addrByConn map[string]*net.UDPAddr
	connByAddr map[string]string
	// closed tombstones unbound connection ids so a replayed hello
	// with a still-valid token cannot reopen routing for a dead
	// connection. Ids are never reused, so this only grows by one
	// entry per disconnect.
	closed map[string]struct{}
}

// New binds the UDP socket. A bind failure here is fatal to startup and
// is returned for the caller to surface.
func New(addr string, handler transport.Handler, tokens *auth.TokenConfig, logger *zerolog.Logger) (*Server, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("resolve udp addr %q: %w", addr, err)
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, fmt.Errorf("bind udp %q: %w", addr, err)
	}

	return &Server{
		conn:       conn,
		handler:    handler,
		tokens:     tokens,
		log:        logger,
		addrByConn: make(map[string]*net.UDPAddr),
		connByAddr: make(map[string]string),
		closed:     make(map[string]struct{}),
	}, nil
}

// LocalAddr returns the bound socket address.
func (s *Server) LocalAddr() net.Addr {
	return s.conn.LocalAddr()
}

// Run reads datagrams until the context is cancelled or the socket is
// closed. Garbage and datagrams from unbound addresses are logged and
// dropped; they never terminate the loop.
func (s *Server) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		s.conn.Close()
	}()

	buf := make([]byte, maxDatagramSize)
	for {
		n, addr, err := s.conn.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("read udp: %w", err)
		}
		if n == 0 {
			continue
		}

		data := make([]byte, n)
		copy(data, buf[:n])
		s.handleDatagram(addr, data)
	}
}

func (s *Server) handleDatagram(addr *net.UDPAddr, data []byte) {
	var in proto.Inbound
	if err := json.Unmarshal(data, &in); err != nil {
		s.log.Warn().Err(err).Str("addr", addr.String()).Msg("malformed datagram discarded")
		return
	}

	if in.Type == proto.InboundTypeDatagramHello {
		s.handleHello(addr, in.Data)
		return
	}

	s.mu.Lock()
	connID, bound := s.connByAddr[addr.String()]
	s.mu.Unlock()
	if !bound {
		s.log.Debug().Str("addr", addr.String()).Msg("datagram from unbound address dropped")
		return
	}

	s.handler.HandleMessage(connID, data)
}

// handleHello verifies the datagram token and binds the sender address
// to the connection it names. A repeated hello rebinds, so clients
// behind NATs can recover after an address change.
func (s *Server) handleHello(addr *net.UDPAddr, raw json.RawMessage) {
	var hello proto.DatagramHelloData
	if err := json.Unmarshal(raw, &hello); err != nil {
		s.log.Warn().Err(err).Str("addr", addr.String()).Msg("malformed udp hello")
		return
	}

	connID, err := auth.ValidateDatagramToken(s.tokens, hello.Token)
	if err != nil {
		s.log.Warn().Err(err).Str("addr", addr.String()).Msg("rejected udp hello")
		return
	}

	s.mu.Lock()
	if _, gone := s.closed[connID]; gone {
		s.mu.Unlock()
		s.log.Debug().Str("conn_id", connID).Str("addr", addr.String()).Msg("hello for closed connection dropped")
		return
	}
	if old, ok := s.addrByConn[connID]; ok {
		delete(s.connByAddr, old.String())
	}
	s.addrByConn[connID] = addr
	s.connByAddr[addr.String()] = connID
	s.mu.Unlock()

	s.log.Info().Str("conn_id", connID).Str("addr", addr.String()).Msg("udp channel bound")
}

// Unbind forgets the address binding for a disconnected connection and
// tombstones its id, so a hello still in flight for that connection
// cannot rebind it. Idempotent.
func (s *Server) Unbind(connID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed[connID] = struct{}{}

	addr, ok := s.addrByConn[connID]
	if !ok {
		return
	}
	delete(s.addrByConn, connID)
	delete(s.connByAddr, addr.String())
}

// SendUnreliable sends msg to one connection's bound address, if any.
// Unbound connections and write errors are best-effort drops.
func (s *Server) SendUnreliable(connID string, msg proto.Outbound) {
	data, err := json.Marshal(msg)
	if err != nil {
		s.log.Error().Err(err).Msg("marshal datagram")
		return
	}

	s.mu.Lock()
	addr, ok := s.addrByConn[connID]
	s.mu.Unlock()
	if !ok {
		return
	}

	if _, err := s.conn.WriteToUDP(data, addr); err != nil {
		s.log.Debug().Err(err).Str("conn_id", connID).Msg("udp send dropped")
	}
}

// BroadcastUnreliable sends msg to every bound address.
func (s *Server) BroadcastUnreliable(msg proto.Outbound) {
	data, err := json.Marshal(msg)
	if err != nil {
		s.log.Error().Err(err).Msg("marshal datagram")
		return
	}

	s.mu.Lock()
	addrs := make([]*net.UDPAddr, 0, len(s.addrByConn))
	for _, addr := range s.addrByConn {
		addrs = append(addrs, addr)
	}
	s.mu.Unlock()

	for _, addr := range addrs {
		if _, err := s.conn.WriteToUDP(data, addr); err != nil {
			s.log.Debug().Err(err).Str("addr", addr.String()).Msg("udp broadcast send dropped")
		}
	}
}
