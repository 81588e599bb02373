package app

import (
	"context"
	"fmt"
	stdhttp "net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/avdeyev/scenesync-server/internal/auth"
	"github.com/avdeyev/scenesync-server/internal/config"
	"github.com/avdeyev/scenesync-server/internal/core"
	"github.com/avdeyev/scenesync-server/internal/proto"
	"github.com/avdeyev/scenesync-server/internal/store"
	"github.com/avdeyev/scenesync-server/internal/store/sqlite"
	"github.com/avdeyev/scenesync-server/internal/transport/udp"
	"github.com/avdeyev/scenesync-server/internal/transport/ws"
)

// App wires together the account store, session core and both channels.
type App struct {
	server          *stdhttp.Server
	udpServer       *udp.Server
	core            *core.Server
	accounts        *core.AccountRegistry
	store           store.Store
	shutdownTimeout time.Duration
	log             *zerolog.Logger
}

// New constructs the application with provided configuration. Binding
// the UDP port happens here; a failure aborts startup.
func New(cfg config.Config, logger *zerolog.Logger) (*App, error) {
	st, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}

	loadCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	persisted, err := st.LoadAccounts(loadCtx)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("load accounts: %w", err)
	}
	logger.Info().Str("db_path", cfg.DatabasePath).Int("accounts", len(persisted)).Msg("account store loaded")

	tokens := &auth.TokenConfig{
		Secret: []byte(cfg.TokenSecret),
		Issuer: "scenesync",
		TTL:    cfg.TokenTTL,
	}

	accounts := core.NewAccountRegistry(persisted)
	scene := core.NewScene()
	hub := ws.NewHub(logger)

	// The sender needs the udp server and the udp server needs the
	// core; close the loop with a late-bound composite.
	sender := &channelSender{hub: hub}
	coreServer := core.NewServer(accounts, scene, sender, tokens, logger)

	udpServer, err := udp.New(cfg.UDPAddr, coreServer, tokens, logger)
	if err != nil {
		st.Close()
		return nil, err
	}
	sender.udp = udpServer

	handler := &lifecycleHandler{core: coreServer, udp: udpServer}
	server := ws.NewServer(cfg.ListenAddr, cfg.ReadHeaderTimeout, hub, handler, logger)

	return &App{
		server:          server,
		udpServer:       udpServer,
		core:            coreServer,
		accounts:        accounts,
		store:           st,
		shutdownTimeout: cfg.ShutdownTimeout,
		log:             logger,
	}, nil
}

// Run starts both listeners and blocks until context cancellation or a
// fatal error. Accounts are flushed to the store on the way out.
func (a *App) Run(ctx context.Context) error {
	udpCtx, stopUDP := context.WithCancel(ctx)
	defer stopUDP()

	serverErr := make(chan error, 2)

	go func() {
		serverErr <- a.udpServer.Run(udpCtx)
	}()

	go func() {
		if err := a.server.ListenAndServe(); err != nil && err != stdhttp.ErrServerClosed {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	a.log.Info().
		Str("listen_addr", a.server.Addr).
		Str("udp_addr", a.udpServer.LocalAddr().String()).
		Msg("server started")

	select {
	case err := <-serverErr:
		stopUDP()
		a.cleanup()
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()

		a.log.Info().Msg("shutting down")
		err := a.server.Shutdown(shutdownCtx)
		stopUDP()
		a.cleanup()
		if err != nil {
			return err
		}
		return nil
	}
}

// cleanup persists the account set and closes the store.
func (a *App) cleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
	defer cancel()

	if err := a.store.SaveAccounts(ctx, a.accounts.Snapshot()); err != nil {
		a.log.Error().Err(err).Msg("failed to save accounts")
	} else {
		a.log.Info().Msg("accounts saved")
	}

	if err := a.store.Close(); err != nil {
		a.log.Warn().Err(err).Msg("failed to close store")
	}
}

// channelSender pairs the reliable hub with the unreliable UDP socket
// behind the core's Sender interface.
type channelSender struct {
	hub *ws.Hub
	udp *udp.Server
}

func (s *channelSender) SendReliable(connID string, msg proto.Outbound) {
	s.hub.SendReliable(connID, msg)
}

func (s *channelSender) BroadcastReliable(msg proto.Outbound) {
	s.hub.BroadcastReliable(msg)
}

func (s *channelSender) SendUnreliable(connID string, msg proto.Outbound) {
	s.udp.SendUnreliable(connID, msg)
}

func (s *channelSender) BroadcastUnreliable(msg proto.Outbound) {
	s.udp.BroadcastUnreliable(msg)
}

// lifecycleHandler forwards websocket lifecycle events to the core and
// keeps the UDP binding in step with disconnects.
type lifecycleHandler struct {
	core *core.Server
	udp  *udp.Server
}

func (h *lifecycleHandler) HandleConnect(connID string) {
	h.core.HandleConnect(connID)
}

func (h *lifecycleHandler) HandleDisconnect(connID string) {
	h.udp.Unbind(connID)
	h.core.HandleDisconnect(connID)
}

func (h *lifecycleHandler) HandleMessage(connID string, raw []byte) {
	h.core.HandleMessage(connID, raw)
}
