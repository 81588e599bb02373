package ws

import (
	"context"
	"errors"
	"io"
	stdhttp "net/http"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/avdeyev/scenesync-server/internal/transport"
)

// WSHandler upgrades HTTP connections and bridges them to the session
// core. Each accepted socket gets a fresh connection id that is never
// reused, a read loop feeding the handler, and a write loop draining
// the hub's send queue.
type WSHandler struct {
	hub     *Hub
	handler transport.Handler
	log     *zerolog.Logger
}

func (h *WSHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "internal error")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	connID := uuid.NewString()
	c := &client{
		send:   make(chan []byte, sendBuffer),
		cancel: cancel,
	}

	h.hub.register(connID, c)
	h.handler.HandleConnect(connID)
	defer func() {
		h.hub.unregister(connID)
		h.handler.HandleDisconnect(connID)
	}()

	errCh := make(chan error, 2)
	go func() {
		errCh <- h.readLoop(ctx, conn, connID)
	}()
	go func() {
		errCh <- h.writeLoop(ctx, conn, c)
	}()

	err = <-errCh
	cancel() // stop the other goroutine
	<-errCh

	status := websocket.StatusNormalClosure
	reason := "closing"
	if err != nil && !errors.Is(err, context.Canceled) {
		if errors.Is(err, io.EOF) {
			err = nil
		}
		if s := websocket.CloseStatus(err); s != 0 {
			status = s
		}
		if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
			err = nil
		}
		if err != nil {
			if status == websocket.StatusNormalClosure {
				status = websocket.StatusInternalError
			}
			reason = err.Error()
			h.log.Warn().Err(err).Str("conn_id", connID).Msg("ws connection closed with error")
		}
	}

	conn.Close(status, reason)
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, connID string) error {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}
		h.handler.HandleMessage(connID, data)
	}
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, c *client) error {
	for {
		select {
		case data := <-c.send:
			if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
