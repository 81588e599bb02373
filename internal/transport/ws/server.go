package ws

import (
	stdhttp "net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/avdeyev/scenesync-server/internal/transport"
)

// NewServer builds the HTTP server hosting the reliable channel. The
// websocket handler hijacks the underlying connection and must receive
// the server's ResponseWriter directly, so `/ws` is mounted on the mux
// itself; gin serves the plain HTTP routes next to it.
func NewServer(addr string, readHeaderTimeout time.Duration, hub *Hub, handler transport.Handler, logger *zerolog.Logger) *stdhttp.Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/healthz", func(c *gin.Context) {
		c.String(stdhttp.StatusOK, "ok")
	})

	mux := stdhttp.NewServeMux()
	mux.Handle("/ws", &WSHandler{hub: hub, handler: handler, log: logger})
	mux.Handle("/", router)

	return &stdhttp.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: readHeaderTimeout,
	}
}
