// Package signal is the WebSocket edge of the relay: it owns transport
// sessions, decodes inbound envelopes and hands typed requests to the
// app layer.
package signal

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/remotely/relay/internal/app"
	"github.com/remotely/relay/internal/config"
	"github.com/remotely/relay/internal/core"
	"github.com/remotely/relay/internal/domain"
)

var ErrBackpressure = errors.New("backpressure")

type Controller struct {
	Orch *app.Orchestrator

	upgrader   websocket.Upgrader
	limiter    *connRateLimiter
	readLimit  int64
	pingPeriod time.Duration
}

func NewController(orch *app.Orchestrator, cfg *config.Config) *Controller {
	origin := cfg.AllowedOrigin
	return &Controller{
		Orch: orch,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				if origin == "" || origin == "*" {
					return true
				}
				return r.Header.Get("Origin") == origin
			},
		},
		limiter:    newConnRateLimiter(cfg.RateLimit, cfg.RateWindow),
		readLimit:  cfg.ReadLimit,
		pingPeriod: cfg.PingPeriod,
	}
}

// WsSignalConn wraps a websocket connection behind a buffered send
// channel so forwarding paths never block on a slow peer.
type WsSignalConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func (c *WsSignalConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return errors.New("connection closed")
	}
	select {
	case c.send <- f:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *WsSignalConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

// client is the per-connection state the handlers see. user is written
// only from the connection's own read loop, on authenticate.
type client struct {
	cid  core.ConnID
	sig  core.SignalConnection
	user domain.UserID
}

// peer is the label shown to other parties: the user identity once
// authenticated, the transport id before that.
func (c *client) peer() string {
	if c.user != "" {
		return string(c.user)
	}
	return string(c.cid)
}

func (ctl *Controller) HandleSignal(ctx context.Context, c *gin.Context) {
	// The browser cookie outlives refreshes, so a transport cannot be
	// keyed on it: two tabs or a reload would share one id and tear down
	// each other's state on close. Each socket gets its own id; the
	// token is kept as a browser label for log correlation.
	cid := core.ConnID(uuid.NewString())
	log.Info().Str("module", "signal").Str("cid", string(cid)).Str("client_token", c.GetString("client_token")).Msg("new WS connection")

	ws, err := ctl.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Msg("ws upgrade")
		return
	}
	ws.SetReadLimit(ctl.readLimit)

	conn := &WsSignalConn{
		conn: ws,
		send: make(chan core.Frame, 32),
	}
	cl := &client{cid: cid, sig: conn}

	ctx, cancel := context.WithCancel(ctx)
	go func() {
		defer cancel()
		ctl.writePump(ctx, conn)
	}()
	go ctl.readPump(ctx, cl, conn)
}
