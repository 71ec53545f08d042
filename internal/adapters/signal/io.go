package signal

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/remotely/relay/internal/domain"
	"github.com/remotely/relay/internal/protocol"
)

const writeWait = 5 * time.Second

func (ctl *Controller) writePump(ctx context.Context, c *WsSignalConn) {
	ticker := time.NewTicker(ctl.pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Msg("writePump ctx done")
			return
		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Warn().Err(err).Str("module", "signal").Msg("writePump ping")
				return
			}
		case data, ok := <-c.send:
			if !ok {
				log.Warn().Str("module", "signal").Msg("writePump channel closed")
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
		}
	}
}

func (ctl *Controller) readPump(ctx context.Context, cl *client, c *WsSignalConn) {
	defer func() {
		log.Info().Str("module", "signal").Str("cid", string(cl.cid)).Msg("readPump closing")
		ctl.Orch.Disconnect(cl.cid)
		ctl.limiter.Forget(cl.cid)
		c.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Str("cid", string(cl.cid)).Msg("readPump ctx done")
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					log.Error().Err(err).Str("module", "signal").Str("cid", string(cl.cid)).Msg("readPump read error")
				}
				return
			}
			if !ctl.limiter.Allow(cl.cid) {
				log.Warn().Str("module", "signal").Str("cid", string(cl.cid)).Msg("rate limit exceeded, dropping envelope")
				continue
			}
			ctl.dispatch(ctx, cl, data)
		}
	}
}

// dispatch routes one inbound envelope by its tag. The event set is
// closed; anything outside it is dropped with a warning so malformed
// traffic is never amplified.
func (ctl *Controller) dispatch(ctx context.Context, cl *client, data []byte) {
	var env protocol.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("cid", string(cl.cid)).Msg("bad json")
		return
	}

	switch env.Type {
	case protocol.EvAuthenticate:
		ctl.handleAuthenticate(ctx, cl, data)
	case protocol.EvJoinRoom:
		ctl.handleJoinRoom(cl, data)
	case protocol.EvOffer, protocol.EvAnswer, protocol.EvICECandidate:
		ctl.handleRoomSignal(cl, env.Type, data)
	case protocol.EvStopSharing:
		ctl.handleStopSharing(cl, data)
	case protocol.EvPrivateMsg:
		ctl.handlePrivateMessage(ctx, cl, data)
	case protocol.EvChatHistory:
		ctl.handleChatHistory(ctx, cl, data)
	case protocol.EvMarkRead:
		ctl.handleMarkRead(ctx, cl, data)
	case protocol.EvShareStart, protocol.EvShareOffer:
		ctl.handleShareOffer(cl, env.Type, data)
	case protocol.EvShareAccept, protocol.EvShareAnswer:
		ctl.handleShareAccept(cl, env.Type, data)
	case protocol.EvShareICE:
		ctl.handleShareCandidate(cl, data)
	case protocol.EvShareStop:
		ctl.handleShareStop(cl)
	case protocol.EvPing:
		ctl.sendJSON(cl, protocol.Envelope{Type: protocol.EvPong})
	default:
		log.Warn().Str("module", "signal").Str("type", string(env.Type)).Msg("unknown signal")
	}
}

func (ctl *Controller) sendJSON(cl *client, v any) {
	frame, err := protocol.Encode(v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("sendJSON marshal")
		return
	}
	_ = cl.sig.TrySend(frame)
}

// forwardToUser delivers a payload to uid's live connection if there is
// one, and reports whether it was online. Offline targets are dropped.
func (ctl *Controller) forwardToUser(uid domain.UserID, v any) bool {
	conn, ok := ctl.Orch.Registry.Lookup(uid)
	if !ok {
		return false
	}
	frame, err := protocol.Encode(v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("forward marshal")
		return false
	}
	_ = conn.TrySend(frame)
	return true
}
