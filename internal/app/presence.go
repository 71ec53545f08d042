package app

import (
	"github.com/rs/zerolog/log"

	"github.com/remotely/relay/internal/domain"
	"github.com/remotely/relay/internal/protocol"
)

// Presence broadcasts online/offline transitions to every registered
// connection. Presence is advisory: the broadcast is fire-and-forget,
// with no delivery guarantee, unlike persisted chat.
type Presence struct {
	reg *Registry
}

func NewPresence(reg *Registry) *Presence {
	return &Presence{reg: reg}
}

func (p *Presence) Online(uid domain.UserID) {
	p.broadcast(protocol.PresenceEvent{Type: protocol.EvUserOnline, UserID: uid})
}

func (p *Presence) Offline(uid domain.UserID) {
	p.broadcast(protocol.PresenceEvent{Type: protocol.EvUserOffline, UserID: uid})
}

func (p *Presence) broadcast(ev protocol.PresenceEvent) {
	frame, err := protocol.Encode(ev)
	if err != nil {
		log.Error().Err(err).Str("module", "app.presence").Msg("encode presence event")
		return
	}
	conns := p.reg.Conns()
	for _, c := range conns {
		_ = c.TrySend(frame)
	}
	log.Debug().Str("module", "app.presence").Str("type", string(ev.Type)).Str("user", string(ev.UserID)).Int("targets", len(conns)).Msg("presence broadcast")
}
