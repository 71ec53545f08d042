package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/remotely/relay/internal/core"
	"github.com/remotely/relay/internal/domain"
	"github.com/remotely/relay/internal/protocol"
)

// Orchestrator wires the stateful components together for the two
// operations that must touch all of them in one defined order:
// authenticate and disconnect.
type Orchestrator struct {
	Registry *Registry
	Rooms    *Rooms
	Shares   *Shares
	Chat     *Chat
	Presence *Presence
	Store    MessageStore
	Timeout  time.Duration
}

// Authenticate verifies the identity against the user directory, binds
// it to the connection and broadcasts the online transition. A displaced
// stale registration yields no offline event: the identity stays online
// throughout, a single transition.
func (o *Orchestrator) Authenticate(ctx context.Context, cid core.ConnID, conn core.SignalConnection, uid domain.UserID) error {
	ctx, cancel := context.WithTimeout(ctx, o.Timeout)
	defer cancel()

	if _, err := o.Store.FindUser(ctx, uid); err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return fmt.Errorf("%w: %s", ErrUnknownParticipant, uid)
		}
		return fmt.Errorf("verify user %s: %w", uid, err)
	}

	_, displaced := o.Registry.Register(uid, cid, conn)
	if displaced {
		log.Info().Str("module", "app.orchestrator").Str("user", string(uid)).Msg("superseded stale registration")
	}
	o.Presence.Online(uid)
	return nil
}

// Disconnect runs the full cleanup for a closing connection. Unregister
// goes first so concurrent lookups stop resolving the dying connection
// before anything else happens; the remaining steps are independent and
// each is a safe no-op when the component held no state for this
// connection.
func (o *Orchestrator) Disconnect(cid core.ConnID) {
	uid, registered := o.Registry.Unregister(cid)

	peer := string(cid)
	if registered {
		peer = string(uid)
	}
	if roomID, remaining, ok := o.Rooms.Leave(cid); ok {
		o.notifyRoom(remaining, protocol.PeerDisconnectedEvent{Type: protocol.EvPeerDisconnected, PeerID: peer})
		log.Info().Str("module", "app.orchestrator").Str("cid", string(cid)).Str("room", string(roomID)).Msg("left room on disconnect")
	}

	if registered {
		for _, other := range o.Shares.Stop(uid) {
			o.notifyShareStop(uid, other)
		}
		o.Presence.Offline(uid)
	}
}

func (o *Orchestrator) notifyRoom(members []Member, ev protocol.PeerDisconnectedEvent) {
	frame, err := protocol.Encode(ev)
	if err != nil {
		log.Error().Err(err).Str("module", "app.orchestrator").Msg("encode peer-disconnected")
		return
	}
	for _, m := range members {
		_ = m.Conn.TrySend(frame)
	}
}

func (o *Orchestrator) notifyShareStop(from, to domain.UserID) {
	conn, ok := o.Registry.Lookup(to)
	if !ok {
		return
	}
	frame, err := protocol.Encode(protocol.ShareSignal{Type: protocol.EvShareStop, From: from})
	if err != nil {
		log.Error().Err(err).Str("module", "app.orchestrator").Msg("encode screenShare:stop")
		return
	}
	_ = conn.TrySend(frame)
}
