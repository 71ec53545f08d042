package signal

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/remotely/relay/internal/protocol"
)

func (ctl *Controller) handleAuthenticate(ctx context.Context, cl *client, data []byte) {
	var p protocol.AuthPayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Warn().Err(err).Str("module", "signal").Msg("bad authenticate payload")
		return
	}
	if p.UserID == "" {
		ctl.sendJSON(cl, protocol.ErrorEvent{Type: protocol.EvAuthError, Error: "Authentication failed", Details: "missing userId"})
		return
	}
	// Identity attaches once per connection. Re-sending authenticate for
	// the same user is harmless; switching identities is not and would
	// leave the first user's state on a connection it no longer owns.
	if cl.user != "" && cl.user != p.UserID {
		log.Warn().Str("module", "signal").Str("cid", string(cl.cid)).Str("user", string(cl.user)).Str("attempted", string(p.UserID)).Msg("identity switch rejected")
		ctl.sendJSON(cl, protocol.ErrorEvent{Type: protocol.EvAuthError, Error: "Authentication failed", Details: "already authenticated"})
		return
	}

	if err := ctl.Orch.Authenticate(ctx, cl.cid, cl.sig, p.UserID); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("cid", string(cl.cid)).Msg("authentication failed")
		ctl.sendJSON(cl, protocol.ErrorEvent{Type: protocol.EvAuthError, Error: "Authentication failed"})
		return
	}

	cl.user = p.UserID
	log.Info().Str("module", "signal").Str("cid", string(cl.cid)).Str("user", string(p.UserID)).Msg("authenticated")
	ctl.sendJSON(cl, protocol.Envelope{Type: protocol.EvAuthSuccess})
}
