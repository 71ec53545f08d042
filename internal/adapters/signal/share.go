package signal

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/remotely/relay/internal/protocol"
)

// requireUser gates screen-share events on an authenticated identity;
// the pairing is identity-to-identity, not connection-to-connection.
func (ctl *Controller) requireUser(cl *client) bool {
	if cl.user == "" {
		ctl.sendJSON(cl, protocol.ErrorEvent{Type: protocol.EvError, Error: "not_authenticated"})
		return false
	}
	return true
}

func (ctl *Controller) handleShareOffer(cl *client, kind protocol.EventType, data []byte) {
	if !ctl.requireUser(cl) {
		return
	}
	var p protocol.ShareSignal
	if err := json.Unmarshal(data, &p); err != nil || p.To == "" {
		log.Warn().Err(err).Str("module", "signal").Str("cid", string(cl.cid)).Msg("bad share offer payload")
		return
	}

	// A new offer supersedes any session the host already had; unlike
	// the stop path the displaced viewer is told, not dropped silently.
	if displaced, had := ctl.Orch.Shares.Start(cl.user, p.To); had {
		ctl.forwardToUser(displaced, protocol.ShareSignal{Type: protocol.EvShareStop, From: cl.user})
	}

	if !ctl.forwardToUser(p.To, protocol.ShareSignal{Type: kind, From: cl.user, Offer: p.Offer}) {
		log.Warn().Str("module", "signal").Str("to", string(p.To)).Msg("share offer target offline")
	}
}

func (ctl *Controller) handleShareAccept(cl *client, kind protocol.EventType, data []byte) {
	if !ctl.requireUser(cl) {
		return
	}
	var p protocol.ShareSignal
	if err := json.Unmarshal(data, &p); err != nil || p.To == "" {
		log.Warn().Err(err).Str("module", "signal").Str("cid", string(cl.cid)).Msg("bad share accept payload")
		return
	}

	// First accept (or answer) moves the session to active; a follow-up
	// answer for an already-active pairing is still forwarded.
	if !ctl.Orch.Shares.Accept(cl.user, p.To) && !ctl.Orch.Shares.Linked(cl.user, p.To) {
		log.Warn().Str("module", "signal").Str("from", string(cl.user)).Str("to", string(p.To)).Msg("share accept without session")
		return
	}

	if !ctl.forwardToUser(p.To, protocol.ShareSignal{Type: kind, From: cl.user, Answer: p.Answer}) {
		log.Warn().Str("module", "signal").Str("to", string(p.To)).Msg("share accept target offline")
	}
}

func (ctl *Controller) handleShareCandidate(cl *client, data []byte) {
	if !ctl.requireUser(cl) {
		return
	}
	var p protocol.ShareSignal
	if err := json.Unmarshal(data, &p); err != nil || p.To == "" {
		log.Warn().Err(err).Str("module", "signal").Str("cid", string(cl.cid)).Msg("bad share candidate payload")
		return
	}

	// Candidates for pairs with no live session are dropped, not relayed.
	if !ctl.Orch.Shares.Linked(cl.user, p.To) {
		log.Warn().Str("module", "signal").Str("from", string(cl.user)).Str("to", string(p.To)).Msg("share candidate without session")
		return
	}
	ctl.forwardToUser(p.To, protocol.ShareSignal{Type: protocol.EvShareICE, From: cl.user, Candidate: p.Candidate})
}

func (ctl *Controller) handleShareStop(cl *client) {
	if !ctl.requireUser(cl) {
		return
	}
	peers := ctl.Orch.Shares.Stop(cl.user)
	if len(peers) == 0 {
		log.Warn().Str("module", "signal").Str("user", string(cl.user)).Msg("share stop without session")
		return
	}
	for _, peer := range peers {
		ctl.forwardToUser(peer, protocol.ShareSignal{Type: protocol.EvShareStop, From: cl.user})
	}
}
