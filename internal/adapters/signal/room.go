package signal

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/remotely/relay/internal/app"
	"github.com/remotely/relay/internal/domain"
	"github.com/remotely/relay/internal/protocol"
)

func (ctl *Controller) handleJoinRoom(cl *client, data []byte) {
	var p protocol.JoinRoomPayload
	if err := json.Unmarshal(data, &p); err != nil || p.RoomID == "" {
		log.Warn().Err(err).Str("module", "signal").Str("cid", string(cl.cid)).Msg("bad join-room payload")
		return
	}

	ctl.Orch.Rooms.Join(p.RoomID, app.Member{CID: cl.cid, Peer: cl.peer(), Conn: cl.sig})
	log.Info().Str("module", "signal").Str("cid", string(cl.cid)).Str("room", string(p.RoomID)).Msg("join room")
}

// handleRoomSignal relays offer, answer and ice-candidate envelopes to
// every other member of the room. Negotiation is room-broadcast, not
// point-to-point: a room may hold more than two participants.
func (ctl *Controller) handleRoomSignal(cl *client, kind protocol.EventType, data []byte) {
	var p protocol.RoomSignal
	if err := json.Unmarshal(data, &p); err != nil || p.RoomID == "" {
		log.Warn().Err(err).Str("module", "signal").Str("cid", string(cl.cid)).Msg("bad room signal payload")
		return
	}
	if !ctl.memberOf(cl, p.RoomID) {
		return
	}

	out := protocol.RoomSignal{
		Type:      kind,
		RoomID:    p.RoomID,
		From:      cl.peer(),
		Offer:     p.Offer,
		Answer:    p.Answer,
		Candidate: p.Candidate,
	}
	frame, err := protocol.Encode(out)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("encode room signal")
		return
	}
	for _, m := range ctl.Orch.Rooms.MembersExcluding(p.RoomID, cl.cid) {
		_ = m.Conn.TrySend(frame)
	}
}

func (ctl *Controller) handleStopSharing(cl *client, data []byte) {
	var p protocol.JoinRoomPayload
	if err := json.Unmarshal(data, &p); err != nil || p.RoomID == "" {
		log.Warn().Err(err).Str("module", "signal").Str("cid", string(cl.cid)).Msg("bad stop-sharing payload")
		return
	}
	if !ctl.memberOf(cl, p.RoomID) {
		return
	}

	frame, err := protocol.Encode(protocol.Envelope{Type: protocol.EvShareStopped})
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("encode share-stopped")
		return
	}
	for _, m := range ctl.Orch.Rooms.MembersExcluding(p.RoomID, cl.cid) {
		_ = m.Conn.TrySend(frame)
	}
}

// memberOf rejects signaling for rooms the sender does not occupy; the
// envelope is dropped, never forwarded blind.
func (ctl *Controller) memberOf(cl *client, roomID domain.RoomID) bool {
	cur, ok := ctl.Orch.Rooms.RoomOf(cl.cid)
	if !ok || cur != roomID {
		log.Warn().Str("module", "signal").Str("cid", string(cl.cid)).Str("room", string(roomID)).Msg("signal for room sender is not in")
		return false
	}
	return true
}
