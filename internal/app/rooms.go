package app

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/remotely/relay/internal/core"
	"github.com/remotely/relay/internal/domain"
)

// Member is one room occupant as the relay needs to see it: the peer
// label to report in notices plus the transport to forward on.
type Member struct {
	CID  core.ConnID
	Peer string
	Conn core.SignalConnection
}

// RoomInfo is a read-only view for the rooms listing.
type RoomInfo struct {
	ID          domain.RoomID `json:"id"`
	MemberCount int           `json:"member_count"`
}

// Rooms is the room directory. A connection belongs to at most one room
// at a time, enforced by always leaving before joining; rooms vanish
// when their last member leaves.
type Rooms struct {
	mu     sync.RWMutex
	rooms  map[domain.RoomID]map[core.ConnID]Member
	roomOf map[core.ConnID]domain.RoomID
}

func NewRooms() *Rooms {
	return &Rooms{
		rooms:  make(map[domain.RoomID]map[core.ConnID]Member),
		roomOf: make(map[core.ConnID]domain.RoomID),
	}
}

// Join moves the connection into roomID, creating the room if absent and
// evicting the connection from any prior room first.
func (r *Rooms) Join(roomID domain.RoomID, m Member) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.leaveLocked(m.CID)
	room, ok := r.rooms[roomID]
	if !ok {
		room = make(map[core.ConnID]Member)
		r.rooms[roomID] = room
	}
	room[m.CID] = m
	r.roomOf[m.CID] = roomID
	log.Info().Str("module", "app.rooms").Str("cid", string(m.CID)).Str("room", string(roomID)).Int("members", len(room)).Msg("joined room")
}

// Leave removes cid from its current room and reports the room plus the
// members that remain, so the caller can send departure notices. The
// empty room entry is deleted.
func (r *Rooms) Leave(cid core.ConnID) (domain.RoomID, []Member, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	roomID, ok := r.roomOf[cid]
	if !ok {
		return "", nil, false
	}
	r.leaveLocked(cid)
	remaining := r.membersLocked(roomID, cid)
	return roomID, remaining, true
}

func (r *Rooms) leaveLocked(cid core.ConnID) {
	roomID, ok := r.roomOf[cid]
	if !ok {
		return
	}
	delete(r.roomOf, cid)
	room, ok := r.rooms[roomID]
	if !ok {
		return
	}
	delete(room, cid)
	if len(room) == 0 {
		delete(r.rooms, roomID)
		log.Info().Str("module", "app.rooms").Str("room", string(roomID)).Msg("removed empty room")
	}
}

// RoomOf reports the room cid currently occupies.
func (r *Rooms) RoomOf(cid core.ConnID) (domain.RoomID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	roomID, ok := r.roomOf[cid]
	return roomID, ok
}

// MembersExcluding lists every member of roomID except the given
// connection. Signaling fan-out never echoes the sender.
func (r *Rooms) MembersExcluding(roomID domain.RoomID, cid core.ConnID) []Member {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.membersLocked(roomID, cid)
}

func (r *Rooms) membersLocked(roomID domain.RoomID, except core.ConnID) []Member {
	room, ok := r.rooms[roomID]
	if !ok {
		return nil
	}
	out := make([]Member, 0, len(room))
	for cid, m := range room {
		if cid == except {
			continue
		}
		out = append(out, m)
	}
	return out
}

// List snapshots all rooms with their occupancy.
func (r *Rooms) List() []RoomInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]RoomInfo, 0, len(r.rooms))
	for id, room := range r.rooms {
		out = append(out, RoomInfo{ID: id, MemberCount: len(room)})
	}
	return out
}
