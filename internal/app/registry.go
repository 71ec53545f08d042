package app

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/remotely/relay/internal/core"
	"github.com/remotely/relay/internal/domain"
)

type presenceEntry struct {
	User domain.UserID
	Conn core.SignalConnection
}

// Registry is the single source of truth for which user identity owns
// which live connection. A user has at most one registered connection;
// a later register for the same identity supersedes the former.
type Registry struct {
	mu    sync.RWMutex
	byCID map[core.ConnID]*presenceEntry
	byUID map[domain.UserID]core.ConnID
}

func NewRegistry() *Registry {
	return &Registry{
		byCID: make(map[core.ConnID]*presenceEntry),
		byUID: make(map[domain.UserID]core.ConnID),
	}
}

// Register binds uid to cid, last write wins. The displaced connection,
// if any, is returned so the caller can decide what to tell it; the
// registry never closes transports itself. Its stale entry is dropped so
// a late Unregister for it becomes a no-op.
func (r *Registry) Register(uid domain.UserID, cid core.ConnID, conn core.SignalConnection) (core.ConnID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	// A connection re-registering under a new identity releases the old
	// one; a lookup for it must not resolve to a connection it no longer
	// owns.
	if e, ok := r.byCID[cid]; ok && e.User != uid {
		if cur, ok := r.byUID[e.User]; ok && cur == cid {
			delete(r.byUID, e.User)
		}
	}
	prev, had := r.byUID[uid]
	if had && prev != cid {
		delete(r.byCID, prev)
	} else if had {
		had = false
	}
	r.byUID[uid] = cid
	r.byCID[cid] = &presenceEntry{User: uid, Conn: conn}
	log.Info().Str("module", "app.registry").Str("user", string(uid)).Str("cid", string(cid)).Bool("displaced", had).Msg("registered")
	return prev, had
}

// Lookup resolves the live connection for uid. Absence is not an error,
// it means the target is offline and callers fall back accordingly.
func (r *Registry) Lookup(uid domain.UserID) (core.SignalConnection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cid, ok := r.byUID[uid]
	if !ok {
		return nil, false
	}
	e, ok := r.byCID[cid]
	if !ok {
		return nil, false
	}
	return e.Conn, true
}

// UserOf returns the identity bound to cid, if authenticated.
func (r *Registry) UserOf(cid core.ConnID) (domain.UserID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.byCID[cid]
	if !ok {
		return "", false
	}
	return e.User, true
}

// Unregister removes the entry owned by cid and returns the identity it
// held so callers can clean up room and screen-share state. A connection
// that never authenticated, or was superseded, is a safe no-op.
func (r *Registry) Unregister(cid core.ConnID) (domain.UserID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.byCID[cid]
	if !ok {
		return "", false
	}
	delete(r.byCID, cid)
	if cur, ok := r.byUID[e.User]; ok && cur == cid {
		delete(r.byUID, e.User)
	}
	log.Info().Str("module", "app.registry").Str("user", string(e.User)).Str("cid", string(cid)).Msg("unregistered")
	return e.User, true
}

// Conns snapshots every registered connection, for presence fan-out.
func (r *Registry) Conns() []core.SignalConnection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]core.SignalConnection, 0, len(r.byCID))
	for _, e := range r.byCID {
		out = append(out, e.Conn)
	}
	return out
}
