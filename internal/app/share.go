package app

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/remotely/relay/internal/domain"
)

// Shares tracks screen-share sessions, one per host identity at a time.
// A viewer is under no such cap and may be watching several hosts at
// once. Sessions pair a host with a viewer independent of room
// membership; forwarding decisions based on them are deliver-if-online,
// else drop.
type Shares struct {
	mu      sync.RWMutex
	byHost  map[domain.UserID]*domain.ShareSession
	viewing map[domain.UserID]map[domain.UserID]struct{}
}

func NewShares() *Shares {
	return &Shares{
		byHost:  make(map[domain.UserID]*domain.ShareSession),
		viewing: make(map[domain.UserID]map[domain.UserID]struct{}),
	}
}

// Start records a new Offered session for host. Any session the host
// already had, offered or active, is implicitly ended; its viewer is
// returned so the caller can send a stop notice rather than dropping
// the old viewer silently.
func (s *Shares) Start(host, viewer domain.UserID) (domain.UserID, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	displaced, had := s.endLocked(host)
	s.byHost[host] = &domain.ShareSession{Host: host, Viewer: viewer, State: domain.ShareOffered}
	hosts, ok := s.viewing[viewer]
	if !ok {
		hosts = make(map[domain.UserID]struct{})
		s.viewing[viewer] = hosts
	}
	hosts[host] = struct{}{}
	log.Info().Str("module", "app.shares").Str("host", string(host)).Str("viewer", string(viewer)).Msg("share offered")
	if had && displaced == viewer {
		return "", false
	}
	return displaced, had
}

// Accept moves the host's session to Active, provided one exists in
// Offered state and from matches the recorded viewer.
func (s *Shares) Accept(from, host domain.UserID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.byHost[host]
	if !ok || sess.State != domain.ShareOffered || sess.Viewer != from {
		return false
	}
	sess.State = domain.ShareActive
	log.Info().Str("module", "app.shares").Str("host", string(host)).Str("viewer", string(from)).Msg("share active")
	return true
}

// Linked reports whether a session, offered or active, pairs the two
// identities in either orientation. ICE candidates for unpaired parties
// are dropped, not forwarded.
func (s *Shares) Linked(a, b domain.UserID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if sess, ok := s.byHost[a]; ok && sess.Viewer == b {
		return true
	}
	if sess, ok := s.byHost[b]; ok && sess.Viewer == a {
		return true
	}
	return false
}

// Stop ends every session the identity participates in, as host or as
// viewer, and returns the other party of each so the caller can send
// the stop notices. An empty result means there was nothing to stop.
func (s *Shares) Stop(uid domain.UserID) []domain.UserID {
	s.mu.Lock()
	defer s.mu.Unlock()
	var peers []domain.UserID
	if viewer, ok := s.endLocked(uid); ok {
		peers = append(peers, viewer)
	}
	for host := range s.viewing[uid] {
		if _, ok := s.endLocked(host); ok {
			peers = append(peers, host)
		}
	}
	return peers
}

// endLocked removes host's session and returns its viewer.
func (s *Shares) endLocked(host domain.UserID) (domain.UserID, bool) {
	sess, ok := s.byHost[host]
	if !ok {
		return "", false
	}
	delete(s.byHost, host)
	if hosts, ok := s.viewing[sess.Viewer]; ok {
		delete(hosts, host)
		if len(hosts) == 0 {
			delete(s.viewing, sess.Viewer)
		}
	}
	log.Info().Str("module", "app.shares").Str("host", string(host)).Str("viewer", string(sess.Viewer)).Msg("share ended")
	return sess.Viewer, true
}

// Session exposes the current session for a host, mainly for tests and
// the rooms listing sibling on the HTTP surface.
func (s *Shares) Session(host domain.UserID) (domain.ShareSession, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.byHost[host]
	if !ok {
		return domain.ShareSession{}, false
	}
	return *sess, true
}
