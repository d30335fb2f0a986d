package server

import (
	"errors"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v4"

	"github.com/brettbedarf/webtree"
	"github.com/brettbedarf/webtree/internal/util"
	"github.com/brettbedarf/webtree/tree"
)

var (
	errSessionNotFound = errors.New("session not found")
	errTooManySessions = errors.New("too many sessions")
)

// Session is one browser's editing session. It owns its tree store for its
// whole lifetime; nothing is shared between sessions.
type Session struct {
	ID       string
	Store    *tree.Store
	Created  time.Time
	lastSeen atomic.Int64 // unix nanos
	hub      *hub
}

func (s *Session) touch(now time.Time) {
	s.lastSeen.Store(now.UnixNano())
}

// LastSeen returns when the session was last used
func (s *Session) LastSeen() time.Time {
	return time.Unix(0, s.lastSeen.Load())
}

// Sessions is a registry of live sessions keyed by ID
type Sessions struct {
	m     *xsync.Map[string, *Session]
	count atomic.Int64
	max   int // 0 is unlimited
	now   func() time.Time
}

// NewSessions creates an empty registry holding at most max sessions (0 for no limit)
func NewSessions(max int) *Sessions {
	return &Sessions{
		m:   xsync.NewMap[string, *Session](),
		max: max,
		now: time.Now,
	}
}

// Create starts a session whose store is seeded with a copy of seed
func (ss *Sessions) Create(seed webtree.Tree) (*Session, error) {
	logger := util.GetLogger("Sessions.Create")

	if n := ss.count.Add(1); ss.max > 0 && n > int64(ss.max) {
		ss.count.Add(-1)
		logger.Warn().Int("max", ss.max).Msg("Session limit reached")
		return nil, errTooManySessions
	}

	now := ss.now()
	sess := &Session{
		ID:      uuid.NewString(),
		Store:   tree.NewStore(seed),
		Created: now,
		hub:     newHub(),
	}
	sess.touch(now)
	ss.m.Store(sess.ID, sess)

	logger.Info().Str("session", sess.ID).Int("entries", sess.Store.Count()).Msg("Session created")
	return sess, nil
}

// Get returns a live session and marks it as used. The touch happens under
// the map entry's lock so a concurrent [Sessions.Reap] sees it.
func (ss *Sessions) Get(id string) (*Session, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, errSessionNotFound
	}
	sess, ok := ss.m.Compute(id, func(old *Session, loaded bool) (*Session, xsync.ComputeOp) {
		if loaded {
			old.touch(ss.now())
		}
		return old, xsync.CancelOp
	})
	if !ok {
		return nil, errSessionNotFound
	}
	return sess, nil
}

// Delete ends a session and disconnects its subscribers. Returns false if it did not exist.
func (ss *Sessions) Delete(id string) bool {
	sess, ok := ss.m.LoadAndDelete(id)
	if !ok {
		return false
	}
	ss.count.Add(-1)
	sess.hub.closeAll()
	return true
}

// Len returns the number of live sessions
func (ss *Sessions) Len() int {
	return ss.m.Size()
}

// Reap ends sessions idle for longer than ttl. Sessions with connected
// subscribers are kept alive. Returns the number of sessions removed.
func (ss *Sessions) Reap(ttl time.Duration) int {
	logger := util.GetLogger("Sessions.Reap")

	cutoff := ss.now().Add(-ttl)
	var expired []string
	ss.m.Range(func(id string, sess *Session) bool {
		if sess.idleSince(cutoff) {
			expired = append(expired, id)
		}
		return true
	})

	n := 0
	for _, id := range expired {
		if ss.reapIfIdle(id, cutoff) {
			n++
		}
	}
	if n > 0 {
		logger.Info().Int("reaped", n).Int("remaining", ss.Len()).Msg("Reaped idle sessions")
	}
	return n
}

// idleSince reports whether s has no subscribers and was last used before cutoff
func (s *Session) idleSince(cutoff time.Time) bool {
	return s.hub.size() == 0 && s.LastSeen().Before(cutoff)
}

// reapIfIdle deletes the session only if it is still idle, checked under the
// entry's lock so a Get racing with the reaper keeps its session.
func (ss *Sessions) reapIfIdle(id string, cutoff time.Time) bool {
	var reaped *Session
	ss.m.Compute(id, func(old *Session, loaded bool) (*Session, xsync.ComputeOp) {
		if !loaded || !old.idleSince(cutoff) {
			return old, xsync.CancelOp
		}
		reaped = old
		return old, xsync.DeleteOp
	})
	if reaped == nil {
		return false
	}
	ss.count.Add(-1)
	reaped.hub.closeAll()
	return true
}
