// Package session implements server-side per-client sessions: the Session
// state container, the sharded Manager that owns every live session, and the
// cookie that binds a client to its session.
package session

import (
	"errors"
	"fmt"
	"maps"
	"sync"
	"sync/atomic"
	"time"

	"github.com/specialistvlad/gridhost/internal/message"
)

const (
	// CookieName is the cookie carrying the session id.
	CookieName = "SESSIONID"
	// CookieHeader is the inbound header holding client cookies.
	CookieHeader = "Cookie"
	// ResponseCookieHeader is the outbound header used to hand out the session id.
	ResponseCookieHeader = "Set-Cookie"
)

// ErrInvalidSession is returned by every operation attempted on a session
// after it was invalidated.
var ErrInvalidSession = errors.New("session is invalid")

// Session is a single client's server-side state.
type Session struct {
	id                  string
	path                string
	createTime          time.Time
	maxInactiveInterval time.Duration
	now                 func() time.Time

	// lastAccessed holds unix nanoseconds and only moves forward.
	lastAccessed atomic.Int64
	valid        atomic.Bool
	isNew        atomic.Bool

	mu         sync.RWMutex
	attributes map[string]any

	manager *Manager
}

func newSession(id string, maxInactiveInterval time.Duration, path string, now func() time.Time) *Session {
	created := now()
	s := &Session{
		id:                  id,
		path:                path,
		createTime:          created,
		maxInactiveInterval: maxInactiveInterval,
		now:                 now,
		attributes:          make(map[string]any),
	}
	s.lastAccessed.Store(created.UnixNano())
	s.valid.Store(true)
	s.isNew.Store(true)
	return s
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// Path returns the scope the session cookie is valid for.
func (s *Session) Path() string { return s.path }

// CreateTime returns when the session was created.
func (s *Session) CreateTime() time.Time { return s.createTime }

// MaxInactiveInterval returns the idle timeout. Zero or less never expires.
func (s *Session) MaxInactiveInterval() time.Duration { return s.maxInactiveInterval }

// LastAccessedTime returns the most recent access time.
func (s *Session) LastAccessedTime() time.Time {
	return time.Unix(0, s.lastAccessed.Load())
}

// IsValid reports whether the session has not been invalidated.
func (s *Session) IsValid() bool { return s.valid.Load() }

// IsNew reports whether the creation cookie has not been sent yet.
func (s *Session) IsNew() bool { return s.isNew.Load() }

// SetNew sets the new flag and returns the session for chaining.
func (s *Session) SetNew(isNew bool) *Session {
	s.isNew.Store(isNew)
	return s
}

// SetAttribute stores value under key.
func (s *Session) SetAttribute(key string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.valid.Load() {
		return ErrInvalidSession
	}
	s.attributes[key] = value
	return nil
}

// Attribute returns the value stored under key and whether it was present.
func (s *Session) Attribute(key string) (any, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.valid.Load() {
		return nil, false, ErrInvalidSession
	}
	v, ok := s.attributes[key]
	return v, ok, nil
}

// Attributes returns a snapshot of all attributes.
func (s *Session) Attributes() (map[string]any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.valid.Load() {
		return nil, ErrInvalidSession
	}
	return maps.Clone(s.attributes), nil
}

// SetAccessed records an access at the current time and returns the session
// for chaining. Concurrent callers may race; the access time never moves
// backwards.
func (s *Session) SetAccessed() (*Session, error) {
	if !s.valid.Load() {
		return s, ErrInvalidSession
	}
	now := s.now().UnixNano()
	for {
		prev := s.lastAccessed.Load()
		if now <= prev || s.lastAccessed.CompareAndSwap(prev, now) {
			return s, nil
		}
	}
}

// Expired reports whether the session has been idle for longer than its
// max inactive interval at the given time.
func (s *Session) Expired(now time.Time) bool {
	if s.maxInactiveInterval <= 0 {
		return false
	}
	return now.Sub(s.LastAccessedTime()) > s.maxInactiveInterval
}

// Invalidate removes the session from its manager, clears its attributes and
// marks it invalid. Calling it more than once has no further effect.
func (s *Session) Invalidate() {
	if s.manager != nil {
		s.manager.InvalidateSession(s)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.attributes)
	s.valid.Store(false)
}

// GenerateContinuationHeader attaches the session cookie to an outbound
// message while the session is still new. It does not reset the new flag.
func (s *Session) GenerateContinuationHeader(msg message.Carrier) {
	if !s.IsNew() {
		return
	}
	msg.SetHeader(ResponseCookieHeader, fmt.Sprintf("%s=%s; Path=%s;", CookieName, s.id, s.path))
}
