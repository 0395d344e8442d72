// Package dispatch resolves the session for an inbound request and emits the
// session cookie on the response.
package dispatch

import (
	"context"
	"strings"
	"sync"

	"github.com/specialistvlad/gridhost/internal/ctxlog"
	"github.com/specialistvlad/gridhost/internal/message"
	"github.com/specialistvlad/gridhost/internal/session"
)

// DefaultPath scopes sessions created for a message without a request URL.
const DefaultPath = "/"

type requestScopeKey struct{}

// requestScope is the per-request slot holding the current session.
type requestScope struct {
	mu      sync.Mutex
	current *session.Session
}

// NewRequestContext returns a child context carrying an empty current-session
// slot. Every inbound request gets its own.
func NewRequestContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, requestScopeKey{}, &requestScope{})
}

// CurrentSession returns the session resolved earlier in this request, if any.
func CurrentSession(ctx context.Context) (*session.Session, bool) {
	scope, ok := ctx.Value(requestScopeKey{}).(*requestScope)
	if !ok {
		return nil, false
	}
	scope.mu.Lock()
	defer scope.mu.Unlock()
	return scope.current, scope.current != nil
}

// Dispatcher binds requests to sessions held by a Manager.
type Dispatcher struct {
	manager *session.Manager
}

// New creates a Dispatcher over m.
func New(m *session.Manager) *Dispatcher {
	return &Dispatcher{manager: m}
}

// Session resolves the session for msg.
//
// A session already stored in the request scope wins. Otherwise the
// SESSIONID cookie is looked up in the manager; a returning client's session
// loses its new flag. When nothing is found a session is created only if
// create is set. The Cookie header is always removed from msg. A missing or
// stale cookie is never an error: the second return value reports whether a
// session was resolved.
func (d *Dispatcher) Session(ctx context.Context, msg message.Carrier, create bool) (*session.Session, bool) {
	logger := ctxlog.FromContext(ctx)
	defer msg.RemoveHeader(session.CookieHeader)

	scope, _ := ctx.Value(requestScopeKey{}).(*requestScope)
	if scope != nil {
		scope.mu.Lock()
		defer scope.mu.Unlock()
		if s := scope.current; s != nil {
			if _, err := s.SetAccessed(); err == nil {
				return s, true
			}
			// Invalidated earlier in this request; resolve again.
			scope.current = nil
		}
	}

	var resolved *session.Session
	if id, ok := cookieSessionID(msg.Header(session.CookieHeader)); ok {
		if s, found := d.manager.GetSession(id); found {
			if _, err := s.SetNew(false).SetAccessed(); err == nil {
				resolved = s
			}
		} else {
			logger.Debug("Session cookie refers to an unknown session.", "session_id", id)
		}
	}

	if resolved == nil && create {
		resolved = d.manager.CreateSession(requestPath(msg))
		logger.Debug("Session created.", "session_id", resolved.ID(), "path", resolved.Path())
	}
	if resolved == nil {
		return nil, false
	}

	if scope != nil {
		scope.current = resolved
	}
	return resolved, true
}

// Respond attaches the continuation cookie of the request's current session
// to resp and clears the session's new flag, so the cookie is sent once.
func (d *Dispatcher) Respond(ctx context.Context, resp message.Carrier) {
	s, ok := CurrentSession(ctx)
	if !ok || !s.IsValid() {
		return
	}
	s.GenerateContinuationHeader(resp)
	s.SetNew(false)
}

// cookieSessionID returns the value of the first SESSIONID token in a Cookie
// header.
func cookieSessionID(header string) (string, bool) {
	if header == "" {
		return "", false
	}
	prefix := session.CookieName + "="
	for _, token := range strings.Split(header, ";") {
		token = strings.TrimSpace(token)
		if !strings.HasPrefix(token, prefix) {
			continue
		}
		id := strings.TrimSpace(strings.TrimPrefix(token, prefix))
		return id, id != ""
	}
	return "", false
}

func requestPath(msg message.Carrier) string {
	if p, ok := msg.Property(message.PropertyRequestURL).(string); ok && p != "" {
		return p
	}
	return DefaultPath
}

// Abandon invalidates the request's current session if it is still new, so a
// failed request that never sends the cookie leaves no session behind. Call it
// instead of Respond.
func (d *Dispatcher) Abandon(ctx context.Context) {
	s, ok := CurrentSession(ctx)
	if !ok || !s.IsNew() || !s.IsValid() {
		return
	}
	s.Invalidate()
	ctxlog.FromContext(ctx).Debug("Session abandoned.", "session_id", s.ID())
}
