package session

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/specialistvlad/gridhost/internal/ctxlog"
)

const (
	// DefaultMaxInactiveInterval is used when ManagerConfig leaves it zero.
	DefaultMaxInactiveInterval = 15 * time.Minute
	// DefaultShards is used when ManagerConfig leaves Shards zero.
	DefaultShards = 16
	// NeverExpires as a max inactive interval creates sessions without expiry.
	NeverExpires time.Duration = -1
	// DefaultSweepSchedule is the cron schedule of the background expiry sweep.
	DefaultSweepSchedule = "@every 1m"
)

// ManagerConfig configures a Manager.
type ManagerConfig struct {
	// MaxInactiveInterval is applied to every new session. Zero selects
	// DefaultMaxInactiveInterval; a negative value such as NeverExpires creates
	// sessions that never expire.
	MaxInactiveInterval time.Duration
	// Shards is rounded up to a power of two.
	Shards int
	// NewID generates session ids. Defaults to random UUIDs.
	NewID func() string
	// Now is the clock. Defaults to time.Now.
	Now func() time.Time
}

// Manager owns every live session. All methods are safe for concurrent use.
//
// Expiry is enforced lazily by GetSession, which never returns an expired
// session, and eagerly by Sweep, which a cron schedule can run in the
// background to reclaim sessions nobody asks for again.
type Manager struct {
	shards              []*shard
	mask                uint32
	maxInactiveInterval time.Duration
	newID               func() string
	now                 func() time.Time

	cronMu sync.Mutex
	cron   *cron.Cron
}

type shard struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager constructs a Manager.
func NewManager(cfg ManagerConfig) *Manager {
	if cfg.MaxInactiveInterval == 0 {
		cfg.MaxInactiveInterval = DefaultMaxInactiveInterval
	}
	if cfg.Shards <= 0 {
		cfg.Shards = DefaultShards
	}
	if cfg.NewID == nil {
		cfg.NewID = uuid.NewString
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	n := nextPowerOfTwo(uint32(cfg.Shards))
	shards := make([]*shard, n)
	for i := range shards {
		shards[i] = &shard{sessions: make(map[string]*Session)}
	}

	return &Manager{
		shards:              shards,
		mask:                n - 1,
		maxInactiveInterval: cfg.MaxInactiveInterval,
		newID:               cfg.NewID,
		now:                 cfg.Now,
	}
}

func (m *Manager) shard(id string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	return m.shards[h.Sum32()&m.mask]
}

// CreateSession registers a new session scoped to path and returns it with
// the new flag set.
func (m *Manager) CreateSession(path string) *Session {
	for {
		id := m.newID()
		sh := m.shard(id)
		sh.mu.Lock()
		if _, taken := sh.sessions[id]; taken {
			sh.mu.Unlock()
			continue
		}
		s := newSession(id, m.maxInactiveInterval, path, m.now)
		s.manager = m
		sh.sessions[id] = s
		sh.mu.Unlock()
		return s
	}
}

// GetSession looks up a session by id. It does not touch the access time.
// An expired session is invalidated on the spot and reported as absent.
func (m *Manager) GetSession(id string) (*Session, bool) {
	sh := m.shard(id)
	sh.mu.RLock()
	s, ok := sh.sessions[id]
	sh.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if s.Expired(m.now()) {
		s.Invalidate()
		return nil, false
	}
	return s, true
}

// InvalidateSession removes s from the manager. Session.Invalidate calls it;
// other callers should invalidate the session itself.
func (m *Manager) InvalidateSession(s *Session) {
	sh := m.shard(s.id)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if cur, ok := sh.sessions[s.id]; ok && cur == s {
		delete(sh.sessions, s.id)
	}
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	n := 0
	for _, sh := range m.shards {
		sh.mu.RLock()
		n += len(sh.sessions)
		sh.mu.RUnlock()
	}
	return n
}

// Sweep invalidates every session that is expired at now and returns how
// many were removed.
func (m *Manager) Sweep(now time.Time) int {
	var expired []*Session
	for _, sh := range m.shards {
		sh.mu.RLock()
		for _, s := range sh.sessions {
			if s.Expired(now) {
				expired = append(expired, s)
			}
		}
		sh.mu.RUnlock()
	}
	for _, s := range expired {
		s.Invalidate()
	}
	return len(expired)
}

// StartSweeper runs Sweep on the given cron schedule until Stop is called.
func (m *Manager) StartSweeper(ctx context.Context, schedule string) error {
	logger := ctxlog.FromContext(ctx)
	if schedule == "" {
		schedule = DefaultSweepSchedule
	}

	m.cronMu.Lock()
	defer m.cronMu.Unlock()
	if m.cron != nil {
		return fmt.Errorf("session sweeper already running")
	}

	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		if n := m.Sweep(m.now()); n > 0 {
			logger.Debug("Expired sessions removed.", "count", n, "remaining", m.Len())
		}
	})
	if err != nil {
		return fmt.Errorf("invalid session sweep schedule %q: %w", schedule, err)
	}
	c.Start()
	m.cron = c
	logger.Debug("Session sweeper started.", "schedule", schedule)
	return nil
}

// Stop stops the background sweeper and waits for a running sweep to finish.
// It is safe to call Stop when no sweeper was started.
func (m *Manager) Stop() {
	m.cronMu.Lock()
	c := m.cron
	m.cron = nil
	m.cronMu.Unlock()
	if c != nil {
		<-c.Stop().Done()
	}
}

func nextPowerOfTwo(v uint32) uint32 {
	if v == 0 {
		return 1
	}
	v--
	v |= v >> 1
	v |= v >> 2
	v |= v >> 4
	v |= v >> 8
	v |= v >> 16
	return v + 1
}
