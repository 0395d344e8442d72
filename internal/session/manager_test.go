package session

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewManager_Defaults(t *testing.T) {
	m := NewManager(ManagerConfig{Shards: 5})
	assert.Len(t, m.shards, 8, "shard count is rounded up to a power of two")
	assert.Equal(t, DefaultMaxInactiveInterval, m.maxInactiveInterval)

	s := m.CreateSession("/")
	assert.Len(t, s.ID(), 36, "default ids are UUIDs")
	assert.Equal(t, DefaultMaxInactiveInterval, s.MaxInactiveInterval())
}

func TestManager_CreateAndGet(t *testing.T) {
	m := newTestManager(newFakeClock())

	s := m.CreateSession("/app")
	assert.Equal(t, "S1", s.ID())
	assert.Equal(t, "/app", s.Path())
	assert.True(t, s.IsNew())
	assert.True(t, s.IsValid())
	assert.Equal(t, 1, m.Len())

	got, ok := m.GetSession("S1")
	require.True(t, ok)
	assert.Same(t, s, got)

	_, ok = m.GetSession("nope")
	assert.False(t, ok)
}

func TestManager_CreateSkipsTakenIDs(t *testing.T) {
	ids := []string{"dup", "dup", "fresh"}
	var mu sync.Mutex
	m := NewManager(ManagerConfig{NewID: func() string {
		mu.Lock()
		defer mu.Unlock()
		id := ids[0]
		ids = ids[1:]
		return id
	}})

	first := m.CreateSession("/")
	second := m.CreateSession("/")
	assert.Equal(t, "dup", first.ID())
	assert.Equal(t, "fresh", second.ID())
}

func TestManager_GetSessionDoesNotTouchAccessTime(t *testing.T) {
	clock := newFakeClock()
	m := newTestManager(clock)
	s := m.CreateSession("/app")
	before := s.LastAccessedTime()

	clock.Advance(30 * time.Second)
	_, ok := m.GetSession(s.ID())
	require.True(t, ok)
	assert.Equal(t, before, s.LastAccessedTime())
}

func TestManager_GetSessionNeverReturnsExpired(t *testing.T) {
	clock := newFakeClock()
	m := newTestManager(clock)
	s := m.CreateSession("/app")
	require.NoError(t, s.SetAttribute("k", "v"))

	clock.Advance(time.Minute + time.Second)

	_, ok := m.GetSession(s.ID())
	assert.False(t, ok)
	assert.False(t, s.IsValid(), "lazy expiry invalidates the session")
	assert.Equal(t, 0, m.Len())
}

func TestManager_Sweep(t *testing.T) {
	clock := newFakeClock()
	m := newTestManager(clock)
	stale := m.CreateSession("/a")
	clock.Advance(45 * time.Second)
	fresh := m.CreateSession("/b")
	clock.Advance(30 * time.Second)

	removed := m.Sweep(clock.Now())

	assert.Equal(t, 1, removed)
	assert.False(t, stale.IsValid())
	assert.True(t, fresh.IsValid())
	assert.Equal(t, 1, m.Len())
}

func TestManager_InvalidateSessionIgnoresUnknown(t *testing.T) {
	m := newTestManager(newFakeClock())
	kept := m.CreateSession("/")
	other := NewManager(ManagerConfig{NewID: func() string { return kept.ID() }}).CreateSession("/")

	m.InvalidateSession(other)

	_, ok := m.GetSession(kept.ID())
	assert.True(t, ok, "a foreign session with the same id must not evict the registered one")
}

func TestManager_ConcurrentCreateLookupInvalidate(t *testing.T) {
	m := NewManager(ManagerConfig{})

	const workers = 32
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s := m.CreateSession(fmt.Sprintf("/w%d", i))
			got, ok := m.GetSession(s.ID())
			assert.True(t, ok)
			assert.Same(t, s, got)
			if i%2 == 0 {
				s.Invalidate()
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, workers/2, m.Len())
}

func TestManager_StartSweeper(t *testing.T) {
	clock := newFakeClock()
	m := newTestManager(clock)
	s := m.CreateSession("/")
	clock.Advance(2 * time.Minute)

	require.NoError(t, m.StartSweeper(context.Background(), "@every 1s"))
	t.Cleanup(m.Stop)

	assert.Error(t, m.StartSweeper(context.Background(), "@every 1s"), "a second sweeper is rejected")

	require.Eventually(t, func() bool { return !s.IsValid() }, 5*time.Second, 50*time.Millisecond)
	assert.Equal(t, 0, m.Len())
}

func TestManager_StartSweeperInvalidSchedule(t *testing.T) {
	m := NewManager(ManagerConfig{})
	err := m.StartSweeper(context.Background(), "not a schedule")
	assert.ErrorContains(t, err, "invalid session sweep schedule")
	m.Stop()
}
