package repositories

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time { return c.t }

func TestMemorySessionStore_IdleSweep(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	store := NewMemorySessionStore[int](clock.Now)

	store.Put("old", 1)
	clock.t = clock.t.Add(time.Hour)
	store.Put("fresh", 2)

	removed := store.DeleteIdle(clock.t.Add(-30 * time.Minute))
	assert.Equal(t, []string{"old"}, removed)
	assert.Equal(t, 1, store.Len())

	_, ok := store.Get("old")
	assert.False(t, ok)
	v, ok := store.Get("fresh")
	assert.True(t, ok)
	assert.Equal(t, 2, v)
}

func TestMemorySessionStore_GetTouches(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	store := NewMemorySessionStore[string](clock.Now)

	store.Put("a", "x")
	clock.t = clock.t.Add(time.Hour)
	store.Get("a")

	assert.Empty(t, store.DeleteIdle(clock.t.Add(-time.Minute)))
	store.Delete("a")
	assert.Equal(t, 0, store.Len())
}
