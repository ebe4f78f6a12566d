package bot

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestActorCachePutGet(t *testing.T) {
	c := newActorCache()

	_, ok := c.get("g1:delete_channels:c1")
	assert.False(t, ok)

	c.put("g1:delete_channels:c1", "u1")
	actor, ok := c.get("g1:delete_channels:c1")
	assert.True(t, ok)
	assert.Equal(t, "u1", actor)

	_, ok = c.get("g1:delete_channels:c2")
	assert.False(t, ok)
}

func TestActorCacheExpires(t *testing.T) {
	c := newActorCache()
	c.put("key", "u1")
	c.entries["key"] = actorCacheEntry{actorID: "u1", seenAt: time.Now().Add(-actorCacheTTL - time.Second)}

	_, ok := c.get("key")
	assert.False(t, ok)
}

func TestActorCachePrunesExpiredOnPut(t *testing.T) {
	c := newActorCache()
	c.entries["old"] = actorCacheEntry{actorID: "u1", seenAt: time.Now().Add(-time.Minute)}

	c.put("new", "u2")
	assert.NotContains(t, c.entries, "old")
	assert.Contains(t, c.entries, "new")
}
