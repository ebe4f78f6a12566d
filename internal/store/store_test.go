package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"guildguard/internal/config"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestConfigRoundtrip(t *testing.T) {
	s := openTestStore(t)

	// Unknown guild gets defaults.
	cfg := s.Configs.Guard("g1")
	assert.False(t, cfg.Enabled)
	assert.Equal(t, 5, cfg.MaxActions)

	cfg.Enabled = true
	cfg.MaxActions = 7
	cfg.Whitelist = []string{"u1"}
	cfg.LogChannelID = "c1"
	require.NoError(t, s.Configs.Set(cfg))

	got := s.Configs.Guard("g1")
	assert.True(t, got.Enabled)
	assert.Equal(t, 7, got.MaxActions)
	assert.Equal(t, []string{"u1"}, got.Whitelist)
	assert.Equal(t, "c1", got.LogChannelID)

	exists, err := s.Configs.Exists("g1")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = s.Configs.Exists("g2")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestConfigSetRejectsInvalid(t *testing.T) {
	s := openTestStore(t)

	cfg := config.DefaultGuardConfig("g1")
	cfg.MaxActions = 50
	assert.Error(t, s.Configs.Set(cfg))

	exists, err := s.Configs.Exists("g1")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestSnapshotSaveAndLookup(t *testing.T) {
	s := openTestStore(t)
	now := time.Now()

	require.NoError(t, s.Snapshots.Save(SnapshotRow{
		ID: "s1", GuildID: "g1", Name: "first", CreatedAt: now, Payload: []byte("p1"),
	}, 5))
	require.NoError(t, s.Snapshots.Save(SnapshotRow{
		ID: "s2", GuildID: "g1", Name: "second", CreatedAt: now.Add(time.Second), Payload: []byte("p2"),
	}, 5))

	latest, err := s.Snapshots.Latest("g1")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, "s2", latest.ID)
	assert.Equal(t, []byte("p2"), latest.Payload)

	byName, err := s.Snapshots.Get("g1", "first")
	require.NoError(t, err)
	require.NotNil(t, byName)
	assert.Equal(t, "s1", byName.ID)

	byID, err := s.Snapshots.Get("g1", "s2")
	require.NoError(t, err)
	require.NotNil(t, byID)
	assert.Equal(t, "second", byID.Name)

	missing, err := s.Snapshots.Get("g1", "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)

	none, err := s.Snapshots.Latest("g2")
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestSnapshotCapEvictsOldest(t *testing.T) {
	s := openTestStore(t)
	now := time.Now()

	for i, id := range []string{"s1", "s2", "s3"} {
		require.NoError(t, s.Snapshots.Save(SnapshotRow{
			ID: id, GuildID: "g1", Name: id, CreatedAt: now.Add(time.Duration(i) * time.Second), Payload: []byte(id),
		}, 2))
	}

	list, err := s.Snapshots.List("g1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "s3", list[0].ID)
	assert.Equal(t, "s2", list[1].ID)
}

func TestSnapshotCapIsPerGuild(t *testing.T) {
	s := openTestStore(t)
	now := time.Now()

	require.NoError(t, s.Snapshots.Save(SnapshotRow{ID: "a1", GuildID: "g1", Name: "a1", CreatedAt: now, Payload: []byte("x")}, 1))
	require.NoError(t, s.Snapshots.Save(SnapshotRow{ID: "b1", GuildID: "g2", Name: "b1", CreatedAt: now, Payload: []byte("x")}, 1))
	require.NoError(t, s.Snapshots.Save(SnapshotRow{ID: "a2", GuildID: "g1", Name: "a2", CreatedAt: now.Add(time.Second), Payload: []byte("x")}, 1))

	g1, err := s.Snapshots.List("g1")
	require.NoError(t, err)
	require.Len(t, g1, 1)
	assert.Equal(t, "a2", g1[0].ID)

	g2, err := s.Snapshots.List("g2")
	require.NoError(t, err)
	assert.Len(t, g2, 1)
}

func TestCheckpointLifecycle(t *testing.T) {
	s := openTestStore(t)

	_, _, found, err := s.Checkpoints.Load("g1")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, s.Checkpoints.Save("g1", []byte(`{"phase":"start"}`)))

	payload, updatedAt, found, err := s.Checkpoints.Load("g1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, []byte(`{"phase":"start"}`), payload)
	assert.WithinDuration(t, time.Now(), updatedAt, 5*time.Second)

	// Save again overwrites, never duplicates.
	require.NoError(t, s.Checkpoints.Save("g1", []byte(`{"phase":"roles_deleted"}`)))
	payload, _, found, err = s.Checkpoints.Load("g1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, []byte(`{"phase":"roles_deleted"}`), payload)

	require.NoError(t, s.Checkpoints.Clear("g1"))
	_, _, found, err = s.Checkpoints.Load("g1")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestAlertStateMarkNotified(t *testing.T) {
	s := openTestStore(t)

	state, err := s.AlertStates.Get("g1")
	require.NoError(t, err)
	assert.True(t, state.LastAlertAt.IsZero())
	assert.Equal(t, 0, state.AlertCount)

	first := time.Now().Add(-time.Hour)
	require.NoError(t, s.AlertStates.MarkNotified("g1", first))

	state, err = s.AlertStates.Get("g1")
	require.NoError(t, err)
	assert.Equal(t, 1, state.AlertCount)
	assert.WithinDuration(t, first, state.LastAlertAt, time.Millisecond)

	second := time.Now()
	require.NoError(t, s.AlertStates.MarkNotified("g1", second))

	state, err = s.AlertStates.Get("g1")
	require.NoError(t, err)
	assert.Equal(t, 2, state.AlertCount)
	assert.WithinDuration(t, second, state.LastAlertAt, time.Millisecond)
}
