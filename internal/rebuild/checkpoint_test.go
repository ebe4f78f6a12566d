package rebuild

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLayout() Layout {
	return Layout{
		Roles: []RoleSpec{
			{Name: "Alpha"},
			{Name: "Beta"},
		},
		Categories: []CategorySpec{
			{Name: "Cat1", Channels: []ChannelSpec{{Name: "general", Type: 0}, {Name: "help", Type: 0}}},
			{Name: "Cat2", Channels: []ChannelSpec{{Name: "voice", Type: 2}}},
		},
	}
}

func TestNewProgressCountsTargets(t *testing.T) {
	p := newProgress("g1", testLayout())

	assert.Equal(t, PhaseStart, p.Phase)
	assert.Equal(t, 2, p.TotalRoles)
	assert.Equal(t, 2, p.TotalCategories)
	assert.Equal(t, 3, p.TotalChannels)
	assert.NotNil(t, p.CreatedRoles)
}

func TestProgressEncodeDecodeRoundtrip(t *testing.T) {
	p := newProgress("g1", testLayout())
	p.Phase = PhaseRolesDeleted
	p.DeletedChannels = 4
	p.CreatedRoles["Alpha"] = "role-9"

	data, err := p.encode()
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now(), p.UpdatedAt, time.Second)

	got, err := decodeProgress("g1", data)
	require.NoError(t, err)
	assert.Equal(t, PhaseRolesDeleted, got.Phase)
	assert.Equal(t, 4, got.DeletedChannels)
	assert.Equal(t, "role-9", got.CreatedRoles["Alpha"])
}

func TestDecodeProgressRejectsGarbage(t *testing.T) {
	_, err := decodeProgress("g1", []byte("not json"))
	assert.ErrorIs(t, err, ErrCorruptCheckpoint)
}

func TestDecodeProgressRejectsWrongGuild(t *testing.T) {
	p := newProgress("g2", testLayout())
	data, err := p.encode()
	require.NoError(t, err)

	_, err = decodeProgress("g1", data)
	assert.ErrorIs(t, err, ErrCorruptCheckpoint)
}

func TestDecodeProgressRejectsUnknownPhase(t *testing.T) {
	_, err := decodeProgress("g1", []byte(`{"guild_id":"g1","phase":"half_done"}`))
	assert.ErrorIs(t, err, ErrCorruptCheckpoint)
}

func TestDecodeProgressRepairsNilMaps(t *testing.T) {
	got, err := decodeProgress("g1", []byte(`{"guild_id":"g1","phase":"start"}`))
	require.NoError(t, err)
	assert.NotNil(t, got.CreatedRoles)
	assert.NotNil(t, got.CreatedCategories)
	assert.NotNil(t, got.CreatedChannels)
}
