package restore

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"guildguard/internal/config"
	"guildguard/internal/confirm"
	"guildguard/internal/discord/discordtest"
	"guildguard/internal/oplock"
	"guildguard/internal/snapshot"
	"guildguard/internal/store"
)

type staticSource struct {
	cfg *config.GuardConfig
}

func (s *staticSource) Guard(guildID string) *config.GuardConfig {
	return s.cfg
}

type fixture struct {
	engine *Engine
	snaps  *snapshot.Engine
	fake   *discordtest.Fake
	locks  *oplock.Locks
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	fake := discordtest.New("g1")
	cfg := config.DefaultGuardConfig("g1")
	cfg.Enabled = true
	src := &staticSource{cfg: cfg}

	snaps := snapshot.NewEngine(fake, s.Snapshots, src)
	locks := oplock.New()
	return &fixture{
		engine: NewEngine(fake, snaps, locks, nil, nil),
		snaps:  snaps,
		fake:   fake,
		locks:  locks,
	}
}

func roleNames(t *testing.T, fake *discordtest.Fake) map[string]bool {
	t.Helper()
	roles, err := fake.Roles("g1")
	require.NoError(t, err)
	out := make(map[string]bool)
	for _, r := range roles {
		out[r.Name] = true
	}
	return out
}

func channelByName(t *testing.T, fake *discordtest.Fake, name string) *discordgo.Channel {
	t.Helper()
	channels, err := fake.Channels("g1")
	require.NoError(t, err)
	for _, ch := range channels {
		if ch.Name == name {
			return ch
		}
	}
	return nil
}

func TestRestoreRebuildsSnapshotStructure(t *testing.T) {
	f := newFixture(t)
	f.fake.AddRole("Admin", discordgo.PermissionAdministrator, 3, false)
	f.fake.AddRole("Member", 0, 2, false)
	cat := f.fake.AddChannel("General", discordgo.ChannelTypeGuildCategory, "", 0, nil)
	f.fake.AddChannel("general", discordgo.ChannelTypeGuildText, cat.ID, 1, nil)

	snap, err := f.snaps.Capture("g1", "before")
	require.NoError(t, err)

	// Vandalize: drop a channel, add junk the restore must clear.
	require.NoError(t, f.fake.DeleteChannel(cat.ID))
	f.fake.AddRole("hacked", discordgo.PermissionAdministrator, 4, false)
	f.fake.AddChannel("free-nitro", discordgo.ChannelTypeGuildText, "", 9, nil)

	report, err := f.engine.Restore("g1", snap)
	require.NoError(t, err)

	assert.Equal(t, 2, report.RolesRestored)
	assert.Equal(t, 1, report.CategoriesRestored)
	assert.Equal(t, 1, report.ChannelsRestored)
	assert.Empty(t, report.Errors)
	assert.NotEmpty(t, report.EmergencySnapshotID)

	names := roleNames(t, f.fake)
	assert.True(t, names["Admin"])
	assert.True(t, names["Member"])
	assert.True(t, names["@everyone"])
	assert.False(t, names["hacked"])

	assert.Nil(t, channelByName(t, f.fake, "free-nitro"))

	newCat := channelByName(t, f.fake, "General")
	require.NotNil(t, newCat)
	general := channelByName(t, f.fake, "general")
	require.NotNil(t, general)
	assert.Equal(t, newCat.ID, general.ParentID)
	assert.NotEqual(t, cat.ID, newCat.ID)
}

func TestRestorePreservesManagedRoles(t *testing.T) {
	f := newFixture(t)
	f.fake.AddRole("SomeBot", 0, 5, true)

	snap, err := f.snaps.Capture("g1", "before")
	require.NoError(t, err)

	_, err = f.engine.Restore("g1", snap)
	require.NoError(t, err)

	names := roleNames(t, f.fake)
	assert.True(t, names["SomeBot"])
	assert.True(t, names["@everyone"])
}

func TestRestoreAbortsWhenEmergencySnapshotFails(t *testing.T) {
	f := newFixture(t)
	f.fake.AddChannel("general", discordgo.ChannelTypeGuildText, "", 0, nil)

	snap, err := f.snaps.Capture("g1", "before")
	require.NoError(t, err)

	f.fake.FailOps["guild"] = discordtest.PermissionErr()

	_, err = f.engine.Restore("g1", snap)
	require.Error(t, err)

	// Nothing was touched.
	assert.Equal(t, 0, f.fake.OpCount("delete_channel"))
	assert.Equal(t, 0, f.fake.OpCount("delete_role"))
	assert.NotNil(t, channelByName(t, f.fake, "general"))

	// The lock was released on abort.
	_, held := f.locks.Holder("g1")
	assert.False(t, held)
}

func TestRestoreRejectsVersionMismatch(t *testing.T) {
	f := newFixture(t)

	_, err := f.engine.Restore("g1", &snapshot.Snapshot{Version: 1, GuildID: "g1"})
	assert.ErrorIs(t, err, snapshot.ErrVersionMismatch)
}

func TestRestoreRequiresConfirmation(t *testing.T) {
	f := newFixture(t)
	f.fake.AddChannel("general", discordgo.ChannelTypeGuildText, "", 0, nil)

	snap, err := f.snaps.Capture("g1", "before")
	require.NoError(t, err)

	gate := confirm.New(time.Minute)
	gated := NewEngine(f.fake, f.snaps, f.locks, gate, nil)

	_, err = gated.Restore("g1", snap)
	assert.ErrorIs(t, err, confirm.ErrNotConfirmed)
	assert.Equal(t, 0, f.fake.OpCount("delete_channel"))

	phrase, _ := gate.Request("g1", "restore")
	require.NoError(t, gate.Confirm("g1", "restore", phrase))

	report, err := gated.Restore("g1", snap)
	require.NoError(t, err)
	assert.Equal(t, 1, report.ChannelsRestored)

	// The confirmation was consumed; a second run needs a new one.
	_, err = gated.Restore("g1", snap)
	assert.ErrorIs(t, err, confirm.ErrNotConfirmed)
}

func TestRestoreRefusesWhileGuildIsBusy(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.locks.Acquire("g1", "rebuild"))

	_, err := f.engine.Restore("g1", &snapshot.Snapshot{Version: snapshot.FormatVersion, GuildID: "g1"})
	assert.ErrorIs(t, err, oplock.ErrBusy)
}

func TestRestoreRemapsOverwrites(t *testing.T) {
	f := newFixture(t)
	f.fake.AddMember("present")

	snap := &snapshot.Snapshot{
		ID:      "snap-1",
		Version: snapshot.FormatVersion,
		GuildID: "g1",
		Roles: []snapshot.Role{
			{ID: "old-mods", Name: "Mods", Permissions: discordgo.PermissionManageMessages, Position: 1},
		},
		Channels: []snapshot.Channel{
			{
				Name: "staff",
				Type: int(discordgo.ChannelTypeGuildText),
				Overwrites: []snapshot.Overwrite{
					{TargetID: "old-mods", Kind: snapshot.TargetRole, Allow: 1024},
					{TargetID: "g1", Kind: snapshot.TargetRole, Deny: 1024},
					{TargetID: "present", Kind: snapshot.TargetMember, Allow: 2048},
					{TargetID: "ghost", Kind: snapshot.TargetMember, Allow: 2048},
					{TargetID: "deleted-role", Kind: snapshot.TargetRole, Allow: 512},
				},
			},
		},
	}

	report, err := f.engine.Restore("g1", snap)
	require.NoError(t, err)
	assert.Equal(t, 1, report.RolesRestored)
	assert.Equal(t, 1, report.ChannelsRestored)

	staff := channelByName(t, f.fake, "staff")
	require.NotNil(t, staff)

	var newModsID string
	roles, err := f.fake.Roles("g1")
	require.NoError(t, err)
	for _, r := range roles {
		if r.Name == "Mods" {
			newModsID = r.ID
		}
	}
	require.NotEmpty(t, newModsID)
	assert.NotEqual(t, "old-mods", newModsID)

	// Remapped role, @everyone passthrough and the present member
	// survive; the absent member and the unmapped role are dropped.
	require.Len(t, staff.PermissionOverwrites, 3)
	assert.Equal(t, newModsID, staff.PermissionOverwrites[0].ID)
	assert.Equal(t, discordgo.PermissionOverwriteTypeRole, staff.PermissionOverwrites[0].Type)
	assert.Equal(t, "g1", staff.PermissionOverwrites[1].ID)
	assert.Equal(t, "present", staff.PermissionOverwrites[2].ID)
	assert.Equal(t, discordgo.PermissionOverwriteTypeMember, staff.PermissionOverwrites[2].Type)
}

func TestRestoreCollectsPerResourceErrors(t *testing.T) {
	f := newFixture(t)
	f.fake.AddRole("Stubborn", 0, 2, false)
	f.fake.AddChannel("general", discordgo.ChannelTypeGuildText, "", 0, nil)

	snap, err := f.snaps.Capture("g1", "before")
	require.NoError(t, err)

	f.fake.FailOps["delete_role"] = discordtest.PermissionErr()

	report, err := f.engine.Restore("g1", snap)
	require.NoError(t, err)

	assert.NotEmpty(t, report.Errors)
	assert.Equal(t, 0, report.RolesDeleted)
	// The rest of the restore still ran.
	assert.Equal(t, 1, report.ChannelsRestored)
	assert.NotNil(t, channelByName(t, f.fake, "general"))
}
