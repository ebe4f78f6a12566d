// Package discordtest provides an in-memory GuildAPI implementation for
// engine tests: a fake guild whose roles, channels and members behave
// like the real resource surface, with injectable failures.
package discordtest

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"guildguard/internal/discord"
)

// Fake is a single in-memory guild implementing discord.GuildAPI.
type Fake struct {
	mu sync.Mutex

	GuildID string
	Meta    discord.GuildMeta

	roles    map[string]*discordgo.Role
	channels map[string]*discordgo.Channel
	members  map[string][]string

	Timeouts     map[string]time.Time
	RemovedRoles map[string][]string
	DMs          map[string][]*discordgo.MessageEmbed
	Embeds       map[string][]*discordgo.MessageEmbed
	Audit        []*discord.AuditEntry

	CommunityDisabled bool
	BotTopPos         int
	DMFail            bool

	// FailOps returns the given error for an op name; FailAfter lets
	// the op succeed that many times first.
	FailOps   map[string]error
	FailAfter map[string]int

	// Ops records every mutating call in order, as "op:target".
	Ops []string

	nextID      int
	nextRolePos int
	nextChanPos int
}

func New(guildID string) *Fake {
	f := &Fake{
		GuildID: guildID,
		Meta: discord.GuildMeta{
			ID:      guildID,
			Name:    "test guild",
			OwnerID: "owner-1",
		},
		roles:        make(map[string]*discordgo.Role),
		channels:     make(map[string]*discordgo.Channel),
		members:      make(map[string][]string),
		Timeouts:     make(map[string]time.Time),
		RemovedRoles: make(map[string][]string),
		DMs:          make(map[string][]*discordgo.MessageEmbed),
		Embeds:       make(map[string][]*discordgo.MessageEmbed),
		FailOps:      make(map[string]error),
		FailAfter:    make(map[string]int),
		BotTopPos:    10000,
		nextRolePos:  5000,
		nextChanPos:  0,
	}
	// @everyone shares the guild's ID.
	f.roles[guildID] = &discordgo.Role{ID: guildID, Name: "@everyone", Position: 0}
	return f
}

// NotFoundErr builds the platform's unknown-resource error.
func NotFoundErr() error {
	return &discordgo.RESTError{
		Response: &http.Response{StatusCode: http.StatusNotFound},
		Message:  &discordgo.APIErrorMessage{Code: 10003, Message: "Unknown Channel"},
	}
}

// PermissionErr builds the platform's missing-permissions error.
func PermissionErr() error {
	return &discordgo.RESTError{
		Response: &http.Response{StatusCode: http.StatusForbidden},
		Message:  &discordgo.APIErrorMessage{Code: 50013, Message: "Missing Permissions"},
	}
}

// CapacityErr builds the platform's max-channels error.
func CapacityErr() error {
	return &discordgo.RESTError{
		Response: &http.Response{StatusCode: http.StatusBadRequest},
		Message:  &discordgo.APIErrorMessage{Code: 30013, Message: "Maximum number of guild channels reached"},
	}
}

func (f *Fake) fail(op string) error {
	err, ok := f.FailOps[op]
	if !ok {
		return nil
	}
	if left, gated := f.FailAfter[op]; gated {
		if left > 0 {
			f.FailAfter[op] = left - 1
			return nil
		}
	}
	return err
}

func (f *Fake) record(op, target string) {
	f.Ops = append(f.Ops, op+":"+target)
}

// OpCount counts recorded calls of one op.
func (f *Fake) OpCount(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, entry := range f.Ops {
		if strings.HasPrefix(entry, op+":") {
			n++
		}
	}
	return n
}

func (f *Fake) id(prefix string) string {
	f.nextID++
	return prefix + "-" + strconv.Itoa(f.nextID)
}

// AddRole seeds a role with an explicit position.
func (f *Fake) AddRole(name string, permissions int64, position int, managed bool) *discordgo.Role {
	f.mu.Lock()
	defer f.mu.Unlock()
	r := &discordgo.Role{
		ID:          f.id("role"),
		Name:        name,
		Permissions: permissions,
		Position:    position,
		Managed:     managed,
	}
	f.roles[r.ID] = r
	return r
}

// AddChannel seeds a channel; parentID may name a seeded category.
func (f *Fake) AddChannel(name string, chType discordgo.ChannelType, parentID string, position int, overwrites []*discordgo.PermissionOverwrite) *discordgo.Channel {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := &discordgo.Channel{
		ID:                   f.id("chan"),
		GuildID:              f.GuildID,
		Name:                 name,
		Type:                 chType,
		ParentID:             parentID,
		Position:             position,
		PermissionOverwrites: overwrites,
	}
	f.channels[ch.ID] = ch
	return ch
}

// AddMember seeds a member with role IDs.
func (f *Fake) AddMember(userID string, roleIDs ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.members[userID] = roleIDs
}

// AddAudit seeds an audit log entry.
func (f *Fake) AddAudit(actionType int, actorID, targetID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Audit = append(f.Audit, &discord.AuditEntry{
		ID:         f.id("audit"),
		ActorID:    actorID,
		TargetID:   targetID,
		ActionType: actionType,
	})
}

func (f *Fake) Guild(guildID string) (*discord.GuildMeta, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("guild"); err != nil {
		return nil, err
	}
	meta := f.Meta
	return &meta, nil
}

func (f *Fake) Roles(guildID string) ([]*discordgo.Role, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("roles"); err != nil {
		return nil, err
	}
	out := make([]*discordgo.Role, 0, len(f.roles))
	for _, r := range f.roles {
		out = append(out, r)
	}
	return out, nil
}

func (f *Fake) Channels(guildID string) ([]*discordgo.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("channels"); err != nil {
		return nil, err
	}
	out := make([]*discordgo.Channel, 0, len(f.channels))
	for _, ch := range f.channels {
		out = append(out, ch)
	}
	return out, nil
}

func (f *Fake) CreateRole(guildID string, p discord.RoleCreate) (*discordgo.Role, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("create_role", p.Name)
	if err := f.fail("create_role"); err != nil {
		return nil, err
	}
	f.nextRolePos--
	r := &discordgo.Role{
		ID:          f.id("role"),
		Name:        p.Name,
		Color:       p.Color,
		Permissions: p.Permissions,
		Hoist:       p.Hoist,
		Mentionable: p.Mentionable,
		Position:    f.nextRolePos,
	}
	f.roles[r.ID] = r
	return r, nil
}

func (f *Fake) DeleteRole(guildID, roleID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("delete_role", roleID)
	if err := f.fail("delete_role"); err != nil {
		return err
	}
	if _, ok := f.roles[roleID]; !ok {
		return NotFoundErr()
	}
	delete(f.roles, roleID)
	return nil
}

func (f *Fake) CreateChannel(guildID string, p discord.ChannelCreate) (*discordgo.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("create_channel", p.Name)
	if err := f.fail("create_channel"); err != nil {
		return nil, err
	}
	f.nextChanPos++
	ch := &discordgo.Channel{
		ID:                   f.id("chan"),
		GuildID:              guildID,
		Name:                 p.Name,
		Type:                 p.Type,
		Topic:                p.Topic,
		Bitrate:              p.Bitrate,
		UserLimit:            p.UserLimit,
		ParentID:             p.ParentID,
		NSFW:                 p.NSFW,
		Position:             f.nextChanPos,
		PermissionOverwrites: p.Overwrites,
	}
	f.channels[ch.ID] = ch
	return ch, nil
}

func (f *Fake) DeleteChannel(channelID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("delete_channel", channelID)
	if err := f.fail("delete_channel"); err != nil {
		return err
	}
	if _, ok := f.channels[channelID]; !ok {
		return NotFoundErr()
	}
	delete(f.channels, channelID)
	return nil
}

func (f *Fake) SetOverwrites(channelID string, overwrites []*discordgo.PermissionOverwrite) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("set_overwrites", channelID)
	if err := f.fail("set_overwrites"); err != nil {
		return err
	}
	ch, ok := f.channels[channelID]
	if !ok {
		return NotFoundErr()
	}
	ch.PermissionOverwrites = overwrites
	return nil
}

func (f *Fake) TimeoutMember(guildID, userID string, until time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("timeout", userID)
	if err := f.fail("timeout"); err != nil {
		return err
	}
	f.Timeouts[userID] = until
	return nil
}

func (f *Fake) MemberRoles(guildID, userID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("member_roles"); err != nil {
		return nil, err
	}
	roles, ok := f.members[userID]
	if !ok {
		return nil, NotFoundErr()
	}
	return roles, nil
}

func (f *Fake) RemoveMemberRoles(guildID, userID string, roleIDs []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("remove_roles", userID)
	if err := f.fail("remove_roles"); err != nil {
		return err
	}
	f.RemovedRoles[userID] = append(f.RemovedRoles[userID], roleIDs...)

	kept := f.members[userID][:0]
	for _, id := range f.members[userID] {
		removed := false
		for _, rm := range roleIDs {
			if id == rm {
				removed = true
				break
			}
		}
		if !removed {
			kept = append(kept, id)
		}
	}
	f.members[userID] = kept
	return nil
}

func (f *Fake) HasMember(guildID, userID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.members[userID]
	return ok
}

func (f *Fake) BotTopRolePosition(guildID string) int {
	return f.BotTopPos
}

func (f *Fake) DisableCommunityFeatures(guildID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("disable_community", guildID)
	if err := f.fail("disable_community"); err != nil {
		return err
	}
	f.CommunityDisabled = true
	return nil
}

func (f *Fake) AuditEntry(guildID string, actionType int, targetID string) (*discord.AuditEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("audit"); err != nil {
		return nil, err
	}
	for i := len(f.Audit) - 1; i >= 0; i-- {
		entry := f.Audit[i]
		if entry.ActionType != actionType {
			continue
		}
		if targetID != "" && entry.TargetID != targetID {
			continue
		}
		return entry, nil
	}
	return nil, nil
}

func (f *Fake) SendDM(userID string, embed *discordgo.MessageEmbed) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("dm", userID)
	if f.DMFail {
		return fmt.Errorf("cannot send messages to this user")
	}
	if err := f.fail("dm"); err != nil {
		return err
	}
	f.DMs[userID] = append(f.DMs[userID], embed)
	return nil
}

func (f *Fake) SendEmbed(channelID string, embed *discordgo.MessageEmbed) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("embed", channelID)
	if err := f.fail("embed"); err != nil {
		return err
	}
	f.Embeds[channelID] = append(f.Embeds[channelID], embed)
	return nil
}

var _ discord.GuildAPI = (*Fake)(nil)
