package models

// Action type constants for tracked destructive or escalating actions.
const (
	ActionBanMembers     = "ban_members"
	ActionKickMembers    = "kick_members"
	ActionDeleteRoles    = "delete_roles"
	ActionCreateRoles    = "create_roles"
	ActionDeleteChannels = "delete_channels"
	ActionCreateChannels = "create_channels"
	ActionDangerousPerms = "dangerous_perms"
	ActionCreateWebhooks = "create_webhooks"
	ActionDeleteEmojis   = "delete_emojis"
)

// AllActionTypes returns every tracked action type.
func AllActionTypes() []string {
	return []string{
		ActionBanMembers,
		ActionKickMembers,
		ActionDeleteRoles,
		ActionCreateRoles,
		ActionDeleteChannels,
		ActionCreateChannels,
		ActionDangerousPerms,
		ActionCreateWebhooks,
		ActionDeleteEmojis,
	}
}

// ActionDisplayName returns a human-readable name for an action type.
func ActionDisplayName(actionType string) string {
	switch actionType {
	case ActionBanMembers:
		return "Banning Members"
	case ActionKickMembers:
		return "Kicking Members"
	case ActionDeleteRoles:
		return "Deleting Roles"
	case ActionCreateRoles:
		return "Creating Roles"
	case ActionDeleteChannels:
		return "Deleting Channels"
	case ActionCreateChannels:
		return "Creating Channels"
	case ActionDangerousPerms:
		return "Dangerous Permissions"
	case ActionCreateWebhooks:
		return "Creating Webhooks"
	case ActionDeleteEmojis:
		return "Deleting Emojis"
	default:
		return actionType
	}
}
