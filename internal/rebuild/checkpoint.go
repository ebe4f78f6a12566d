package rebuild

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrCorruptCheckpoint marks persisted rebuild state that cannot be
// trusted: it is discarded and the workflow starts fresh.
var ErrCorruptCheckpoint = errors.New("corrupt rebuild checkpoint")

// Progress is the persisted checkpoint of a rebuild. One live
// checkpoint exists per guild; it is cleared only when the workflow
// reaches the terminal phase.
type Progress struct {
	GuildID           string            `json:"guild_id"`
	Phase             Phase             `json:"phase"`
	DeletedChannels   int               `json:"deleted_channels"`
	DeletedRoles      int               `json:"deleted_roles"`
	CreatedRoles      map[string]string `json:"created_roles"`
	CreatedCategories map[string]string `json:"created_categories"`
	CreatedChannels   map[string]string `json:"created_channels"`
	TotalRoles        int               `json:"total_roles"`
	TotalCategories   int               `json:"total_categories"`
	TotalChannels     int               `json:"total_channels"`
	CategoryIndex     int               `json:"category_index"`
	ChannelIndex      int               `json:"channel_index"`
	UpdatedAt         time.Time         `json:"updated_at"`
}

func newProgress(guildID string, layout Layout) *Progress {
	totalChannels := 0
	for _, cat := range layout.Categories {
		totalChannels += len(cat.Channels)
	}
	return &Progress{
		GuildID:           guildID,
		Phase:             PhaseStart,
		CreatedRoles:      make(map[string]string),
		CreatedCategories: make(map[string]string),
		CreatedChannels:   make(map[string]string),
		TotalRoles:        len(layout.Roles),
		TotalCategories:   len(layout.Categories),
		TotalChannels:     totalChannels,
	}
}

func (p *Progress) encode() ([]byte, error) {
	p.UpdatedAt = time.Now()
	return json.Marshal(p)
}

// decodeProgress parses a persisted checkpoint. Any malformed payload,
// including an unknown phase, comes back as ErrCorruptCheckpoint.
func decodeProgress(guildID string, data []byte) (*Progress, error) {
	var p Progress
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptCheckpoint, err)
	}
	if p.GuildID != guildID {
		return nil, fmt.Errorf("%w: checkpoint belongs to guild %s", ErrCorruptCheckpoint, p.GuildID)
	}
	if p.Phase > PhaseDone {
		return nil, fmt.Errorf("%w: phase out of range", ErrCorruptCheckpoint)
	}
	if p.CreatedRoles == nil {
		p.CreatedRoles = make(map[string]string)
	}
	if p.CreatedCategories == nil {
		p.CreatedCategories = make(map[string]string)
	}
	if p.CreatedChannels == nil {
		p.CreatedChannels = make(map[string]string)
	}
	return &p, nil
}
