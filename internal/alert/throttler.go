package alert

import (
	"time"

	"guildguard/internal/config"
	"guildguard/internal/store"
)

// Throttler gates owner alerts behind a per-guild cooldown. It fires on
// suspicious activity regardless of whether mitigation follows, so the
// owner hears about whitelisted actors too.
type Throttler struct {
	states   *store.AlertStateStore
	cfg      config.Source
	cooldown time.Duration
}

func NewThrottler(states *store.AlertStateStore, cfg config.Source, cooldown time.Duration) *Throttler {
	return &Throttler{states: states, cfg: cfg, cooldown: cooldown}
}

// ShouldNotify reports whether an alert may be sent now. Disabled owner
// notifications always suppress; otherwise the cooldown decides.
func (t *Throttler) ShouldNotify(guildID string, now time.Time) bool {
	if !t.cfg.Guard(guildID).OwnerNotifications {
		return false
	}

	state, err := t.states.Get(guildID)
	if err != nil {
		// Unreadable state must not silence a raid warning.
		return true
	}
	if state.LastAlertAt.IsZero() {
		return true
	}
	return now.Sub(state.LastAlertAt) >= t.cooldown
}

// MarkNotified records a sent alert for cooldown accounting.
func (t *Throttler) MarkNotified(guildID string, now time.Time) error {
	return t.states.MarkNotified(guildID, now)
}
