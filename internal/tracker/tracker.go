// Package tracker counts destructive actions per (guild, user) inside a
// sliding window. Events arrive from independent gateway callbacks, so
// increments are serialized per key, never behind one global lock.
package tracker

import (
	"sync"
	"time"

	"guildguard/internal/config"
	"guildguard/internal/models"
)

type key struct {
	guildID string
	userID  string
}

type window struct {
	mu     sync.Mutex
	start  time.Time
	events []models.ActionEvent
}

type Tracker struct {
	mu      sync.RWMutex
	windows map[key]*window
	cfg     config.Source
}

func New(cfg config.Source) *Tracker {
	return &Tracker{
		windows: make(map[key]*window),
		cfg:     cfg,
	}
}

func (t *Tracker) window(k key) *window {
	t.mu.RLock()
	w, ok := t.windows[k]
	t.mu.RUnlock()
	if ok {
		return w
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if w, ok = t.windows[k]; ok {
		return w
	}
	w = &window{}
	t.windows[k] = w
	return w
}

// Record appends an action to the user's window and returns the count
// of events recorded since the last reset. A disabled guild records
// nothing and returns 0. The window resets when the configured idle
// period has elapsed since it was started, which also bounds memory.
func (t *Tracker) Record(guildID, userID, actionType string, now time.Time) int {
	cfg := t.cfg.Guard(guildID)
	if !cfg.Enabled {
		return 0
	}

	w := t.window(key{guildID: guildID, userID: userID})
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.start.IsZero() || now.Sub(w.start) > cfg.Window() {
		w.start = now
		w.events = w.events[:0]
	}

	w.events = append(w.events, models.ActionEvent{Type: actionType, Timestamp: now})
	return len(w.events)
}

// Count returns the current window count without recording.
func (t *Tracker) Count(guildID, userID string, now time.Time) int {
	cfg := t.cfg.Guard(guildID)

	t.mu.RLock()
	w, ok := t.windows[key{guildID: guildID, userID: userID}]
	t.mu.RUnlock()
	if !ok {
		return 0
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.start.IsZero() || now.Sub(w.start) > cfg.Window() {
		return 0
	}
	return len(w.events)
}

// Recent returns up to n of the most recent events in the user's
// current window, newest last.
func (t *Tracker) Recent(guildID, userID string, n int) []models.ActionEvent {
	t.mu.RLock()
	w, ok := t.windows[key{guildID: guildID, userID: userID}]
	t.mu.RUnlock()
	if !ok {
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	events := w.events
	if n > 0 && len(events) > n {
		events = events[len(events)-n:]
	}
	out := make([]models.ActionEvent, len(events))
	copy(out, events)
	return out
}

// Reset drops the user's window.
func (t *Tracker) Reset(guildID, userID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.windows, key{guildID: guildID, userID: userID})
}
