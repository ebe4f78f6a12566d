// Package confirm implements the time-boxed confirmation wait that
// precedes a destructive workflow. A caller requests a confirmation
// phrase, relays it to the operator, and the workflow consumes the
// confirmed entry before touching anything. The wait is the only
// cancellable stage: an entry that is never confirmed simply expires.
package confirm

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotConfirmed means no confirmed, unexpired entry exists for
	// the operation.
	ErrNotConfirmed = errors.New("operation has not been confirmed")
	// ErrNoPending means confirmation was attempted with nothing requested.
	ErrNoPending = errors.New("no confirmation pending for this guild")
	// ErrExpired means the confirmation window elapsed.
	ErrExpired = errors.New("confirmation window expired")
	// ErrPhraseMismatch means the supplied phrase was not an exact match.
	ErrPhraseMismatch = errors.New("confirmation phrase does not match")
)

type entry struct {
	operation   string
	phrase      string
	requestedAt time.Time
	confirmed   bool
}

// Gate tracks at most one pending confirmation per guild.
type Gate struct {
	mu      sync.Mutex
	window  time.Duration
	pending map[string]*entry
}

func New(window time.Duration) *Gate {
	return &Gate{
		window:  window,
		pending: make(map[string]*entry),
	}
}

// Request opens a confirmation window for the operation and returns the
// exact phrase the operator must echo back. A new request replaces any
// previous pending entry for the guild.
func (g *Gate) Request(guildID, operation string) (phrase string, expiresAt time.Time) {
	now := time.Now()
	phrase = strings.ToUpper(operation) + "-" + strings.ToUpper(uuid.NewString()[:8])

	g.mu.Lock()
	defer g.mu.Unlock()
	g.pending[guildID] = &entry{
		operation:   operation,
		phrase:      phrase,
		requestedAt: now,
	}
	return phrase, now.Add(g.window)
}

// Confirm matches the echoed phrase against the pending entry. The
// match must be exact and arrive inside the window.
func (g *Gate) Confirm(guildID, operation, phrase string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	e, ok := g.pending[guildID]
	if !ok || e.operation != operation {
		return ErrNoPending
	}
	if time.Since(e.requestedAt) > g.window {
		delete(g.pending, guildID)
		return ErrExpired
	}
	if e.phrase != phrase {
		return ErrPhraseMismatch
	}
	e.confirmed = true
	return nil
}

// Consume takes the confirmed entry, authorizing exactly one run of the
// operation. Without a confirmed, unexpired entry it fails and the
// workflow must not proceed.
func (g *Gate) Consume(guildID, operation string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	e, ok := g.pending[guildID]
	if !ok || e.operation != operation {
		return ErrNotConfirmed
	}
	if time.Since(e.requestedAt) > g.window {
		delete(g.pending, guildID)
		return ErrExpired
	}
	if !e.confirmed {
		return ErrNotConfirmed
	}
	delete(g.pending, guildID)
	return nil
}

// Cancel aborts the wait before anything destructive happens.
func (g *Gate) Cancel(guildID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.pending, guildID)
}

// Pending reports the operation currently awaiting confirmation.
func (g *Gate) Pending(guildID string) (operation string, expiresAt time.Time, ok bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	e, found := g.pending[guildID]
	if !found || time.Since(e.requestedAt) > g.window {
		return "", time.Time{}, false
	}
	return e.operation, e.requestedAt.Add(g.window), true
}
