// Package oplock hands out exclusive per-guild operation locks so two
// destructive workflows never race for the same guild.
package oplock

import (
	"errors"
	"sync"
)

// ErrBusy means another destructive operation already holds the guild.
var ErrBusy = errors.New("an operation is already in progress for this guild")

type Locks struct {
	mu     sync.Mutex
	active map[string]string
}

func New() *Locks {
	return &Locks{active: make(map[string]string)}
}

// Acquire takes the guild's lock for the named operation. It never
// blocks: a held lock returns ErrBusy immediately.
func (l *Locks) Acquire(guildID, operation string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, held := l.active[guildID]; held {
		return ErrBusy
	}
	l.active[guildID] = operation
	return nil
}

// Release frees the guild's lock.
func (l *Locks) Release(guildID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.active, guildID)
}

// Holder returns the operation currently holding the guild, if any.
func (l *Locks) Holder(guildID string) (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	op, held := l.active[guildID]
	return op, held
}
