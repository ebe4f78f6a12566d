// Package watchdog monitors long-running workflows. Restore and rebuild
// beat it during their phases; a workflow that goes silent past its
// threshold is reported unhealthy.
package watchdog

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"guildguard/internal/logging"
)

type Watchdog struct {
	mu            sync.RWMutex
	components    map[string]*componentHealth
	checkInterval time.Duration
	running       uint32
	log           *logrus.Entry
}

type componentHealth struct {
	lastHeartbeat int64
	healthy       uint32
	threshold     time.Duration
}

func New(checkInterval time.Duration) *Watchdog {
	return &Watchdog{
		components:    make(map[string]*componentHealth),
		checkInterval: checkInterval,
		log:           logging.Component("watchdog"),
	}
}

func (w *Watchdog) Register(name string, threshold time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.components[name] = &componentHealth{healthy: 1, threshold: threshold}
}

func (w *Watchdog) Heartbeat(name string) {
	w.mu.RLock()
	comp, ok := w.components[name]
	w.mu.RUnlock()
	if ok {
		atomic.StoreInt64(&comp.lastHeartbeat, time.Now().UnixNano())
		atomic.StoreUint32(&comp.healthy, 1)
	}
}

func (w *Watchdog) Start() {
	if !atomic.CompareAndSwapUint32(&w.running, 0, 1) {
		return
	}
	go w.monitorLoop()
}

func (w *Watchdog) Stop() {
	atomic.StoreUint32(&w.running, 0)
}

func (w *Watchdog) monitorLoop() {
	ticker := time.NewTicker(w.checkInterval)
	defer ticker.Stop()

	for atomic.LoadUint32(&w.running) == 1 {
		<-ticker.C
		w.checkAll()
	}
}

func (w *Watchdog) checkAll() {
	now := time.Now().UnixNano()

	w.mu.RLock()
	defer w.mu.RUnlock()

	for name, comp := range w.components {
		lastBeat := atomic.LoadInt64(&comp.lastHeartbeat)
		if lastBeat == 0 {
			continue
		}
		elapsed := time.Duration(now - lastBeat)
		if elapsed > comp.threshold && atomic.CompareAndSwapUint32(&comp.healthy, 1, 0) {
			w.log.WithFields(logrus.Fields{
				"workflow": name,
				"silent":   elapsed.String(),
			}).Error("workflow unhealthy, no heartbeat")
		}
	}
}

func (w *Watchdog) IsHealthy(name string) bool {
	w.mu.RLock()
	comp, ok := w.components[name]
	w.mu.RUnlock()
	if !ok {
		return false
	}
	return atomic.LoadUint32(&comp.healthy) == 1
}

func (w *Watchdog) Status() map[string]bool {
	w.mu.RLock()
	defer w.mu.RUnlock()

	status := make(map[string]bool, len(w.components))
	for name, comp := range w.components {
		status[name] = atomic.LoadUint32(&comp.healthy) == 1
	}
	return status
}
