// Package registry tracks in-flight and completed wakes so the status
// API can report what the runtime is doing right now.
package registry

import (
	"sync"
	"time"
)

// WakeStatus is the live record for one persona's wake activity.
type WakeStatus struct {
	Handle      string `json:"handle"`
	InFlight    int    `json:"inFlight"`
	TotalWakes  int    `json:"totalWakes"`
	LastTrigger string `json:"lastTrigger,omitempty"`
	LastWakeAt  int64  `json:"lastWakeAt,omitempty"`
}

var (
	wakes    = make(map[string]*WakeStatus)
	wakeLock sync.Mutex
)

// BeginWake records that a persona's wake has started.
func BeginWake(handle, trigger string) {
	wakeLock.Lock()
	defer wakeLock.Unlock()

	status, ok := wakes[handle]
	if !ok {
		status = &WakeStatus{Handle: handle}
		wakes[handle] = status
	}
	status.InFlight++
	status.TotalWakes++
	status.LastTrigger = trigger
	status.LastWakeAt = time.Now().UnixMilli()
}

// EndWake records that a persona's wake has finished.
func EndWake(handle string) {
	wakeLock.Lock()
	defer wakeLock.Unlock()

	if status, ok := wakes[handle]; ok && status.InFlight > 0 {
		status.InFlight--
	}
}

// Snapshot returns a copy of every persona's wake status.
func Snapshot() []WakeStatus {
	wakeLock.Lock()
	defer wakeLock.Unlock()

	out := make([]WakeStatus, 0, len(wakes))
	for _, status := range wakes {
		out = append(out, *status)
	}
	return out
}

// InFlightCount returns how many wakes are currently running.
func InFlightCount() int {
	wakeLock.Lock()
	defer wakeLock.Unlock()

	total := 0
	for _, status := range wakes {
		total += status.InFlight
	}
	return total
}

// Reset clears all tracked state. Tests only.
func Reset() {
	wakeLock.Lock()
	defer wakeLock.Unlock()
	wakes = make(map[string]*WakeStatus)
}
