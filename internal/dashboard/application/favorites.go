package application

import (
	"slices"
	"strings"
	"sync"

	monitoring "monitor-dashboard/internal/monitoring/domain"
)

// Favorites is the set of starred monitor ids. It lives in memory only.
type Favorites struct {
	mu  sync.RWMutex
	ids map[string]struct{}
}

// NewFavorites constructs an empty set.
func NewFavorites() *Favorites {
	return &Favorites{ids: make(map[string]struct{})}
}

// Add stars a monitor.
func (f *Favorites) Add(monitorID string) error {
	monitorID = strings.TrimSpace(monitorID)
	if monitorID == "" {
		return monitoring.ErrEmptyMonitorID
	}
	f.mu.Lock()
	f.ids[monitorID] = struct{}{}
	f.mu.Unlock()
	return nil
}

// Remove unstars a monitor. Removing an absent id is a no-op.
func (f *Favorites) Remove(monitorID string) error {
	monitorID = strings.TrimSpace(monitorID)
	if monitorID == "" {
		return monitoring.ErrEmptyMonitorID
	}
	f.mu.Lock()
	delete(f.ids, monitorID)
	f.mu.Unlock()
	return nil
}

// Toggle flips the star of a monitor and reports whether it is now starred.
func (f *Favorites) Toggle(monitorID string) (bool, error) {
	monitorID = strings.TrimSpace(monitorID)
	if monitorID == "" {
		return false, monitoring.ErrEmptyMonitorID
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.ids[monitorID]; ok {
		delete(f.ids, monitorID)
		return false, nil
	}
	f.ids[monitorID] = struct{}{}
	return true, nil
}

// List returns the starred ids in ascending order.
func (f *Favorites) List() []string {
	f.mu.RLock()
	out := make([]string, 0, len(f.ids))
	for id := range f.ids {
		out = append(out, id)
	}
	f.mu.RUnlock()
	slices.Sort(out)
	return out
}

// Snapshot returns a copy of the set for use as an explicit filter parameter.
func (f *Favorites) Snapshot() map[string]struct{} {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make(map[string]struct{}, len(f.ids))
	for id := range f.ids {
		out[id] = struct{}{}
	}
	return out
}
