package discovery

import (
	"sync/atomic"

	"ragd/internal/domain"
)

// Registry holds the current registry snapshot behind an atomically swapped
// pointer. Readers fetch one immutable snapshot and use it for the duration
// of a pipeline step; a concurrent refresh never invalidates it. A nil
// snapshot means discovery has not produced (or restored) anything yet.
type Registry struct {
	current atomic.Pointer[domain.RegistrySnapshot]
}

func NewRegistry() *Registry {
	return &Registry{}
}

// Snapshot returns the current snapshot. ok is false until the first
// successful discovery run or degraded-start restore.
func (r *Registry) Snapshot() (*domain.RegistrySnapshot, bool) {
	snap := r.current.Load()
	return snap, snap != nil
}

// Replace installs a new snapshot wholesale.
func (r *Registry) Replace(snap *domain.RegistrySnapshot) {
	if snap == nil {
		return
	}
	r.current.Store(snap)
}
