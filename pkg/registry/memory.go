package registry

import (
	"context"
	"sort"
	"sync"
)

// MemoryRegistry keeps sessions in process.
type MemoryRegistry struct {
	lock     sync.RWMutex
	sessions map[string]SessionInfo
}

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		sessions: make(map[string]SessionInfo),
	}
}

func (r *MemoryRegistry) Put(_ context.Context, info SessionInfo) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.sessions[info.ID] = info
	return nil
}

func (r *MemoryRegistry) Get(_ context.Context, id string) (SessionInfo, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	info, ok := r.sessions[id]
	if !ok {
		return SessionInfo{}, &ErrNotFound{ID: id}
	}
	return info, nil
}

// List returns every session, most recently updated first.
func (r *MemoryRegistry) List(_ context.Context) ([]SessionInfo, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	sessions := make([]SessionInfo, 0, len(r.sessions))
	for _, info := range r.sessions {
		sessions = append(sessions, info)
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].UpdatedAt.After(sessions[j].UpdatedAt)
	})
	return sessions, nil
}

func (r *MemoryRegistry) Delete(_ context.Context, id string) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	delete(r.sessions, id)
	return nil
}

func (r *MemoryRegistry) Close() error {
	return nil
}
