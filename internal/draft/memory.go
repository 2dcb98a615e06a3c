package draft

import (
	"context"

	gocache "github.com/patrickmn/go-cache"
)

// Memory is a process-local Backend. Drafts are lost on restart, so it is
// meant for development and tests.
type Memory struct {
	cache *gocache.Cache
}

// NewMemory returns an empty Memory backend whose entries never expire.
func NewMemory() *Memory {
	return &Memory{cache: gocache.New(gocache.NoExpiration, 0)}
}

// Get returns the value stored under key.
func (m *Memory) Get(_ context.Context, key string) (string, bool, error) {
	v, found := m.cache.Get(key)
	if !found {
		return "", false, nil
	}
	s, ok := v.(string)
	if !ok {
		return "", false, nil
	}
	return s, true, nil
}

// Put stores value under key.
func (m *Memory) Put(_ context.Context, key, value string) error {
	m.cache.Set(key, value, gocache.NoExpiration)
	return nil
}

// Delete removes key.
func (m *Memory) Delete(_ context.Context, key string) error {
	m.cache.Delete(key)
	return nil
}
