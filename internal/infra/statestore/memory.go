// Package statestore provides the collaborators whose state the rollback
// manager snapshots.
package statestore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
)

// MemoryStore is an in-process key/value collaborator.
type MemoryStore struct {
	name string
	mu   sync.RWMutex
	data map[string]string
}

// NewMemoryStore creates an empty store.
func NewMemoryStore(name string) *MemoryStore {
	return &MemoryStore{name: name, data: make(map[string]string)}
}

func (s *MemoryStore) Name() string { return s.name }

// Get returns the value stored under key.
func (s *MemoryStore) Get(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	return v, ok
}

// Set stores value under key.
func (s *MemoryStore) Set(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
}

// Delete removes key.
func (s *MemoryStore) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
}

// Keys returns the stored keys in sorted order.
func (s *MemoryStore) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ExportState encodes the whole map as JSON.
func (s *MemoryStore) ExportState(ctx context.Context) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return json.Marshal(s.data)
}

// ImportState replaces the map with a decoded export.
func (s *MemoryStore) ImportState(ctx context.Context, state []byte) error {
	data, err := decode(state)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = data
	return nil
}

// ValidateState checks that state decodes.
func (s *MemoryStore) ValidateState(ctx context.Context, state []byte) error {
	_, err := decode(state)
	return err
}

func decode(state []byte) (map[string]string, error) {
	data := make(map[string]string)
	if err := json.Unmarshal(state, &data); err != nil {
		return nil, fmt.Errorf("decode state: %w", err)
	}
	if data == nil {
		data = make(map[string]string)
	}
	return data, nil
}
