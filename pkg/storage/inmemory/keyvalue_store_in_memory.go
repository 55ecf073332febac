package inmemory

import (
	"errors"
	"sync"
)

type inMemoryKeyValueStore struct {
	mu    sync.RWMutex
	items map[string][]byte
	order []string
}

func NewStore() *inMemoryKeyValueStore {
	return &inMemoryKeyValueStore{
		items: make(map[string][]byte),
		order: make([]string, 0),
	}
}

func (s *inMemoryKeyValueStore) Get(key []byte) (value []byte, err error) {
	if s == nil {
		return nil, errors.New("store is nil")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if v, ok := s.items[string(key)]; ok {
		return v, nil
	}
	return nil, nil
}

func (s *inMemoryKeyValueStore) Set(key, value []byte) error {
	if s == nil {
		return errors.New("store is nil")
	}

	if string(key) == "" {
		return errors.New("key is blank")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.items[string(key)]; !exists {
		s.order = append(s.order, string(key))
	}

	s.items[string(key)] = make([]byte, len(value))
	copy(s.items[string(key)], value)

	return nil
}

func (s *inMemoryKeyValueStore) Delete(keys ...[]byte) error {
	if s == nil {
		return errors.New("store is nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range keys {
		delete(s.items, string(key))
		for i, k := range s.order {
			if k == string(key) {
				s.order = append(s.order[:i], s.order[i+1:]...)
				break
			}
		}
	}

	return nil
}

// ForEach visits keys in insertion order. The read lock is held for the
// whole iteration, so fn must not call back into the store.
func (s *inMemoryKeyValueStore) ForEach(fn func(k, v []byte) error) error {
	if s == nil {
		return errors.New("store is nil")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, key := range s.order {
		if err := fn([]byte(key), s.items[key]); err != nil {
			return err
		}
	}
	return nil
}

func (s *inMemoryKeyValueStore) Count() (int, error) {
	if s == nil {
		return 0, errors.New("store is nil")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.items), nil
}
