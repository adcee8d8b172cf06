// Package kvtest provides an in-memory kv.Client for tests.
package kvtest

import (
	"context"
	"path"
	"sync"
	"time"

	"github.com/mailgram/mailgram/internal/kv"
)

// Store implements kv.Client on top of in-process maps. TTLs are
// recorded but never enforced; tests assert on them directly.
type Store struct {
	mu     sync.Mutex
	values map[string]string
	lists  map[string][]string
	ttls   map[string]time.Duration
}

func New() *Store {
	return &Store{
		values: make(map[string]string),
		lists:  make(map[string][]string),
		ttls:   make(map[string]time.Duration),
	}
}

func (s *Store) Get(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	value, ok := s.values[key]
	if !ok {
		return "", kv.ErrNotFound
	}
	return value, nil
}

func (s *Store) Set(_ context.Context, key string, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	s.ttls[key] = ttl
	return nil
}

func (s *Store) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	delete(s.lists, key)
	delete(s.ttls, key)
	return nil
}

func (s *Store) Exists(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.values[key]; ok {
		return true, nil
	}
	_, ok := s.lists[key]
	return ok, nil
}

func (s *Store) LPush(_ context.Context, key string, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lists[key] = append([]string{value}, s.lists[key]...)
	return nil
}

func (s *Store) LPop(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := s.lists[key]
	if len(items) == 0 {
		return "", kv.ErrNotFound
	}
	value := items[0]
	s.lists[key] = items[1:]
	if len(s.lists[key]) == 0 {
		delete(s.lists, key)
	}
	return value, nil
}

func (s *Store) LRange(_ context.Context, key string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := s.lists[key]
	out := make([]string, len(items))
	copy(out, items)
	return out, nil
}

func (s *Store) LRem(_ context.Context, key string, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := s.lists[key]
	for i, item := range items {
		if item == value {
			s.lists[key] = append(items[:i:i], items[i+1:]...)
			break
		}
	}
	return nil
}

func (s *Store) Scan(_ context.Context, pattern string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var keys []string
	for key := range s.values {
		if ok, _ := path.Match(pattern, key); ok {
			keys = append(keys, key)
		}
	}
	for key := range s.lists {
		if ok, _ := path.Match(pattern, key); ok {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

func (s *Store) Touch(_ context.Context, key string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ttls[key] = ttl
	return nil
}

func (s *Store) Close() error { return nil }

// TTL reports the last TTL recorded for a key.
func (s *Store) TTL(key string) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ttls[key]
}

// List returns a copy of the list stored at key.
func (s *Store) List(key string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := s.lists[key]
	out := make([]string, len(items))
	copy(out, items)
	return out
}
