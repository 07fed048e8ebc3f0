// Package cachetest provides an in-process CacheStore for service tests.
package cachetest

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/stockline/backoffice/pkg/redis"
)

// Store keeps cached documents in a map. TTLs are recorded but never expire.
type Store struct {
	mu   sync.Mutex
	data map[string]string
	ttls map[string]time.Duration
	// GetErr, when set, fails every read.
	GetErr error
}

var _ redis.CacheStore = (*Store)(nil)

func NewStore() *Store {
	return &Store{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (s *Store) Get(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.GetErr != nil {
		return "", s.GetErr
	}
	v, ok := s.data[key]
	if !ok {
		return "", redis.Nil
	}
	return v, nil
}

func (s *Store) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = fmt.Sprint(value)
	s.ttls[key] = ttl
	return nil
}

func (s *Store) Del(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		delete(s.data, k)
	}
	return nil
}

func (s *Store) DeletePrefix(_ context.Context, prefix string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for k := range s.data {
		if strings.HasPrefix(k, prefix) {
			delete(s.data, k)
			n++
		}
	}
	return n, nil
}

func (s *Store) CacheKey(parts ...string) string {
	return "bo:cache:" + strings.Join(parts, ":")
}

// Has reports whether key is currently cached.
func (s *Store) Has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.data[key]
	return ok
}

// Len returns the number of cached keys.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data)
}
