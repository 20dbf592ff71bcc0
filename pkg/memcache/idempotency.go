package mem

import (
	"sync"
	"time"
)

// IdempotencyStore remembers the first successful response for a request key
// so a retried request replays it instead of running twice.
type IdempotencyStore interface {
	Set(key string, resp CachedResponse, ttl time.Duration)

	// Get returns the cached response if present and not expired.
	Get(key string) (CachedResponse, bool)

	// Purge drops expired entries and returns how many were removed.
	Purge() int
}

type CachedResponse struct {
	Status int
	Body   []byte
}

type entry struct {
	resp      CachedResponse
	expiresAt time.Time
}

type ResponseCache struct {
	mu   sync.RWMutex
	data map[string]entry
	now  func() time.Time
}

func NewResponseCache() *ResponseCache {
	return &ResponseCache{
		data: make(map[string]entry),
		now:  time.Now,
	}
}

// NewResponseCacheWithClock is used by tests to control expiry.
func NewResponseCacheWithClock(now func() time.Time) *ResponseCache {
	return &ResponseCache{
		data: make(map[string]entry),
		now:  now,
	}
}

func (s *ResponseCache) Set(key string, resp CachedResponse, ttl time.Duration) {
	body := append([]byte(nil), resp.Body...)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = entry{
		resp:      CachedResponse{Status: resp.Status, Body: body},
		expiresAt: s.now().Add(ttl),
	}
}

func (s *ResponseCache) Get(key string) (CachedResponse, bool) {
	s.mu.RLock()
	e, ok := s.data[key]
	s.mu.RUnlock()
	if !ok {
		return CachedResponse{}, false
	}
	if s.now().After(e.expiresAt) {
		s.mu.Lock()
		if cur, ok := s.data[key]; ok && cur.expiresAt.Equal(e.expiresAt) {
			delete(s.data, key)
		}
		s.mu.Unlock()
		return CachedResponse{}, false
	}
	return e.resp, true
}

func (s *ResponseCache) Purge() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for k, e := range s.data {
		if now.After(e.expiresAt) {
			delete(s.data, k)
			removed++
		}
	}
	return removed
}
