package state

import (
	"context"
	"sync"
	"time"

	"github.com/sir_venger/minibackup/internal/keys"
)

// MemoryStore хранит записи только в оперативной памяти; удобно для тестов.
type MemoryStore struct {
	mu        sync.Mutex
	salt      string
	rates     map[string]time.Time
	lastSweep time.Time
}

// NewMemoryStore создаёт пустое in-memory хранилище.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rates: map[string]time.Time{}}
}

var _ Store = (*MemoryStore)(nil)

func (s *MemoryStore) Salt(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.salt == "" {
		salt, err := keys.NewSalt()
		if err != nil {
			return "", err
		}
		s.salt = salt
	}
	return s.salt, nil
}

func (s *MemoryStore) TouchRate(_ context.Context, addr string, now time.Time, interval time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.rates[addr]; ok && now.Sub(prev) < interval {
		return false, nil
	}
	s.rates[addr] = now
	return true, nil
}

func (s *MemoryStore) PruneRates(_ context.Context, before time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for addr, t := range s.rates {
		if t.Before(before) {
			delete(s.rates, addr)
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) ClaimSweep(_ context.Context, now time.Time, every time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if now.Sub(s.lastSweep) <= every {
		return false, nil
	}
	s.lastSweep = now
	return true, nil
}

func (s *MemoryStore) Close() error { return nil }
