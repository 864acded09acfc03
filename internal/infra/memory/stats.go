package memory

import (
	"context"
	"sync"
)

// Stats counts analytics events in memory.
type Stats struct {
	mu     sync.Mutex
	counts map[string]int64
}

func NewStats() *Stats {
	return &Stats{counts: make(map[string]int64)}
}

func (s *Stats) Incr(_ context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts[path]++
	return nil
}

// Count returns the current value of the counter at path.
func (s *Stats) Count(path string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[path]
}
