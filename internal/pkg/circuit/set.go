package circuit

import (
	"sort"
	"sync"
	"time"
)

// Set lazily creates one breaker per key, all sharing the same settings.
type Set struct {
	mu        sync.Mutex
	prefix    string
	threshold int
	timeout   time.Duration
	nowFn     func() time.Time
	breakers  map[string]*CircuitBreaker
}

func NewSet(prefix string, threshold int, timeout time.Duration) *Set {
	return &Set{
		prefix:    prefix,
		threshold: threshold,
		timeout:   timeout,
		nowFn:     time.Now,
		breakers:  make(map[string]*CircuitBreaker),
	}
}

// WithClock replaces the time source of breakers created afterwards.
func (s *Set) WithClock(now func() time.Time) *Set {
	s.mu.Lock()
	defer s.mu.Unlock()
	if now != nil {
		s.nowFn = now
	}
	return s
}

func (s *Set) Get(key string) *CircuitBreaker {
	s.mu.Lock()
	defer s.mu.Unlock()
	cb, ok := s.breakers[key]
	if !ok {
		cb = NewCircuitBreaker(s.prefix+":"+key, s.threshold, s.timeout)
		cb.nowFn = s.nowFn
		s.breakers[key] = cb
	}
	return cb
}

// Open returns the keys whose breaker is currently open.
func (s *Set) Open() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for key, cb := range s.breakers {
		if cb.State() == StateOpen {
			out = append(out, key)
		}
	}
	sort.Strings(out)
	return out
}
