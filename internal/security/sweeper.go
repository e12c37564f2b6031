package security

import (
	"sync"
	"time"
)

// SweepTarget is one store the sweeper expires entries from.
type SweepTarget struct {
	Name  string
	Sweep func() int
}

// Sweeper periodically expires stale entries from the security stores. It is
// owned by the process lifecycle: Start launches the ticker goroutine and
// Stop blocks until it has exited. The sweep only ever deletes expired
// entries, so it needs no coordination beyond each store's own lock.
type Sweeper struct {
	interval time.Duration
	targets  []SweepTarget

	mu      sync.Mutex
	stop    chan struct{}
	done    chan struct{}
	started bool
}

func NewSweeper(interval time.Duration, targets ...SweepTarget) *Sweeper {
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	return &Sweeper{interval: interval, targets: targets}
}

func (s *Sweeper) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true
	s.stop = make(chan struct{})
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.SweepNow()
			case <-s.stop:
				return
			}
		}
	}()
}

func (s *Sweeper) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	close(s.stop)
	done := s.done
	s.mu.Unlock()

	<-done
}

// SweepNow runs every target once and reports per-target deletion counts.
func (s *Sweeper) SweepNow() map[string]int {
	counts := make(map[string]int, len(s.targets))
	for _, target := range s.targets {
		counts[target.Name] = target.Sweep()
	}
	return counts
}
