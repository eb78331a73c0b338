package transport

import (
	"sync"

	"github.com/google/uuid"
)

// runStore tracks runs in memory for the lifetime of the process. Runs
// execute synchronously against the registry, so by the time createRun
// returns the run has already reached a terminal status; the store exists
// so GET /runs/:id and GET /runs/:id/events can be polled afterward.
type runStore struct {
	mu   sync.RWMutex
	runs map[string]*Run
}

func newRunStore() *runStore {
	return &runStore{runs: make(map[string]*Run)}
}

func (s *runStore) new(agent string, args []string) *Run {
	run := &Run{
		ID:     uuid.New().String(),
		Agent:  agent,
		Args:   args,
		Status: RunQueued,
	}
	s.mu.Lock()
	s.runs[run.ID] = run
	s.mu.Unlock()
	return run
}

func (s *runStore) get(id string) (*Run, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[id]
	return run, ok
}

func (s *runStore) recordEvent(run *Run, event RunEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	run.Events = append(run.Events, event)
}
