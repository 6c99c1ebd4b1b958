package syncjob

import (
	"context"
	"sync"

	"campussync/internal/model"
)

type statusKey struct {
	userID string
	portal model.Portal
}

// Entry is the last known state of the jobs for a (user, portal) pair.
type Entry struct {
	Job model.SyncJob
	// Error is the error text of the last failed job.
	Error     string
	Cancelled bool
}

type statusEntry struct {
	Entry
	cancel context.CancelFunc
}

// StatusStore tracks running and finished jobs in memory. It is the only
// place that decides whether a job may start, so at most one job runs per
// (user, portal).
type StatusStore struct {
	mutex   sync.Mutex
	entries map[statusKey]*statusEntry
}

func NewStatusStore() *StatusStore {
	return &StatusStore{entries: map[statusKey]*statusEntry{}}
}

// TryStart marks job as running unless another job for the same key
// already is. cancel is called by Cancel while the job runs.
func (s *StatusStore) TryStart(job model.SyncJob, cancel context.CancelFunc) bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	key := statusKey{userID: job.UserID, portal: job.Portal}
	if e, ok := s.entries[key]; ok && e.Job.State == model.JobRunning {
		return false
	}
	job.State = model.JobRunning
	s.entries[key] = &statusEntry{
		Entry:  Entry{Job: job},
		cancel: cancel,
	}
	return true
}

// Finish records the terminal state of the job with the given id. A stale
// id is ignored.
func (s *StatusStore) Finish(userID string, portal model.Portal, jobID string, state model.JobState, err error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	e, ok := s.entries[statusKey{userID: userID, portal: portal}]
	if !ok || e.Job.ID != jobID {
		return
	}
	e.Job.State = state
	e.Error = ""
	if err != nil {
		e.Error = err.Error()
	}
	e.cancel = nil
}

// Get returns a copy of the entry for the key.
func (s *StatusStore) Get(userID string, portal model.Portal) (Entry, bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	e, ok := s.entries[statusKey{userID: userID, portal: portal}]
	if !ok {
		return Entry{}, false
	}
	return e.Entry, true
}

func (s *StatusStore) Running(userID string, portal model.Portal) bool {
	e, ok := s.Get(userID, portal)
	return ok && e.Job.State == model.JobRunning
}

// Cancel flags the running job for the key as cancelled and cancels its
// context. It reports whether there was a running job.
func (s *StatusStore) Cancel(userID string, portal model.Portal) bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	e, ok := s.entries[statusKey{userID: userID, portal: portal}]
	if !ok || e.Job.State != model.JobRunning {
		return false
	}
	e.Cancelled = true
	if e.cancel != nil {
		e.cancel()
	}
	return true
}

// Cancelled reports whether the running job for the key was asked to stop.
func (s *StatusStore) Cancelled(userID string, portal model.Portal) bool {
	e, ok := s.Get(userID, portal)
	return ok && e.Cancelled
}

// CancelAll cancels every running job.
func (s *StatusStore) CancelAll() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	for _, e := range s.entries {
		if e.Job.State != model.JobRunning {
			continue
		}
		e.Cancelled = true
		if e.cancel != nil {
			e.cancel()
		}
	}
}
