package search

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"carscout/models"
)

// JobRegistry tracks every search job's lifecycle and exposes the
// cancellation flag observed by in-flight site runners. Status transitions
// are monotonic: running moves to exactly one of cancelled, done or failed,
// and terminal states never change again.
type JobRegistry struct {
	mu   sync.RWMutex
	jobs map[uuid.UUID]*models.Job

	// siteStates tracks sources still in flight (connecting, fetching,
	// parsing) per job; finished runs are reported through the
	// coordinator's aggregation instead.
	siteStates map[uuid.UUID]map[string]models.SiteState
}

func NewJobRegistry() *JobRegistry {
	return &JobRegistry{
		jobs:       make(map[uuid.UUID]*models.Job),
		siteStates: make(map[uuid.UUID]map[string]models.SiteState),
	}
}

func (r *JobRegistry) Register(criteria models.SearchCriteria, owner string) *models.Job {
	job := &models.Job{
		ID:        uuid.New(),
		Owner:     owner,
		Status:    models.JobStatusRunning,
		Criteria:  criteria,
		CreatedAt: time.Now(),
	}

	r.mu.Lock()
	r.jobs[job.ID] = job
	r.mu.Unlock()

	snapshot := *job
	return &snapshot
}

// Cancel moves a running job to cancelled. Returns false when the job is
// unknown or already terminal, so callers can tell "cancelled it" apart
// from "it had already finished".
func (r *JobRegistry) Cancel(id uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[id]
	if !ok || job.Status.Terminal() {
		return false
	}
	job.Status = models.JobStatusCancelled
	now := time.Now()
	job.FinishedAt = &now
	return true
}

func (r *JobRegistry) IsCancelled(id uuid.UUID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	job, ok := r.jobs[id]
	return ok && job.Status == models.JobStatusCancelled
}

// SetStatus applies a terminal status. A no-op when the job is unknown or
// already terminal.
func (r *JobRegistry) SetStatus(id uuid.UUID, status models.JobStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[id]
	if !ok || job.Status.Terminal() {
		return
	}
	job.Status = status
	if status.Terminal() {
		now := time.Now()
		job.FinishedAt = &now
	}
}

// SetSiteState records a source's in-flight progress within a job.
func (r *JobRegistry) SetSiteState(id uuid.UUID, source string, state models.SiteState) {
	r.mu.Lock()
	defer r.mu.Unlock()

	states, ok := r.siteStates[id]
	if !ok {
		states = make(map[string]models.SiteState)
		r.siteStates[id] = states
	}
	states[source] = state
}

// ClearSiteState drops a source's in-flight entry once its run is terminal.
func (r *JobRegistry) ClearSiteState(id uuid.UUID, source string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if states, ok := r.siteStates[id]; ok {
		delete(states, source)
		if len(states) == 0 {
			delete(r.siteStates, id)
		}
	}
}

// SiteStates returns a copy of a job's in-flight source states.
func (r *JobRegistry) SiteStates(id uuid.UUID) map[string]models.SiteState {
	r.mu.RLock()
	defer r.mu.RUnlock()

	states, ok := r.siteStates[id]
	if !ok {
		return nil
	}
	out := make(map[string]models.SiteState, len(states))
	for source, state := range states {
		out[source] = state
	}
	return out
}

// Evict removes a terminal job and its in-flight state. A no-op on running
// or unknown jobs so a retention sweep can never drop live work.
func (r *JobRegistry) Evict(id uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[id]
	if !ok || !job.Status.Terminal() {
		return false
	}
	delete(r.jobs, id)
	delete(r.siteStates, id)
	return true
}

// Get returns a copy of the job; mutations go through Cancel/SetStatus only.
func (r *JobRegistry) Get(id uuid.UUID) (models.Job, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	job, ok := r.jobs[id]
	if !ok {
		return models.Job{}, false
	}
	return *job, true
}
