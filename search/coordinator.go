package search

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"carscout/config"
	"carscout/models"
	"carscout/normalize"
	"carscout/sources"
)

// ErrNotOwner is returned when a cancel request names a job the caller does
// not own.
var ErrNotOwner = errors.New("job belongs to another owner")

// ErrUnknownJob is returned for job ids the registry has never seen.
var ErrUnknownJob = errors.New("unknown job")

// Update is pushed to the result stream as each source finishes, so callers
// can render partial progress.
type Update struct {
	Run   models.SiteRun
	Items []models.NormalizedListing
}

type Stats struct {
	TotalItems   int   `json:"totalItems"`
	SitesScraped int   `json:"sitesScraped"`
	TotalMs      int64 `json:"totalMs"`
}

// Response is the final aggregated result: listings deduplicated across
// sources by canonical id, plus per-source diagnostics.
type Response struct {
	Criteria    models.SearchCriteria      `json:"criteria"`
	Items       []models.NormalizedListing `json:"items"`
	SiteResults []models.SiteRun           `json:"siteResults"`
	Stats       Stats                      `json:"stats"`
}

// Progress is the poll-friendly view of a job in flight.
type Progress struct {
	SiteRuns      []models.SiteRun `json:"siteRuns"`
	TotalListings int              `json:"totalListings"`
	SitesDone     int              `json:"sitesCompleted"`
	SitesTotal    int              `json:"sitesTotal"`
}

// Recorder persists jobs and site runs for diagnostics. Optional: the
// engine runs fully without one.
type Recorder interface {
	RecordJob(job models.Job)
	RecordSiteRun(jobID uuid.UUID, run models.SiteRun)
	RecordJobDone(job models.Job, stats Stats)
}

type jobState struct {
	mu       sync.Mutex
	runs     []models.SiteRun
	items    []models.NormalizedListing
	total    int
	done     chan struct{}
	response *Response
}

// Coordinator is the engine's entry point: it fans site runners out across
// the source registry under a bounded concurrency limit, aggregates their
// results and enforces the job-level time budget. Whole-source retries are
// the runner's business; the coordinator only ever cancels.
type Coordinator struct {
	registry    *JobRegistry
	sources     *sources.Registry
	runner      *Runner
	recorder    Recorder
	concurrency int
	budget      time.Duration

	mu     sync.RWMutex
	states map[uuid.UUID]*jobState
}

func NewCoordinator(cfg *config.Config, registry *JobRegistry, srcs *sources.Registry, runner *Runner) *Coordinator {
	concurrency := cfg.Search.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	return &Coordinator{
		registry:    registry,
		sources:     srcs,
		runner:      runner,
		concurrency: concurrency,
		budget:      cfg.Search.Budget,
		states:      make(map[uuid.UUID]*jobState),
	}
}

func (c *Coordinator) SetRecorder(r Recorder) {
	c.recorder = r
}

// Search validates the criteria, registers a job and starts the fan-out.
// The returned channel receives one Update per source and is closed once
// the job reaches a terminal state. No network call happens before
// validation passes.
func (c *Coordinator) Search(ctx context.Context, criteria models.SearchCriteria, owner string) (*models.Job, <-chan Update, error) {
	if err := criteria.Validate(); err != nil {
		return nil, nil, err
	}

	job := c.registry.Register(criteria, owner)
	if c.recorder != nil {
		c.recorder.RecordJob(*job)
	}

	all := c.sources.All()
	state := &jobState{done: make(chan struct{})}
	c.mu.Lock()
	c.states[job.ID] = state
	c.mu.Unlock()

	updates := make(chan Update, len(all))
	go c.run(ctx, job, state, updates)

	return job, updates, nil
}

// SearchAndCollect runs a search to completion and returns the aggregated
// response, draining the stream internally.
func (c *Coordinator) SearchAndCollect(ctx context.Context, criteria models.SearchCriteria, owner string) (*Response, error) {
	job, updates, err := c.Search(ctx, criteria, owner)
	if err != nil {
		return nil, err
	}
	for range updates {
	}
	// The stream closes only after the response is assembled.
	return c.Wait(context.Background(), job.ID)
}

func (c *Coordinator) run(ctx context.Context, job *models.Job, state *jobState, updates chan<- Update) {
	started := time.Now()
	ctx, cancel := context.WithTimeout(ctx, c.budget)
	defer cancel()

	sem := make(chan struct{}, c.concurrency)
	var wg sync.WaitGroup

	for _, src := range c.sources.All() {
		// Disabled or request-excluded sources are recorded as skipped and
		// never occupy a concurrency slot.
		if !src.Enabled || job.Criteria.Excludes(src.ID) {
			run, _ := c.runner.Run(ctx, job, src)
			c.publish(job, state, updates, Update{Run: *run})
			continue
		}

		wg.Add(1)
		go func(src *sources.Source) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				// Budget spent before this source got a slot.
				c.publish(job, state, updates, Update{Run: models.SiteRun{
					Source: src.ID,
					State:  models.SiteStateCancelled,
				}})
				return
			}

			run, items := c.runner.Run(ctx, job, src)
			c.publish(job, state, updates, Update{Run: *run, Items: items})
		}(src)
	}

	wg.Wait()
	c.finish(job, state, started)
	close(updates)
}

func (c *Coordinator) publish(job *models.Job, state *jobState, updates chan<- Update, u Update) {
	state.mu.Lock()
	state.runs = append(state.runs, u.Run)
	state.items = append(state.items, u.Items...)
	state.total += len(u.Items)
	state.mu.Unlock()

	if c.recorder != nil {
		c.recorder.RecordSiteRun(job.ID, u.Run)
	}

	// The stream is buffered for every source; a slow consumer never
	// blocks aggregation.
	select {
	case updates <- u:
	default:
		log.Printf("search: job %s: dropping update for %s, stream full", job.ID, u.Run.Source)
	}
}

func (c *Coordinator) finish(job *models.Job, state *jobState, started time.Time) {
	state.mu.Lock()
	defer state.mu.Unlock()

	deduped := normalize.Dedupe(state.items, c.sources.PriorityOf)

	scraped := 0
	for _, run := range state.runs {
		if run.State == models.SiteStateOK || run.State == models.SiteStateError {
			scraped++
		}
	}

	stats := Stats{
		TotalItems:   len(deduped),
		SitesScraped: scraped,
		TotalMs:      time.Since(started).Milliseconds(),
	}
	state.response = &Response{
		Criteria:    job.Criteria,
		Items:       deduped,
		SiteResults: state.runs,
		Stats:       stats,
	}

	// A budget expiry still counts as done: partial results are valid.
	// An explicit cancel is terminal already and SetStatus stays a no-op.
	c.registry.SetStatus(job.ID, models.JobStatusDone)

	if c.recorder != nil {
		if final, ok := c.registry.Get(job.ID); ok {
			c.recorder.RecordJobDone(final, stats)
		}
	}

	close(state.done)
	log.Printf("search: job %s done: %d items from %d sources in %dms",
		job.ID, stats.TotalItems, stats.SitesScraped, stats.TotalMs)

	// The recorder keeps the durable history; in-memory state only has to
	// outlive late pollers.
	time.AfterFunc(jobRetention, func() { c.evict(job.ID) })
}

// jobRetention is how long a terminal job stays queryable in memory.
const jobRetention = 15 * time.Minute

func (c *Coordinator) evict(jobID uuid.UUID) {
	c.mu.Lock()
	delete(c.states, jobID)
	c.mu.Unlock()
	c.registry.Evict(jobID)
}

// Wait blocks until the job completes and returns the aggregated response.
func (c *Coordinator) Wait(ctx context.Context, jobID uuid.UUID) (*Response, error) {
	c.mu.RLock()
	state, ok := c.states[jobID]
	c.mu.RUnlock()
	if !ok {
		return nil, ErrUnknownJob
	}

	select {
	case <-state.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	state.mu.Lock()
	defer state.mu.Unlock()
	return state.response, nil
}

// Progress reports a job's in-flight view for polling callers. Sources
// still running appear with their live state (connecting, fetching,
// parsing) alongside the finished runs.
func (c *Coordinator) Progress(jobID uuid.UUID) (Progress, bool) {
	c.mu.RLock()
	state, ok := c.states[jobID]
	c.mu.RUnlock()
	if !ok {
		return Progress{}, false
	}

	inflight := c.registry.SiteStates(jobID)

	state.mu.Lock()
	defer state.mu.Unlock()

	done := 0
	runs := make([]models.SiteRun, len(state.runs))
	copy(runs, state.runs)
	for _, run := range runs {
		if run.State.Terminal() {
			done++
		}
		delete(inflight, run.Source)
	}
	for source, siteState := range inflight {
		runs = append(runs, models.SiteRun{Source: source, State: siteState})
	}
	return Progress{
		SiteRuns:      runs,
		TotalListings: state.total,
		SitesDone:     done,
		SitesTotal:    len(c.sources.All()),
	}, true
}

// Cancel requests cancellation on behalf of owner. Returns true when the
// job moved to cancelled, false when it was already terminal; the returned
// status is the job's status after the call either way.
func (c *Coordinator) Cancel(jobID uuid.UUID, owner string) (bool, models.JobStatus, error) {
	job, ok := c.registry.Get(jobID)
	if !ok {
		return false, "", ErrUnknownJob
	}
	if job.Owner != owner {
		return false, "", fmt.Errorf("%w: job %s", ErrNotOwner, jobID)
	}

	cancelled := c.registry.Cancel(jobID)
	job, _ = c.registry.Get(jobID)
	return cancelled, job.Status, nil
}
