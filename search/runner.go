package search

import (
	"context"
	"fmt"
	"log"
	"time"

	"carscout/cache"
	"carscout/config"
	"carscout/fetch"
	"carscout/models"
	"carscout/normalize"
	"carscout/sources"
)

// driftThresholdBytes: markup at least this large that still parses to zero
// items suggests the source's page structure changed, not that no cars
// matched. Surfaced as a diagnostic note, never an error.
const driftThresholdBytes = 2048

// Fetcher is the strategy provider surface the runner depends on.
type Fetcher interface {
	Fetch(ctx context.Context, url string, src *config.SourceConfig) (*fetch.Result, error)
}

// Snapshotter archives markup that triggered a parser-drift note.
// Implementations must tolerate being handed large bodies.
type Snapshotter interface {
	Upload(ctx context.Context, source string, markup []byte)
}

// Runner drives one source through its relaxation passes: cache lookup,
// fetch with retry/fallback, parse, drift detection, within-source dedup.
// One Runner instance serves all sources; per-run state lives on the stack.
type Runner struct {
	fetcher   Fetcher
	cache     cache.Cache
	registry  *JobRegistry
	planner   *Planner
	snapshots Snapshotter // optional
}

func NewRunner(fetcher Fetcher, c cache.Cache, registry *JobRegistry, planner *Planner) *Runner {
	return &Runner{
		fetcher:  fetcher,
		cache:    c,
		registry: registry,
		planner:  planner,
	}
}

func (r *Runner) SetSnapshotter(s Snapshotter) {
	r.snapshots = s
}

// Run executes every planned pass for one source and returns the terminal
// SiteRun plus the source's normalized, within-source-deduped items.
// Cancelled runs return no items: their results are discarded by contract.
func (r *Runner) Run(ctx context.Context, job *models.Job, src *sources.Source) (*models.SiteRun, []models.NormalizedListing) {
	run := &models.SiteRun{Source: src.ID, State: models.SiteStatePending}

	if !src.Enabled {
		run.State = models.SiteStateSkipped
		run.Note = src.DisabledReason
		return run, nil
	}
	if job.Criteria.Excludes(src.ID) {
		run.State = models.SiteStateSkipped
		run.Note = "excluded by request"
		return run, nil
	}

	started := time.Now()
	defer func() { run.Duration = time.Since(started) }()

	// Progress pollers see the in-flight state until the run is terminal.
	r.registry.SetSiteState(job.ID, src.ID, models.SiteStateConnecting)
	defer r.registry.ClearSiteState(job.ID, src.ID)

	seen := make(map[string]bool)
	var collected []models.NormalizedListing

	for _, pass := range r.planner.Passes(job.Criteria) {
		if r.cancelled(ctx, job) {
			run.State = models.SiteStateCancelled
			return run, nil
		}

		attempt, raw := r.runPass(ctx, job, src, pass)
		run.Passes = append(run.Passes, attempt)

		if attempt.Outcome == models.PassOutcomeError {
			// An in-flight fetch runs to its own timeout even when the job
			// was cancelled mid-fetch; the result is discarded here.
			if r.cancelled(ctx, job) {
				run.State = models.SiteStateCancelled
				return run, nil
			}
			run.State = models.SiteStateError
			run.Error = attempt.Note
			run.ErrorClass = attempt.ErrorClass
			run.ItemCount = len(collected)
			return run, collected
		}

		added := 0
		for _, item := range raw {
			if item.ExternalID == "" || seen[item.ExternalID] {
				continue
			}
			seen[item.ExternalID] = true
			collected = append(collected, normalize.Normalize(item, src.ID, job.Criteria))
			added++
		}
		log.Printf("search: %s %s pass: %d items (%d new, total %d)",
			src.ID, pass.Level, len(raw), added, len(collected))

		if !r.planner.Continue(len(collected), len(raw), src.SkipIfNoResults) {
			break
		}
	}

	if r.cancelled(ctx, job) {
		run.State = models.SiteStateCancelled
		return run, nil
	}

	run.State = models.SiteStateOK
	run.ItemCount = len(collected)
	run.Note = driftNote(run.Passes)
	return run, collected
}

func (r *Runner) runPass(ctx context.Context, job *models.Job, src *sources.Source, pass PassSpec) (models.PassAttempt, []models.RawListing) {
	attempt := models.PassAttempt{Pass: pass.Level}
	started := time.Now()
	defer func() { attempt.Duration = time.Since(started) }()

	key := cache.Key(src.ID, pass.Level, pass.Criteria)
	if items, ok := r.cache.Get(ctx, key); ok {
		attempt.Outcome = models.PassOutcomeCached
		attempt.ItemCount = len(items)
		return attempt, items
	}

	url := sources.BuildSearchURL(src.SourceConfig, pass.Criteria)
	r.registry.SetSiteState(job.ID, src.ID, models.SiteStateFetching)
	result, err := r.fetcher.Fetch(ctx, url, src.SourceConfig)
	if err != nil {
		attempt.Outcome = models.PassOutcomeError
		attempt.ErrorClass = string(fetch.ClassOf(err))
		attempt.Note = fmt.Sprintf("fetch failed (%s): %v", attempt.ErrorClass, err)
		return attempt, nil
	}
	attempt.Strategy = result.Strategy

	r.registry.SetSiteState(job.ID, src.ID, models.SiteStateParsing)
	items, err := src.Parser.Parse(result.Markup, pass.Criteria)
	if err != nil {
		// Unparseable markup is a source problem, not a zero-result page.
		attempt.Outcome = models.PassOutcomeError
		attempt.Note = fmt.Sprintf("parse failed: %v", err)
		return attempt, nil
	}

	if len(items) == 0 && len(result.Markup) >= driftThresholdBytes {
		attempt.Note = "parser returned 0 items on large markup, possible parser drift"
		if r.snapshots != nil {
			r.snapshots.Upload(ctx, src.ID, result.Markup)
		}
	}

	if len(items) > pass.MaxItems {
		items = items[:pass.MaxItems]
	}

	r.cache.Put(ctx, key, items)

	attempt.ItemCount = len(items)
	if len(items) == 0 {
		attempt.Outcome = models.PassOutcomeEmpty
	} else {
		attempt.Outcome = models.PassOutcomeOK
	}
	return attempt, items
}

// cancelled treats both an explicit user cancel and the coordinator's
// budget expiry as the same cooperative checkpoint.
func (r *Runner) cancelled(ctx context.Context, job *models.Job) bool {
	return ctx.Err() != nil || r.registry.IsCancelled(job.ID)
}

func driftNote(passes []models.PassAttempt) string {
	for _, p := range passes {
		if p.Note != "" && p.Outcome != models.PassOutcomeError {
			return p.Note
		}
	}
	return ""
}
