package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"carscout/config"
	"carscout/fetch"
	"carscout/models"
	"carscout/search"
	"carscout/services"
	"carscout/storage"
)

// Triggerable allows workers to be triggered manually.
type Triggerable interface {
	Trigger()
}

// Rotator swaps the engine's egress route, typically a VPN endpoint
// change, when every marketplace is refusing service.
type Rotator interface {
	Rotate() error
}

// Scheduler re-runs saved searches on a cron or interval schedule and polls
// the command table for one-shot instructions.
type Scheduler struct {
	cfg         *config.Config
	coordinator *search.Coordinator
	store       *storage.SQLiteStore
	archive     *services.ArchiveService
	rotator     Rotator
	cron        *cron.Cron
	ticker      *time.Ticker
	stopCh      chan struct{}
	paused      atomic.Bool

	healthcheckWorker Triggerable
}

func New(cfg *config.Config, coordinator *search.Coordinator, store *storage.SQLiteStore) *Scheduler {
	return &Scheduler{
		cfg:         cfg,
		coordinator: coordinator,
		store:       store,
		cron:        cron.New(),
		stopCh:      make(chan struct{}),
	}
}

// SetArchive wires the listing archive. Optional; without it scheduled
// searches still run, results are just not persisted.
func (s *Scheduler) SetArchive(archive *services.ArchiveService) {
	s.archive = archive
}

// SetRotator wires an egress rotator. When a scheduled run comes back
// with every source blocked the scheduler asks for a fresh endpoint
// before the next round.
func (s *Scheduler) SetRotator(rotator Rotator) {
	s.rotator = rotator
}

// SetWorkers registers background workers for manual triggering.
func (s *Scheduler) SetWorkers(healthcheck Triggerable) {
	s.healthcheckWorker = healthcheck
}

func (s *Scheduler) Start(ctx context.Context) error {
	go s.pollCommands(ctx)

	if s.cfg.Scheduler.Cron != "" {
		log.Printf("Starting scheduler with cron: %s", s.cfg.Scheduler.Cron)
		_, err := s.cron.AddFunc(s.cfg.Scheduler.Cron, func() {
			s.runSavedSearches(ctx)
		})
		if err != nil {
			return fmt.Errorf("invalid cron expression: %w", err)
		}
		s.cron.Start()
	} else if s.cfg.Scheduler.Interval > 0 {
		log.Printf("Starting scheduler with interval: %s", s.cfg.Scheduler.Interval)
		s.ticker = time.NewTicker(s.cfg.Scheduler.Interval)
		go func() {
			for {
				select {
				case <-s.ticker.C:
					s.runSavedSearches(ctx)
				case <-s.stopCh:
					return
				case <-ctx.Done():
					return
				}
			}
		}()
	} else {
		log.Println("No schedule configured, daemon will only respond to commands")
	}

	return nil
}

func (s *Scheduler) Stop() {
	if s.cron != nil {
		s.cron.Stop()
	}
	if s.ticker != nil {
		s.ticker.Stop()
	}
	close(s.stopCh)
}

func (s *Scheduler) runSavedSearches(ctx context.Context) {
	if s.paused.Load() {
		log.Println("Scheduler paused, skipping saved searches")
		return
	}

	saved, err := s.store.ListActiveSavedSearches()
	if err != nil {
		log.Printf("Error listing saved searches: %v", err)
		return
	}

	for _, ss := range saved {
		if ctx.Err() != nil {
			return
		}
		s.runSaved(ctx, ss)
	}
}

func (s *Scheduler) runSaved(ctx context.Context, ss models.SavedSearch) {
	log.Printf("Running saved search %d (%s)", ss.ID, ss.Name)

	resp, err := s.coordinator.SearchAndCollect(ctx, ss.Criteria, ss.Owner)
	if err != nil {
		log.Printf("Saved search %d failed: %v", ss.ID, err)
		return
	}

	if err := s.store.TouchSavedSearch(ss.ID); err != nil {
		log.Printf("Error touching saved search %d: %v", ss.ID, err)
	}

	log.Printf("Saved search %d: %d listings from %d sources in %dms",
		ss.ID, resp.Stats.TotalItems, resp.Stats.SitesScraped, resp.Stats.TotalMs)

	if s.archive != nil && len(resp.Items) > 0 {
		stats := s.archive.ArchiveListings(ctx, resp.Items)
		log.Printf("Saved search %d archived: %d processed, %d new, %d price changes, %d errors",
			ss.ID, stats.Processed, stats.New, stats.PriceChanges, stats.Errors)
	}

	if s.rotator != nil && allSourcesBlocked(resp.SiteResults) {
		log.Printf("Saved search %d: every source blocked, rotating egress", ss.ID)
		if err := s.rotator.Rotate(); err != nil {
			log.Printf("Egress rotation failed: %v", err)
		}
	}
}

// allSourcesBlocked reports whether every source that actually ran was
// turned away by the marketplace. Skipped sources carry no signal; a
// single success or a non-blocked failure means the route still works.
func allSourcesBlocked(runs []models.SiteRun) bool {
	blocked := 0
	for _, run := range runs {
		if run.State == models.SiteStateSkipped {
			continue
		}
		if run.State != models.SiteStateError || run.ErrorClass != string(fetch.ClassBlocked) {
			return false
		}
		blocked++
	}
	return blocked > 0
}

func (s *Scheduler) pollCommands(ctx context.Context) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			cmds, err := s.store.GetPendingCommands()
			if err != nil {
				log.Printf("Error getting commands: %v", err)
				continue
			}

			for _, cmd := range cmds {
				log.Printf("Processing command: %s", cmd.Command)
				if err := s.handleCommand(ctx, &cmd); err != nil {
					log.Printf("Command error: %v", err)
				}
				if err := s.store.MarkCommandProcessed(cmd.ID); err != nil {
					log.Printf("Error marking command processed: %v", err)
				}
			}
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (s *Scheduler) handleCommand(ctx context.Context, cmd *models.Command) error {
	switch cmd.Command {
	case models.CmdSearchNow:
		s.runSavedSearches(ctx)
		return nil
	case models.CmdRunSaved:
		params, err := s.store.ParseCommandParams(cmd)
		if err != nil {
			return fmt.Errorf("parse params: %w", err)
		}
		if params == nil || params.SavedSearchID == 0 {
			return fmt.Errorf("run_saved requires saved_search_id")
		}
		ss, err := s.store.GetSavedSearch(params.SavedSearchID)
		if err != nil {
			return err
		}
		if ss == nil {
			return fmt.Errorf("saved search %d not found", params.SavedSearchID)
		}
		s.runSaved(ctx, *ss)
		return nil
	case models.CmdPause:
		s.paused.Store(true)
		log.Println("Scheduler paused via command")
		return nil
	case models.CmdResume:
		s.paused.Store(false)
		log.Println("Scheduler resumed via command")
		return nil
	default:
		return fmt.Errorf("unknown command: %s", cmd.Command)
	}
}
