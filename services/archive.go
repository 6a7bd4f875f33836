package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"carscout/models"
	"carscout/storage"
)

// ArchiveService persists search results into the long-lived listing archive.
// It runs after a search completes and must never feed back into it; archive
// failures are logged and the search result stands.
type ArchiveService struct {
	store *storage.PostgresStore
}

func NewArchiveService(store *storage.PostgresStore) *ArchiveService {
	return &ArchiveService{store: store}
}

// ArchiveStats tracks aggregate outcomes for one batch.
type ArchiveStats struct {
	Processed    int
	New          int
	PriceChanges int
	Errors       int
}

// ArchiveListings upserts each listing by canonical id and records a price
// event when the observed price moved. Idempotent per listing.
func (s *ArchiveService) ArchiveListings(ctx context.Context, listings []models.NormalizedListing) ArchiveStats {
	var stats ArchiveStats
	for _, l := range listings {
		if err := ctx.Err(); err != nil {
			stats.Errors += len(listings) - stats.Processed
			return stats
		}

		result, err := s.store.UpsertListing(ctx, l)
		if err != nil {
			log.Printf("Warning: archive %s from %s failed: %v", l.CanonicalID, l.Source, err)
			stats.Errors++
			continue
		}
		stats.Processed++

		if result.IsNew {
			stats.New++
			continue
		}
		if result.PriceChanged {
			stats.PriceChanges++
			if err := s.store.RecordPriceEvent(ctx, l.CanonicalID, result.PreviousPrice, int64(l.Price), l.Source); err != nil {
				log.Printf("Warning: price event for %s failed: %v", l.CanonicalID, err)
			}
		}
	}
	return stats
}

// MarkDelisted flags an archived listing as no longer available.
func (s *ArchiveService) MarkDelisted(ctx context.Context, canonicalID string) error {
	if err := s.store.MarkDelisted(ctx, canonicalID); err != nil {
		return fmt.Errorf("mark delisted %s: %w", canonicalID, err)
	}
	return nil
}

// ListStale returns archived listings not confirmed live within maxAge,
// oldest first, for the healthcheck worker to re-probe.
func (s *ArchiveService) ListStale(ctx context.Context, maxAge time.Duration, limit int) ([]storage.StaleListing, error) {
	return s.store.ListStale(ctx, maxAge, limit)
}

// TouchListing refreshes a listing's last-seen timestamp after a probe
// confirmed it is still up.
func (s *ArchiveService) TouchListing(ctx context.Context, canonicalID string) error {
	return s.store.TouchListing(ctx, canonicalID)
}
