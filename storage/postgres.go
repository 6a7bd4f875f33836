package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"carscout/models"
)

// PostgresStore is the long-lived listing archive: every normalized listing
// a search surfaced, keyed by canonical id, with a price-event trail. The
// acquisition engine itself never reads it; the archive service and the
// healthcheck worker do.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	store := &PostgresStore{pool: pool}
	if err := store.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return store, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS listings (
		id UUID PRIMARY KEY,
		canonical_id TEXT NOT NULL UNIQUE,
		external_id TEXT NOT NULL,
		source TEXT NOT NULL,
		title TEXT,
		brand TEXT NOT NULL,
		model TEXT,
		price BIGINT,
		year INTEGER,
		mileage INTEGER,
		fuel TEXT,
		gearbox TEXT,
		city TEXT,
		url TEXT,
		image_url TEXT,
		is_active BOOLEAN DEFAULT TRUE,
		first_seen_at TIMESTAMPTZ NOT NULL,
		last_seen_at TIMESTAMPTZ NOT NULL,
		times_seen INTEGER DEFAULT 1
	);
	CREATE INDEX IF NOT EXISTS idx_listings_brand_model ON listings(brand, model);
	CREATE INDEX IF NOT EXISTS idx_listings_last_seen ON listings(last_seen_at);

	CREATE TABLE IF NOT EXISTS price_events (
		id BIGSERIAL PRIMARY KEY,
		canonical_id TEXT NOT NULL,
		previous_price BIGINT,
		price BIGINT NOT NULL,
		source TEXT NOT NULL,
		observed_at TIMESTAMPTZ NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_price_events_canonical ON price_events(canonical_id);
	`
	_, err := s.pool.Exec(ctx, schema)
	return err
}

// UpsertResult describes what happened to an archived listing.
type UpsertResult struct {
	IsNew         bool
	PriceChanged  bool
	PreviousPrice int64
}

// UpsertListing inserts a listing or refreshes last_seen on the existing
// canonical record, reporting a price change when the observed price moved.
func (s *PostgresStore) UpsertListing(ctx context.Context, l models.NormalizedListing) (UpsertResult, error) {
	var result UpsertResult
	now := time.Now()

	var prevPrice *int64
	err := s.pool.QueryRow(ctx,
		`SELECT price FROM listings WHERE canonical_id = $1`, l.CanonicalID,
	).Scan(&prevPrice)

	switch {
	case err == pgx.ErrNoRows:
		_, err = s.pool.Exec(ctx,
			`INSERT INTO listings
			 (id, canonical_id, external_id, source, title, brand, model, price, year, mileage,
			  fuel, gearbox, city, url, image_url, first_seen_at, last_seen_at)
			 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$16)
			 ON CONFLICT (canonical_id) DO NOTHING`,
			l.ID, l.CanonicalID, l.ExternalID, l.Source, l.Title, l.Brand, l.Model,
			int64(l.Price), l.Year, l.Mileage, l.Fuel, l.Gearbox, l.City, l.URL, l.ImageURL, now,
		)
		if err != nil {
			return result, fmt.Errorf("insert listing: %w", err)
		}
		result.IsNew = true
		return result, nil
	case err != nil:
		return result, fmt.Errorf("lookup listing: %w", err)
	}

	_, err = s.pool.Exec(ctx,
		`UPDATE listings SET price = $2, last_seen_at = $3, is_active = TRUE,
		        times_seen = times_seen + 1
		 WHERE canonical_id = $1`,
		l.CanonicalID, int64(l.Price), now,
	)
	if err != nil {
		return result, fmt.Errorf("refresh listing: %w", err)
	}

	if prevPrice != nil && *prevPrice != int64(l.Price) {
		result.PriceChanged = true
		result.PreviousPrice = *prevPrice
	}
	return result, nil
}

func (s *PostgresStore) RecordPriceEvent(ctx context.Context, canonicalID string, previous, current int64, source string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO price_events (canonical_id, previous_price, price, source, observed_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		canonicalID, previous, current, source, time.Now(),
	)
	return err
}

// StaleListing is a candidate for the healthcheck worker's recheck.
type StaleListing struct {
	CanonicalID string
	URL         string
	LastSeenAt  time.Time
}

// ListStale returns active listings not seen for at least maxAge, oldest
// first.
func (s *PostgresStore) ListStale(ctx context.Context, maxAge time.Duration, limit int) ([]StaleListing, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT canonical_id, url, last_seen_at FROM listings
		 WHERE is_active = TRUE AND url <> '' AND last_seen_at < $1
		 ORDER BY last_seen_at ASC LIMIT $2`,
		time.Now().Add(-maxAge), limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stale []StaleListing
	for rows.Next() {
		var sl StaleListing
		if err := rows.Scan(&sl.CanonicalID, &sl.URL, &sl.LastSeenAt); err != nil {
			return nil, err
		}
		stale = append(stale, sl)
	}
	return stale, rows.Err()
}

func (s *PostgresStore) MarkDelisted(ctx context.Context, canonicalID string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE listings SET is_active = FALSE WHERE canonical_id = $1`, canonicalID,
	)
	return err
}

func (s *PostgresStore) TouchListing(ctx context.Context, canonicalID string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE listings SET last_seen_at = $2 WHERE canonical_id = $1`, canonicalID, time.Now(),
	)
	return err
}
