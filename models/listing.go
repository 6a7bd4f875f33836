package models

import "encoding/json"

// RawListing is a listing exactly as one source's parser extracted it.
// Absent year/mileage/city are legal nulls, not parse errors. Ephemeral:
// produced by a parser, consumed immediately by the normalizer.
type RawListing struct {
	ExternalID string          `json:"external_id"`
	Title      string          `json:"title"`
	Price      int             `json:"price"` // euros, 0 = unknown
	Year       *int            `json:"year,omitempty"`
	Mileage    *int            `json:"mileage,omitempty"` // km
	Fuel       string          `json:"fuel,omitempty"`
	Gearbox    string          `json:"gearbox,omitempty"`
	City       string          `json:"city,omitempty"`
	URL        string          `json:"url"`
	ImageURL   string          `json:"image_url,omitempty"`
	Snippet    string          `json:"snippet,omitempty"`
	Data       json.RawMessage `json:"data,omitempty"`
}

// NormalizedListing is the canonical cross-source schema. CanonicalID is a
// deterministic fingerprint of (brand, model, year, mileage bucket, price
// bucket): two listings sharing it are treated as the same vehicle.
type NormalizedListing struct {
	ID          string `json:"id" db:"id"`
	ExternalID  string `json:"external_id" db:"external_id"`
	CanonicalID string `json:"canonical_id" db:"canonical_id"`
	Title       string `json:"title" db:"title"`
	Brand       string `json:"brand" db:"brand"`
	Model       string `json:"model,omitempty" db:"model"`
	Price       int    `json:"price" db:"price"` // euro cents
	Year        *int   `json:"year,omitempty" db:"year"`
	Mileage     *int   `json:"mileage,omitempty" db:"mileage"` // km
	Fuel        string `json:"fuel,omitempty" db:"fuel"`
	Gearbox     string `json:"gearbox,omitempty" db:"gearbox"`
	City        string `json:"city,omitempty" db:"city"`
	URL         string `json:"url" db:"url"`
	ImageURL    string `json:"image_url,omitempty" db:"image_url"`
	Source      string `json:"source" db:"source"`
}

// Completeness counts populated fields. Dedup keeps the most complete record
// within a canonical-id group.
func (l *NormalizedListing) Completeness() int {
	n := 0
	for _, s := range []string{l.Title, l.Model, l.Fuel, l.Gearbox, l.City, l.URL, l.ImageURL} {
		if s != "" {
			n++
		}
	}
	if l.Price > 0 {
		n++
	}
	if l.Year != nil {
		n++
	}
	if l.Mileage != nil {
		n++
	}
	return n
}
