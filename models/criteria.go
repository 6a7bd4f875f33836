package models

import (
	"fmt"
	"strings"
)

// ValidationError is returned for criteria that can never produce a valid
// search (missing brand, inverted bounds). It is the only error surfaced to
// callers before any source is contacted.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid criteria: %s %s", e.Field, e.Reason)
}

// SearchCriteria describes one search request. Immutable once a job starts.
type SearchCriteria struct {
	Brand      string `json:"brand"`
	Model      string `json:"model,omitempty"`
	PriceMin   int    `json:"priceMin,omitempty"` // euros
	PriceMax   int    `json:"priceMax,omitempty"`
	YearMin    int    `json:"yearMin,omitempty"`
	YearMax    int    `json:"yearMax,omitempty"`
	MileageMin int    `json:"mileageMin,omitempty"` // km
	MileageMax int    `json:"mileageMax,omitempty"`
	Fuel       string `json:"fuel,omitempty"`    // petrol, diesel, electric, hybrid, lpg
	Gearbox    string `json:"gearbox,omitempty"` // manual, automatic
	Body       string `json:"body,omitempty"`    // hatchback, sedan, suv, wagon, cabrio, van
	City       string `json:"city,omitempty"`
	RadiusKM   int    `json:"radiusKm,omitempty"`

	// ExcludedSites removes sources by id for this request only.
	ExcludedSites []string `json:"excludedSites,omitempty"`
}

func (c *SearchCriteria) Validate() error {
	if strings.TrimSpace(c.Brand) == "" {
		return &ValidationError{Field: "brand", Reason: "is required"}
	}
	for _, b := range []struct {
		name     string
		min, max int
	}{
		{"price", c.PriceMin, c.PriceMax},
		{"year", c.YearMin, c.YearMax},
		{"mileage", c.MileageMin, c.MileageMax},
	} {
		if b.min < 0 || b.max < 0 {
			return &ValidationError{Field: b.name, Reason: "must be non-negative"}
		}
		if b.min > 0 && b.max > 0 && b.min > b.max {
			return &ValidationError{Field: b.name, Reason: fmt.Sprintf("min %d exceeds max %d", b.min, b.max)}
		}
	}
	if c.RadiusKM < 0 {
		return &ValidationError{Field: "radius", Reason: "must be non-negative"}
	}
	return nil
}

// Excludes reports whether the given source id is excluded for this request.
func (c *SearchCriteria) Excludes(sourceID string) bool {
	for _, s := range c.ExcludedSites {
		if strings.EqualFold(s, sourceID) {
			return true
		}
	}
	return false
}

// NormalizedKey returns a deterministic string form of the filter fields,
// used for cache keying. Excluded sites do not participate: they change which
// sources run, not what a source is asked.
func (c *SearchCriteria) NormalizedKey() string {
	return strings.ToLower(strings.Join([]string{
		strings.TrimSpace(c.Brand),
		strings.TrimSpace(c.Model),
		fmt.Sprintf("p%d-%d", c.PriceMin, c.PriceMax),
		fmt.Sprintf("y%d-%d", c.YearMin, c.YearMax),
		fmt.Sprintf("m%d-%d", c.MileageMin, c.MileageMax),
		c.Fuel, c.Gearbox, c.Body,
		strings.TrimSpace(c.City),
		fmt.Sprintf("r%d", c.RadiusKM),
	}, "|"))
}
