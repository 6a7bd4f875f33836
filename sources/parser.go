package sources

import (
	"fmt"

	"carscout/models"
)

// Parser turns one source's search-results markup into raw listings. Pure:
// no I/O, no retries. Implementations must apply the criteria's price
// ceiling as a hard filter (some sources return a superset) and must treat
// absent year/mileage/city as legal nulls rather than parse errors.
type Parser interface {
	Parse(markup []byte, criteria models.SearchCriteria) ([]models.RawListing, error)
}

func parserFor(id string) (Parser, error) {
	switch id {
	case "autoscout":
		return &AutoscoutParser{}, nil
	case "marktplaats":
		return &MarktplaatsParser{}, nil
	case "autotrack":
		return &AutotrackParser{}, nil
	case "gaspedaal":
		return &GaspedaalParser{}, nil
	case "bovag":
		return &BovagParser{}, nil
	case "occasionplein":
		// Parser presumed broken since the 2026-05 redesign; the source
		// stays registered so its skip shows up in diagnostics.
		return &GaspedaalParser{}, nil
	default:
		return nil, fmt.Errorf("no parser for source %q", id)
	}
}

// withinCeiling reports whether a price passes the criteria's hard ceiling.
// Listings with unknown price are kept: the normalizer ranks them lower.
func withinCeiling(price int, criteria models.SearchCriteria) bool {
	if criteria.PriceMax <= 0 || price <= 0 {
		return true
	}
	return price <= criteria.PriceMax
}
