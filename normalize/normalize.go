package normalize

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"carscout/models"
)

// Bucket sizes for canonical identity. Two observations of the same vehicle
// on different sites rarely agree to the kilometre or the euro; bucketing
// absorbs that drift while keeping distinct cars apart.
const (
	mileageBucket = 5000 // km
	priceBucket   = 500  // euros
)

var fuelMap = map[string]string{
	"benzine":    "petrol",
	"petrol":     "petrol",
	"diesel":     "diesel",
	"elektrisch": "electric",
	"electric":   "electric",
	"hybride":    "hybrid",
	"hybrid":     "hybrid",
	"lpg":        "lpg",
	"g3":         "lpg",
	"cng":        "cng",
}

var gearboxMap = map[string]string{
	"handgeschakeld": "manual",
	"manual":         "manual",
	"automaat":       "automatic",
	"automatic":      "automatic",
	"semi-automaat":  "automatic",
}

// Normalize maps one source's raw record onto the canonical schema: price in
// euro cents, mileage in km, year as a 4-digit integer, fuel and gearbox in
// canonical English terms. Brand and model come from the search context;
// sources echo them back in free-form titles that are not worth re-parsing.
func Normalize(raw models.RawListing, source string, criteria models.SearchCriteria) models.NormalizedListing {
	brand := strings.ToLower(strings.TrimSpace(criteria.Brand))
	model := strings.ToLower(strings.TrimSpace(criteria.Model))

	n := models.NormalizedListing{
		ID:         uuid.NewString(),
		ExternalID: raw.ExternalID,
		Title:      raw.Title,
		Brand:      brand,
		Model:      model,
		Price:      raw.Price * 100,
		Year:       raw.Year,
		Mileage:    raw.Mileage,
		Fuel:       canonicalTerm(fuelMap, raw.Fuel),
		Gearbox:    canonicalTerm(gearboxMap, raw.Gearbox),
		City:       strings.TrimSpace(raw.City),
		URL:        raw.URL,
		ImageURL:   raw.ImageURL,
		Source:     source,
	}
	n.CanonicalID = CanonicalID(brand, model, raw.Year, raw.Mileage, raw.Price)
	return n
}

// CanonicalID is a deterministic fingerprint of (brand, model, year,
// mileage bucket, price bucket) used to recognize the same vehicle across
// sources.
func CanonicalID(brand, model string, year, mileage *int, priceEuros int) string {
	y, m := 0, 0
	if year != nil {
		y = *year
	}
	if mileage != nil {
		m = *mileage / mileageBucket
	}
	input := fmt.Sprintf("%s|%s|%d|%d|%d",
		strings.ToLower(strings.TrimSpace(brand)),
		strings.ToLower(strings.TrimSpace(model)),
		y, m, priceEuros/priceBucket,
	)
	hash := sha256.Sum256([]byte(input))
	return hex.EncodeToString(hash[:16])
}

func canonicalTerm(table map[string]string, raw string) string {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw == "" {
		return ""
	}
	for key, canonical := range table {
		if strings.Contains(raw, key) {
			return canonical
		}
	}
	return raw
}
