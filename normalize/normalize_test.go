package normalize

import (
	"testing"

	"carscout/models"
)

func intPtr(v int) *int { return &v }

func TestNormalize_Basic(t *testing.T) {
	raw := models.RawListing{
		ExternalID: "m2014567890",
		Title:      "Peugeot 208 1.2 PureTech Blue Lease",
		Price:      9750,
		Year:       intPtr(2018),
		Mileage:    intPtr(62500),
		Fuel:       "Benzine",
		Gearbox:    "Handgeschakeld",
		City:       " Amersfoort ",
		URL:        "https://www.marktplaats.nl/v/auto-s/peugeot/m2014567890",
	}
	criteria := models.SearchCriteria{Brand: "Peugeot", Model: "208"}

	n := Normalize(raw, "marktplaats", criteria)

	if n.ID == "" {
		t.Fatal("expected generated id")
	}
	if n.Brand != "peugeot" || n.Model != "208" {
		t.Fatalf("brand/model not normalized: %s %s", n.Brand, n.Model)
	}
	if n.Price != 975000 {
		t.Fatalf("expected price in cents 975000, got %d", n.Price)
	}
	if n.Fuel != "petrol" {
		t.Fatalf("expected fuel petrol, got %s", n.Fuel)
	}
	if n.Gearbox != "manual" {
		t.Fatalf("expected gearbox manual, got %s", n.Gearbox)
	}
	if n.City != "Amersfoort" {
		t.Fatalf("city not trimmed: %q", n.City)
	}
	if n.Source != "marktplaats" {
		t.Fatalf("unexpected source %s", n.Source)
	}
	if n.CanonicalID == "" || len(n.CanonicalID) != 32 {
		t.Fatalf("unexpected canonical id %q", n.CanonicalID)
	}
}

func TestCanonicalID_BucketsAbsorbDrift(t *testing.T) {
	// Same vehicle observed twice: mileage differs by 800 km, price by 100
	// euros. Both land in the same buckets.
	a := CanonicalID("peugeot", "208", intPtr(2019), intPtr(45000), 11950)
	b := CanonicalID("peugeot", "208", intPtr(2019), intPtr(45800), 11999)
	if a != b {
		t.Fatal("expected drift within buckets to produce the same id")
	}
}

func TestCanonicalID_DistinctVehicles(t *testing.T) {
	base := CanonicalID("peugeot", "208", intPtr(2019), intPtr(45000), 11950)

	if other := CanonicalID("peugeot", "208", intPtr(2020), intPtr(45000), 11950); other == base {
		t.Fatal("different year must give a different id")
	}
	if other := CanonicalID("peugeot", "208", intPtr(2019), intPtr(95000), 11950); other == base {
		t.Fatal("different mileage bucket must give a different id")
	}
	if other := CanonicalID("peugeot", "2008", intPtr(2019), intPtr(45000), 11950); other == base {
		t.Fatal("different model must give a different id")
	}
}

func TestCanonicalID_NilFields(t *testing.T) {
	a := CanonicalID("peugeot", "208", nil, nil, 0)
	b := CanonicalID("peugeot", "208", nil, nil, 0)
	if a != b {
		t.Fatal("expected deterministic id for nil fields")
	}
	if a == CanonicalID("peugeot", "208", intPtr(2019), nil, 0) {
		t.Fatal("nil year and 2019 must differ")
	}
}

func TestCanonicalTerm_PassthroughUnknown(t *testing.T) {
	if got := canonicalTerm(fuelMap, "Waterstof"); got != "waterstof" {
		t.Fatalf("unknown term should pass through lowered, got %q", got)
	}
	if got := canonicalTerm(fuelMap, ""); got != "" {
		t.Fatalf("empty term should stay empty, got %q", got)
	}
	if got := canonicalTerm(gearboxMap, "Semi-automaat"); got != "automatic" {
		t.Fatalf("expected automatic, got %q", got)
	}
}
