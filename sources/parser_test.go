package sources

import (
	"os"
	"path/filepath"
	"testing"

	"carscout/models"
)

func loadFixture(t *testing.T, name string) []byte {
	t.Helper()
	path := filepath.Join("testdata", name)
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read fixture %s: %v", name, err)
	}
	return data
}

func TestParserFor_KnownSources(t *testing.T) {
	for _, id := range []string{"autoscout", "marktplaats", "autotrack", "gaspedaal", "bovag", "occasionplein"} {
		if _, err := parserFor(id); err != nil {
			t.Fatalf("expected parser for %s, got %v", id, err)
		}
	}
}

func TestParserFor_Unknown(t *testing.T) {
	if _, err := parserFor("carsales-au"); err == nil {
		t.Fatal("expected error for unknown source")
	}
}

func TestWithinCeiling(t *testing.T) {
	criteria := models.SearchCriteria{Brand: "peugeot", PriceMax: 12000}

	if !withinCeiling(11950, criteria) {
		t.Fatal("price under ceiling should pass")
	}
	if withinCeiling(14750, criteria) {
		t.Fatal("price over ceiling should be filtered")
	}
	// Unknown price is kept, the normalizer ranks it lower.
	if !withinCeiling(0, criteria) {
		t.Fatal("unknown price should pass")
	}
	if !withinCeiling(99999, models.SearchCriteria{Brand: "peugeot"}) {
		t.Fatal("no ceiling configured, everything passes")
	}
}
