package sources

import (
	"testing"

	"carscout/config"
	"carscout/models"
)

func testSourceConfigs() map[string]*config.SourceConfig {
	return map[string]*config.SourceConfig{
		"marktplaats": {ID: "marktplaats", Name: "Marktplaats", Enabled: true, Priority: 2},
		"autoscout":   {ID: "autoscout", Name: "AutoScout24", Enabled: true, Priority: 1},
		"gaspedaal":   {ID: "gaspedaal", Name: "Gaspedaal", Enabled: true, Priority: 4},
	}
}

func TestRegistry_PriorityOrder(t *testing.T) {
	r := NewRegistry(testSourceConfigs())

	all := r.All()
	if len(all) != 3 {
		t.Fatalf("expected 3 sources, got %d", len(all))
	}
	want := []string{"autoscout", "marktplaats", "gaspedaal"}
	for i, id := range want {
		if all[i].ID != id {
			t.Fatalf("position %d: expected %s, got %s", i, id, all[i].ID)
		}
	}
}

func TestRegistry_UnknownParserIgnored(t *testing.T) {
	cfgs := testSourceConfigs()
	cfgs["mobile-de"] = &config.SourceConfig{ID: "mobile-de", Enabled: true, Priority: 9}

	r := NewRegistry(cfgs)
	if len(r.All()) != 3 {
		t.Fatalf("source without parser should be ignored, got %d sources", len(r.All()))
	}
	if _, ok := r.Get("mobile-de"); ok {
		t.Fatal("mobile-de should not be registered")
	}
}

func TestRegistry_PriorityOfUnknown(t *testing.T) {
	r := NewRegistry(testSourceConfigs())
	if r.PriorityOf("autoscout") != 1 {
		t.Fatalf("expected priority 1 for autoscout")
	}
	if r.PriorityOf("nope") <= 100 {
		t.Fatal("unknown sources must sort last")
	}
}

func TestBuildSearchURL_FullCriteria(t *testing.T) {
	src := &config.SourceConfig{
		ID:        "autoscout",
		SearchURL: "https://www.autoscout24.nl/lst/{brand}/{model}?priceto={price_max}&pricefrom={price_min}&fregfrom={year_min}&fregto={year_max}&kmto={mileage_max}",
	}
	c := models.SearchCriteria{
		Brand:      "Peugeot",
		Model:      "208",
		PriceMin:   5000,
		PriceMax:   12000,
		YearMin:    2016,
		YearMax:    2021,
		MileageMax: 80000,
	}

	got := BuildSearchURL(src, c)
	want := "https://www.autoscout24.nl/lst/peugeot/208?priceto=12000&pricefrom=5000&fregfrom=2016&fregto=2021&kmto=80000"
	if got != want {
		t.Fatalf("got %s\nwant %s", got, want)
	}
}

func TestBuildSearchURL_EmptyBoundsStripped(t *testing.T) {
	src := &config.SourceConfig{
		ID:        "autoscout",
		SearchURL: "https://www.autoscout24.nl/lst/{brand}/{model}?priceto={price_max}&fregfrom={year_min}",
	}

	got := BuildSearchURL(src, models.SearchCriteria{Brand: "Peugeot"})
	want := "https://www.autoscout24.nl/lst/peugeot"
	if got != want {
		t.Fatalf("got %s, want %s", got, want)
	}
}

func TestBuildSearchURL_CentsPlaceholder(t *testing.T) {
	src := &config.SourceConfig{
		ID:        "marktplaats",
		SearchURL: "https://www.marktplaats.nl/l/auto-s/{brand}/?priceTo={price_max_cents}",
	}

	got := BuildSearchURL(src, models.SearchCriteria{Brand: "Peugeot", PriceMax: 12000})
	want := "https://www.marktplaats.nl/l/auto-s/peugeot?priceTo=1200000"
	if got != want {
		t.Fatalf("got %s, want %s", got, want)
	}
}

func TestBuildSearchURL_MultiWordBrand(t *testing.T) {
	src := &config.SourceConfig{
		ID:        "gaspedaal",
		SearchURL: "https://www.gaspedaal.nl/{brand}/{model}",
	}

	got := BuildSearchURL(src, models.SearchCriteria{Brand: "Alfa Romeo", Model: "Giulietta"})
	want := "https://www.gaspedaal.nl/alfa-romeo/giulietta"
	if got != want {
		t.Fatalf("got %s, want %s", got, want)
	}
}
