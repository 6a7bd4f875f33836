package sources

import (
	"fmt"
	"log"
	"sort"
	"strconv"
	"strings"

	"carscout/config"
	"carscout/models"
)

// Source pairs a registry entry with its parser.
type Source struct {
	*config.SourceConfig
	Parser Parser
}

// Registry is the static source set, loaded once at startup and sorted by
// priority. Priority order also breaks dedup ties downstream.
type Registry struct {
	ordered []*Source
	byID    map[string]*Source
}

func NewRegistry(cfgs map[string]*config.SourceConfig) *Registry {
	r := &Registry{byID: make(map[string]*Source)}

	for id, cfg := range cfgs {
		parser, err := parserFor(id)
		if err != nil {
			log.Printf("sources: %v, source ignored", err)
			continue
		}
		src := &Source{SourceConfig: cfg, Parser: parser}
		r.byID[id] = src
		r.ordered = append(r.ordered, src)
	}

	sort.Slice(r.ordered, func(i, j int) bool {
		if r.ordered[i].Priority != r.ordered[j].Priority {
			return r.ordered[i].Priority < r.ordered[j].Priority
		}
		return r.ordered[i].ID < r.ordered[j].ID
	})

	return r
}

// All returns every registered source in priority order, disabled ones
// included; the coordinator records those as skipped.
func (r *Registry) All() []*Source {
	return r.ordered
}

func (r *Registry) Get(id string) (*Source, bool) {
	s, ok := r.byID[id]
	return s, ok
}

// PriorityOf returns a source's priority, or a large value for unknown ids
// so they sort last in tie-breaks.
func (r *Registry) PriorityOf(id string) int {
	if s, ok := r.byID[id]; ok {
		return s.Priority
	}
	return 1 << 20
}

// BuildSearchURL expands a source's search_url template with the effective
// (possibly relaxed) criteria. Unset bounds expand to empty values, which
// are then stripped from the query string.
func BuildSearchURL(src *config.SourceConfig, c models.SearchCriteria) string {
	pairs := []string{
		"{brand}", slug(c.Brand),
		"{model}", slug(c.Model),
		"{price_min}", numOrEmpty(c.PriceMin),
		"{price_max}", numOrEmpty(c.PriceMax),
		"{price_min_cents}", numOrEmpty(c.PriceMin * 100),
		"{price_max_cents}", numOrEmpty(c.PriceMax * 100),
		"{year_min}", numOrEmpty(c.YearMin),
		"{year_max}", numOrEmpty(c.YearMax),
		"{mileage_min}", numOrEmpty(c.MileageMin),
		"{mileage_max}", numOrEmpty(c.MileageMax),
	}
	url := strings.NewReplacer(pairs...).Replace(src.SearchURL)
	return tidyURL(url)
}

func slug(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.ReplaceAll(s, " ", "-")
}

func numOrEmpty(n int) string {
	if n <= 0 {
		return ""
	}
	return strconv.Itoa(n)
}

// tidyURL removes query parameters whose placeholder expanded to nothing and
// collapses an empty model path segment.
func tidyURL(raw string) string {
	base, query, found := strings.Cut(raw, "?")
	base = strings.TrimSuffix(base, "/") // "{brand}/{model}" with empty model
	base = strings.TrimSuffix(base, "-") // "{brand}-{model}" with empty model
	if !found {
		return base
	}

	var kept []string
	for _, param := range strings.Split(query, "&") {
		if _, v, ok := strings.Cut(param, "="); ok && v == "" {
			continue
		}
		kept = append(kept, param)
	}
	if len(kept) == 0 {
		return base
	}
	return fmt.Sprintf("%s?%s", base, strings.Join(kept, "&"))
}
