package search

import (
	"context"
	"sync"
	"testing"
	"time"

	"carscout/cache"
	"carscout/config"
	"carscout/fetch"
	"carscout/models"
	"carscout/sources"
)

type stubFetcher struct {
	mu      sync.Mutex
	calls   int
	markup  []byte
	errs    map[int]error // 1-based call number to forced error
	lastURL string
}

func (f *stubFetcher) Fetch(ctx context.Context, url string, src *config.SourceConfig) (*fetch.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastURL = url
	if err, ok := f.errs[f.calls]; ok {
		return nil, err
	}
	markup := f.markup
	if markup == nil {
		markup = []byte("<html>ok</html>")
	}
	return &fetch.Result{Markup: markup, Strategy: fetch.StrategyDirect}, nil
}

func (f *stubFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// seqParser returns its scripted batches in order, then keeps repeating the
// last one.
type seqParser struct {
	mu    sync.Mutex
	calls int
	seq   [][]models.RawListing
}

func (p *seqParser) Parse(markup []byte, criteria models.SearchCriteria) ([]models.RawListing, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	i := p.calls
	if i >= len(p.seq) {
		i = len(p.seq) - 1
	}
	p.calls++
	return p.seq[i], nil
}

type recordingSnapshotter struct {
	mu      sync.Mutex
	uploads []string
}

func (s *recordingSnapshotter) Upload(ctx context.Context, source string, markup []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uploads = append(s.uploads, source)
}

func rl(id string) models.RawListing {
	return models.RawListing{ExternalID: id, Title: "Peugeot 208 " + id, Price: 11000, URL: "https://x/" + id}
}

func testSource(id string, parser sources.Parser) *sources.Source {
	return &sources.Source{
		SourceConfig: &config.SourceConfig{
			ID:         id,
			Name:       id,
			Enabled:    true,
			Priority:   1,
			Strategies: []string{"direct"},
			SearchURL:  "https://www." + id + ".nl/{brand}/{model}",
		},
		Parser: parser,
	}
}

func newTestRunner(f Fetcher) (*Runner, *JobRegistry, *cache.Memory) {
	registry := NewJobRegistry()
	mem := cache.NewMemory(time.Minute)
	return NewRunner(f, mem, registry, NewPlanner()), registry, mem
}

func TestRunner_DisabledSourceSkipped(t *testing.T) {
	fetcher := &stubFetcher{}
	runner, registry, mem := newTestRunner(fetcher)
	defer mem.Close()

	src := testSource("occasionplein", &seqParser{seq: [][]models.RawListing{nil}})
	src.Enabled = false
	src.DisabledReason = "parser broken since 2026-05 site redesign"

	job := registry.Register(models.SearchCriteria{Brand: "peugeot"}, "t")
	run, items := runner.Run(context.Background(), job, src)

	if run.State != models.SiteStateSkipped {
		t.Fatalf("expected skipped, got %s", run.State)
	}
	if run.Note != "parser broken since 2026-05 site redesign" {
		t.Fatalf("skip must carry the disabled reason, got %q", run.Note)
	}
	if items != nil || fetcher.callCount() != 0 {
		t.Fatal("a skipped source must not fetch")
	}
}

func TestRunner_ExcludedSourceSkipped(t *testing.T) {
	fetcher := &stubFetcher{}
	runner, registry, mem := newTestRunner(fetcher)
	defer mem.Close()

	src := testSource("bovag", &seqParser{seq: [][]models.RawListing{nil}})
	job := registry.Register(models.SearchCriteria{Brand: "peugeot", ExcludedSites: []string{"bovag"}}, "t")
	run, _ := runner.Run(context.Background(), job, src)

	if run.State != models.SiteStateSkipped {
		t.Fatalf("expected skipped, got %s", run.State)
	}
	if run.Note != "excluded by request" {
		t.Fatalf("unexpected note %q", run.Note)
	}
	if fetcher.callCount() != 0 {
		t.Fatal("an excluded source must not fetch")
	}
}

func TestRunner_StopsRelaxingAtScarcityThreshold(t *testing.T) {
	fetcher := &stubFetcher{}
	runner, registry, mem := newTestRunner(fetcher)
	defer mem.Close()

	parser := &seqParser{seq: [][]models.RawListing{
		{rl("a"), rl("b"), rl("c"), rl("d"), rl("e"), rl("f"), rl("g")},
		{rl("f"), rl("g"), rl("h"), rl("i"), rl("j")},
	}}
	src := testSource("autoscout", parser)

	job := registry.Register(models.SearchCriteria{Brand: "peugeot", Model: "208"}, "t")
	run, items := runner.Run(context.Background(), job, src)

	if run.State != models.SiteStateOK {
		t.Fatalf("expected ok, got %s (%s)", run.State, run.Error)
	}
	// Strict found 7, relaxed pushed the total to 10; the opportunity pass
	// never runs.
	if len(run.Passes) != 2 {
		t.Fatalf("expected 2 passes, got %d", len(run.Passes))
	}
	if len(items) != 10 {
		t.Fatalf("expected 10 items after within-source dedup, got %d", len(items))
	}
	if run.ItemCount != 10 {
		t.Fatalf("run.ItemCount = %d", run.ItemCount)
	}
	if run.Passes[0].Pass != models.PassStrict || run.Passes[1].Pass != models.PassRelaxed {
		t.Fatalf("unexpected pass levels %+v", run.Passes)
	}
}

func TestRunner_PassErrorKeepsEarlierItems(t *testing.T) {
	fetcher := &stubFetcher{errs: map[int]error{
		2: &fetch.Error{Class: fetch.ClassFatal, Strategy: "direct", Status: 400, Reason: "bad request"},
	}}
	runner, registry, mem := newTestRunner(fetcher)
	defer mem.Close()

	parser := &seqParser{seq: [][]models.RawListing{
		{rl("a"), rl("b"), rl("c")},
	}}
	src := testSource("autoscout", parser)

	job := registry.Register(models.SearchCriteria{Brand: "peugeot"}, "t")
	run, items := runner.Run(context.Background(), job, src)

	if run.State != models.SiteStateError {
		t.Fatalf("expected error state, got %s", run.State)
	}
	if run.Error == "" {
		t.Fatal("expected an error message")
	}
	if run.ErrorClass != string(fetch.ClassFatal) {
		t.Fatalf("expected fatal error class, got %q", run.ErrorClass)
	}
	if len(items) != 3 {
		t.Fatalf("items from completed passes must survive, got %d", len(items))
	}
}

func TestRunner_SecondRunServedFromCache(t *testing.T) {
	fetcher := &stubFetcher{}
	runner, registry, mem := newTestRunner(fetcher)
	defer mem.Close()

	parser := &seqParser{seq: [][]models.RawListing{
		{rl("a"), rl("b"), rl("c"), rl("d"), rl("e"), rl("f"), rl("g"), rl("h"), rl("i"), rl("j"), rl("k")},
	}}
	src := testSource("autoscout", parser)
	criteria := models.SearchCriteria{Brand: "peugeot", Model: "208"}

	job1 := registry.Register(criteria, "t")
	run1, items1 := runner.Run(context.Background(), job1, src)
	if run1.State != models.SiteStateOK || len(items1) != 11 {
		t.Fatalf("first run: %s, %d items", run1.State, len(items1))
	}
	fetches := fetcher.callCount()

	job2 := registry.Register(criteria, "t")
	run2, items2 := runner.Run(context.Background(), job2, src)
	if run2.State != models.SiteStateOK {
		t.Fatalf("second run: %s", run2.State)
	}
	if fetcher.callCount() != fetches {
		t.Fatalf("identical criteria within TTL must not hit the source again: %d -> %d", fetches, fetcher.callCount())
	}
	if run2.Passes[0].Outcome != models.PassOutcomeCached {
		t.Fatalf("expected cached outcome, got %s", run2.Passes[0].Outcome)
	}
	if len(items2) != len(items1) {
		t.Fatalf("cached run returned %d items, want %d", len(items2), len(items1))
	}
}

func TestRunner_DriftNoteAndSnapshot(t *testing.T) {
	big := make([]byte, 4096)
	for i := range big {
		big[i] = 'x'
	}
	fetcher := &stubFetcher{markup: big}
	runner, registry, mem := newTestRunner(fetcher)
	defer mem.Close()

	snaps := &recordingSnapshotter{}
	runner.SetSnapshotter(snaps)

	parser := &seqParser{seq: [][]models.RawListing{nil}}
	src := testSource("autoscout", parser)

	job := registry.Register(models.SearchCriteria{Brand: "peugeot"}, "t")
	run, items := runner.Run(context.Background(), job, src)

	// Zero items on a large page is a diagnostic, never a failure.
	if run.State != models.SiteStateOK {
		t.Fatalf("expected ok, got %s", run.State)
	}
	if len(items) != 0 {
		t.Fatalf("expected no items, got %d", len(items))
	}
	if run.Note == "" {
		t.Fatal("expected a drift note")
	}
	if len(snaps.uploads) == 0 || snaps.uploads[0] != "autoscout" {
		t.Fatalf("expected a snapshot upload, got %v", snaps.uploads)
	}
}

func TestRunner_NoDriftNoteOnSmallEmptyPage(t *testing.T) {
	fetcher := &stubFetcher{markup: []byte("<html><body>Geen resultaten</body></html>")}
	runner, registry, mem := newTestRunner(fetcher)
	defer mem.Close()

	parser := &seqParser{seq: [][]models.RawListing{nil}}
	src := testSource("autoscout", parser)

	job := registry.Register(models.SearchCriteria{Brand: "peugeot"}, "t")
	run, _ := runner.Run(context.Background(), job, src)

	if run.State != models.SiteStateOK {
		t.Fatalf("expected ok, got %s", run.State)
	}
	if run.Note != "" {
		t.Fatalf("a small empty page is a legitimate zero-result, got note %q", run.Note)
	}
}

func TestRunner_CancelledJobReturnsNothing(t *testing.T) {
	fetcher := &stubFetcher{}
	runner, registry, mem := newTestRunner(fetcher)
	defer mem.Close()

	parser := &seqParser{seq: [][]models.RawListing{{rl("a")}}}
	src := testSource("autoscout", parser)

	job := registry.Register(models.SearchCriteria{Brand: "peugeot"}, "t")
	registry.Cancel(job.ID)

	run, items := runner.Run(context.Background(), job, src)
	if run.State != models.SiteStateCancelled {
		t.Fatalf("expected cancelled, got %s", run.State)
	}
	if items != nil {
		t.Fatal("cancelled runs discard their results")
	}
	if fetcher.callCount() != 0 {
		t.Fatal("cancellation before the first pass must skip the fetch")
	}
}

func TestRunner_SkipIfNoResultsStopsRelaxation(t *testing.T) {
	fetcher := &stubFetcher{}
	runner, registry, mem := newTestRunner(fetcher)
	defer mem.Close()

	parser := &seqParser{seq: [][]models.RawListing{nil}}
	src := testSource("gaspedaal", parser)
	src.SkipIfNoResults = true

	job := registry.Register(models.SearchCriteria{Brand: "peugeot"}, "t")
	run, items := runner.Run(context.Background(), job, src)

	if run.State != models.SiteStateOK {
		t.Fatalf("expected ok, got %s", run.State)
	}
	if len(run.Passes) != 1 {
		t.Fatalf("expected relaxation to stop after the empty strict pass, got %d passes", len(run.Passes))
	}
	if len(items) != 0 {
		t.Fatalf("expected no items, got %d", len(items))
	}
}
