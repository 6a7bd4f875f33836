package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"carscout/cache"
	"carscout/config"
	"carscout/fetch"
	"carscout/httputil"
	"carscout/logging"
	"carscout/models"
	"carscout/scheduler"
	"carscout/search"
	"carscout/server"
	"carscout/services"
	"carscout/sources"
	"carscout/storage"
	"carscout/vpn"
	"carscout/workers"
)

var (
	searchNow  = flag.Bool("search", false, "Run one search and exit")
	brand      = flag.String("brand", "", "Brand to search for")
	model      = flag.String("model", "", "Model to search for")
	priceMax   = flag.Int("price-max", 0, "Maximum price in euros")
	priceMin   = flag.Int("price-min", 0, "Minimum price in euros")
	yearMin    = flag.Int("year-min", 0, "Minimum build year")
	yearMax    = flag.Int("year-max", 0, "Maximum build year")
	mileageMax = flag.Int("mileage-max", 0, "Maximum mileage in km")
	fuel       = flag.String("fuel", "", "Fuel type")
	gearbox    = flag.String("gearbox", "", "Gearbox type")
)

func main() {
	flag.Parse()
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	logFile, err := logging.Setup("carscout.log")
	if err != nil {
		log.Printf("Warning: could not set up file logging: %v", err)
	} else {
		defer logFile.Close()
	}

	log.Println("Starting carscout...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	log.Printf("Loaded %d source configs", len(cfg.Sources))
	for id, src := range cfg.Sources {
		if src.Enabled {
			log.Printf("  - %s (%s)", src.Name, id)
		} else {
			log.Printf("  - %s (%s) DISABLED: %s", src.Name, id, src.DisabledReason)
		}
	}

	clients := httputil.NewClients(&cfg.Proxy)
	if cfg.Proxy.URL != "" {
		log.Printf("Proxy configured")
	}

	var tunnel *vpn.ExpressVPN
	if cfg.VPN.AutoConnect {
		tunnel = vpn.NewExpressVPN(&vpn.Config{AutoConnect: true, Region: cfg.VPN.Region})
		if err := tunnel.EnsureConnected(); err != nil {
			log.Printf("Warning: VPN not connected: %v", err)
		} else if status, err := tunnel.GetStatus(); err == nil {
			log.Printf("VPN: %s", status)
		}
	}

	ctx := context.Background()

	var passCache cache.Cache
	if cfg.Redis.Addr != "" {
		redisCache := cache.NewRedis(&cfg.Redis, cfg.Search.CacheTTL)
		defer redisCache.Close()
		passCache = redisCache
		log.Printf("Pass cache: redis (%s)", cfg.Redis.Addr)
	} else {
		memCache := cache.NewMemory(cfg.Search.CacheTTL)
		defer memCache.Close()
		passCache = memCache
		log.Printf("Pass cache: in-memory, TTL %s", cfg.Search.CacheTTL)
	}

	registry := search.NewJobRegistry()
	srcRegistry := sources.NewRegistry(cfg.Sources)
	provider := fetch.NewDefaultProvider(cfg, clients)
	runner := search.NewRunner(provider, passCache, registry, search.NewPlanner())
	coordinator := search.NewCoordinator(cfg, registry, srcRegistry, runner)

	if cfg.Snapshots.Bucket != "" {
		uploader, err := storage.NewSnapshotUploader(ctx, cfg.Snapshots)
		if err != nil {
			log.Printf("Warning: snapshot uploads disabled: %v", err)
		} else {
			runner.SetSnapshotter(uploader)
			log.Printf("Drift snapshots: s3 bucket %s", cfg.Snapshots.Bucket)
		}
	}

	// One-shot mode skips the stores and workers entirely.
	if *searchNow {
		runOnce(ctx, coordinator)
		return
	}

	sqliteStore, err := storage.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to open SQLite: %v", err)
	}
	defer sqliteStore.Close()
	coordinator.SetRecorder(sqliteStore)
	log.Printf("SQLite database: %s", cfg.DBPath)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sched := scheduler.New(cfg, coordinator, sqliteStore)
	if tunnel != nil {
		sched.SetRotator(tunnel)
	}

	if cfg.PgDSN != "" {
		pgStore, err := storage.NewPostgresStore(ctx, cfg.PgDSN)
		if err != nil {
			log.Fatalf("Failed to connect to Postgres: %v", err)
		}
		defer pgStore.Close()
		log.Println("Connected to Postgres archive")

		archive := services.NewArchiveService(pgStore)
		sched.SetArchive(archive)

		healthcheckWorker := workers.NewHealthcheckWorker(archive, cfg.Proxy.URL)
		healthcheckWorker.SetLogger(func(level models.LogLevel, component, message string) {
			sqliteStore.Log(nil, level, message, component)
		})
		go healthcheckWorker.Run(ctx, 24*time.Hour, 20, 30*time.Minute)
		sched.SetWorkers(healthcheckWorker)
		log.Println("Healthcheck worker started")
	} else {
		log.Println("No DATABASE_URL, listing archive disabled")
	}

	if err := sched.Start(ctx); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}

	srv := server.New(cfg, coordinator, registry, sqliteStore)
	go func() {
		if err := srv.Start(); err != nil {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	log.Println("Daemon running. Press Ctrl+C to stop.")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("Shutting down...")
	sched.Stop()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP shutdown error: %v", err)
	}
	log.Println("Goodbye!")
}

func runOnce(ctx context.Context, coordinator *search.Coordinator) {
	criteria := models.SearchCriteria{
		Brand:      *brand,
		Model:      *model,
		PriceMin:   *priceMin,
		PriceMax:   *priceMax,
		YearMin:    *yearMin,
		YearMax:    *yearMax,
		MileageMax: *mileageMax,
		Fuel:       *fuel,
		Gearbox:    *gearbox,
	}

	log.Printf("Searching: %s %s", criteria.Brand, criteria.Model)
	resp, err := coordinator.SearchAndCollect(ctx, criteria, "cli")
	if err != nil {
		log.Fatalf("Search failed: %v", err)
	}

	for _, run := range resp.SiteResults {
		log.Printf("  %s: %s, %d items in %dms", run.Source, run.State, run.ItemCount, run.Duration.Milliseconds())
	}
	log.Printf("Total: %d listings from %d sources in %dms",
		resp.Stats.TotalItems, resp.Stats.SitesScraped, resp.Stats.TotalMs)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(resp.Items); err != nil {
		log.Fatalf("Encode results: %v", err)
	}
}
