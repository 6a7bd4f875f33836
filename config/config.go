package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Proxy     ProxyConfig
	Render    RenderConfig
	Search    SearchConfig
	Redis     RedisConfig
	Snapshots SnapshotConfig
	VPN       VPNConfig
	Scheduler SchedulerConfig
	Server    ServerConfig
	DBPath    string
	PgDSN     string
	LogLevel  string
	Sources   map[string]*SourceConfig
}

// ProxyConfig routes scraping traffic through a forward proxy. Optional.
type ProxyConfig struct {
	URL string
}

// RenderConfig holds credentials for the managed browser-rendering service.
type RenderConfig struct {
	APIKey       string
	Endpoint     string
	PremiumProxy bool
	WaitMS       int
	Race         bool // issue rendered + non-rendered together, first valid wins
}

type SearchConfig struct {
	Concurrency int           // simultaneous sources per job
	Budget      time.Duration // job-level deadline
	CacheTTL    time.Duration
	MaxRetries  int
	BackoffBase time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type SnapshotConfig struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
}

type VPNConfig struct {
	AutoConnect bool
	Region      string
}

type SchedulerConfig struct {
	Interval time.Duration
	Cron     string
}

type ServerConfig struct {
	Port int
}

// SourceConfig is one marketplace's registry entry, loaded from
// config/sources/<id>.yaml. Adding a source means adding a yaml file and a
// parser implementation; orchestration code never changes.
type SourceConfig struct {
	ID              string   `yaml:"id"`
	Name            string   `yaml:"name"`
	Enabled         bool     `yaml:"enabled"`
	DisabledReason  string   `yaml:"disabled_reason"`
	Priority        int      `yaml:"priority"`
	TimeoutSec      int      `yaml:"timeout_sec"`
	Strategies      []string `yaml:"strategies"` // tried in order: direct, render, browser
	SkipIfNoResults bool     `yaml:"skip_if_no_results"`
	SearchURL       string   `yaml:"search_url"` // template, see sources.BuildSearchURL
	RateLimitMS     int      `yaml:"rate_limit_ms"`
}

func (s *SourceConfig) Timeout() time.Duration {
	if s.TimeoutSec <= 0 {
		return 20 * time.Second
	}
	return time.Duration(s.TimeoutSec) * time.Second
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Proxy: ProxyConfig{
			URL: os.Getenv("SCRAPE_PROXY_URL"),
		},
		Render: RenderConfig{
			APIKey:       os.Getenv("RENDER_API_KEY"),
			Endpoint:     getEnv("RENDER_ENDPOINT", "https://app.scrapingbee.com/api/v1"),
			PremiumProxy: os.Getenv("RENDER_PREMIUM_PROXY") == "true",
			WaitMS:       getEnvInt("RENDER_WAIT_MS", 2500),
			Race:         getEnv("RENDER_RACE", "true") == "true",
		},
		Search: SearchConfig{
			Concurrency: getEnvInt("SEARCH_CONCURRENCY", 3),
			Budget:      getEnvDuration("SEARCH_BUDGET", 90*time.Second),
			CacheTTL:    getEnvDuration("CACHE_TTL", 5*time.Minute),
			MaxRetries:  getEnvInt("FETCH_MAX_RETRIES", 3),
			BackoffBase: getEnvDuration("FETCH_BACKOFF_BASE", 500*time.Millisecond),
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Snapshots: SnapshotConfig{
			Bucket:          os.Getenv("SNAPSHOT_BUCKET"),
			Region:          getEnv("SNAPSHOT_REGION", "eu-central-1"),
			Endpoint:        os.Getenv("SNAPSHOT_ENDPOINT"),
			AccessKeyID:     os.Getenv("SNAPSHOT_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("SNAPSHOT_SECRET_ACCESS_KEY"),
		},
		VPN: VPNConfig{
			AutoConnect: os.Getenv("VPN_AUTO_CONNECT") == "true",
			Region:      os.Getenv("VPN_REGION"),
		},
		Scheduler: SchedulerConfig{
			Cron: os.Getenv("SEARCH_CRON"),
		},
		Server: ServerConfig{
			Port: getEnvInt("HTTP_PORT", 8080),
		},
		DBPath:   getEnv("DB_PATH", "carscout.db"),
		PgDSN:    os.Getenv("DATABASE_URL"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		Sources:  make(map[string]*SourceConfig),
	}

	if interval := os.Getenv("SEARCH_INTERVAL"); interval != "" {
		if d, err := time.ParseDuration(interval); err == nil {
			cfg.Scheduler.Interval = d
		}
	}

	if err := cfg.loadSourceConfigs(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) loadSourceConfigs() error {
	configDir := getEnv("SOURCES_DIR", "config/sources")
	entries, err := os.ReadDir(configDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".yaml" {
			continue
		}

		path := filepath.Join(configDir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}

		var src SourceConfig
		if err := yaml.Unmarshal(data, &src); err != nil {
			return err
		}

		c.Sources[src.ID] = &src
	}

	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
