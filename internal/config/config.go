package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	API     APIConfig     `yaml:"api"`
	Backend BackendConfig `yaml:"backend"`
	Storage StorageConfig `yaml:"storage"`
	Catalog CatalogConfig `yaml:"catalog"`
	Events  EventsConfig  `yaml:"events"`
	Journal JournalConfig `yaml:"journal"`
	Metrics MetricsConfig `yaml:"metrics"`
	Logging LoggingConfig `yaml:"logging"`
}

type APIConfig struct {
	URL               string        `yaml:"url"`
	User              string        `yaml:"user"`
	Password          string        `yaml:"password"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	Burst             int           `yaml:"burst"`
	Timeout           time.Duration `yaml:"timeout"`
	RetryInterval     time.Duration `yaml:"retry_interval"`
	Offline           bool          `yaml:"offline"`
}

type BackendConfig struct {
	Device            string         `yaml:"device"`
	Label             string         `yaml:"label"`
	Simulator         string         `yaml:"simulator"`
	Group             string         `yaml:"group"`
	MachineDebug      bool           `yaml:"machine_debug"`
	OptimisationLevel int            `yaml:"optimisation_level"`
	Options           map[string]any `yaml:"options"`
}

type StorageConfig struct {
	Backend    string `yaml:"backend"` // "" disables persistence
	Bucket     string `yaml:"bucket"`
	Prefix     string `yaml:"prefix"`
	LocalDir   string `yaml:"local_dir"`
	S3Endpoint string `yaml:"s3_endpoint"`
	S3Region   string `yaml:"s3_region"`
}

type CatalogConfig struct {
	PostgresDSN string `yaml:"postgres_dsn"`
}

type EventsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Endpoint  string `yaml:"endpoint"`
	BackupDir string `yaml:"backup_dir"`
}

type JournalConfig struct {
	Enabled bool   `yaml:"enabled"`
	Dir     string `yaml:"dir"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

type LoggingConfig struct {
	Format string `yaml:"format"`
	Level  string `yaml:"level"`
}

// Defaults returns the configuration used when nothing is set.
func Defaults() Config {
	return Config{
		API: APIConfig{
			URL:           "https://qapi.quantinuum.com/v1/",
			Burst:         1,
			RetryInterval: 2 * time.Second,
		},
		Backend: BackendConfig{
			Device:            "H1-1E",
			Label:             "job",
			Simulator:         "state-vector",
			OptimisationLevel: 2,
		},
		Storage: StorageConfig{
			Prefix:   "qbackend/",
			LocalDir: "./data",
		},
		Events: EventsConfig{
			BackupDir: "./state/events",
		},
		Journal: JournalConfig{
			Enabled: true,
			Dir:     "./state",
		},
		Metrics: MetricsConfig{
			Addr: ":9090",
		},
		Logging: LoggingConfig{
			Format: "text",
			Level:  "info",
		},
	}
}

// Load builds a configuration from defaults, then the YAML file at path (if
// path is non-empty), then environment overrides.
func Load(path string) (Config, error) {
	cfg := Defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// MustLoad loads the configuration named by QBACKEND_CONFIG and exits on error.
func MustLoad() Config {
	log.Println("[config] loading")

	cfg, err := Load(os.Getenv("QBACKEND_CONFIG"))
	if err != nil {
		log.Fatalf("[config] %v", err)
	}
	return cfg
}

// Validate checks cross-field constraints.
func (c Config) Validate() error {
	if c.Backend.Device == "" {
		return fmt.Errorf("backend.device is required")
	}
	if c.Backend.OptimisationLevel < 0 || c.Backend.OptimisationLevel > 2 {
		return fmt.Errorf("backend.optimisation_level must be 0, 1 or 2, got %d", c.Backend.OptimisationLevel)
	}
	switch c.Storage.Backend {
	case "", "local", "mem":
	case "gcs", "s3":
		if c.Storage.Bucket == "" {
			return fmt.Errorf("storage.bucket required for %s backend", c.Storage.Backend)
		}
	default:
		return fmt.Errorf("unknown storage backend: %s", c.Storage.Backend)
	}
	if c.Events.Enabled && c.Events.Endpoint == "" && c.Events.BackupDir == "" {
		return fmt.Errorf("events enabled without endpoint or backup_dir")
	}
	return nil
}

func applyEnv(cfg *Config) error {
	cfg.API.URL = getenvDefault("QUANTUM_API_URL", cfg.API.URL)
	cfg.API.User = getenvDefault("QUANTUM_USER", cfg.API.User)
	cfg.API.Password = getenvDefault("QUANTUM_PASSWORD", cfg.API.Password)
	cfg.Backend.Device = getenvDefault("DEVICE_NAME", cfg.Backend.Device)
	cfg.Backend.Group = getenvDefault("QUANTUM_GROUP", cfg.Backend.Group)
	cfg.Storage.Backend = getenvDefault("RESULT_STORE_BACKEND", cfg.Storage.Backend)
	cfg.Storage.Bucket = getenvDefault("RESULT_STORE_BUCKET", cfg.Storage.Bucket)
	cfg.Storage.Prefix = getenvDefault("RESULT_STORE_PREFIX", cfg.Storage.Prefix)
	cfg.Storage.LocalDir = getenvDefault("LOCAL_DIR", cfg.Storage.LocalDir)
	cfg.Catalog.PostgresDSN = getenvDefault("CATALOG_DSN", cfg.Catalog.PostgresDSN)
	cfg.Events.Endpoint = getenvDefault("EVENTS_ENDPOINT", cfg.Events.Endpoint)
	cfg.Metrics.Addr = getenvDefault("METRICS_ADDR", cfg.Metrics.Addr)
	cfg.Logging.Format = getenvDefault("LOG_FORMAT", cfg.Logging.Format)
	cfg.Logging.Level = getenvDefault("LOG_LEVEL", cfg.Logging.Level)

	bools := map[string]*bool{
		"MACHINE_DEBUG":   &cfg.Backend.MachineDebug,
		"QUANTUM_OFFLINE": &cfg.API.Offline,
		"EVENTS_ENABLED":  &cfg.Events.Enabled,
		"JOURNAL_ENABLED": &cfg.Journal.Enabled,
		"METRICS_ENABLED": &cfg.Metrics.Enabled,
	}
	for key, dst := range bools {
		if v := os.Getenv(key); v != "" {
			parsed, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("parse %s: %w", key, err)
			}
			*dst = parsed
		}
	}

	if v := os.Getenv("OPTIMISATION_LEVEL"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse OPTIMISATION_LEVEL: %w", err)
		}
		cfg.Backend.OptimisationLevel = parsed
	}
	if v := os.Getenv("QUANTUM_RETRIEVE_TIMEOUT"); v != "" {
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse QUANTUM_RETRIEVE_TIMEOUT: %w", err)
		}
		cfg.API.Timeout = parsed
	}
	return nil
}

func getenvDefault(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}
