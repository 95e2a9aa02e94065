package config

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type StoreBackend string

const (
	StoreBackendSQLite StoreBackend = "sqlite" // GORM over SQLite (default)
	StoreBackendBadger StoreBackend = "badger" // Badger key-value store
)

type DispatchMode string

const (
	DispatchModeImmediate DispatchMode = "immediate" // detached goroutine (default)
	DispatchModeQueue     DispatchMode = "queue"     // backlite SQLite queue
	DispatchModeKafka     DispatchMode = "kafka"     // Kafka topic + worker process
	DispatchModeDisabled  DispatchMode = "disabled"
)

const EnvironmentTest = "test"

type (
	Config struct {
		HTTP
		Global
		Database
		UI
		Log
		Metadata
		Dispatch
		Tasks
		Kafka
		Barcode
		Sweeper
		Auth
		Telemetry
	}

	HTTP struct {
		Port int32
		Host string
	}
	Global struct {
		ShutdownTimeoutInSeconds int
		Environment              string // "development", "production" or "test"
	}
	Database struct {
		Path      string
		Backend   StoreBackend
		BadgerDir string
	}
	UI struct {
		TemplatesPath string
		StaticPath    string
	}
	Log struct {
		Level  string
		Format string // "json" or "console"
	}
	Metadata struct {
		BaseURL           string
		APIKey            string
		Timeout           time.Duration
		RequestsPerSecond float64
	}
	Dispatch struct {
		Mode    DispatchMode
		Timeout time.Duration // upper bound for a single detached fetch
	}
	Tasks struct {
		Workers         int
		ReleaseAfter    time.Duration
		CleanupInterval time.Duration
	}
	Kafka struct {
		Brokers       []string
		Topic         string
		ConsumerGroup string
	}
	Barcode struct {
		Enabled bool
	}
	Sweeper struct {
		Enabled    bool
		Schedule   string        // Cron format: "*/15 * * * *" = every 15 minutes
		StaleAfter time.Duration // pending rows older than this are dispatched again
	}
	Auth struct {
		SessionSecret      string
		SessionLifetime    time.Duration
		BcryptCost         int
		SecureCookies      bool // Set to false for local dev without HTTPS
		LoginRatePerMinute float64
		LoginBurst         int
	}
	Telemetry struct {
		Enabled      bool
		OTLPEndpoint string
		ServiceName  string
	}
)

// IsTest reports whether the application runs under the test environment.
// Background dispatch is always disabled in that case.
func (c *Config) IsTest() bool {
	return c.Global.Environment == EnvironmentTest
}

// EffectiveDispatchMode returns the dispatch mode after applying the test override.
func (c *Config) EffectiveDispatchMode() DispatchMode {
	if c.IsTest() {
		return DispatchModeDisabled
	}
	return c.Dispatch.Mode
}

// NewConfig loads an optional .env file and reads configuration from the environment.
func NewConfig() *Config {
	_ = godotenv.Load()
	return newConfig(viper.New())
}

func newConfig(v *viper.Viper) *Config {
	v.AutomaticEnv()
	v.SetDefault("port", 8188)
	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("shutdown_timeout_in_seconds", 5)
	v.SetDefault("app_env", "development")
	v.SetDefault("database_path", DefaultDatabasePath)
	v.SetDefault("store_backend", string(StoreBackendSQLite))
	v.SetDefault("badger_dir", DefaultBadgerDir)
	v.SetDefault("templates_path", "./templates")
	v.SetDefault("static_path", "./static")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")

	// Catalog defaults
	v.SetDefault("google_books_base_url", DefaultGoogleBooksBaseURL)
	v.SetDefault("google_books_api_key", "")
	v.SetDefault("google_books_timeout", "10s")
	v.SetDefault("google_books_rps", 2.0)

	// Dispatch defaults
	v.SetDefault("dispatch_mode", string(DispatchModeImmediate))
	v.SetDefault("dispatch_timeout", "30s")

	// Task queue defaults
	v.SetDefault("task_workers", 2)
	v.SetDefault("task_release_after", "15m")
	v.SetDefault("task_cleanup_interval", "1h")

	// Kafka defaults
	v.SetDefault("kafka_brokers", "localhost:9092")
	v.SetDefault("kafka_topic", "book-sync")
	v.SetDefault("kafka_consumer_group", "booktracker-sync")

	v.SetDefault("barcode_enabled", true)

	// Pending sweeper defaults
	v.SetDefault("sweeper_enabled", false)
	v.SetDefault("sweeper_schedule", "*/15 * * * *")
	v.SetDefault("sweeper_stale_after", "30m")

	// Auth defaults
	v.SetDefault("auth_session_secret", "")      // Auto-generated if empty
	v.SetDefault("auth_session_lifetime", "24h") // 24 hours
	v.SetDefault("auth_bcrypt_cost", 12)         // bcrypt cost factor
	v.SetDefault("auth_secure_cookies", true)    // HTTPS-only cookies
	v.SetDefault("auth_login_rate_per_minute", 10.0)
	v.SetDefault("auth_login_burst", 5)

	// Telemetry defaults
	v.SetDefault("otel_enabled", false)
	v.SetDefault("otel_exporter_otlp_endpoint", "localhost:4318")
	v.SetDefault("otel_service_name", "booktracker")

	return &Config{
		HTTP: HTTP{
			Port: v.GetInt32("PORT"),
			Host: v.GetString("HOST"),
		},
		Global: Global{
			ShutdownTimeoutInSeconds: v.GetInt("SHUTDOWN_TIMEOUT_IN_SECONDS"),
			Environment:              v.GetString("APP_ENV"),
		},
		Database: Database{
			Path:      v.GetString("DATABASE_PATH"),
			Backend:   StoreBackend(v.GetString("STORE_BACKEND")),
			BadgerDir: v.GetString("BADGER_DIR"),
		},
		UI: UI{
			TemplatesPath: v.GetString("TEMPLATES_PATH"),
			StaticPath:    v.GetString("STATIC_PATH"),
		},
		Log: Log{
			Level:  v.GetString("LOG_LEVEL"),
			Format: v.GetString("LOG_FORMAT"),
		},
		Metadata: Metadata{
			BaseURL:           v.GetString("GOOGLE_BOOKS_BASE_URL"),
			APIKey:            v.GetString("GOOGLE_BOOKS_API_KEY"),
			Timeout:           v.GetDuration("GOOGLE_BOOKS_TIMEOUT"),
			RequestsPerSecond: v.GetFloat64("GOOGLE_BOOKS_RPS"),
		},
		Dispatch: Dispatch{
			Mode:    DispatchMode(v.GetString("DISPATCH_MODE")),
			Timeout: v.GetDuration("DISPATCH_TIMEOUT"),
		},
		Tasks: Tasks{
			Workers:         v.GetInt("TASK_WORKERS"),
			ReleaseAfter:    v.GetDuration("TASK_RELEASE_AFTER"),
			CleanupInterval: v.GetDuration("TASK_CLEANUP_INTERVAL"),
		},
		Kafka: Kafka{
			Brokers:       splitList(v.GetString("KAFKA_BROKERS")),
			Topic:         v.GetString("KAFKA_TOPIC"),
			ConsumerGroup: v.GetString("KAFKA_CONSUMER_GROUP"),
		},
		Barcode: Barcode{
			Enabled: v.GetBool("BARCODE_ENABLED"),
		},
		Sweeper: Sweeper{
			Enabled:    v.GetBool("SWEEPER_ENABLED"),
			Schedule:   v.GetString("SWEEPER_SCHEDULE"),
			StaleAfter: v.GetDuration("SWEEPER_STALE_AFTER"),
		},
		Auth: Auth{
			SessionSecret:      v.GetString("AUTH_SESSION_SECRET"),
			SessionLifetime:    v.GetDuration("AUTH_SESSION_LIFETIME"),
			BcryptCost:         v.GetInt("AUTH_BCRYPT_COST"),
			SecureCookies:      v.GetBool("AUTH_SECURE_COOKIES"),
			LoginRatePerMinute: v.GetFloat64("AUTH_LOGIN_RATE_PER_MINUTE"),
			LoginBurst:         v.GetInt("AUTH_LOGIN_BURST"),
		},
		Telemetry: Telemetry{
			Enabled:      v.GetBool("OTEL_ENABLED"),
			OTLPEndpoint: v.GetString("OTEL_EXPORTER_OTLP_ENDPOINT"),
			ServiceName:  v.GetString("OTEL_SERVICE_NAME"),
		},
	}
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
