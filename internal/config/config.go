package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// T0 reset policies. "always" moves the T0 window boundary on every recorded
// bid change; "material" ignores changes smaller than T0MaterialChange.
const (
	T0ResetAlways   = "always"
	T0ResetMaterial = "material"
)

// Config holds application configuration derived from environment variables.
type Config struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	RedisAddr     string
	ClickHouseDSN string
	PostgresDSN   string

	ServiceName string

	// Engine tuning
	MinWindowClicks   int64
	CooldownDays      int
	KeywordBandAbs    float64 // acceptance band around target, absolute (0.03 = 3pp)
	PlacementBandRel  float64 // acceptance band around target, relative (0.10 = 10%)
	MaxIncreasePct    float64 // cap on upward bid/adjustment moves
	BidMinRatio       float64 // keyword floor as fraction of current bid
	BidMaxRatio       float64 // keyword ceiling as fraction of current bid (1.5 or 2.0 by profile)
	BidAbsoluteMin    float64
	MaxAdjustmentPct  float64 // placement adjustment ceiling in points
	WorkerPoolSize    int
	T0ResetPolicy     string
	T0MaterialChange  float64 // minimum relative change for the "material" policy
	RunLockTTL        time.Duration
	WriteRetryBackoff time.Duration

	// Scheduled batch
	BatchCountries []string
	BatchInterval  time.Duration

	// Database connection pooling configuration
	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxLifetime time.Duration
	DBConnMaxIdleTime time.Duration

	// ClickHouse connection pooling configuration
	CHMaxOpenConns int

	// Tracing configuration
	TracingEnabled    bool
	TempoEndpoint     string
	TracingSampleRate float64
}

// Load parses environment variables and returns a Config populated with
// defaults when variables are absent.
func Load() Config {
	cfg := Config{}

	cfg.Port = getenv("PORT", "8788")
	cfg.ReadTimeout = envDuration("READ_TIMEOUT", 5*time.Second)
	cfg.WriteTimeout = envDuration("WRITE_TIMEOUT", 30*time.Second)
	cfg.RedisAddr = getenv("REDIS_ADDR", "localhost:6379")
	cfg.ClickHouseDSN = getenv("CLICKHOUSE_DSN", "clickhouse://default:@localhost:9000/default")
	cfg.PostgresDSN = getenv("POSTGRES_DSN", "postgres://postgres@127.0.0.1:5432/postgres?sslmode=disable")
	cfg.ServiceName = getenv("SERVICE_NAME", "openbidtuner")

	// Engine tuning defaults match the hosted profile.
	cfg.MinWindowClicks = int64(envInt("MIN_WINDOW_CLICKS", 30))
	cfg.CooldownDays = envInt("COOLDOWN_DAYS", 14)
	cfg.KeywordBandAbs = envFloat("KEYWORD_BAND_ABS", 0.03)
	cfg.PlacementBandRel = envFloat("PLACEMENT_BAND_REL", 0.10)
	cfg.MaxIncreasePct = envFloat("MAX_INCREASE_PCT", 0.25)
	cfg.BidMinRatio = envFloat("BID_MIN_RATIO", 0.20)
	// The legacy profile allowed 2.0; the default profile caps at 1.5.
	cfg.BidMaxRatio = envFloat("BID_MAX_RATIO", 1.5)
	cfg.BidAbsoluteMin = envFloat("BID_ABSOLUTE_MIN", 0.02)
	cfg.MaxAdjustmentPct = envFloat("MAX_ADJUSTMENT_PCT", 900)
	cfg.WorkerPoolSize = envInt("WORKER_POOL_SIZE", 8)
	cfg.T0ResetPolicy = getenv("T0_RESET_POLICY", T0ResetAlways)
	cfg.T0MaterialChange = envFloat("T0_MATERIAL_CHANGE_PCT", 0.05)
	cfg.RunLockTTL = envDuration("RUN_LOCK_TTL", 15*time.Minute)
	cfg.WriteRetryBackoff = envDuration("WRITE_RETRY_BACKOFF", 500*time.Millisecond)

	cfg.BatchCountries = envList("BATCH_COUNTRIES", nil)
	// zero disables the scheduled batch loop
	cfg.BatchInterval = envDuration("BATCH_INTERVAL", 24*time.Hour)

	// Database connection pooling configuration
	cfg.DBMaxOpenConns = envInt("DB_MAX_OPEN_CONNS", 25)
	cfg.DBMaxIdleConns = envInt("DB_MAX_IDLE_CONNS", 5)
	cfg.DBConnMaxLifetime = envDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute)
	cfg.DBConnMaxIdleTime = envDuration("DB_CONN_MAX_IDLE_TIME", 1*time.Minute)

	cfg.CHMaxOpenConns = envInt("CH_MAX_OPEN_CONNS", 25)

	// Tracing configuration
	cfg.TracingEnabled = envBool("TRACING_ENABLED", false)
	cfg.TempoEndpoint = getenv("TEMPO_ENDPOINT", "tempo:4317")
	cfg.TracingSampleRate = envFloat("TRACING_SAMPLE_RATE", 1.0)

	return cfg
}

// getenv returns the value of the environment variable if set, otherwise def.
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// envDuration parses an environment variable into a time.Duration.
// The value can be a duration string (e.g. "5s") or a number of seconds.
// If the variable is unset or invalid, def is returned.
func envDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	return def
}

// envBool parses a boolean environment variable. Accepted values are those
// supported by strconv.ParseBool. When unset or invalid, def is returned.
func envBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if b, err := strconv.ParseBool(v); err == nil {
		return b
	}
	return def
}

// envInt parses an integer environment variable. When unset or invalid, def is returned.
func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if i, err := strconv.Atoi(v); err == nil {
		return i
	}
	return def
}

// envFloat parses a float64 environment variable. When unset or invalid, def is returned.
func envFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return f
	}
	return def
}

// envList parses a comma-separated environment variable, trimming whitespace
// and dropping empty elements. When unset or empty, def is returned.
func envList(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
