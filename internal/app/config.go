package app

import "time"

// Config contains all runtime configuration loaded from environment variables.
type Config struct {
	HTTPAddr string
	LogLevel string

	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int

	DatabaseURL string
	DBSchema    string
	DBMaxConns  int32
	DBMinConns  int32

	// Session lifetime and how often expired entries are swept out of the
	// live registry. Expiry itself is enforced on every validation; the
	// sweeper only reclaims memory.
	SessionTTL           time.Duration
	SessionSweepInterval time.Duration

	// If true, /readyz returns 503 unless the database is configured and
	// reachable.
	ReadinessRequireDB bool

	// Optional bootstrap admin account, created at startup when it does not
	// exist yet. Useful for dev mode and first deployments.
	AdminUsername string
	AdminPassword string
}

// LoadConfig loads Config from environment variables with defaults.
func LoadConfig() Config {
	return Config{
		HTTPAddr: EnvString("CHATD_HTTP_ADDR", "0.0.0.0:8080"),
		LogLevel: EnvString("CHATD_LOG_LEVEL", "info"),

		ReadHeaderTimeout: EnvDuration("CHATD_HTTP_READ_HEADER_TIMEOUT", 5*time.Second),
		ReadTimeout:       EnvDuration("CHATD_HTTP_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:      EnvDuration("CHATD_HTTP_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:       EnvDuration("CHATD_HTTP_IDLE_TIMEOUT", 60*time.Second),

		MaxHeaderBytes: EnvInt("CHATD_HTTP_MAX_HEADER_BYTES", 1<<20),

		DatabaseURL: EnvString("CHATD_DATABASE_URL", ""),
		DBSchema:    EnvString("CHATD_DB_SCHEMA", "chat"),
		DBMaxConns:  EnvInt32("CHATD_DB_MAX_CONNS", 10),
		DBMinConns:  EnvInt32("CHATD_DB_MIN_CONNS", 0),

		SessionTTL:           EnvDuration("CHATD_SESSION_TTL", 24*time.Hour),
		SessionSweepInterval: EnvDuration("CHATD_SESSION_SWEEP_INTERVAL", 5*time.Minute),

		ReadinessRequireDB: EnvBool("CHATD_READINESS_REQUIRE_DB", false),

		AdminUsername: EnvString("CHATD_ADMIN_USERNAME", ""),
		AdminPassword: EnvString("CHATD_ADMIN_PASSWORD", ""),
	}
}
