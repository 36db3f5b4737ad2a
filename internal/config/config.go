package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ListenPort       string        // ex: ":8080" (API)
	WorkerListenPort string        // ex: ":8081" (worker ops surface)
	ShutdownTimeout  time.Duration // ex: 10s
	RequestTimeout   time.Duration // per-request timeout on the API router

	LogLevel  string // "debug" | "info" | "warn" | "error"
	PrettyLog bool   // true => zap dev (color), false => zap prod (JSON)

	// Database
	DatabaseURL       string        // sqlite://path | postgres://... | memory://
	DBMaxOpenConns    int           // pool size (sqlite is forced to 1 writer by the driver pragmas)
	DBMaxIdleConns    int           // idle connections kept in the pool
	DBConnMaxLifetime time.Duration // recycle connections after this long
	AutoMigrate       bool          // run migrations up on start

	// Redis
	RedisAddr             string        // ex: "localhost:6379"
	RedisUser             string        // optional
	RedisPassword         string        // optional
	RedisPasswordRequired bool          // true => require password, false => allow empty password
	RedisDB               int           // Redis DB number
	RedisDT               time.Duration // Redis dial timeout (ex: 5s)
	RedisRT               time.Duration // Redis read timeout (ex: 3s), must exceed QueuePollTimeout
	RedisWT               time.Duration // Redis write timeout (ex: 3s)
	RedisMaxWait          time.Duration // max wait between retries (ex: 10s)
	RedisPingTimeout      time.Duration // timeout for each ping attempt (ex: 5s)
	RedisPoolSize         int           // Redis connection pool size
	RedisConnectTimeout   time.Duration // Total time to retry connecting (ex: 30s)
	RedisRetryInterval    time.Duration // Initial wait between retries (ex: 2s, grows exponentially)
	RedisWarnThreshold    int           // warn after this many attempts

	// Queue / worker
	QueuePrefix       string        // key prefix for the job queue
	WorkerName        string        // identifies this worker's in-flight list (default: hostname)
	WorkerConcurrency int           // number of jobs processed in parallel
	QueuePollTimeout  time.Duration // blocking dequeue timeout
	NackDelay         time.Duration // pause after an infrastructure error before the next dequeue
	JobTimeout        time.Duration // upper bound for one job, all stages included

	// Fetcher
	FetchTimeout   time.Duration // GET timeout (default: 20s)
	FetchMaxBytes  int64         // response body cap
	FetchUserAgent string        // User-Agent header sent to fetched sites

	// AI endpoint (OpenAI chat-completion compatible)
	AIBaseURL     string
	AIAPIKey      string
	AIModel       string
	AITimeout     time.Duration
	AIMaxTokens   int
	AITemperature float32
	AIInputChars  int  // excerpt length sent to the model
	AIDefaultOn   bool // ai_enabled when the creation payload omits it

	// Maintenance schedulers
	StaleAfter      time.Duration // PROCESSING older than this is failed by the reaper
	ReaperInterval  time.Duration
	RequeueAfter    time.Duration // PENDING older than this is enqueued again
	RequeueInterval time.Duration

	// Access restrictions
	AllowedHosts          []string // optional, restrict ops routes to specific Host headers
	AllowedCIDRS          []string // optional, restrict ops routes to specific IPs/CIDRs
	TrustProxy            bool     // true => trust X-Forwarded-For headers (e.g. cloudflared)
	RateLimitBurst        int      // bookmark creation burst per client IP
	RateLimitRefillPerMin int      // bookmark creation refill per client IP per minute
}

// LoadEnvFile loads variables from a dotenv file without overriding the
// process environment. A missing file is not an error.
func LoadEnvFile(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

func Load() *Config {
	cfg := &Config{
		// Server settings
		ListenPort:       getenv("MARKS_LISTEN_PORT", ":8080"),
		WorkerListenPort: getenv("MARKS_WORKER_LISTEN_PORT", ":8081"),
		ShutdownTimeout:  mustDuration("MARKS_SHUTDOWN_TIMEOUT", 10*time.Second),
		RequestTimeout:   mustDuration("MARKS_REQUEST_TIMEOUT", 10*time.Second),

		// Logging
		LogLevel:  getenv("MARKS_LOG_LEVEL", "info"),
		PrettyLog: mustBool("MARKS_PRETTY_LOG", true),

		// Database
		DatabaseURL:       DatabaseURL(),
		DBMaxOpenConns:    getenvInt("MARKS_DB_MAX_OPEN_CONNS", 10),
		DBMaxIdleConns:    getenvInt("MARKS_DB_MAX_IDLE_CONNS", 5),
		DBConnMaxLifetime: mustDuration("MARKS_DB_CONN_MAX_LIFETIME", 30*time.Minute),
		AutoMigrate:       mustBool("MARKS_AUTO_MIGRATE", true),

		// Redis settings
		RedisAddr:             requireEnv("MARKS_REDIS_ADDR"),
		RedisUser:             getenv("MARKS_REDIS_USERNAME", "default"),
		RedisPasswordRequired: mustBool("MARKS_REDIS_PASSWORD_REQUIRED", true),
		RedisPassword:         getenv("MARKS_REDIS_PASSWORD", ""),
		RedisDB:               getenvInt("MARKS_REDIS_DB", 0),
		RedisDT:               mustDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
		RedisRT:               mustDuration("REDIS_READ_TIMEOUT", 10*time.Second),
		RedisWT:               mustDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		RedisMaxWait:          mustDuration("REDIS_MAX_WAIT", 10*time.Second),
		RedisPingTimeout:      mustDuration("REDIS_PING_TIMEOUT", 5*time.Second),
		RedisPoolSize:         getenvInt("REDIS_POOL_SIZE", 10),
		RedisConnectTimeout:   mustDuration("REDIS_CONNECT_TIMEOUT", 30*time.Second),
		RedisRetryInterval:    mustDuration("REDIS_RETRY_INTERVAL", 2*time.Second),
		RedisWarnThreshold:    getenvInt("REDIS_WARN_THRESHOLD", 3),

		// Queue / worker
		QueuePrefix:       getenv("MARKS_QUEUE_PREFIX", "marks:queue"),
		WorkerName:        getenv("MARKS_WORKER_NAME", defaultWorkerName()),
		WorkerConcurrency: getenvInt("MARKS_WORKER_CONCURRENCY", 4),
		QueuePollTimeout:  mustDuration("MARKS_QUEUE_POLL_TIMEOUT", 5*time.Second),
		NackDelay:         mustDuration("MARKS_NACK_DELAY", 2*time.Second),
		JobTimeout:        mustDuration("MARKS_JOB_TIMEOUT", 3*time.Minute),

		// Fetcher
		FetchTimeout:   mustDuration("MARKS_FETCH_TIMEOUT", 20*time.Second),
		FetchMaxBytes:  int64(getenvInt("MARKS_FETCH_MAX_BYTES", 5<<20)),
		FetchUserAgent: getenv("MARKS_FETCH_USER_AGENT", "marks-enricher/1.0 (+https://github.com/MrSnakeDoc/marks)"),

		// AI
		AIBaseURL:     getenv("MARKS_AI_BASE_URL", "https://api.openai.com/v1"),
		AIAPIKey:      getenv("MARKS_AI_API_KEY", ""),
		AIModel:       getenv("MARKS_AI_MODEL", "gpt-4o-mini"),
		AITimeout:     mustDuration("MARKS_AI_TIMEOUT", 60*time.Second),
		AIMaxTokens:   getenvInt("MARKS_AI_MAX_TOKENS", 4096),
		AITemperature: mustFloat32("MARKS_AI_TEMPERATURE", 0.3),
		AIInputChars:  getenvInt("MARKS_AI_INPUT_CHARS", 10000),
		AIDefaultOn:   mustBool("MARKS_AI_DEFAULT_ENABLED", true),

		// Schedulers
		StaleAfter:      mustDuration("MARKS_STALE_AFTER", 15*time.Minute),
		ReaperInterval:  mustDuration("MARKS_REAPER_INTERVAL", 5*time.Minute),
		RequeueAfter:    mustDuration("MARKS_REQUEUE_AFTER", 10*time.Minute),
		RequeueInterval: mustDuration("MARKS_REQUEUE_INTERVAL", 5*time.Minute),

		// Access restrictions
		AllowedHosts:          splitAndTrim(getenv("MARKS_ALLOWED_HOSTS", "")),
		AllowedCIDRS:          parseAllowedIPs(getenv("MARKS_ALLOWED_CIDRS", "")),
		TrustProxy:            mustBool("MARKS_TRUST_PROXY", false),
		RateLimitBurst:        getenvInt("MARKS_RATE_LIMIT_BURST", 20),
		RateLimitRefillPerMin: getenvInt("MARKS_RATE_LIMIT_REFILL_PER_MIN", 60),
	}

	// Validate Redis password configuration
	if cfg.RedisPasswordRequired && cfg.RedisPassword == "" {
		panic("❌ FATAL: MARKS_REDIS_PASSWORD is required when MARKS_REDIS_PASSWORD_REQUIRED=true")
	}

	if cfg.WorkerConcurrency < 1 {
		cfg.WorkerConcurrency = 1
	}

	// Log config only in debug mode with redacted sensitive fields
	if cfg.LogLevel == "debug" {
		log.Printf("[DEBUG] cfg: %+v\n", cfg.Redacted())
	}

	return cfg
}

// DatabaseURL reads MARKS_DATABASE_URL alone, for commands that only touch
// the database.
func DatabaseURL() string {
	return getenv("MARKS_DATABASE_URL", "sqlite://./marks.db")
}

// RequireAI validates the settings needed by processes that run the enrichment worker.
func (c *Config) RequireAI() error {
	if c.AIAPIKey == "" {
		return errors.New("MARKS_AI_API_KEY is required to run the worker")
	}
	if c.AIModel == "" {
		return errors.New("MARKS_AI_MODEL must not be empty")
	}
	if c.AIInputChars <= 0 {
		return fmt.Errorf("MARKS_AI_INPUT_CHARS must be > 0, got %d", c.AIInputChars)
	}
	if c.RedisRT > 0 && c.RedisRT <= c.QueuePollTimeout {
		return fmt.Errorf("REDIS_READ_TIMEOUT (%v) must exceed MARKS_QUEUE_POLL_TIMEOUT (%v)", c.RedisRT, c.QueuePollTimeout)
	}
	return nil
}

// Redacted returns a copy safe to log.
func (c *Config) Redacted() Config {
	cfgCopy := *c
	cfgCopy.RedisPassword = "***REDACTED***"
	if c.RedisUser != "" {
		cfgCopy.RedisUser = "***REDACTED***"
	}
	if c.AIAPIKey != "" {
		cfgCopy.AIAPIKey = "***REDACTED***"
	}
	cfgCopy.DatabaseURL = redactURL(c.DatabaseURL)
	return cfgCopy
}

// helpers
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func requireEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		panic(fmt.Sprintf("❌ FATAL: Required environment variable %s is not set", key))
	}
	return v
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func mustBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func mustDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func mustFloat32(key string, def float32) float32 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 32); err == nil {
			return float32(f)
		}
	}
	return def
}

func defaultWorkerName() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		return "worker"
	}
	return host
}

func parseAllowedIPs(allowed string) []string {
	if allowed == "" {
		return nil
	}
	ips := make([]string, 0, 4)
	for _, ip := range splitAndTrim(allowed) {
		if ip != "" {
			ips = append(ips, ip)
		}
	}
	return ips
}

func splitAndTrim(s string) []string {
	if s == "" {
		return nil
	}
	raw := strings.Split(s, ",")
	parts := make([]string, 0, len(raw))
	for _, part := range raw {
		trimmed := strings.TrimSpace(part)
		// Remove surrounding quotes if present
		trimmed = strings.Trim(trimmed, `"'`)
		if trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}

// redactURL hides the password part of a DSN ("postgres://u:p@h/db" -> "postgres://u:***@h/db").
func redactURL(raw string) string {
	schemeEnd := strings.Index(raw, "://")
	at := strings.LastIndex(raw, "@")
	if schemeEnd < 0 || at < schemeEnd {
		return raw
	}
	userInfo := raw[schemeEnd+3 : at]
	if i := strings.Index(userInfo, ":"); i >= 0 {
		return raw[:schemeEnd+3] + userInfo[:i] + ":***" + raw[at:]
	}
	return raw
}
