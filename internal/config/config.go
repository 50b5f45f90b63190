package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/samber/lo"
)

// Mode is the running mode reported in alerts.
type Mode string

const (
	ModeDebug   Mode = "debug"
	ModeTest    Mode = "test"
	ModeRelease Mode = "release"
)

type Config struct {
	Mode            Mode          // "debug" | "test" | "release"
	ListenPort      string        // ex: ":8080"
	ShutdownTimeout time.Duration // ex: 10s
	AdminToken      string        // optional, protects /reload and /subscription (empty = open)
	RunOnStart      bool          // run interval jobs once at startup
	AdminCIDRs      []string      // optional, restricts the admin routes (e.g. "10.0.0.0/8, 127.0.0.1")
	TrustProxy      bool          // true => client IP taken from forwarding headers

	LogLevel  string // "debug" | "info" | "warn" | "error"
	PrettyLog bool   // true => zap dev (color), false => zap prod (JSON)

	// Outbound HTTP pool
	HTTPTimeout         time.Duration // total timeout per call (default: 30s)
	HTTPMaxConnsPerHost int           // per-host connection cap (default: 3)
	HTTPKeepAlive       time.Duration // idle keep-alive (default: 15s)
	HTTPProxy           string        // optional upstream proxy: http://, https:// or socks5://

	// Subscription refresh
	SubscriptionURL       string        // upstream clash subscription
	SubscriptionUserAgent string        // some providers only answer YAML to clash user agents
	SubscriptionInterval  time.Duration // default: 10m
	TemplateFile          string        // base template written by the template job
	OutputFile            string        // optional merged output file (empty = redis only)

	// Template refresh (converter)
	ConverterHost     string        // subconverter endpoint (empty = template job disabled)
	ConverterURL      string        // "url" parameter forwarded to the converter
	ConverterConfig   string        // "config" parameter forwarded to the converter
	ConverterInsecure bool          // skip TLS verification for the converter
	TemplateInterval  time.Duration // default: 360h (15 days)

	// Daily check-in (empty airport = disabled)
	AirportURL      string
	AirportEmail    string
	AirportPassword string
	CheckinHour     int
	CheckinMinute   int

	// Alerting (empty = log only)
	WecomWebhook string

	// Redis
	RedisAddr           string        // ex: "localhost:6379"
	RedisUser           string        // optional
	RedisPassword       string        // optional
	RedisDB             int           // Redis DB number
	RedisDT             time.Duration // Redis dial timeout (ex: 5s)
	RedisRT             time.Duration // Redis read timeout (ex: 3s)
	RedisWT             time.Duration // Redis write timeout (ex: 3s)
	RedisMaxWait        time.Duration // max wait between retries (ex: 10s)
	RedisPingTimeout    time.Duration // timeout for each ping attempt (ex: 5s)
	RedisPoolSize       int           // Redis connection pool size
	RedisConnectTimeout time.Duration // Total time to retry connecting (ex: 30s)
	RedisRetryInterval  time.Duration // Initial wait between retries (ex: 2s, grows exponentially)
	RedisWarnThreshold  int           // warn after this many attempts
}

// Load reads the configuration from the environment. A .env file in the
// working directory is loaded first when present; real environment wins.
func Load() *Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("[WARN] failed to load .env: %v", err)
	}

	checkinHour, checkinMinute := mustClock("ESCHED_CHECKIN_AT", "00:10")

	cfg := &Config{
		Mode:            mustMode("ESCHED_MODE", ModeRelease),
		ListenPort:      getenv("ESCHED_LISTEN_PORT", ":8080"),
		ShutdownTimeout: mustDuration("ESCHED_SHUTDOWN_TIMEOUT", 10*time.Second),
		AdminToken:      getenv("ESCHED_ADMIN_TOKEN", ""),
		RunOnStart:      mustBool("ESCHED_RUN_ON_START", true),
		AdminCIDRs:      splitList(getenv("ESCHED_ADMIN_CIDRS", "")),
		TrustProxy:      mustBool("ESCHED_TRUST_PROXY", false),

		LogLevel:  getenv("ESCHED_LOG_LEVEL", "info"),
		PrettyLog: mustBool("ESCHED_PRETTY_LOG", false),

		HTTPTimeout:         mustDuration("ESCHED_HTTP_TIMEOUT", 30*time.Second),
		HTTPMaxConnsPerHost: getenvInt("ESCHED_HTTP_MAX_CONNS_PER_HOST", 3),
		HTTPKeepAlive:       mustDuration("ESCHED_HTTP_KEEPALIVE", 15*time.Second),
		HTTPProxy:           getenv("ESCHED_HTTP_PROXY", ""),

		SubscriptionURL:       requireEnv("ESCHED_SUBSCRIPTION_URL"),
		SubscriptionUserAgent: getenv("ESCHED_SUBSCRIPTION_USER_AGENT", "clash-verge/v1.7.7"),
		SubscriptionInterval:  mustDuration("ESCHED_SUBSCRIPTION_INTERVAL", 10*time.Minute),
		TemplateFile:          getenv("ESCHED_TEMPLATE_FILE", "config/clash.yaml"),
		OutputFile:            getenv("ESCHED_OUTPUT_FILE", ""),

		ConverterHost:     getenv("ESCHED_CONVERTER_HOST", ""),
		ConverterURL:      getenv("ESCHED_CONVERTER_URL", ""),
		ConverterConfig:   getenv("ESCHED_CONVERTER_CONFIG", ""),
		ConverterInsecure: mustBool("ESCHED_CONVERTER_INSECURE", true),
		TemplateInterval:  mustDuration("ESCHED_TEMPLATE_INTERVAL", 15*24*time.Hour),

		AirportURL:      strings.TrimSuffix(getenv("ESCHED_AIRPORT_URL", ""), "/"),
		AirportEmail:    getenv("ESCHED_AIRPORT_EMAIL", ""),
		AirportPassword: getenv("ESCHED_AIRPORT_PASSWORD", ""),
		CheckinHour:     checkinHour,
		CheckinMinute:   checkinMinute,

		WecomWebhook: getenv("ESCHED_WECOM_WEBHOOK", ""),

		RedisAddr:           requireEnv("ESCHED_REDIS_ADDR"),
		RedisUser:           getenv("ESCHED_REDIS_USERNAME", ""),
		RedisPassword:       getenv("ESCHED_REDIS_PASSWORD", ""),
		RedisDB:             getenvInt("ESCHED_REDIS_DB", 0),
		RedisDT:             mustDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
		RedisRT:             mustDuration("REDIS_READ_TIMEOUT", 3*time.Second),
		RedisWT:             mustDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		RedisMaxWait:        mustDuration("REDIS_MAX_WAIT", 10*time.Second),
		RedisPingTimeout:    mustDuration("REDIS_PING_TIMEOUT", 5*time.Second),
		RedisPoolSize:       getenvInt("REDIS_POOL_SIZE", 10),
		RedisConnectTimeout: mustDuration("REDIS_CONNECT_TIMEOUT", 30*time.Second),
		RedisRetryInterval:  mustDuration("REDIS_RETRY_INTERVAL", 2*time.Second),
		RedisWarnThreshold:  getenvInt("REDIS_WARN_THRESHOLD", 3),
	}

	if err := cfg.validate(); err != nil {
		panic(fmt.Sprintf("❌ FATAL: %v", err))
	}

	if cfg.LogLevel == "debug" {
		cfgCopy := *cfg
		cfgCopy.RedisPassword = redact(cfg.RedisPassword)
		cfgCopy.AirportPassword = redact(cfg.AirportPassword)
		cfgCopy.AdminToken = redact(cfg.AdminToken)
		cfgCopy.WecomWebhook = redact(cfg.WecomWebhook)
		log.Printf("[DEBUG] cfg: %+v\n", cfgCopy)
	}

	return cfg
}

// CheckinEnabled reports whether the daily check-in job has credentials.
func (c *Config) CheckinEnabled() bool {
	return c.AirportURL != "" && c.AirportEmail != ""
}

// TemplateEnabled reports whether the template job can reach a converter.
func (c *Config) TemplateEnabled() bool {
	return c.ConverterHost != ""
}

func (c *Config) validate() error {
	// The merged output must never overwrite the base template it was built from.
	if c.OutputFile != "" && samePath(c.OutputFile, c.TemplateFile) {
		return fmt.Errorf("ESCHED_OUTPUT_FILE must differ from ESCHED_TEMPLATE_FILE (%s)", c.TemplateFile)
	}
	if c.TemplateEnabled() && (c.ConverterURL == "" || c.ConverterConfig == "") {
		return fmt.Errorf("ESCHED_CONVERTER_URL and ESCHED_CONVERTER_CONFIG are required when ESCHED_CONVERTER_HOST is set")
	}
	if c.AirportURL != "" && c.AirportPassword == "" {
		return fmt.Errorf("ESCHED_AIRPORT_PASSWORD is required when ESCHED_AIRPORT_URL is set")
	}
	if c.HTTPMaxConnsPerHost <= 0 {
		return fmt.Errorf("ESCHED_HTTP_MAX_CONNS_PER_HOST must be > 0, got %d", c.HTTPMaxConnsPerHost)
	}
	if c.SubscriptionInterval <= 0 || c.TemplateInterval <= 0 {
		return fmt.Errorf("job intervals must be > 0")
	}
	return nil
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

func mustMode(key string, def Mode) Mode {
	v := Mode(strings.ToLower(getenv(key, string(def))))
	switch v {
	case ModeDebug, ModeTest, ModeRelease:
		return v
	default:
		panic(fmt.Sprintf("❌ FATAL: Invalid mode for %s: %s", key, v))
	}
}

// mustClock parses an "HH:MM" wall-clock value.
func mustClock(key, def string) (int, int) {
	v := getenv(key, def)
	t, err := time.Parse("15:04", v)
	if err != nil {
		panic(fmt.Sprintf("❌ FATAL: Invalid clock value for %s: %s", key, v))
	}
	return t.Hour(), t.Minute()
}

// splitList splits a comma separated value, dropping blanks and quotes.
func splitList(s string) []string {
	if s == "" {
		return nil
	}
	return lo.Compact(lo.Map(strings.Split(s, ","), func(part string, _ int) string {
		return strings.Trim(strings.TrimSpace(part), `"'`)
	}))
}

func samePath(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	if errA != nil || errB != nil {
		return filepath.Clean(a) == filepath.Clean(b)
	}
	return absA == absB
}

func redact(s string) string {
	if s == "" {
		return ""
	}
	return "***REDACTED***"
}
