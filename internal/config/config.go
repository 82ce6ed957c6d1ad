package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	CacheBackendInMemory  = "in_memory"
	CacheBackendMemcached = "memcached"

	EmailBackendLog  = "log"
	EmailBackendSMTP = "smtp"
)

// Config holds service configuration loaded from YAML and env.
type Config struct {
	ServerPort string

	ExchangeAPIURL     string
	ExchangeAPITimeout time.Duration
	ShippingAPIURL     string
	ShippingAPITimeout time.Duration
	PaymentAPIURL      string
	PaymentAPIKey      string
	PaymentAPITimeout  time.Duration

	RequestTimeout  time.Duration
	CacheTTL        time.Duration
	CacheBackend    string // "in_memory" or "memcached"
	CoalesceTimeout time.Duration

	MemcachedAddrs        string
	MemcachedTimeout      time.Duration
	MemcachedMaxIdleConns int

	WarmBaseCurrency string
	WarmCurrencies   []string
	WarmInterval     time.Duration

	RetryAttempts  int
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration
	RateLimitRPS   int
	RateLimitBurst int

	CircuitBreakerEnabled          bool
	CircuitBreakerFailureThreshold int
	CircuitBreakerSuccessThreshold int
	CircuitBreakerTimeout          time.Duration

	ShutdownTimeout time.Duration

	OverloadWindow       time.Duration
	OverloadThresholdPct int
	DegradedWindow       time.Duration
	DegradedErrorPct     int

	EmailBackend string // "log" or "smtp"
	EmailFrom    string
	SMTPAddr     string
	SMTPUsername string
	SMTPPassword string
}

type fileConfig struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`

	ExchangeAPI upstreamConfig `yaml:"exchange_api"`
	ShippingAPI upstreamConfig `yaml:"shipping_api"`
	PaymentAPI  upstreamConfig `yaml:"payment_api"`

	Request struct {
		Timeout string `yaml:"timeout"`
	} `yaml:"request"`

	Cache struct {
		Backend         string `yaml:"backend"`
		TTL             string `yaml:"ttl"`
		CoalesceTimeout string `yaml:"coalesce_timeout"`
		Memcached       struct {
			Addrs        string `yaml:"addrs"`
			Timeout      string `yaml:"timeout"`
			MaxIdleConns int    `yaml:"max_idle_conns"`
		} `yaml:"memcached"`
		Warm struct {
			Base       string   `yaml:"base"`
			Currencies []string `yaml:"currencies"`
			Interval   string   `yaml:"interval"`
		} `yaml:"warm"`
	} `yaml:"cache"`

	Reliability struct {
		RetryMaxAttempts int    `yaml:"retry_max_attempts"`
		RetryBaseDelay   string `yaml:"retry_base_delay"`
		RetryMaxDelay    string `yaml:"retry_max_delay"`
		RateLimitRPS     int    `yaml:"rate_limit_rps"`
		RateLimitBurst   int    `yaml:"rate_limit_burst"`
		CircuitBreaker   struct {
			Enabled          *bool  `yaml:"enabled"`
			FailureThreshold int    `yaml:"failure_threshold"`
			SuccessThreshold int    `yaml:"success_threshold"`
			Timeout          string `yaml:"timeout"`
		} `yaml:"circuit_breaker"`
	} `yaml:"reliability"`

	Shutdown struct {
		Timeout string `yaml:"timeout"`
	} `yaml:"shutdown"`

	Health struct {
		OverloadWindow       string `yaml:"overload_window"`
		OverloadThresholdPct int    `yaml:"overload_threshold_pct"`
		DegradedWindow       string `yaml:"degraded_window"`
		DegradedErrorPct     int    `yaml:"degraded_error_pct"`
	} `yaml:"health"`

	Email struct {
		Backend string `yaml:"backend"`
		From    string `yaml:"from"`
		SMTP    struct {
			Addr     string `yaml:"addr"`
			Username string `yaml:"username"`
		} `yaml:"smtp"`
	} `yaml:"email"`
}

type upstreamConfig struct {
	URL     string `yaml:"url"`
	Timeout string `yaml:"timeout"`
}

type secretsFile struct {
	PaymentAPIKey string `yaml:"payment_api_key"`
	SMTPPassword  string `yaml:"smtp_password"`
}

// Load reads configuration from config/{ENV_NAME}.yaml (default dev) and config/secrets.yaml.
// The payment API key comes from PAYMENT_API_KEY env or the secrets file. Call from project root.
func Load() (*Config, error) {
	env := os.Getenv("ENV_NAME")
	if env == "" {
		env = "dev"
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("config: get working directory: %w", err)
	}
	configPath := filepath.Join(cwd, "config", env+".yaml")
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", configPath)
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	sec, err := loadSecrets(filepath.Join(cwd, "config", "secrets.yaml"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	cfg.ServerPort = fc.Server.Port
	if cfg.ServerPort == "" {
		cfg.ServerPort = "8080"
	}

	cfg.PaymentAPIKey = os.Getenv("PAYMENT_API_KEY")
	if cfg.PaymentAPIKey == "" {
		cfg.PaymentAPIKey = sec.PaymentAPIKey
	}
	if cfg.PaymentAPIKey == "" {
		return nil, fmt.Errorf("PAYMENT_API_KEY required (set env or config/secrets.yaml payment_api_key)")
	}

	cfg.ExchangeAPIURL = envOr("EXCHANGE_API_URL", fc.ExchangeAPI.URL, "http://localhost:9001/rates")
	cfg.ExchangeAPITimeout = parseDurationOrZero(fc.ExchangeAPI.Timeout, 2*time.Second)
	cfg.ShippingAPIURL = envOr("SHIPPING_API_URL", fc.ShippingAPI.URL, "http://localhost:9002/quotes")
	cfg.ShippingAPITimeout = parseDurationOrZero(fc.ShippingAPI.Timeout, 2*time.Second)
	cfg.PaymentAPIURL = envOr("PAYMENT_API_URL", fc.PaymentAPI.URL, "http://localhost:9003")
	cfg.PaymentAPITimeout = parseDurationOrZero(fc.PaymentAPI.Timeout, 3*time.Second)

	cfg.RequestTimeout = parseDuration(fc.Request.Timeout, 5*time.Second)
	cfg.CacheTTL = parseDuration(fc.Cache.TTL, 5*time.Minute)
	cfg.CoalesceTimeout = parseDurationOrZero(fc.Cache.CoalesceTimeout, 5*time.Second)
	cfg.CacheBackend = strings.TrimSpace(strings.ToLower(os.Getenv("CACHE_BACKEND")))
	if cfg.CacheBackend == "" {
		cfg.CacheBackend = strings.TrimSpace(strings.ToLower(fc.Cache.Backend))
	}
	if cfg.CacheBackend == "" {
		cfg.CacheBackend = CacheBackendInMemory
	}
	cfg.MemcachedAddrs = envOr("MEMCACHED_ADDRS", fc.Cache.Memcached.Addrs, "localhost:11211")
	cfg.MemcachedTimeout = parseDuration(fc.Cache.Memcached.Timeout, 500*time.Millisecond)
	cfg.MemcachedMaxIdleConns = fc.Cache.Memcached.MaxIdleConns
	if cfg.MemcachedMaxIdleConns <= 0 {
		cfg.MemcachedMaxIdleConns = 2
	}

	cfg.WarmBaseCurrency = strings.ToUpper(strings.TrimSpace(fc.Cache.Warm.Base))
	if cfg.WarmBaseCurrency == "" {
		cfg.WarmBaseCurrency = "USD"
	}
	for _, c := range fc.Cache.Warm.Currencies {
		if c = strings.ToUpper(strings.TrimSpace(c)); c != "" {
			cfg.WarmCurrencies = append(cfg.WarmCurrencies, c)
		}
	}
	cfg.WarmInterval = parseDurationOrZero(fc.Cache.Warm.Interval, 0)

	cfg.RetryAttempts = fc.Reliability.RetryMaxAttempts
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = 3
	}
	cfg.RetryBaseDelay = parseDuration(fc.Reliability.RetryBaseDelay, 100*time.Millisecond)
	cfg.RetryMaxDelay = parseDuration(fc.Reliability.RetryMaxDelay, 2*time.Second)
	cfg.RateLimitRPS = fc.Reliability.RateLimitRPS
	if cfg.RateLimitRPS <= 0 {
		cfg.RateLimitRPS = 100
	}
	cfg.RateLimitBurst = fc.Reliability.RateLimitBurst
	if cfg.RateLimitBurst <= 0 {
		cfg.RateLimitBurst = 250
	}

	cb := fc.Reliability.CircuitBreaker
	cfg.CircuitBreakerEnabled = true
	if cb.Enabled != nil {
		cfg.CircuitBreakerEnabled = *cb.Enabled
	}
	cfg.CircuitBreakerFailureThreshold = cb.FailureThreshold
	if cfg.CircuitBreakerFailureThreshold <= 0 {
		cfg.CircuitBreakerFailureThreshold = 5
	}
	cfg.CircuitBreakerSuccessThreshold = cb.SuccessThreshold
	if cfg.CircuitBreakerSuccessThreshold <= 0 {
		cfg.CircuitBreakerSuccessThreshold = 2
	}
	cfg.CircuitBreakerTimeout = parseDuration(cb.Timeout, 30*time.Second)

	cfg.ShutdownTimeout = parseDuration(fc.Shutdown.Timeout, 30*time.Second)

	cfg.OverloadWindow = parseDuration(fc.Health.OverloadWindow, 60*time.Second)
	cfg.OverloadThresholdPct = fc.Health.OverloadThresholdPct
	if cfg.OverloadThresholdPct <= 0 {
		cfg.OverloadThresholdPct = 80
	}
	cfg.DegradedWindow = parseDuration(fc.Health.DegradedWindow, 60*time.Second)
	cfg.DegradedErrorPct = fc.Health.DegradedErrorPct
	if cfg.DegradedErrorPct <= 0 {
		cfg.DegradedErrorPct = 5
	}

	cfg.EmailBackend = strings.TrimSpace(strings.ToLower(envOr("EMAIL_BACKEND", fc.Email.Backend, EmailBackendLog)))
	cfg.EmailFrom = fc.Email.From
	if cfg.EmailFrom == "" {
		cfg.EmailFrom = "no-reply@storefront.local"
	}
	cfg.SMTPAddr = envOr("SMTP_ADDR", fc.Email.SMTP.Addr, "")
	cfg.SMTPUsername = fc.Email.SMTP.Username
	cfg.SMTPPassword = os.Getenv("SMTP_PASSWORD")
	if cfg.SMTPPassword == "" {
		cfg.SMTPPassword = sec.SMTPPassword
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadSecrets(path string) (secretsFile, error) {
	var sec secretsFile
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return sec, nil
		}
		return sec, fmt.Errorf("read secrets file: %w", err)
	}
	if err := yaml.Unmarshal(data, &sec); err != nil {
		return sec, fmt.Errorf("parse secrets file: %w", err)
	}
	return sec, nil
}

// envOr returns the trimmed env var key, else fileVal, else def.
func envOr(key, fileVal, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	if v := strings.TrimSpace(fileVal); v != "" {
		return v
	}
	return def
}

// parseDuration parses a duration string and returns defaultVal if parsing fails or result is <= 0.
func parseDuration(s string, defaultVal time.Duration) time.Duration {
	d := parseDurationOrZero(s, defaultVal)
	if d <= 0 {
		return defaultVal
	}
	return d
}

// parseDurationOrZero parses a duration string, returning defaultVal on empty string or parse error.
// Returns zero or negative durations as-is (caller should handle fallback).
func parseDurationOrZero(s string, defaultVal time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return defaultVal
	}
	return d
}

// validate checks upstream timeouts are positive and backends are known.
// RequestTimeout is raised above the slowest upstream timeout if needed.
func validate(cfg *Config) error {
	upstreams := []struct {
		name    string
		timeout time.Duration
	}{
		{"exchange_api.timeout", cfg.ExchangeAPITimeout},
		{"shipping_api.timeout", cfg.ShippingAPITimeout},
		{"payment_api.timeout", cfg.PaymentAPITimeout},
	}
	var slowest time.Duration
	for _, u := range upstreams {
		if u.timeout <= 0 {
			return fmt.Errorf("%s must be positive", u.name)
		}
		if u.timeout > slowest {
			slowest = u.timeout
		}
	}
	if cfg.RequestTimeout <= slowest {
		cfg.RequestTimeout = slowest + time.Second
	}

	switch cfg.CacheBackend {
	case CacheBackendInMemory, CacheBackendMemcached:
	default:
		return fmt.Errorf("cache.backend must be in_memory or memcached, got %q", cfg.CacheBackend)
	}

	switch cfg.EmailBackend {
	case EmailBackendLog:
	case EmailBackendSMTP:
		if cfg.SMTPAddr == "" {
			return fmt.Errorf("email.smtp.addr required when email.backend is smtp")
		}
	default:
		return fmt.Errorf("email.backend must be log or smtp, got %q", cfg.EmailBackend)
	}
	return nil
}
