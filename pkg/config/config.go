// Package config loads job-site-monitor configuration from YAML, the
// environment and the OS keyring.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/job-site-monitor/pkg/cache"
	"github.com/Sternrassler/job-site-monitor/pkg/client"
	"github.com/Sternrassler/job-site-monitor/pkg/estimator"
	"github.com/Sternrassler/job-site-monitor/pkg/logging"
	"github.com/Sternrassler/job-site-monitor/pkg/pagination"
	"github.com/Sternrassler/job-site-monitor/pkg/report"
	"github.com/Sternrassler/job-site-monitor/pkg/sampling"
	"github.com/redis/go-redis/v9"
	"gopkg.in/yaml.v3"
)

// DefaultUserAgent identifies the tool to the search API.
const DefaultUserAgent = "job-site-monitor/1.0.0"

// Duration is a time.Duration written as a string in YAML ("30s", "5m").
type Duration time.Duration

// UnmarshalYAML parses a duration string. A bare integer is read as seconds.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		*d = Duration(time.Duration(n) * time.Second)
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML writes the duration as a string.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Std returns the time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config is the complete tool configuration.
type Config struct {
	DataDir string `yaml:"data_dir"`

	API struct {
		BaseURL           string   `yaml:"base_url"`
		SearchPath        string   `yaml:"search_path"`
		UserAgent         string   `yaml:"user_agent"`
		Origin            string   `yaml:"origin"`
		Timeout           Duration `yaml:"timeout"`
		RequestsPerSecond float64  `yaml:"requests_per_second"`
		Burst             int      `yaml:"burst"`
		MaxThrottleWait   Duration `yaml:"max_throttle_wait"`
		RetryAttempts     int      `yaml:"retry_attempts"`

		// Cookie is resolved from JSM_SESSION_COOKIE or the keyring, never YAML.
		Cookie string `yaml:"-"`
	} `yaml:"api"`

	Estimator struct {
		PageSize   int      `yaml:"page_size"`
		ProbeDelay Duration `yaml:"probe_delay"`
	} `yaml:"estimator"`

	Sampling struct {
		PageSize       int `yaml:"page_size"`
		MaxPages       int `yaml:"max_pages"`
		MaxSamplePages int `yaml:"max_sample_pages"`
		Concurrency    int `yaml:"concurrency"`
	} `yaml:"sampling"`

	Report struct {
		URL        string   `yaml:"url"`
		Pause      Duration `yaml:"pause"`
		Concurrent bool     `yaml:"concurrent"`
		Source     string   `yaml:"source"`
		Timeout    Duration `yaml:"timeout"`

		// Token is resolved from REPORT_API_PASSWORD or the keyring, never YAML.
		Token string `yaml:"-"`
	} `yaml:"report"`

	Redis struct {
		Enabled bool   `yaml:"enabled"`
		Addr    string `yaml:"addr"`
		DB      int    `yaml:"db"`
	} `yaml:"redis"`

	Cache struct {
		TTL Duration `yaml:"ttl"`
	} `yaml:"cache"`

	Store struct {
		Path string `yaml:"path"`
	} `yaml:"store"`

	Logging struct {
		Level  string `yaml:"level"`
		Pretty bool   `yaml:"pretty"`
	} `yaml:"logging"`
}

// Default returns the built-in configuration.
func Default() Config {
	var c Config
	c.DataDir = defaultDataDir()

	api := client.DefaultConfig(DefaultUserAgent)
	c.API.BaseURL = api.BaseURL
	c.API.SearchPath = api.SearchPath
	c.API.UserAgent = api.UserAgent
	c.API.Origin = api.Origin
	c.API.Timeout = Duration(api.Timeout)
	c.API.RequestsPerSecond = api.RequestsPerSecond
	c.API.Burst = api.Burst
	c.API.MaxThrottleWait = Duration(api.MaxThrottleWait)
	c.API.RetryAttempts = client.DefaultRetryConfig().MaxAttempts

	est := estimator.DefaultConfig()
	c.Estimator.PageSize = est.PageSize
	c.Estimator.ProbeDelay = Duration(est.ProbeDelay)

	smp := sampling.DefaultConfig()
	c.Sampling.PageSize = smp.PageSize
	c.Sampling.MaxPages = smp.MaxPages
	c.Sampling.MaxSamplePages = smp.MaxSamplePages
	c.Sampling.Concurrency = smp.Batch.MaxConcurrency

	run := report.DefaultRunnerConfig()
	c.Report.Pause = Duration(run.Pause)
	c.Report.Source = run.Source
	c.Report.Timeout = Duration(30 * time.Second)

	c.Redis.Addr = "localhost:6379"
	c.Cache.TTL = Duration(cache.DefaultTTL)
	c.Logging.Level = string(logging.LevelInfo)
	return c
}

func defaultDataDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "job-site-monitor")
	}
	return ".job-site-monitor"
}

// Load reads path over the defaults. An empty path returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnv overrides fields from environment variables.
//
//	REPORT_API_URL   report.url
//	REDIS_URL        redis.addr (and enables redis)
//	USER_AGENT       api.user_agent
//	JSM_DATA_DIR     data_dir
//	JSM_LOG_LEVEL    logging.level
func (c *Config) ApplyEnv() {
	if v := os.Getenv("REPORT_API_URL"); v != "" {
		c.Report.URL = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		c.Redis.Addr = v
		c.Redis.Enabled = true
	}
	if v := os.Getenv("USER_AGENT"); v != "" {
		c.API.UserAgent = v
	}
	if v := os.Getenv("JSM_DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("JSM_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// Validate reports every invalid field.
func (c Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if strings.TrimSpace(c.API.BaseURL) == "" {
		add("api.base_url is required")
	}
	if strings.TrimSpace(c.API.UserAgent) == "" {
		add("api.user_agent is required")
	}
	if c.API.Timeout <= 0 {
		add("api.timeout must be > 0")
	}
	if c.API.RequestsPerSecond < 0 {
		add("api.requests_per_second must be >= 0")
	}
	if c.API.RetryAttempts < 1 {
		add("api.retry_attempts must be >= 1")
	}
	if c.Estimator.PageSize <= 0 {
		add("estimator.page_size must be > 0")
	}
	if c.Estimator.ProbeDelay < 0 {
		add("estimator.probe_delay must be >= 0")
	}
	if c.Sampling.PageSize <= 0 {
		add("sampling.page_size must be > 0")
	}
	if c.Sampling.MaxPages <= 0 {
		add("sampling.max_pages must be > 0")
	}
	if c.Sampling.MaxSamplePages < c.Sampling.MaxPages {
		add("sampling.max_sample_pages must be >= sampling.max_pages")
	}
	if c.Report.Pause < 0 {
		add("report.pause must be >= 0")
	}
	if c.Redis.Enabled && strings.TrimSpace(c.Redis.Addr) == "" {
		add("redis.addr is required when redis is enabled")
	}
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		errs = append(errs, fmt.Errorf("logging.level: %w", err))
	}

	return errors.Join(errs...)
}

// StorePath returns the history database path, defaulting into DataDir.
func (c Config) StorePath() string {
	if c.Store.Path != "" {
		return c.Store.Path
	}
	return filepath.Join(c.DataDir, "history.db")
}

// LockPath returns the report lock file path.
func (c Config) LockPath() string {
	return filepath.Join(c.DataDir, "report.lock")
}

// ClientConfig builds the search client configuration. rdb may be nil.
func (c Config) ClientConfig(rdb *redis.Client) client.Config {
	cfg := client.DefaultConfig(c.API.UserAgent)
	cfg.BaseURL = c.API.BaseURL
	cfg.SearchPath = c.API.SearchPath
	cfg.Origin = c.API.Origin
	cfg.Cookie = c.API.Cookie
	cfg.Timeout = c.API.Timeout.Std()
	cfg.RequestsPerSecond = c.API.RequestsPerSecond
	cfg.Burst = c.API.Burst
	cfg.MaxThrottleWait = c.API.MaxThrottleWait.Std()
	cfg.Redis = rdb
	return cfg
}

// RetryConfig builds the retry configuration.
func (c Config) RetryConfig() client.RetryConfig {
	cfg := client.DefaultRetryConfig()
	cfg.MaxAttempts = c.API.RetryAttempts
	return cfg
}

// EstimatorConfig builds the estimator configuration.
func (c Config) EstimatorConfig() estimator.Config {
	return estimator.Config{
		PageSize:   c.Estimator.PageSize,
		ProbeDelay: c.Estimator.ProbeDelay.Std(),
	}
}

// SamplingConfig builds the sampling configuration.
func (c Config) SamplingConfig() sampling.Config {
	cfg := sampling.DefaultConfig()
	cfg.PageSize = c.Sampling.PageSize
	cfg.MaxPages = c.Sampling.MaxPages
	cfg.MaxSamplePages = c.Sampling.MaxSamplePages
	cfg.CacheTTL = c.Cache.TTL.Std()
	cfg.Batch = pagination.Config{MaxConcurrency: c.Sampling.Concurrency, Timeout: c.API.Timeout.Std()}
	return cfg
}

// RunnerConfig builds the report runner configuration.
func (c Config) RunnerConfig() report.RunnerConfig {
	return report.RunnerConfig{
		Pause:      c.Report.Pause.Std(),
		Concurrent: c.Report.Concurrent,
		CacheTTL:   c.Cache.TTL.Std(),
		Source:     c.Report.Source,
	}
}

// RedisOptions builds the Redis client options, or nil when Redis is disabled.
func (c Config) RedisOptions() *redis.Options {
	if !c.Redis.Enabled {
		return nil
	}
	return &redis.Options{
		Addr:     c.Redis.Addr,
		DB:       c.Redis.DB,
		Password: os.Getenv("REDIS_PASSWORD"),
	}
}

// LoggingConfig builds the logger configuration.
func (c Config) LoggingConfig() logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Level = logging.LogLevel(c.Logging.Level)
	cfg.Pretty = c.Logging.Pretty
	return cfg
}
