package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Sternrassler/job-site-monitor/pkg/client"
	"github.com/Sternrassler/job-site-monitor/pkg/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, DefaultUserAgent, cfg.API.UserAgent)
	assert.Equal(t, 200, cfg.Estimator.PageSize)
	assert.Equal(t, 2*time.Millisecond, cfg.Estimator.ProbeDelay.Std())
	assert.Equal(t, 3, cfg.Sampling.MaxPages)
	assert.Equal(t, 20, cfg.Sampling.MaxSamplePages)
	assert.Equal(t, 5*time.Second, cfg.Report.Pause.Std())
	assert.Equal(t, 5*time.Minute, cfg.Cache.TTL.Std())
	assert.False(t, cfg.Redis.Enabled)
	assert.Empty(t, cfg.API.Cookie)
}

func TestLoad_OverlaysDefaults(t *testing.T) {
	path := writeConfig(t, `
data_dir: /var/lib/jsm
api:
  timeout: 10s
  requests_per_second: 2.5
estimator:
  page_size: 100
  probe_delay: 50ms
report:
  url: https://reports.example.com/ingest
  pause: 3
  concurrent: true
redis:
  enabled: true
  addr: redis:6379
logging:
  level: debug
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "/var/lib/jsm", cfg.DataDir)
	assert.Equal(t, 10*time.Second, cfg.API.Timeout.Std())
	assert.Equal(t, 2.5, cfg.API.RequestsPerSecond)
	assert.Equal(t, 100, cfg.Estimator.PageSize)
	assert.Equal(t, 50*time.Millisecond, cfg.Estimator.ProbeDelay.Std())
	assert.Equal(t, 3*time.Second, cfg.Report.Pause.Std(), "bare integers are seconds")
	assert.True(t, cfg.Report.Concurrent)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
	assert.Equal(t, "debug", cfg.Logging.Level)

	// untouched fields keep their defaults
	assert.Equal(t, Default().API.BaseURL, cfg.API.BaseURL)
	assert.Equal(t, 3, cfg.Sampling.MaxPages)

	assert.Equal(t, "/var/lib/jsm/history.db", cfg.StorePath())
	assert.Equal(t, "/var/lib/jsm/report.lock", cfg.LockPath())
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "api:\n  timeout: soon\n"))
	assert.Error(t, err)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_IgnoresSecretsInYAML(t *testing.T) {
	cfg, err := Load(writeConfig(t, "api:\n  cookie: leaked\nreport:\n  token: leaked\n"))
	require.NoError(t, err)
	assert.Empty(t, cfg.API.Cookie)
	assert.Empty(t, cfg.Report.Token)
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("REPORT_API_URL", "https://env.example.com")
	t.Setenv("REDIS_URL", "cache:6380")
	t.Setenv("USER_AGENT", "custom/2.0")
	t.Setenv("JSM_DATA_DIR", "/tmp/jsm")
	t.Setenv("JSM_LOG_LEVEL", "warn")

	cfg := Default()
	cfg.ApplyEnv()

	assert.Equal(t, "https://env.example.com", cfg.Report.URL)
	assert.Equal(t, "cache:6380", cfg.Redis.Addr)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, "custom/2.0", cfg.API.UserAgent)
	assert.Equal(t, "/tmp/jsm", cfg.DataDir)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "empty base url", mutate: func(c *Config) { c.API.BaseURL = " " }, wantErr: "api.base_url"},
		{name: "empty user agent", mutate: func(c *Config) { c.API.UserAgent = "" }, wantErr: "api.user_agent"},
		{name: "zero timeout", mutate: func(c *Config) { c.API.Timeout = 0 }, wantErr: "api.timeout"},
		{name: "negative rps", mutate: func(c *Config) { c.API.RequestsPerSecond = -1 }, wantErr: "requests_per_second"},
		{name: "no attempts", mutate: func(c *Config) { c.API.RetryAttempts = 0 }, wantErr: "retry_attempts"},
		{name: "zero page size", mutate: func(c *Config) { c.Estimator.PageSize = 0 }, wantErr: "estimator.page_size"},
		{name: "negative probe delay", mutate: func(c *Config) { c.Estimator.ProbeDelay = -1 }, wantErr: "probe_delay"},
		{name: "zero sample pages", mutate: func(c *Config) { c.Sampling.MaxPages = 0 }, wantErr: "sampling.max_pages"},
		{name: "default sample above cap", mutate: func(c *Config) { c.Sampling.MaxPages = 30 }, wantErr: "sampling.max_sample_pages"},
		{name: "redis without addr", mutate: func(c *Config) { c.Redis.Enabled = true; c.Redis.Addr = "" }, wantErr: "redis.addr"},
		{name: "bad log level", mutate: func(c *Config) { c.Logging.Level = "loud" }, wantErr: "logging.level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	t.Run("reports every problem", func(t *testing.T) {
		cfg := Default()
		cfg.API.BaseURL = ""
		cfg.Estimator.PageSize = 0
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "api.base_url")
		assert.Contains(t, err.Error(), "estimator.page_size")
	})
}

func TestBuilders(t *testing.T) {
	cfg := Default()
	cfg.API.Cookie = "session=abc"
	cfg.API.RetryAttempts = 5
	cfg.Sampling.Concurrency = 4
	cfg.Report.Concurrent = true
	cfg.Logging.Pretty = true

	cc := cfg.ClientConfig(nil)
	assert.Equal(t, cfg.API.BaseURL, cc.BaseURL)
	assert.Equal(t, "session=abc", cc.Cookie)
	assert.Equal(t, cfg.API.Timeout.Std(), cc.Timeout)
	assert.Nil(t, cc.Redis)
	c, err := client.New(cc)
	require.NoError(t, err)
	c.Close()

	assert.Equal(t, 5, cfg.RetryConfig().MaxAttempts)
	assert.Equal(t, 200, cfg.EstimatorConfig().PageSize)

	sc := cfg.SamplingConfig()
	assert.Equal(t, 4, sc.Batch.MaxConcurrency)
	assert.Equal(t, cfg.Cache.TTL.Std(), sc.CacheTTL)
	assert.Equal(t, 20, sc.MaxSamplePages)

	assert.True(t, cfg.RunnerConfig().Concurrent)

	assert.Nil(t, cfg.RedisOptions())
	cfg.Redis.Enabled = true
	require.NotNil(t, cfg.RedisOptions())
	assert.Equal(t, "localhost:6379", cfg.RedisOptions().Addr)

	lc := cfg.LoggingConfig()
	assert.Equal(t, logging.LevelInfo, lc.Level)
	assert.True(t, lc.Pretty)
}
