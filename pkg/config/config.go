// Package config loads suite settings from the environment and an
// optional YAML file. Environment variables win over the file, the file
// wins over built-in defaults.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/thesyncim/shopcheck/pkg/browser"
	"github.com/thesyncim/shopcheck/pkg/pages"
	"github.com/thesyncim/shopcheck/pkg/resilient"
)

// FileEnv names the variable holding the YAML file path.
const FileEnv = "SHOPCHECK_CONFIG"

// EnvLocal runs the suite against the bundled storefront.
const EnvLocal = "local"

// Environments maps TEST_ENVIRONMENT to a storefront URL.
var Environments = map[string]string{
	"dev":     "https://dev.saucedemo.com/",
	"staging": "https://staging.saucedemo.com/",
	"prod":    "https://www.saucedemo.com/",
}

// Retry policy names.
const (
	PolicyDefault   = "default"
	PolicyLogin     = "login"
	PolicyAddToCart = "add_to_cart"
	PolicySort      = "sort"
)

// ArtifactStore locates the object store failure artifacts go to.
type ArtifactStore struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	UseSSL    bool   `yaml:"use_ssl"`
}

// Enabled reports whether uploads are configured.
func (a ArtifactStore) Enabled() bool { return a.Endpoint != "" && a.Bucket != "" }

// Config is the suite configuration.
type Config struct {
	Environment string `yaml:"environment"`
	// BaseURLOverride, when set, replaces the environment's URL.
	BaseURLOverride string `yaml:"base_url"`

	Headless          bool          `yaml:"headless"`
	SlowMotion        time.Duration `yaml:"slow_motion"`
	Debug             bool          `yaml:"debug"`
	DisableImages     bool          `yaml:"disable_images"`
	DefaultTimeout    time.Duration `yaml:"default_timeout"`
	NavigationTimeout time.Duration `yaml:"navigation_timeout"`
	ExplicitWait      time.Duration `yaml:"explicit_wait"`

	APIBaseURL string        `yaml:"api_base_url"`
	APITimeout time.Duration `yaml:"api_timeout"`

	MaxRetries int           `yaml:"max_retries"`
	RetryDelay time.Duration `yaml:"retry_delay"`
	// Retry holds named policies; see Policy.
	Retry map[string]resilient.Policy `yaml:"retry"`

	ParallelWorkers int `yaml:"parallel_workers"`

	ScreenshotsDir string `yaml:"screenshots_dir"`
	ReportsDir     string `yaml:"reports_dir"`
	TestDataDir    string `yaml:"test_data_dir"`

	LogLevel string `yaml:"log_level"`
	CI       bool   `yaml:"-"`

	Artifacts ArtifactStore `yaml:"artifacts"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Environment:       EnvLocal,
		Headless:          true,
		DefaultTimeout:    30 * time.Second,
		NavigationTimeout: 30 * time.Second,
		ExplicitWait:      10 * time.Second,
		APIBaseURL:        "https://reqres.in/api",
		APITimeout:        10 * time.Second,
		MaxRetries:        2,
		RetryDelay:        time.Second,
		ParallelWorkers:   4,
		ScreenshotsDir:    "screenshots",
		ReportsDir:        "reports",
		TestDataDir:       "test_data",
		LogLevel:          "INFO",
		Artifacts:         ArtifactStore{Bucket: "shopcheck-artifacts"},
	}
}

// Load builds the configuration. path names a YAML file; when empty the
// SHOPCHECK_CONFIG variable is consulted. A missing path is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		path = os.Getenv(FileEnv)
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	var errs []error
	collect := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}
	var err error

	c.Environment = envString("TEST_ENVIRONMENT", c.Environment)
	c.BaseURLOverride = envString("BASE_URL", c.BaseURLOverride)
	c.Headless, err = envBool("HEADLESS", c.Headless)
	collect(err)
	c.SlowMotion, err = envDuration("SLOW_MO", c.SlowMotion, time.Millisecond)
	collect(err)
	c.Debug, err = envBool("DEBUG", c.Debug)
	collect(err)
	c.DisableImages, err = envBool("DISABLE_IMAGES", c.DisableImages)
	collect(err)
	c.DefaultTimeout, err = envDuration("DEFAULT_TIMEOUT", c.DefaultTimeout, time.Millisecond)
	collect(err)
	c.NavigationTimeout, err = envDuration("NAVIGATION_TIMEOUT", c.NavigationTimeout, time.Millisecond)
	collect(err)
	c.ExplicitWait, err = envDuration("EXPLICIT_WAIT", c.ExplicitWait, time.Millisecond)
	collect(err)

	c.APIBaseURL = envString("API_BASE_URL", c.APIBaseURL)
	c.APITimeout, err = envDuration("API_TIMEOUT", c.APITimeout, time.Second)
	collect(err)
	c.MaxRetries, err = envInt("MAX_RETRIES", c.MaxRetries)
	collect(err)
	c.RetryDelay, err = envDuration("RETRY_DELAY", c.RetryDelay, time.Second)
	collect(err)
	c.ParallelWorkers, err = envInt("PARALLEL_WORKERS", c.ParallelWorkers)
	collect(err)

	c.ScreenshotsDir = envString("SCREENSHOTS_DIR", c.ScreenshotsDir)
	c.ReportsDir = envString("REPORTS_DIR", c.ReportsDir)
	c.TestDataDir = envString("TEST_DATA_DIR", c.TestDataDir)
	c.LogLevel = envString("LOG_LEVEL", c.LogLevel)

	ci, err := envBool("CI", false)
	collect(err)
	gha, err := envBool("GITHUB_ACTIONS", false)
	collect(err)
	c.CI = ci || gha

	c.Artifacts.Endpoint = envString("ARTIFACT_ENDPOINT", c.Artifacts.Endpoint)
	c.Artifacts.AccessKey = envString("ARTIFACT_ACCESS_KEY", c.Artifacts.AccessKey)
	c.Artifacts.SecretKey = envString("ARTIFACT_SECRET_KEY", c.Artifacts.SecretKey)
	c.Artifacts.Bucket = envString("ARTIFACT_BUCKET", c.Artifacts.Bucket)
	c.Artifacts.Region = envString("ARTIFACT_REGION", c.Artifacts.Region)
	c.Artifacts.UseSSL, err = envBool("ARTIFACT_USE_SSL", c.Artifacts.UseSSL)
	collect(err)

	return errors.Join(errs...)
}

// Validate checks the loaded values.
func (c *Config) Validate() error {
	if c.BaseURLOverride == "" && c.Environment != EnvLocal {
		if _, ok := Environments[c.Environment]; !ok {
			return fmt.Errorf("unknown test environment %q", c.Environment)
		}
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max retries must not be negative, got %d", c.MaxRetries)
	}
	if c.RetryDelay < 0 {
		return fmt.Errorf("retry delay must not be negative, got %v", c.RetryDelay)
	}
	if c.ParallelWorkers < 1 {
		return fmt.Errorf("parallel workers must be >= 1, got %d", c.ParallelWorkers)
	}
	for name, p := range c.Retry {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("retry policy %q: %w", name, err)
		}
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	return nil
}

// BaseURL returns the storefront URL. An empty result means the local
// environment: the caller serves the bundled storefront itself.
func (c *Config) BaseURL() string {
	if c.BaseURLOverride != "" {
		return c.BaseURLOverride
	}
	return Environments[c.Environment]
}

// IsCI reports whether CI or GITHUB_ACTIONS is set.
func (c *Config) IsCI() bool { return c.CI }

// Policy returns the named retry policy. Unknown names fall back to the
// "default" entry, then to MAX_RETRIES+1 attempts spaced RETRY_DELAY
// apart, with the call site's built-in per-attempt timeout.
func (c *Config) Policy(name string) resilient.Policy {
	if p, ok := c.Retry[name]; ok {
		return p
	}
	if p, ok := c.Retry[PolicyDefault]; ok {
		return p
	}
	return resilient.Policy{
		MaxAttempts:       c.MaxRetries + 1,
		PerAttemptTimeout: attemptTimeout(name),
		BackoffDelay:      c.RetryDelay,
	}
}

func attemptTimeout(name string) time.Duration {
	def := pages.DefaultPolicies()
	switch name {
	case PolicyLogin:
		return def.Login.PerAttemptTimeout
	case PolicyAddToCart:
		return def.AddToCart.PerAttemptTimeout
	case PolicySort:
		return def.Sort.PerAttemptTimeout
	default:
		return def.Default.PerAttemptTimeout
	}
}

// Policies returns the page-object policies, one Policy per call site.
func (c *Config) Policies() pages.Policies {
	return pages.Policies{
		Default:   c.Policy(PolicyDefault),
		Login:     c.Policy(PolicyLogin),
		AddToCart: c.Policy(PolicyAddToCart),
		Sort:      c.Policy(PolicySort),
	}
}

// PageOptions returns the page-object options for this configuration.
func (c *Config) PageOptions(log *slog.Logger) []pages.Option {
	return []pages.Option{
		pages.WithPolicies(c.Policies()),
		pages.WithProbeTimeout(c.ExplicitWait),
		pages.WithLogger(log),
	}
}

// Browser returns the launch configuration.
func (c *Config) Browser(log *slog.Logger) browser.Config {
	bc := browser.DefaultConfig()
	bc.Headless = c.Headless
	bc.SlowMotion = c.SlowMotion
	bc.Debug = c.Debug
	bc.Timeout = c.DefaultTimeout
	bc.NavigationTimeout = c.NavigationTimeout
	bc.Logger = log
	if c.DisableImages {
		bc.Args = append(bc.Args, "blink-settings=imagesEnabled=false")
	}
	return bc
}

// Level returns LOG_LEVEL as a slog level, INFO when unparsable.
func (c *Config) Level() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// Logger returns a JSON logger at the configured level.
func (c *Config) Logger(w io.Writer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: c.Level()}))
}

// LoginCasesDir returns the directory holding login_test_data.csv.
func (c *Config) LoginCasesDir() string { return filepath.Clean(c.TestDataDir) }
