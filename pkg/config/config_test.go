package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thesyncim/shopcheck/pkg/pages"
	"github.com/thesyncim/shopcheck/pkg/resilient"
)

var suiteVars = []string{
	FileEnv, "TEST_ENVIRONMENT", "BASE_URL", "HEADLESS", "SLOW_MO", "DEBUG", "DISABLE_IMAGES",
	"DEFAULT_TIMEOUT", "NAVIGATION_TIMEOUT", "EXPLICIT_WAIT", "API_BASE_URL", "API_TIMEOUT",
	"MAX_RETRIES", "RETRY_DELAY", "PARALLEL_WORKERS", "SCREENSHOTS_DIR", "REPORTS_DIR",
	"TEST_DATA_DIR", "LOG_LEVEL", "CI", "GITHUB_ACTIONS", "ARTIFACT_ENDPOINT",
	"ARTIFACT_ACCESS_KEY", "ARTIFACT_SECRET_KEY", "ARTIFACT_BUCKET", "ARTIFACT_REGION", "ARTIFACT_USE_SSL",
}

// cleanEnv unsets every variable Load reads for the duration of the test.
func cleanEnv(t *testing.T) {
	t.Helper()
	for _, k := range suiteVars {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}
}

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "shopcheck.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cleanEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, EnvLocal, cfg.Environment)
	assert.Empty(t, cfg.BaseURL())
	assert.True(t, cfg.Headless)
	assert.Equal(t, 30*time.Second, cfg.DefaultTimeout)
	assert.Equal(t, "https://reqres.in/api", cfg.APIBaseURL)
	assert.Equal(t, 10*time.Second, cfg.APITimeout)
	assert.False(t, cfg.IsCI())
	assert.False(t, cfg.Artifacts.Enabled())

	assert.Equal(t, resilient.Policy{MaxAttempts: 3, PerAttemptTimeout: 5 * time.Second, BackoffDelay: time.Second}, cfg.Policy(PolicyLogin))
	pol := cfg.Policies()
	def := pages.DefaultPolicies()
	assert.Equal(t, 3, pol.Login.MaxAttempts)
	assert.Equal(t, time.Second, pol.Sort.BackoffDelay)
	assert.Equal(t, def.Sort.PerAttemptTimeout, pol.Sort.PerAttemptTimeout)
	assert.Equal(t, def.AddToCart.PerAttemptTimeout, pol.AddToCart.PerAttemptTimeout)
}

func TestPolicies_RetryEnvReachesCallSites(t *testing.T) {
	cleanEnv(t)
	t.Setenv("MAX_RETRIES", "0")
	t.Setenv("RETRY_DELAY", "5")

	cfg, err := Load("")
	require.NoError(t, err)

	pol := cfg.Policies()
	for name, p := range map[string]resilient.Policy{
		PolicyDefault:   pol.Default,
		PolicyLogin:     pol.Login,
		PolicyAddToCart: pol.AddToCart,
		PolicySort:      pol.Sort,
	} {
		assert.Equal(t, 1, p.MaxAttempts, name)
		assert.Equal(t, 5*time.Second, p.BackoffDelay, name)
		assert.NoError(t, p.Validate(), name)
	}
	assert.Equal(t, cfg.Policy(PolicyLogin), pol.Login)
}

func TestLoad_Env(t *testing.T) {
	cleanEnv(t)
	t.Setenv("TEST_ENVIRONMENT", "staging")
	t.Setenv("HEADLESS", "false")
	t.Setenv("SLOW_MO", "250")
	t.Setenv("DEFAULT_TIMEOUT", "15000")
	t.Setenv("NAVIGATION_TIMEOUT", "45s")
	t.Setenv("API_TIMEOUT", "3")
	t.Setenv("MAX_RETRIES", "4")
	t.Setenv("RETRY_DELAY", "2")
	t.Setenv("GITHUB_ACTIONS", "true")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("ARTIFACT_ENDPOINT", "minio:9000")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "https://staging.saucedemo.com/", cfg.BaseURL())
	assert.False(t, cfg.Headless)
	assert.Equal(t, 250*time.Millisecond, cfg.SlowMotion)
	assert.Equal(t, 15*time.Second, cfg.DefaultTimeout)
	assert.Equal(t, 45*time.Second, cfg.NavigationTimeout)
	assert.Equal(t, 3*time.Second, cfg.APITimeout)
	assert.True(t, cfg.IsCI())
	assert.Equal(t, "DEBUG", cfg.Level().String())
	assert.True(t, cfg.Artifacts.Enabled())

	p := cfg.Policy("anything")
	assert.Equal(t, 5, p.MaxAttempts)
	assert.Equal(t, 2*time.Second, p.BackoffDelay)
}

func TestLoad_BaseURLOverride(t *testing.T) {
	cleanEnv(t)
	t.Setenv("TEST_ENVIRONMENT", "nowhere")
	t.Setenv("BASE_URL", "http://127.0.0.1:8080/")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:8080/", cfg.BaseURL())
}

func TestLoad_File(t *testing.T) {
	cleanEnv(t)
	path := writeFile(t, `
environment: prod
headless: false
explicit_wait: 2s
retry:
  default:
    max_attempts: 4
    per_attempt_timeout: 3s
    backoff_delay: 500ms
  login:
    max_attempts: 2
    per_attempt_timeout: 5s
    backoff_delay: 1s
`)
	t.Setenv(FileEnv, path)
	t.Setenv("HEADLESS", "true")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "https://www.saucedemo.com/", cfg.BaseURL())
	assert.True(t, cfg.Headless, "env wins over the file")
	assert.Equal(t, 2*time.Second, cfg.ExplicitWait)

	def := resilient.Policy{MaxAttempts: 4, PerAttemptTimeout: 3 * time.Second, BackoffDelay: 500 * time.Millisecond}
	assert.Equal(t, def, cfg.Policy(PolicySort))
	assert.Equal(t, 2, cfg.Policy(PolicyLogin).MaxAttempts)

	pol := cfg.Policies()
	assert.Equal(t, def, pol.Default)
	assert.Equal(t, def, pol.AddToCart)
	assert.Equal(t, 2, pol.Login.MaxAttempts)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		file string
		want string
	}{
		{"bad bool", map[string]string{"HEADLESS": "maybe"}, "", "parse HEADLESS"},
		{"bad int", map[string]string{"MAX_RETRIES": "two"}, "", "parse MAX_RETRIES"},
		{"bad duration", map[string]string{"DEFAULT_TIMEOUT": "soon"}, "", "parse DEFAULT_TIMEOUT"},
		{"unknown env", map[string]string{"TEST_ENVIRONMENT": "qa"}, "", `unknown test environment "qa"`},
		{"negative retries", map[string]string{"MAX_RETRIES": "-1"}, "", "max retries"},
		{"bad level", map[string]string{"LOG_LEVEL": "loud"}, "", "log level"},
		{"bad policy", nil, "retry:\n  sort:\n    max_attempts: 0\n    per_attempt_timeout: 1s\n", `retry policy "sort"`},
		{"bad yaml", nil, "retry: [", "parse config"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cleanEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			path := ""
			if tt.file != "" {
				path = writeFile(t, tt.file)
			}
			_, err := Load(path)
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	cleanEnv(t)
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.ErrorContains(t, err, "read config")
}

func TestBrowser(t *testing.T) {
	cleanEnv(t)
	t.Setenv("DISABLE_IMAGES", "true")
	t.Setenv("DEBUG", "1")

	cfg, err := Load("")
	require.NoError(t, err)
	bc := cfg.Browser(nil)
	assert.True(t, bc.Debug)
	assert.Equal(t, 30*time.Second, bc.Timeout)
	assert.Contains(t, bc.Args, "blink-settings=imagesEnabled=false")
	assert.Contains(t, bc.Args, "no-sandbox")
	assert.Len(t, cfg.PageOptions(nil), 3)
}
