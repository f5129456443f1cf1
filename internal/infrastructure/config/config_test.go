package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "8000", cfg.Server.Port)
	assert.Equal(t, 10*time.Second, cfg.Endpoint.FetchTimeout)
	assert.Equal(t, 5*time.Second, cfg.Timing.OrganicCheckDelay)
	assert.Equal(t, 72*time.Hour, cfg.Timing.PromptInterval)
	assert.Equal(t, 70, cfg.Browsing.RedirectLimit)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.True(t, cfg.RateLimit.Enabled)
	assert.NoError(t, cfg.Validate())
}

func TestLoadWithEnvironmentVariables(t *testing.T) {
	envVars := map[string]string{
		"PORT":                "9000",
		"CONFIG_URL":          "https://cfg.test",
		"APP_ID":              "123456",
		"FETCH_TIMEOUT":       "3s",
		"ORGANIC_CHECK_DELAY": "1s",
		"REDIRECT_LIMIT":      "5",
		"STORE_PATH":          "",
		"LOG_DEV":             "true",
	}
	for key, value := range envVars {
		t.Setenv(key, value)
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, "https://cfg.test", cfg.Endpoint.ConfigURL)
	assert.Equal(t, "123456", cfg.Endpoint.AppID)
	assert.Equal(t, 3*time.Second, cfg.Endpoint.FetchTimeout)
	assert.Equal(t, time.Second, cfg.Timing.OrganicCheckDelay)
	assert.Equal(t, 5, cfg.Browsing.RedirectLimit)
	assert.Empty(t, cfg.Store.Path)
	assert.True(t, cfg.Logging.Development)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"zero timeout", "FETCH_TIMEOUT", "0s"},
		{"negative redirect limit", "REDIRECT_LIMIT", "-1"},
		{"unparsable duration", "CONNECTIVITY_INTERVAL", "soon"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.val)
			_, err := Load()
			assert.Error(t, err)
			assert.NotNil(t, LoadOrDefault())
		})
	}
}

func TestLoadFileOverlaysYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gate.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
endpoint:
  config_url: https://file.test
timing:
  deep_link_delay: 250ms
browsing:
  redirect_limit: 12
`), 0o600))
	t.Setenv("APP_ID", "777")

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "https://file.test", cfg.Endpoint.ConfigURL)
	assert.Equal(t, 250*time.Millisecond, cfg.Timing.DeepLinkDelay)
	assert.Equal(t, 12, cfg.Browsing.RedirectLimit)
	assert.Equal(t, "777", cfg.Endpoint.AppID)
	assert.Equal(t, 5*time.Second, cfg.Timing.OrganicCheckDelay)
}

func TestLoadFileErrors(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("browsing:\n  redirect_limit: 0\n"), 0o600))
	_, err = LoadFile(path)
	assert.Error(t, err)
}
