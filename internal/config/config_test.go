package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfig_Valid(t *testing.T) {
	path := writeConfigFile(t, `{
		"downloads_path": "/tmp/downloads",
		"portal_url": "https://portal.example/",
		"headless": true,
		"operation_timeout_secs": 45
	}`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/downloads", cfg.DownloadsPath)
	assert.Equal(t, "https://portal.example/", cfg.PortalURL)
	assert.True(t, cfg.HeadlessMode())
	assert.Equal(t, 45*time.Second, cfg.OperationTimeout())
}

func TestHeadlessMode(t *testing.T) {
	unset, err := LoadConfig(writeConfigFile(t, `{}`))
	require.NoError(t, err)
	assert.True(t, unset.HeadlessMode(), "unset headless defaults to true")

	disabled, err := LoadConfig(writeConfigFile(t, `{"headless": false}`))
	require.NoError(t, err)
	assert.False(t, disabled.HeadlessMode(), "explicit false must be honored")

	merged := disabled.MergeWithDefaults(Config{DownloadsPath: "downloads"})
	assert.False(t, merged.HeadlessMode(), "merge must not clobber explicit false")
}

func TestLoadConfig_EmptyPath(t *testing.T) {
	_, err := LoadConfig("")
	assert.Error(t, err)
}

func TestLoadConfig_InvalidJSON(t *testing.T) {
	path := writeConfigFile(t, `{not json`)
	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestValidate_NegativeTimeout(t *testing.T) {
	cfg := &Config{OperationTimeoutSecs: -1}
	assert.Error(t, cfg.Validate())
}

func TestValidate_DownloadsPathIsFile(t *testing.T) {
	file := writeConfigFile(t, `{}`)
	cfg := &Config{DownloadsPath: file}
	assert.Error(t, cfg.Validate())
}

func TestMergeWithDefaults(t *testing.T) {
	cfg := Config{PortalURL: "https://portal.example/"}
	merged := cfg.MergeWithDefaults(Config{
		DownloadsPath: "downloads",
		PortalURL:     DefaultPortalURL,
		QueueCapacity: 16,
	})

	assert.Equal(t, "https://portal.example/", merged.PortalURL)
	assert.Equal(t, "downloads", merged.DownloadsPath)
	assert.Equal(t, 16, merged.QueueCapacity)
}

func TestDurationHelpers_Defaults(t *testing.T) {
	cfg := &Config{}
	assert.Equal(t, DefaultOperationTimeout, cfg.OperationTimeout())
	assert.Equal(t, DefaultQueueIdleTimeout, cfg.QueueIdleTimeout())
	assert.Equal(t, DefaultPortalURL, cfg.Portal())
}

func TestNewJWTConfig(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("JWT_EXPIRATION_HOURS", "")

	cfg, err := NewJWTConfig()
	require.NoError(t, err)
	assert.Equal(t, "test-secret", cfg.Secret)
	assert.Equal(t, 12, cfg.ExpirationHours)
}

func TestNewJWTConfig_MissingSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	_, err := NewJWTConfig()
	assert.Error(t, err)
}

func TestPasswordConfig_VerifyPassword(t *testing.T) {
	t.Setenv("OPERATOR_PASSWORD_HASH", "")
	t.Setenv("OPERATOR_PASSWORD", "s3cret")

	cfg, err := NewPasswordConfig()
	require.NoError(t, err)

	assert.True(t, cfg.VerifyPassword("s3cret"))
	assert.False(t, cfg.VerifyPassword("wrong"))
}

func TestNewPasswordConfig_Missing(t *testing.T) {
	t.Setenv("OPERATOR_PASSWORD_HASH", "")
	t.Setenv("OPERATOR_PASSWORD", "")
	_, err := NewPasswordConfig()
	assert.Error(t, err)
}
