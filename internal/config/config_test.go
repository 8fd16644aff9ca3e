package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// unsetenv clears k for the duration of the test. envconfig treats a set but
// empty variable as a value, not as missing.
func unsetenv(t *testing.T, keys ...string) {
	for _, k := range keys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

// chdir changes the working directory for the duration of the test
// (equivalent of testing.T.Chdir, which needs Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(old) })
}

func TestLoad_Defaults(t *testing.T) {
	chdir(t, t.TempDir())
	unsetenv(t, "PORT", "BASE_URL", "DATA_DIR", "TURN_STORE", "TURN_TTL", "WA_PHONE_NUMBER_ID", "WA_ACCESS_TOKEN", "WA_VERIFY_TOKEN")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "http://localhost:8080", cfg.BaseURL)
	assert.Equal(t, ".", cfg.DataDir)
	assert.Equal(t, TurnStoreBolt, cfg.TurnStore)
	assert.Equal(t, 24*time.Hour, cfg.TurnTTL)
	assert.False(t, cfg.WhatsAppEnabled())
	assert.Empty(t, cfg.WAVerifyToken)
}

func TestLoad_WhatsAppGetsVerifyToken(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("WA_PHONE_NUMBER_ID", "123")
	t.Setenv("WA_ACCESS_TOKEN", "token")
	unsetenv(t, "WA_VERIFY_TOKEN", "BASE_URL")
	t.Setenv("PORT", "9000")
	t.Setenv("TURN_TTL", "30m")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.WhatsAppEnabled())
	assert.Len(t, cfg.WAVerifyToken, 32)
	assert.Equal(t, "http://localhost:9000", cfg.BaseURL)
	assert.Equal(t, 30*time.Minute, cfg.TurnTTL)
}

func TestLoad_RejectsUnknownTurnStore(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("TURN_STORE", "memcached")

	_, err := Load()
	assert.ErrorContains(t, err, "TURN_STORE")
}
