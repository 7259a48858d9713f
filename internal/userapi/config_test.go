package userapi

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

// unsetEnv clears key for the duration of the test.
func unsetEnv(t *testing.T, key string) {
	t.Helper()
	t.Setenv(key, "")
	require.NoError(t, os.Unsetenv(key))
}

func TestLoadConfig_Defaults(t *testing.T) {
	for _, k := range []string{EnvAddr, EnvAuthToken, EnvLogLevel} {
		unsetEnv(t, k)
	}

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, ":8000", cfg.Addr)
	assert.Empty(t, cfg.AuthToken)
	assert.Equal(t, zapcore.InfoLevel, cfg.LogLevel)
	assert.Equal(t, DefaultShutdownTimeout, cfg.ShutdownTimeout)
}

func TestLoadConfig_EnvFileAndOverride(t *testing.T) {
	unsetEnv(t, EnvAddr)
	unsetEnv(t, EnvAuthToken)
	t.Setenv(EnvLogLevel, "debug")

	path := filepath.Join(t.TempDir(), ".env")
	content := "USERAPI_ADDR=127.0.0.1:9000\nUSERAPI_AUTH_TOKEN=s3cret\nUSERAPI_LOG_LEVEL=error\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9000", cfg.Addr)
	assert.Equal(t, "s3cret", cfg.AuthToken)
	assert.Equal(t, zapcore.DebugLevel, cfg.LogLevel)
}

func TestLoadConfig_BadLevel(t *testing.T) {
	t.Setenv(EnvLogLevel, "loud")
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.env"))
	assert.Error(t, err)
}
