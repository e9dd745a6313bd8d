package config

import (
	"flag"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDefaults(t *testing.T) {
	cfg, err := parse(flag.NewFlagSet("test", flag.ContinueOnError), nil)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.ServerAddr)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 7*24*time.Hour, cfg.SessionTTL)
	assert.Equal(t, 5<<20, cfg.UploadMaxBytes)
	assert.Equal(t, "log", cfg.NotifyDriver)
	assert.Equal(t, 10*time.Second, cfg.NotifyTimeout)
	assert.Empty(t, cfg.DatabaseURI)
}

func TestParseEnvOverridesFlags(t *testing.T) {
	t.Setenv("RUN_ADDRESS", "127.0.0.1:9000")
	t.Setenv("NOTIFY_TIMEOUT", "3s")

	cfg, err := parse(flag.NewFlagSet("test", flag.ContinueOnError), []string{"-a", "0.0.0.0:1", "-l", "debug"})
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9000", cfg.ServerAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 3*time.Second, cfg.NotifyTimeout)
}

func TestParseEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("LOAN_INTEREST_RATE=24\nADMIN_EMAIL=root@example.com\n"), 0o600))

	t.Cleanup(func() {
		os.Unsetenv("LOAN_INTEREST_RATE") //nolint:errcheck
		os.Unsetenv("ADMIN_EMAIL")        //nolint:errcheck
	})

	cfg, err := parse(flag.NewFlagSet("test", flag.ContinueOnError), []string{"-e", path})
	require.NoError(t, err)

	assert.Equal(t, "24", cfg.LoanRate)
	assert.Equal(t, "root@example.com", cfg.AdminEmail)
}

func TestParseMissingEnvFile(t *testing.T) {
	_, err := parse(flag.NewFlagSet("test", flag.ContinueOnError), []string{"-e", filepath.Join(t.TempDir(), "absent.env")})
	require.Error(t, err)
}
