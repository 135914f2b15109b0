package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noEnv(string) string { return "" }

func TestParseArgs_Defaults(t *testing.T) {
	opts, err := ParseArgs([]string{"-c", filepath.Join(t.TempDir(), "missing.json")}, noEnv)
	require.NoError(t, err)

	assert.Equal(t, "localhost:8080", opts.Port)
	assert.Equal(t, 30*time.Second, opts.UploadTimeout.Duration)
	assert.Equal(t, 10, opts.RateLimit)
	assert.Equal(t, time.Minute, opts.RateWindow.Duration)
	assert.Equal(t, "gemini-2.5-flash", opts.GeminiModel)
	assert.False(t, opts.TrustProxy)
}

func TestParseArgs_TrustProxy(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing.json")

	opts, err := ParseArgs([]string{"-c", missing, "-trust-proxy"}, noEnv)
	require.NoError(t, err)
	assert.True(t, opts.TrustProxy)

	opts, err = ParseArgs([]string{"-c", missing, "-trust-proxy"}, func(k string) string {
		if k == "TRUST_PROXY" {
			return "false"
		}
		return ""
	})
	require.NoError(t, err)
	assert.False(t, opts.TrustProxy)

	_, err = ParseArgs([]string{"-c", missing}, func(k string) string {
		if k == "TRUST_PROXY" {
			return "maybe"
		}
		return ""
	})
	assert.Error(t, err)
}

func TestParseArgs_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	body := `{"port":":9000","database_dsn":"postgres://file","upload_timeout":"5s","rate_limit":3}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	env := map[string]string{
		"CONFIG":         path,
		"DATABASE_DSN":   "postgres://env",
		"GEMINI_API_KEY": "secret",
	}
	opts, err := ParseArgs(nil, func(k string) string { return env[k] })
	require.NoError(t, err)

	assert.Equal(t, ":9000", opts.Port)
	assert.Equal(t, "postgres://env", opts.DatabaseDSN)
	assert.Equal(t, "secret", opts.GeminiAPIKey)
	assert.Equal(t, 5*time.Second, opts.UploadTimeout.Duration)
	assert.Equal(t, 3, opts.RateLimit)
}

func TestParseArgs_BadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"upload_timeout":"soon"}`), 0o600))

	_, err := ParseArgs([]string{"-config", path}, noEnv)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error while parsing config file")
}

func TestParseArgs_BadFlag(t *testing.T) {
	_, err := ParseArgs([]string{"-upload-timeout", "never"}, noEnv)
	assert.Error(t, err)
}
