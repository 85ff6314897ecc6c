package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envOf(values map[string]string) func(string) string {
	return func(k string) string { return values[k] }
}

func TestFromEnv_Defaults(t *testing.T) {
	cfg, err := FromEnv(envOf(nil))
	require.NoError(t, err)
	assert.Equal(t, "health-tracker-standalone", cfg.AppID)
	assert.Equal(t, BackendMemory, cfg.Backend)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, ":8080", cfg.Addr())
	assert.Equal(t, "https://accounts.google.com", cfg.AuthIssuer)
	assert.Equal(t, "eu-west-1", cfg.Region)
	assert.Equal(t, "./exports", cfg.ExportDir)
	assert.False(t, cfg.AuthEnabled())
	assert.Equal(t, "http://localhost:8080/auth/google/callback", cfg.CallbackURL("google"))
}

func TestFromEnv_Values(t *testing.T) {
	cfg, err := FromEnv(envOf(map[string]string{
		"HEALTH_APP_NAMESPACE": "my-app",
		"HEALTH_BACKEND":       "postgres",
		"HEALTH_PG_URL":        "postgres://localhost/health",
		"HEALTH_PORT":          "9000",
		"GOOGLE_CLIENT_ID":     "client-id",
		"APP_URL":              "https://health.example.com/",
		"TZ":                   "Europe/Paris",
	}))
	require.NoError(t, err)
	assert.Equal(t, "my-app", cfg.AppID)
	assert.Equal(t, BackendPostgres, cfg.Backend)
	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, []string{"client-id"}, cfg.AuthAudience, "audience defaults to the client id")
	assert.True(t, cfg.AuthEnabled())
	assert.Equal(t, "https://health.example.com/auth/google/callback", cfg.CallbackURL("google"))
	paris, _ := time.LoadLocation("Europe/Paris")
	assert.Equal(t, paris.String(), cfg.Location.String())

	cfg, err = FromEnv(envOf(map[string]string{"AUTH_AUDIENCE": "a, b,", "GOOGLE_CLIENT_ID": "client-id"}))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, cfg.AuthAudience)
}

func TestFromEnv_Invalid(t *testing.T) {
	tests := []map[string]string{
		{"HEALTH_PORT": "http"},
		{"HEALTH_PORT": "70000"},
		{"HEALTH_BACKEND": "sqlite"},
		{"HEALTH_BACKEND": "postgres"},
		{"TZ": "Mars/Olympus"},
	}
	for _, env := range tests {
		_, err := FromEnv(envOf(env))
		assert.Error(t, err, "%v", env)
	}
}

func TestLoad_EnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("HEALTH_APP_NAMESPACE=from-file\n"), 0o600))
	t.Setenv("HEALTH_APP_NAMESPACE", "")
	os.Unsetenv("HEALTH_APP_NAMESPACE")

	cfg, err := Load(path, filepath.Join(dir, "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.AppID)
}
