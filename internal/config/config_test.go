package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/supabase/pkg/supabase"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "supabase.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Env(t *testing.T) {
	t.Setenv("SUPABASE_URL", "https://abcd.supabase.co")
	t.Setenv("SUPABASE_API_KEY", "anon-key")
	t.Setenv("SUPABASE_CLOCK_SKEW", "30s")
	t.Setenv("SUPABASE_VALID_AUDIENCES", "authenticated,anon")
	t.Setenv("SUPABASE_LOG_LEVEL", "debug")

	cfg, err := Load("")
	require.NoError(t, err)

	require.Equal(t, "https://abcd.supabase.co", cfg.URL)
	require.Equal(t, "anon-key", cfg.APIKey)
	require.Equal(t, 30*time.Second, cfg.ClockSkew)
	require.Equal(t, []string{"authenticated", "anon"}, cfg.ValidAudiences)
	require.Equal(t, "debug", cfg.LogLevel)
	require.Empty(t, cfg.File)

	// Untouched keys keep their defaults.
	require.True(t, cfg.EnableAsymmetricKeys)
	require.Equal(t, []string{"ES256"}, cfg.ValidAlgorithms)
	require.Equal(t, time.Hour, cfg.JWKSRefreshInterval)
	require.Equal(t, "text", cfg.LogFormat)
}

func TestLoad_FileWithEnvOverride(t *testing.T) {
	path := writeFile(t, `
url: https://file.supabase.co
api_key: file-key
service_role_key: service-key
enable_asymmetric_keys: false
jwt_secret: super-secret-jwt-token-with-at-least-32-characters
jwks_refresh_interval: 2h
log_format: json
`)
	t.Setenv("SUPABASE_API_KEY", "env-key")

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, path, cfg.File)
	require.Equal(t, "https://file.supabase.co", cfg.URL)
	require.Equal(t, "env-key", cfg.APIKey, "environment wins over the file")
	require.Equal(t, "service-key", cfg.ServiceRoleKey)
	require.False(t, cfg.EnableAsymmetricKeys)
	require.Equal(t, 2*time.Hour, cfg.JWKSRefreshInterval)
	require.Equal(t, "json", cfg.LogFormat)

	require.NotContains(t, cfg.String(), "service-key")
	require.NotContains(t, cfg.String(), "super-secret")
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoad_Invalid(t *testing.T) {
	t.Run("missing url", func(t *testing.T) {
		t.Setenv("SUPABASE_API_KEY", "anon-key")
		_, err := Load("")
		require.ErrorIs(t, err, supabase.ErrInvalidOptions)
	})

	t.Run("bad log level", func(t *testing.T) {
		t.Setenv("SUPABASE_URL", "https://abcd.supabase.co")
		t.Setenv("SUPABASE_API_KEY", "anon-key")
		t.Setenv("SUPABASE_LOG_LEVEL", "loud")
		_, err := Load("")
		require.ErrorContains(t, err, "LogLevel")
	})

	t.Run("legacy mode without secret", func(t *testing.T) {
		t.Setenv("SUPABASE_URL", "https://abcd.supabase.co")
		t.Setenv("SUPABASE_API_KEY", "anon-key")
		t.Setenv("SUPABASE_ENABLE_ASYMMETRIC_KEYS", "false")
		_, err := Load("")
		require.ErrorIs(t, err, supabase.ErrInvalidOptions)
	})
}

func TestKeys(t *testing.T) {
	k := keys(reflect.TypeOf(Config{}))
	require.Contains(t, k, "url")
	require.Contains(t, k, "api_key")
	require.Contains(t, k, "jwks_auto_refresh_interval")
	require.Contains(t, k, "log_level")
	require.NotContains(t, k, "file")
	require.NotContains(t, k, "options")
}

func TestToSnakeCase(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"TestCamelCase", "test_camel_case"},
		{"JWKSURL", "jwksurl"},
		{"HTTPTimeout", "http_timeout"},
		{"UserID", "user_id"},
		{"API", "api"},
	}

	for _, c := range cases {
		require.Equal(t, c.want, toSnakeCase(c.in), c.in)
	}
}
