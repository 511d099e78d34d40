package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	s, err := Load("")
	require.NoError(t, err)

	require.Equal(t, ":8080", s.Server.Addr)
	require.Equal(t, "/dashboard", s.Server.DashboardPath)
	require.Equal(t, "/inbox", s.Server.LegacyPath)
	require.Equal(t, "info", s.Server.LogLevel)

	require.Equal(t, 150*time.Millisecond, s.Resolver.HedgeDelay())
	require.True(t, s.Resolver.AllowMint)
	require.False(t, s.Resolver.AllowProbe)

	require.Equal(t, 5*time.Second, s.Internal.Timeout())
	require.Equal(t, 3, s.Internal.MaxAttempts)
	require.Equal(t, 5, s.Internal.BreakerThreshold)
	require.Equal(t, 30*time.Second, s.Internal.BreakerCooldown())

	require.Equal(t, "convlink", s.Token.Issuer)
	require.Equal(t, "boom-dashboard", s.Token.Audience)
	require.Equal(t, 15*time.Minute, s.Token.TTL())
	require.Equal(t, time.Minute, s.Token.RefreshTTL())
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "convlink.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  addr: ":9090"
  target_host: app.boomnow.test
resolver:
  hedge_delay_ms: 50
  allow_probe: true
  probe_base_url: https://legacy.boomnow.test
internal:
  base_url: https://internal.boomnow.test
  secret: s3cret
events:
  redis_enabled: true
  redis_addr: localhost:6379
`), 0o644))

	s, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, ":9090", s.Server.Addr)
	require.Equal(t, "app.boomnow.test", s.Server.TargetHost)
	require.Equal(t, 50*time.Millisecond, s.Resolver.HedgeDelay())
	require.True(t, s.Resolver.AllowProbe)
	require.Equal(t, "https://legacy.boomnow.test", s.Resolver.ProbeBaseURL)
	require.Equal(t, "https://internal.boomnow.test", s.Internal.BaseURL)
	require.Equal(t, "s3cret", s.Internal.Secret)
	require.True(t, s.Events.RedisEnabled)
	require.Equal(t, "localhost:6379", s.Events.RedisAddr)

	// Untouched keys keep their defaults.
	require.Equal(t, "/dashboard", s.Server.DashboardPath)
	require.Equal(t, 3, s.Internal.MaxAttempts)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("CONVLINK_SERVER_ADDR", ":7070")
	t.Setenv("CONVLINK_TOKEN_TTL_MINUTES", "5")

	s, err := Load("")
	require.NoError(t, err)
	require.Equal(t, ":7070", s.Server.Addr)
	require.Equal(t, 5*time.Minute, s.Token.TTL())
}

func TestLoadMissingFileErrors(t *testing.T) {
	_, err := Load("/nonexistent/convlink.yaml")
	require.Error(t, err)
}
