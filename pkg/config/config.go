package config

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/boomhq/convlink/pkg/events"
)

// Settings is the full configuration surface of the service, loaded from a
// YAML file with CONVLINK_* environment overrides.
type Settings struct {
	Server   ServerSettings   `mapstructure:"server"`
	Resolver ResolverSettings `mapstructure:"resolver"`
	Internal InternalSettings `mapstructure:"internal"`
	Token    TokenSettings    `mapstructure:"token"`
	Events   events.Settings  `mapstructure:"events"`
	Store    StoreSettings    `mapstructure:"store"`
}

type ServerSettings struct {
	Addr          string `mapstructure:"addr"`
	TargetHost    string `mapstructure:"target_host"`
	DashboardPath string `mapstructure:"dashboard_path"`
	LegacyPath    string `mapstructure:"legacy_path"`
	LogLevel      string `mapstructure:"log_level"`
}

type ResolverSettings struct {
	HedgeDelayMs   int    `mapstructure:"hedge_delay_ms"`
	AllowMint      bool   `mapstructure:"allow_mint"`
	AllowProbe     bool   `mapstructure:"allow_probe"`
	ProbeBaseURL   string `mapstructure:"probe_base_url"`
	ProbeTimeoutMs int    `mapstructure:"probe_timeout_ms"`
	// Namespace overrides the UUID minting namespace. Changing it
	// invalidates every previously minted link.
	Namespace string `mapstructure:"namespace"`
}

func (s ResolverSettings) HedgeDelay() time.Duration {
	return time.Duration(s.HedgeDelayMs) * time.Millisecond
}

func (s ResolverSettings) ProbeTimeout() time.Duration {
	return time.Duration(s.ProbeTimeoutMs) * time.Millisecond
}

type InternalSettings struct {
	BaseURL          string `mapstructure:"base_url"`
	Secret           string `mapstructure:"secret"`
	TimeoutMs        int    `mapstructure:"timeout_ms"`
	MaxAttempts      int    `mapstructure:"max_attempts"`
	BreakerThreshold int    `mapstructure:"breaker_threshold"`
	BreakerCooldownS int    `mapstructure:"breaker_cooldown_s"`
}

func (s InternalSettings) Timeout() time.Duration {
	return time.Duration(s.TimeoutMs) * time.Millisecond
}

func (s InternalSettings) BreakerCooldown() time.Duration {
	return time.Duration(s.BreakerCooldownS) * time.Second
}

type TokenSettings struct {
	PrivateKeyPEM  string   `mapstructure:"private_key_pem"`
	Kid            string   `mapstructure:"kid"`
	Issuer         string   `mapstructure:"issuer"`
	Audience       string   `mapstructure:"audience"`
	TTLMinutes     int      `mapstructure:"ttl_minutes"`
	JWKSURL        string   `mapstructure:"jwks_url"`
	PublicKeyPEMs  []string `mapstructure:"public_key_pems"`
	RefreshSeconds int      `mapstructure:"refresh_seconds"`
}

func (s TokenSettings) TTL() time.Duration {
	return time.Duration(s.TTLMinutes) * time.Minute
}

func (s TokenSettings) RefreshTTL() time.Duration {
	return time.Duration(s.RefreshSeconds) * time.Second
}

type StoreSettings struct {
	SQLiteDSN       string `mapstructure:"sqlite_dsn"`
	RedisAddr       string `mapstructure:"redis_addr"`
	CacheTTLMinutes int    `mapstructure:"cache_ttl_minutes"`
}

func (s StoreSettings) CacheTTL() time.Duration {
	return time.Duration(s.CacheTTLMinutes) * time.Minute
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.dashboard_path", "/dashboard")
	v.SetDefault("server.legacy_path", "/inbox")
	v.SetDefault("server.log_level", "info")

	v.SetDefault("resolver.hedge_delay_ms", 150)
	v.SetDefault("resolver.allow_mint", true)
	v.SetDefault("resolver.allow_probe", false)
	v.SetDefault("resolver.probe_timeout_ms", 5000)

	v.SetDefault("internal.timeout_ms", 5000)
	v.SetDefault("internal.max_attempts", 3)
	v.SetDefault("internal.breaker_threshold", 5)
	v.SetDefault("internal.breaker_cooldown_s", 30)

	v.SetDefault("token.issuer", "convlink")
	v.SetDefault("token.audience", "boom-dashboard")
	v.SetDefault("token.ttl_minutes", 15)
	v.SetDefault("token.refresh_seconds", 60)

	v.SetDefault("store.sqlite_dsn", "file:convlink.db?_foreign_keys=on")
}

// Load reads settings from path (optional) plus the environment.
func Load(path string) (*Settings, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("CONVLINK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrap(err, "read config file")
		}
	} else {
		v.SetConfigName("convlink")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.convlink")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, errors.Wrap(err, "read config file")
			}
		}
	}

	s := &Settings{}
	if err := v.Unmarshal(s); err != nil {
		return nil, errors.Wrap(err, "decode settings")
	}
	return s, nil
}
