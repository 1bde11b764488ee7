package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hubgate/hubgate/internal/apperr"
	"github.com/hubgate/hubgate/internal/rate"
)

type Config struct {
	App struct {
		// dev | staging | prod
		Env      string `yaml:"env"`
		LogLevel string `yaml:"log_level"`
	} `yaml:"app"`

	Server struct {
		Addr        string `yaml:"addr"`
		PublicURL   string `yaml:"public_url"`
		DefaultPath string `yaml:"default_redirect_path"`
	} `yaml:"server"`

	GitHub struct {
		AppID          int64    `yaml:"app_id"`
		ClientID       string   `yaml:"client_id"`
		ClientSecret   string   `yaml:"client_secret"`
		PrivateKey     string   `yaml:"private_key"`
		PrivateKeyPath string   `yaml:"private_key_path"`
		WebhookSecret  string   `yaml:"webhook_secret"`
		CallbackURL    string   `yaml:"callback_url"`
		Scopes         []string `yaml:"scopes"`

		// Endpoint overrides for GitHub Enterprise.
		APIBaseURL    string `yaml:"api_base_url"`
		AuthEndpoint  string `yaml:"auth_endpoint"`
		TokenEndpoint string `yaml:"token_endpoint"`
	} `yaml:"github"`

	Auth struct {
		StateSecret   string `yaml:"state_secret"`
		SessionSecret string `yaml:"session_secret"`
		StateTTL      string `yaml:"state_ttl"`
		SessionTTL    string `yaml:"session_ttl"`
		Session       struct {
			CookieName string `yaml:"cookie_name"`
			Domain     string `yaml:"domain"`
			Secure     bool   `yaml:"secure"`
		} `yaml:"session"`
	} `yaml:"auth"`

	Cache struct {
		Kind  string `yaml:"kind"` // memory | redis
		Redis struct {
			Addr string `yaml:"addr"`
			DB   int    `yaml:"db"`
		} `yaml:"redis"`
		Memory struct {
			DefaultTTL string `yaml:"default_ttl"`
		} `yaml:"memory"`
	} `yaml:"cache"`

	Storage struct {
		Driver string `yaml:"driver"` // memory | postgres
		DSN    string `yaml:"dsn"`
	} `yaml:"storage"`

	Rate struct {
		Backend  string `yaml:"backend"` // memory | redis
		Provider struct {
			HourLimit   int64 `yaml:"hour_limit"`
			MinuteLimit int64 `yaml:"minute_limit"`
		} `yaml:"provider"`
		Webhook struct {
			PerSecond int64 `yaml:"per_second"`
			Burst     int64 `yaml:"burst"`
		} `yaml:"webhook"`
		OAuth struct {
			PerMinute int64 `yaml:"per_minute"`
		} `yaml:"oauth"`
	} `yaml:"rate"`

	// Tiers overrides or extends the built-in tier quota table.
	Tiers map[string]rate.TierLimits `yaml:"tiers"`
}

// TierTable merges the configured tier overrides onto the defaults.
func (c *Config) TierTable() rate.TierTable {
	table := rate.DefaultTierTable()
	for name, limits := range c.Tiers {
		table[name] = limits
	}
	return table
}

func Load(path string) (*Config, error) {
	var c Config
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, err
		}
	}

	// sane defaults
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.DefaultPath == "" {
		c.Server.DefaultPath = "/dashboard"
	}
	if c.App.Env == "" {
		c.App.Env = "dev"
	}
	if c.Cache.Kind == "" {
		c.Cache.Kind = "memory"
	}
	if c.Cache.Memory.DefaultTTL == "" {
		c.Cache.Memory.DefaultTTL = "10m"
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "memory"
	}
	if c.Rate.Backend == "" {
		c.Rate.Backend = "memory"
	}
	if c.Auth.Session.CookieName == "" {
		c.Auth.Session.CookieName = "hubgate_session"
	}

	c.applyEnvOverrides()
	return &c, nil
}

func getEnvStr(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	return v, ok && v != ""
}

func getEnvInt64(key string) (int64, bool) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return 0, false
	}
	n, err := strconv.ParseInt(v, 10, 64)
	return n, err == nil
}

// applyEnvOverrides lets the environment win over config.yaml, which keeps
// secrets out of files in deployments that prefer env injection.
func (c *Config) applyEnvOverrides() {
	if v, ok := getEnvStr("APP_ENV"); ok {
		c.App.Env = strings.ToLower(v)
	}
	if v, ok := getEnvStr("LOG_LEVEL"); ok {
		c.App.LogLevel = v
	}
	if v, ok := getEnvStr("SERVER_ADDR"); ok {
		c.Server.Addr = v
	}
	if v, ok := getEnvStr("PUBLIC_URL"); ok {
		c.Server.PublicURL = v
	}

	if v, ok := getEnvInt64("GITHUB_APP_ID"); ok {
		c.GitHub.AppID = v
	}
	if v, ok := getEnvStr("GITHUB_CLIENT_ID"); ok {
		c.GitHub.ClientID = v
	}
	if v, ok := getEnvStr("GITHUB_CLIENT_SECRET"); ok {
		c.GitHub.ClientSecret = v
	}
	if v, ok := getEnvStr("GITHUB_PRIVATE_KEY"); ok {
		c.GitHub.PrivateKey = v
	}
	if v, ok := getEnvStr("GITHUB_PRIVATE_KEY_PATH"); ok {
		c.GitHub.PrivateKeyPath = v
	}
	if v, ok := getEnvStr("GITHUB_WEBHOOK_SECRET"); ok {
		c.GitHub.WebhookSecret = v
	}
	if v, ok := getEnvStr("GITHUB_CALLBACK_URL"); ok {
		c.GitHub.CallbackURL = v
	}

	if v, ok := getEnvStr("STATE_SECRET"); ok {
		c.Auth.StateSecret = v
	}
	if v, ok := getEnvStr("SESSION_SECRET"); ok {
		c.Auth.SessionSecret = v
	}

	if v, ok := getEnvStr("CACHE_KIND"); ok {
		c.Cache.Kind = v
	}
	if v, ok := getEnvStr("REDIS_ADDR"); ok {
		c.Cache.Redis.Addr = v
	}
	if v, ok := getEnvStr("STORAGE_DRIVER"); ok {
		c.Storage.Driver = v
	}
	if v, ok := getEnvStr("STORAGE_DSN"); ok {
		c.Storage.DSN = v
	}
	if v, ok := getEnvStr("RATE_BACKEND"); ok {
		c.Rate.Backend = v
	}
}

// Validate checks the startup-fatal requirements: credentials and signing
// secrets must be present before the gateway will serve anything.
func (c *Config) Validate() error {
	if c.GitHub.AppID == 0 {
		return apperr.ErrConfigMissing.WithDetail("github.app_id")
	}
	if c.GitHub.ClientID == "" {
		return apperr.ErrConfigMissing.WithDetail("github.client_id")
	}
	if c.GitHub.ClientSecret == "" {
		return apperr.ErrConfigMissing.WithDetail("github.client_secret")
	}
	if c.GitHub.PrivateKey == "" && c.GitHub.PrivateKeyPath == "" {
		return apperr.ErrConfigMissing.WithDetail("github.private_key or github.private_key_path")
	}
	if c.Auth.StateSecret == "" {
		return apperr.ErrConfigMissing.WithDetail("auth.state_secret")
	}
	if c.Auth.SessionSecret == "" {
		return apperr.ErrConfigMissing.WithDetail("auth.session_secret")
	}
	if c.Cache.Kind == "redis" && c.Cache.Redis.Addr == "" {
		return apperr.ErrConfigMissing.WithDetail("cache.redis.addr")
	}
	if c.Storage.Driver == "postgres" && c.Storage.DSN == "" {
		return apperr.ErrConfigMissing.WithDetail("storage.dsn")
	}
	return nil
}

// Dur parses a duration string with a fallback for empty/invalid values.
func Dur(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
