package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hubgate/hubgate/internal/apperr"
)

func validBase() *Config {
	c := &Config{}
	c.GitHub.AppID = 1
	c.GitHub.ClientID = "cid"
	c.GitHub.ClientSecret = "csecret"
	c.GitHub.PrivateKeyPath = "/etc/hubgate/app.pem"
	c.Auth.StateSecret = "ss"
	c.Auth.SessionSecret = "sess"
	return c
}

func TestLoad_DefaultsAndFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
app:
  env: prod
  log_level: warn
server:
  addr: ":9090"
github:
  app_id: 12345
rate:
  webhook:
    per_second: 25
`), 0o600))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "prod", c.App.Env)
	assert.Equal(t, ":9090", c.Server.Addr)
	assert.Equal(t, int64(12345), c.GitHub.AppID)
	assert.Equal(t, int64(25), c.Rate.Webhook.PerSecond)

	// Values the file omits get defaults.
	assert.Equal(t, "/dashboard", c.Server.DefaultPath)
	assert.Equal(t, "memory", c.Cache.Kind)
	assert.Equal(t, "memory", c.Storage.Driver)
	assert.Equal(t, "hubgate_session", c.Auth.Session.CookieName)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("GITHUB_APP_ID", "777")
	t.Setenv("GITHUB_CLIENT_SECRET", "from-env")
	t.Setenv("SERVER_ADDR", ":7777")

	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, int64(777), c.GitHub.AppID)
	assert.Equal(t, "from-env", c.GitHub.ClientSecret)
	assert.Equal(t, ":7777", c.Server.Addr)
}

func TestValidate(t *testing.T) {
	require.NoError(t, validBase().Validate())

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"app id", func(c *Config) { c.GitHub.AppID = 0 }},
		{"client id", func(c *Config) { c.GitHub.ClientID = "" }},
		{"client secret", func(c *Config) { c.GitHub.ClientSecret = "" }},
		{"private key", func(c *Config) { c.GitHub.PrivateKey = ""; c.GitHub.PrivateKeyPath = "" }},
		{"state secret", func(c *Config) { c.Auth.StateSecret = "" }},
		{"session secret", func(c *Config) { c.Auth.SessionSecret = "" }},
		{"redis addr", func(c *Config) { c.Cache.Kind = "redis" }},
		{"postgres dsn", func(c *Config) { c.Storage.Driver = "postgres" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := validBase()
			tc.mutate(c)
			err := c.Validate()
			require.Error(t, err)
			assert.True(t, apperr.IsKind(err, apperr.KindConfiguration))
		})
	}
}

func TestDur(t *testing.T) {
	assert.Equal(t, time.Minute, Dur("", time.Minute))
	assert.Equal(t, time.Minute, Dur("garbage", time.Minute))
	assert.Equal(t, 90*time.Second, Dur("90s", time.Minute))
}
