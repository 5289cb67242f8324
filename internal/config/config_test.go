package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("VIDEOTUBE_TOKEN_SECRET", "test-secret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.AppPort)
	assert.Equal(t, 15*time.Minute, cfg.AccessTokenTTL)
	assert.Equal(t, 10*24*time.Hour, cfg.RefreshTokenTTL)
	assert.True(t, cfg.CookieSecure)
	assert.False(t, cfg.ObjectStore.Enabled())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("VIDEOTUBE_TOKEN_SECRET", "test-secret")
	t.Setenv("VIDEOTUBE_PORT", "9090")
	t.Setenv("VIDEOTUBE_ACCESS_TOKEN_TTL", "5m")
	t.Setenv("VIDEOTUBE_COOKIE_SECURE", "false")
	t.Setenv("VIDEOTUBE_CORS_ORIGINS", "https://a.example, https://b.example,")
	t.Setenv("VIDEOTUBE_S3_BUCKET", "avatars")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.AppPort)
	assert.Equal(t, 5*time.Minute, cfg.AccessTokenTTL)
	assert.False(t, cfg.CookieSecure)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
	assert.True(t, cfg.ObjectStore.Enabled())
}

func TestLoadRequiresSecret(t *testing.T) {
	t.Setenv("VIDEOTUBE_TOKEN_SECRET", "")

	_, err := Load()
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := Config{
		AppPort:         8080,
		DatabaseURL:     "postgres://localhost/videotube",
		TokenSecret:     "secret",
		AccessTokenTTL:  time.Minute,
		RefreshTokenTTL: time.Hour,
		RequestTimeout:  time.Second,
		MaxUploadSize:   1024,
	}

	cases := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "missing secret", mutate: func(c *Config) { c.TokenSecret = "" }, wantErr: true},
		{name: "zero access ttl", mutate: func(c *Config) { c.AccessTokenTTL = 0 }, wantErr: true},
		{name: "access outlives refresh", mutate: func(c *Config) { c.AccessTokenTTL = 2 * time.Hour }, wantErr: true},
		{name: "no request timeout", mutate: func(c *Config) { c.RequestTimeout = 0 }, wantErr: true},
		{name: "bad port", mutate: func(c *Config) { c.AppPort = 0 }, wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
