package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlagsDefaults(t *testing.T) {
	t.Setenv("SURVEY_TOKEN_SECRET", "s3cret")

	cfg, err := ParseFlags(nil)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:80", cfg.Addr)
	assert.Equal(t, "http://localhost:80", cfg.BaseURL)
	assert.Equal(t, "surveys.sqlite", cfg.DBUrl)
	assert.Equal(t, "public", cfg.PublicDir)
	assert.Equal(t, 2*time.Minute, cfg.TokenTTL)
	assert.Equal(t, 100, cfg.TextSampleLimit)
	assert.False(t, cfg.Debug)
}

func TestParseFlagsOverrides(t *testing.T) {
	t.Setenv("SURVEY_TOKEN_SECRET", "s3cret")
	t.Setenv("SURVEY_PORT", "9000")
	t.Setenv("SURVEY_DEBUG", "true")

	cfg, err := ParseFlags([]string{
		"-host", "127.0.0.1",
		"-base-url", "https://surveys.example.com/",
		"-token-ttl", "60",
		"-text-sample", "5",
	})
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9000", cfg.Addr)
	assert.Equal(t, "https://surveys.example.com", cfg.BaseURL)
	assert.Equal(t, time.Minute, cfg.TokenTTL)
	assert.Equal(t, 5, cfg.TextSampleLimit)
	assert.True(t, cfg.Debug)
}

func TestParseFlagsErrors(t *testing.T) {
	t.Setenv("SURVEY_TOKEN_SECRET", "")
	_, err := ParseFlags(nil)
	assert.ErrorContains(t, err, "token-secret")

	_, err = ParseFlags([]string{"-token-secret", "x", "-text-sample", "0"})
	assert.ErrorContains(t, err, "text-sample")

	_, err = ParseFlags([]string{"-token-secret", "x", "-no-such-flag"})
	assert.Error(t, err)
}
