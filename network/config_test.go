package network

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveConfigFlagsOverrideAll(t *testing.T) {
	flags := &ClientConfig{URL: "http://custom:9999", User: "me", Password: "secret", TraceMessages: true}
	env := map[string]string{EnvURL: "http://env:1", EnvUser: "envuser"}
	cfg, err := ResolveConfig(flags, env, "opencoin://example.org")
	require.NoError(t, err)
	assert.Equal(t, "http://custom:9999", cfg.URL)
	assert.Equal(t, "me", cfg.User)
	assert.Equal(t, "secret", cfg.Password)
	assert.True(t, cfg.TraceMessages)
}

func TestResolveConfigEnvOverridesLocation(t *testing.T) {
	env := map[string]string{
		EnvURL:  "http://env-node:6789",
		EnvUser: "envuser",
	}
	cfg, err := ResolveConfig(nil, env, "opencoin://example.org")
	require.NoError(t, err)
	assert.Equal(t, "http://env-node:6789", cfg.URL)
	assert.Equal(t, "envuser", cfg.User)
	assert.Empty(t, cfg.Password)
}

func TestResolveConfigLocationFallback(t *testing.T) {
	cfg, err := ResolveConfig(nil, nil, "opencoin://example.org")
	require.NoError(t, err)
	assert.Equal(t, "opencoin://example.org", cfg.URL)
}

func TestResolveConfigRequiresEndpoint(t *testing.T) {
	_, err := ResolveConfig(nil, map[string]string{EnvURL: ""}, "")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidLocation)
	assert.Contains(t, err.Error(), EnvURL)
}

func TestResolveConfigPartialFlags(t *testing.T) {
	flags := &ClientConfig{User: "alice"}
	cfg, err := ResolveConfig(flags, nil, "http://mint.local:6789")
	require.NoError(t, err)
	assert.Equal(t, "http://mint.local:6789", cfg.URL)
	assert.Equal(t, "alice", cfg.User)
}
