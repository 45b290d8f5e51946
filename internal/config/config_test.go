package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PLANNER_CONFIG", "")
	cfg := Load()

	require.Equal(t, ":8080", cfg.Addr)
	require.Equal(t, 20*time.Second, cfg.PlanTimeout)
	require.Equal(t, 8*time.Second, cfg.UpstreamTimeout)
	require.Equal(t, "https://test.api.amadeus.com", cfg.AmadeusURL)
	require.Equal(t, "https://api.opencagedata.com", cfg.OpenCageURL)
	require.True(t, cfg.AmadeusTokenCache)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("PLANNER_CONFIG", "")
	t.Setenv("AMADEUS_CLIENTID", "client")
	t.Setenv("AMADEUS_CLIENTSECRET", "secret")
	t.Setenv("AMADEUS_TOKEN_CACHE", "false")
	t.Setenv("OPENCAGE_KEY", "geo-key")
	t.Setenv("UPSTREAM_TIMEOUT", "3s")

	cfg := Load()

	require.Equal(t, "client", cfg.AmadeusClientID)
	require.Equal(t, "secret", cfg.AmadeusClientSecret)
	require.False(t, cfg.AmadeusTokenCache)
	require.Equal(t, "geo-key", cfg.OpenCageKey)
	require.Equal(t, 3*time.Second, cfg.UpstreamTimeout)
}
