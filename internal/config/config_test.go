package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fitDietAPI/internal/config"
)

func env(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestFromEnv_Defaults(t *testing.T) {
	cfg, err := config.FromEnv(env(map[string]string{"SQLITE_PATH": "/tmp/fit.db"}))
	require.NoError(t, err)

	assert.Equal(t, "3333", cfg.Port)
	assert.Equal(t, 30*time.Second, cfg.LeaderboardRefreshInterval)
	assert.True(t, cfg.SupersedeActiveProgram)
	assert.Equal(t, 5.0, cfg.RateLimitRPS)
	assert.Equal(t, 30, cfg.RateLimitBurst)
	assert.False(t, cfg.UsePostgres())
}

func TestFromEnv_Overrides(t *testing.T) {
	cfg, err := config.FromEnv(env(map[string]string{
		"DATABASE_URL":                 "postgres://localhost/fit",
		"PORT":                         "8080",
		"LEADERBOARD_REFRESH_INTERVAL": "2m",
		"SUPERSEDE_ACTIVE_PROGRAM":     "false",
		"RATE_LIMIT_RPS":               "1.5",
		"RATE_LIMIT_BURST":             "4",
	}))
	require.NoError(t, err)

	assert.True(t, cfg.UsePostgres())
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 2*time.Minute, cfg.LeaderboardRefreshInterval)
	assert.False(t, cfg.SupersedeActiveProgram)
	assert.Equal(t, 1.5, cfg.RateLimitRPS)
	assert.Equal(t, 4, cfg.RateLimitBurst)
}

func TestFromEnv_Errors(t *testing.T) {
	cases := map[string]map[string]string{
		"no database":      {},
		"bad interval":     {"SQLITE_PATH": "x", "LEADERBOARD_REFRESH_INTERVAL": "soon"},
		"zero interval":    {"SQLITE_PATH": "x", "LEADERBOARD_REFRESH_INTERVAL": "0s"},
		"bad bool":         {"SQLITE_PATH": "x", "SUPERSEDE_ACTIVE_PROGRAM": "maybe"},
		"negative burst":   {"SQLITE_PATH": "x", "RATE_LIMIT_BURST": "-1"},
		"non-numeric rate": {"SQLITE_PATH": "x", "RATE_LIMIT_RPS": "fast"},
	}
	for name, vars := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := config.FromEnv(env(vars))
			assert.Error(t, err)
		})
	}
}
