package postgres

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDSN = "postgres://fluxa:pw@db.internal:5432/fluxa?sslmode=disable"

func TestPoolConfig_AppliesLimits(t *testing.T) {
	cfg, err := poolConfig(testDSN, 10, 2, 30*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int32(10), cfg.MaxConns)
	assert.Equal(t, int32(2), cfg.MinConns)
	assert.Equal(t, 30*time.Minute, cfg.MaxConnLifetime)
	assert.Equal(t, "db.internal", cfg.ConnConfig.Host)
}

func TestPoolConfig_ZeroKeepsDefaultsAndClampsFloor(t *testing.T) {
	defaults, err := poolConfig(testDSN, 0, 0, 0)
	require.NoError(t, err)
	assert.Positive(t, defaults.MaxConns)
	assert.Positive(t, defaults.MaxConnLifetime)

	cfg, err := poolConfig(testDSN, 3, 8, 0)
	require.NoError(t, err)
	assert.Equal(t, int32(3), cfg.MinConns)
}

func TestPoolConfig_BadDSN(t *testing.T) {
	_, err := poolConfig("postgres://%zz", 1, 1, time.Minute)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse dsn")
}
