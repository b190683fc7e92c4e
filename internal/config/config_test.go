package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.ServicePort)
	assert.Equal(t, DriverMySQL, cfg.DBDriver)
	assert.InDelta(t, 0.8, cfg.FuzzyCutoff, 1e-9)
	assert.Equal(t, time.Hour, cfg.CacheTTL)
	assert.Equal(t, int64(10*1024*1024), cfg.GetMaxUploadBytes())
	assert.Equal(t, "root:@tcp(localhost:4000)/schematic?charset=utf8mb4&parseTime=True&loc=UTC", cfg.GetDSN())
	assert.Equal(t, "localhost:6379", cfg.GetRedisAddr())
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("DB_DRIVER", DriverSQLite)
	t.Setenv("SQLITE_PATH", "/tmp/catalog.db")
	t.Setenv("FUZZY_CUTOFF", "0.65")
	t.Setenv("CACHE_TTL", "5m")
	t.Setenv("MINIO_USE_SSL", "true")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "/tmp/catalog.db", cfg.GetDSN())
	assert.InDelta(t, 0.65, cfg.FuzzyCutoff, 1e-9)
	assert.Equal(t, 5*time.Minute, cfg.CacheTTL)
	assert.True(t, cfg.MinIOUseSSL)
}

func TestLoadConfigRejectsBadValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{name: "non numeric upload limit", key: "MAX_UPLOAD_MB", value: "lots"},
		{name: "cutoff above one", key: "FUZZY_CUTOFF", value: "1.5"},
		{name: "unknown driver", key: "DB_DRIVER", value: "oracle"},
		{name: "bad ttl", key: "CACHE_TTL", value: "forever"},
		{name: "bad bool", key: "TRACING_ENABLED", value: "maybe"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := LoadConfig()
			assert.Error(t, err)
		})
	}
}
