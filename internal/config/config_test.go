package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.WorkerConcurrency)
	assert.Equal(t, 10*time.Minute, cfg.TaskTimeout())
	assert.Equal(t, 5, cfg.RetryMaxAttempts)
	assert.Equal(t, 120*time.Second, cfg.KositTimeout())
	assert.True(t, cfg.Tolerance().Equal(decimal.RequireFromString("0.02")))
	assert.Equal(t, "raw-invoices", cfg.Blob.RawBucket)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "iiev.yaml")
	content := `
worker-concurrency: 8
monetary-tolerance: "0.05"
metadata-dsn: "postgres://meta"
blob:
  endpoint: "minio:9000"
  use-ssl: false
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8, cfg.WorkerConcurrency)
	assert.True(t, cfg.Tolerance().Equal(decimal.RequireFromString("0.05")))
	assert.Equal(t, "postgres://meta", cfg.MetadataDSN)
	assert.Equal(t, "minio:9000", cfg.Blob.Endpoint)
	assert.False(t, cfg.Blob.UseSSL)
	// Untouched keys keep their defaults.
	assert.Equal(t, 600, cfg.TaskTimeoutSeconds)
}

func TestToleranceFallback(t *testing.T) {
	cfg := &Config{MonetaryTolerance: "not-a-number"}
	assert.True(t, cfg.Tolerance().Equal(decimal.RequireFromString("0.02")))
}
