package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	var c Config
	c.LoadDefaults()

	assert.Equal(t, "https://gateway.filen.io", c.GatewayURL)
	assert.Equal(t, "https://ingest.filen.io", c.IngestURL)
	assert.Equal(t, "https://egest.filen.io", c.EgestURL)
	assert.Equal(t, 30*time.Second, c.ChunkUploadTimeout)
	assert.Equal(t, 3, c.MaxRetries)
	assert.Equal(t, 10*time.Minute, c.CacheTTL)
	assert.Equal(t, ".filen-cli", filepath.Base(c.DataDir))
}

func TestConfig_DerivedPaths(t *testing.T) {
	c := Config{DataDir: "/home/u/.filen-cli"}

	assert.Equal(t, filepath.Join("/home/u/.filen-cli", "credentials.json"), c.CredentialsPath())
	assert.Equal(t, filepath.Join("/home/u/.filen-cli", "batch_states"), c.BatchStateDir())
}

func TestLoadConfig_UsesDefaultsBeforeParsing(t *testing.T) {
	cfg := LoadConfig()

	require.NotNil(t, cfg, "LoadConfig must not return nil")
	assert.Equal(t, "https://gateway.filen.io", cfg.GatewayURL)
	assert.Equal(t, 10*time.Minute, cfg.CacheTTL)
}
