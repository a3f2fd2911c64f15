// Package config holds the runtime settings of the client and the layered
// loading that produces them: built-in defaults, then an optional JSON file,
// then command-line flags, with later sources taking precedence.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/CrispStrobe/filen-go/internal/api"
)

// appDirName is the per-user state directory under the home directory.
const appDirName = ".filen-cli"

// Config holds runtime settings for the client.
//
// The three URLs address the service's metadata gateway and its chunk
// ingest/egest hosts. DataDir is where credentials and batch state live.
type Config struct {
	GatewayURL string
	IngestURL  string
	EgestURL   string

	DataDir string

	// ChunkUploadTimeout bounds a single chunk upload attempt. MaxRetries
	// counts retries after the first attempt. CacheTTL is how long a cached
	// directory listing stays fresh.
	ChunkUploadTimeout time.Duration
	MaxRetries         int
	CacheTTL           time.Duration
}

// LoadDefaults populates c with the production defaults.
func (c *Config) LoadDefaults() {
	c.GatewayURL = api.DefaultGatewayURL
	c.IngestURL = api.DefaultIngestURL
	c.EgestURL = api.DefaultEgestURL
	c.DataDir = defaultDataDir()
	c.ChunkUploadTimeout = 30 * time.Second
	c.MaxRetries = 3
	c.CacheTTL = 10 * time.Minute
}

// CredentialsPath is the stored-session file inside DataDir.
func (c *Config) CredentialsPath() string {
	return filepath.Join(c.DataDir, "credentials.json")
}

// BatchStateDir is the directory for resumable batch state files.
func (c *Config) BatchStateDir() string {
	return filepath.Join(c.DataDir, "batch_states")
}

// LoadConfig constructs a Config, applies defaults, then overlays values
// from JSON (if a config file was given) and command-line flags. Later
// sources take precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return appDirName
	}
	return filepath.Join(home, appDirName)
}
