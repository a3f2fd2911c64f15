package config

import (
	"encoding/json"
	"os"

	"github.com/CrispStrobe/filen-go/internal/flagx"
	"github.com/CrispStrobe/filen-go/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. It relies on
// timex.Duration so intervals can be spelled either as strings like "30s" or
// as integer nanoseconds. Absent fields keep their earlier values.
type JsonConfig struct {
	GatewayURL         string         `json:"gateway_url"`
	IngestURL          string         `json:"ingest_url"`
	EgestURL           string         `json:"egest_url"`
	DataDir            string         `json:"data_dir"`
	ChunkUploadTimeout timex.Duration `json:"chunk_upload_timeout"`
	MaxRetries         *int           `json:"max_retries"`
	CacheTTL           timex.Duration `json:"cache_ttl"`
}

// parseJson overlays cfg with values loaded from the JSON file named by the
// -c or -config flag. No flag means no JSON. Panics on read or unmarshal
// errors; a broken config file should stop the run immediately.
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.ConfigPathFromArgs(os.Args[1:])
	if jsonConfigFile == "" {
		return
	}

	var jc JsonConfig

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	if jc.GatewayURL != "" {
		cfg.GatewayURL = jc.GatewayURL
	}
	if jc.IngestURL != "" {
		cfg.IngestURL = jc.IngestURL
	}
	if jc.EgestURL != "" {
		cfg.EgestURL = jc.EgestURL
	}
	if jc.DataDir != "" {
		cfg.DataDir = jc.DataDir
	}
	if jc.ChunkUploadTimeout.Duration != 0 {
		cfg.ChunkUploadTimeout = jc.ChunkUploadTimeout.Duration
	}
	if jc.MaxRetries != nil {
		cfg.MaxRetries = *jc.MaxRetries
	}
	if jc.CacheTTL.Duration != 0 {
		cfg.CacheTTL = jc.CacheTTL.Duration
	}
}
