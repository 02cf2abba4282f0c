package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Duration wraps time.Duration so JSON config files can use human-readable
// values like "15s" or "5m".
type Duration time.Duration

// UnmarshalJSON accepts either a duration string ("30s") or a number of
// nanoseconds.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var asString string
	if err := json.Unmarshal(data, &asString); err == nil {
		parsed, err := time.ParseDuration(asString)
		if err != nil {
			return fmt.Errorf("error parsing duration %q: %w", asString, err)
		}
		*d = Duration(parsed)
		return nil
	}

	var asNanos int64
	if err := json.Unmarshal(data, &asNanos); err != nil {
		return fmt.Errorf("error parsing duration: %w", err)
	}
	*d = Duration(asNanos)
	return nil
}

type structuredJSONConfig struct {
	Storage struct {
		Cache struct {
			DSN string `json:"dsn"`
		} `json:"cache,omitempty"`
		Outbox struct {
			DSN string `json:"dsn"`
		} `json:"outbox,omitempty"`
	} `json:"storage,omitempty"`

	Backend struct {
		BaseURL        string   `json:"base_url"`
		RequestTimeout Duration `json:"request_timeout"`
		ProbeInterval  Duration `json:"probe_interval"`
	} `json:"backend,omitempty"`

	Sync struct {
		BatchSize   int      `json:"batch_size"`
		Interval    Duration `json:"interval"`
		MaxRetries  int      `json:"max_retries"`
		BaseDelay   Duration `json:"base_delay"`
		MaxDelay    Duration `json:"max_delay"`
		Strategy    string   `json:"strategy"`
		AutoResolve bool     `json:"auto_resolve"`
		EntityTypes []string `json:"entity_types"`
	} `json:"sync,omitempty"`
}

func parseJSON(jsonFilePath string) (*StructuredConfig, error) {
	jsonFile, err := os.Open(jsonFilePath)
	if err != nil {
		return nil, fmt.Errorf("error reading a json file: %w", err)
	}
	defer jsonFile.Close()

	var jsonCfg structuredJSONConfig
	if err := json.NewDecoder(jsonFile).Decode(&jsonCfg); err != nil {
		return nil, fmt.Errorf("error decoding json configs: %w", err)
	}

	cfg := &StructuredConfig{
		Storage: Storage{
			Cache:  DB{DSN: jsonCfg.Storage.Cache.DSN},
			Outbox: DB{DSN: jsonCfg.Storage.Outbox.DSN},
		},
		Backend: Backend{
			BaseURL:        jsonCfg.Backend.BaseURL,
			RequestTimeout: time.Duration(jsonCfg.Backend.RequestTimeout),
			ProbeInterval:  time.Duration(jsonCfg.Backend.ProbeInterval),
		},
		Sync: Sync{
			BatchSize:   jsonCfg.Sync.BatchSize,
			Interval:    time.Duration(jsonCfg.Sync.Interval),
			MaxRetries:  jsonCfg.Sync.MaxRetries,
			BaseDelay:   time.Duration(jsonCfg.Sync.BaseDelay),
			MaxDelay:    time.Duration(jsonCfg.Sync.MaxDelay),
			Strategy:    jsonCfg.Sync.Strategy,
			AutoResolve: jsonCfg.Sync.AutoResolve,
			EntityTypes: jsonCfg.Sync.EntityTypes,
		},
	}

	return cfg, nil
}
