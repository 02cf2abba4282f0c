package config

import (
	"flag"
	"strings"
	"time"
)

// ParseFlags parses all configuration flags.
//
// Flags:
//
//	-cache-dsn entity cache SQLite path (or :memory:)
//	-outbox-dsn outbox SQLite path (or :memory:)
//	-backend backend base URL
//	-request-timeout outbound request timeout (e.g., "15s")
//	-probe-interval reachability probe interval (e.g., "10s")
//	-batch-size pull phase batch size
//	-sync-interval background sync period (e.g., "5m")
//	-max-retries retry budget before dead-letter/rollback
//	-base-delay first retry backoff delay
//	-max-delay retry backoff cap
//	-strategy conflict strategy (last_write_wins|client_wins|server_wins|manual)
//	-auto-resolve resolve conflicts automatically with -strategy
//	-entity-types comma-separated entity types to sync
//	-log-file write logs to a file next to the executable
//	-c/-config json file path with configs
func ParseFlags() *StructuredConfig {
	var cacheDSN string
	var outboxDSN string
	var backendURL string
	var requestTimeout time.Duration
	var probeInterval time.Duration
	var batchSize int
	var syncInterval time.Duration
	var maxRetries int
	var baseDelay time.Duration
	var maxDelay time.Duration
	var strategy string
	var autoResolve bool
	var entityTypes string
	var logToFile bool
	var jsonConfigPath string

	flag.StringVar(&cacheDSN, "cache-dsn", "", "Entity cache SQLite path")
	flag.StringVar(&outboxDSN, "outbox-dsn", "", "Outbox SQLite path")
	flag.StringVar(&backendURL, "backend", "", "Backend base URL")
	flag.DurationVar(&requestTimeout, "request-timeout", 0, "Request timeout (e.g., 15s)")
	flag.DurationVar(&probeInterval, "probe-interval", 0, "Reachability probe interval (e.g., 10s)")
	flag.IntVar(&batchSize, "batch-size", 0, "Pull phase batch size")
	flag.DurationVar(&syncInterval, "sync-interval", 0, "Background sync period (e.g., 5m)")
	flag.IntVar(&maxRetries, "max-retries", 0, "Retry budget before dead-letter/rollback")
	flag.DurationVar(&baseDelay, "base-delay", 0, "First retry backoff delay")
	flag.DurationVar(&maxDelay, "max-delay", 0, "Retry backoff cap")
	flag.StringVar(&strategy, "strategy", "", "Conflict strategy")
	flag.BoolVar(&autoResolve, "auto-resolve", false, "Resolve conflicts automatically")
	flag.StringVar(&entityTypes, "entity-types", "", "Comma-separated entity types to sync")
	flag.BoolVar(&logToFile, "log-file", false, "Write logs to a file next to the executable")
	flag.StringVar(&jsonConfigPath, "c", "", "JSON config file path")
	flag.StringVar(&jsonConfigPath, "config", "", "JSON config file path (alias)")

	flag.Parse()

	var types []string
	if entityTypes != "" {
		for _, t := range strings.Split(entityTypes, ",") {
			if t = strings.TrimSpace(t); t != "" {
				types = append(types, t)
			}
		}
	}

	return &StructuredConfig{
		Storage: Storage{
			Cache:  DB{DSN: cacheDSN},
			Outbox: DB{DSN: outboxDSN},
		},
		Backend: Backend{
			BaseURL:        backendURL,
			RequestTimeout: requestTimeout,
			ProbeInterval:  probeInterval,
		},
		Sync: Sync{
			BatchSize:   batchSize,
			Interval:    syncInterval,
			MaxRetries:  maxRetries,
			BaseDelay:   baseDelay,
			MaxDelay:    maxDelay,
			Strategy:    strategy,
			AutoResolve: autoResolve,
			EntityTypes: types,
		},
		JSONFilePath: jsonConfigPath,
		LogToFile:    logToFile,
	}
}
