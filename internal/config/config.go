// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Bazaar Labs

package config

import (
	"time"

	"github.com/bazaarlabs/go-market-sync/models"
)

// StructuredConfig is the top-level configuration container for the
// go-market-sync engine. It aggregates all sub-configurations and is
// populated by merging values from environment variables, command-line flags,
// and an optional JSON file.
//
// Struct tags:
//   - envPrefix: prefix applied to all nested env tag lookups (caarlos0/env).
//   - env: direct environment variable name for scalar fields.
type StructuredConfig struct {
	// Storage holds the local SQLite database locations.
	Storage Storage `envPrefix:"STORAGE_"`

	// Backend holds settings for the remote marketplace API.
	Backend Backend `envPrefix:"BACKEND_"`

	// Sync holds tuning knobs for the sync orchestrator, the offline queue
	// and the optimistic update manager.
	Sync Sync `envPrefix:"SYNC_"`

	// JSONFilePath is the optional path to a JSON configuration file.
	// When non-empty, the file is parsed and merged on top of the values
	// already loaded from environment variables and flags.
	// Populated via the CONFIG environment variable or the -c / -config flag.
	JSONFilePath string `env:"CONFIG"`

	// LogToFile redirects log output to a "logs" file next to the
	// executable instead of stdout. Useful on devices where stdout is not
	// captured.
	// Env: LOG_TO_FILE
	LogToFile bool `env:"LOG_TO_FILE"`
}

// Storage groups the two local database locations.
type Storage struct {
	// Cache is the entity cache database. Expendable: corruption recovery
	// discards and recreates this file.
	// Env: STORAGE_CACHE_DSN
	Cache DB `envPrefix:"CACHE_"`

	// Outbox is the durable queue database holding deferred operations and
	// pending conflicts. Never recreated automatically.
	// Env: STORAGE_OUTBOX_DSN
	Outbox DB `envPrefix:"OUTBOX_"`
}

// DB holds the location of one SQLite database.
type DB struct {
	// DSN is the SQLite file path, or ":memory:" for an in-memory database.
	DSN string `env:"DSN"`
}

// Backend holds settings for the remote marketplace API.
type Backend struct {
	// BaseURL is the root URL of the marketplace API
	// (e.g. "https://api.example.com").
	// Env: BACKEND_BASE_URL
	BaseURL string `env:"BASE_URL"`

	// RequestTimeout is the maximum duration allowed for a single outbound
	// request (e.g. "15s").
	// Env: BACKEND_REQUEST_TIMEOUT
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT"`

	// ProbeInterval is how often the reachability observer probes the
	// backend while offline (e.g. "10s").
	// Env: BACKEND_PROBE_INTERVAL
	ProbeInterval time.Duration `env:"PROBE_INTERVAL"`
}

// Sync holds tuning knobs for the sync engine.
type Sync struct {
	// BatchSize bounds how many remote entities one pull phase requests.
	// Env: SYNC_BATCH_SIZE
	BatchSize int `env:"BATCH_SIZE"`

	// Interval is the period of the background full-sync job.
	// Env: SYNC_INTERVAL
	Interval time.Duration `env:"INTERVAL"`

	// MaxRetries bounds retries for queued operations and optimistic
	// updates before dead-lettering / rollback.
	// Env: SYNC_MAX_RETRIES
	MaxRetries int `env:"MAX_RETRIES"`

	// BaseDelay is the first retry backoff delay.
	// Env: SYNC_BASE_DELAY
	BaseDelay time.Duration `env:"BASE_DELAY"`

	// MaxDelay caps the exponential retry backoff.
	// Env: SYNC_MAX_DELAY
	MaxDelay time.Duration `env:"MAX_DELAY"`

	// Strategy is the conflict resolution strategy applied during pulls:
	// last_write_wins, client_wins, server_wins or manual.
	// Env: SYNC_STRATEGY
	Strategy string `env:"STRATEGY"`

	// AutoResolve enables automatic conflict resolution with Strategy.
	// When false every detected conflict is queued for manual resolution.
	// Env: SYNC_AUTO_RESOLVE
	AutoResolve bool `env:"AUTO_RESOLVE"`

	// EntityTypes lists the entity types a full sync covers, in order.
	// Env: SYNC_ENTITY_TYPES (comma-separated)
	EntityTypes []string `env:"ENTITY_TYPES"`
}

// Defaults applied by validation when a knob is unset.
const (
	DefaultBatchSize      = 100
	DefaultSyncInterval   = 5 * time.Minute
	DefaultMaxRetries     = 3
	DefaultBaseDelay      = 1 * time.Second
	DefaultMaxDelay       = 2 * time.Minute
	DefaultRequestTimeout = 15 * time.Second
	DefaultProbeInterval  = 10 * time.Second
)

// DefaultEntityTypes is the sync order used when SYNC_ENTITY_TYPES is unset.
// Listings first: most other entity types hang off them.
var DefaultEntityTypes = []string{
	models.EntityTypeListing,
	models.EntityTypePost,
	models.EntityTypeFavorite,
	models.EntityTypeReview,
	models.EntityTypeProfile,
	models.EntityTypeMessage,
}
