// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// HTTPConfig holds shared HTTP settings for components that make network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "knowledge-engine/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// GraphConfig holds connection settings for the Neo4j backend. Each field has
// an environment override (NEO4J_URI, NEO4J_USER, NEO4J_PASSWORD).
type GraphConfig struct {
	// URI is the Bolt endpoint (e.g. "bolt://localhost:7687").
	URI string `json:"uri" yaml:"uri"`

	// Username and Password authenticate against the database. Password may
	// also come from the secrets directory.
	Username string `json:"username" yaml:"username"`
	Password string `json:"password,omitempty" yaml:"password,omitempty"`

	// Database is the target database name. Empty selects the server default.
	Database string `json:"database,omitempty" yaml:"database,omitempty"`
}

// StoreBackend identifies the graph storage backend.
type StoreBackend string

const (
	BackendNeo4j  StoreBackend = "neo4j"
	BackendSQLite StoreBackend = "sqlite"
)

// StoreConfig holds backend-independent storage settings.
type StoreConfig struct {
	// Backend selects the storage implementation: neo4j or sqlite.
	Backend StoreBackend `json:"backend" yaml:"backend"`

	// Path is the SQLite database path when Backend is sqlite
	// (default "knowledge/graph.db").
	Path string `json:"path" yaml:"path"`

	// MaxResults is the default maximum number of query results (default 100).
	MaxResults int `json:"max_results" yaml:"max_results"`

	// SchemaValidation controls whether writes are validated against the
	// entity and relationship schemas (default true).
	SchemaValidation bool `json:"schema_validation" yaml:"schema_validation"`
}

// CacheConfig holds query cache settings.
type CacheConfig struct {
	// MaxEntries is the cache capacity before LRU eviction (default 128).
	MaxEntries int `json:"max_entries" yaml:"max_entries"`

	// TTL is how long a cached result stays valid (default 5m).
	TTL time.Duration `json:"ttl" yaml:"ttl"`

	// SlowQueryThreshold is the duration above which a query is logged as
	// slow (default 1s).
	SlowQueryThreshold time.Duration `json:"slow_query_threshold" yaml:"slow_query_threshold"`
}

// EnrichConfig holds settings for document metadata enrichment.
type EnrichConfig struct {
	HTTPConfig `yaml:",inline"`

	// Email is sent to OpenAlex for polite-pool access. Optional.
	Email string `json:"email,omitempty" yaml:"email,omitempty"`
}

// EngineConfig groups all component configurations.
type EngineConfig struct {
	Graph  GraphConfig  `json:"graph" yaml:"graph"`
	Store  StoreConfig  `json:"store" yaml:"store"`
	Cache  CacheConfig  `json:"cache" yaml:"cache"`
	Enrich EnrichConfig `json:"enrich" yaml:"enrich"`

	// LogLevel sets the logger verbosity: debug, info, warn, or error.
	LogLevel string `json:"log_level" yaml:"log_level"`
}
