// Package config loads schemasense-engine configuration from config.yaml
// with environment-variable overrides, following the project's convention
// that secrets never live in the YAML file.
package config

import (
	"fmt"
	"os"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for schemasense-engine. Configuration can
// come from YAML file (config.yaml) or environment variables; environment
// variables always override YAML values. DatabaseURL must only come from an
// environment variable since it carries credentials.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"8090"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	Version  string `yaml:"-"`

	// TLS configuration (optional - if both provided, server uses HTTPS)
	TLSCertPath string `yaml:"tls_cert_path" env:"TLS_CERT_PATH" env-default:""`
	TLSKeyPath  string `yaml:"tls_key_path" env:"TLS_KEY_PATH" env-default:""`

	// DatabaseURL is the DSN for the target database being profiled.
	// Secret - not in YAML. Its scheme/driver hint (postgres://, mysql, or
	// sqlserver://) selects the dialect adapter unless Dialect is set.
	DatabaseURL string `yaml:"-" env:"SCHEMASENSE_DATABASE_URL"`

	// Dialect overrides dialect auto-detection from DatabaseURL's scheme.
	// One of "postgres", "mysql", "mssql".
	Dialect string `yaml:"dialect" env:"SCHEMASENSE_DIALECT" env-default:""`

	// MetadataDatabaseURL is the DSN for the engine's own PostgreSQL store
	// (persisted schema card cache, pgvector indices). Secret - not in YAML.
	MetadataDatabaseURL string `yaml:"-" env:"SCHEMASENSE_METADATA_DATABASE_URL"`

	// Embedding configures the semantic embedding backend.
	Embedding EmbeddingConfig `yaml:"embedding"`

	// Reflection configures schema discovery and sampling behavior.
	Reflection ReflectionConfig `yaml:"reflection"`

	// GraphBuild configures subject-area graph construction.
	GraphBuild GraphBuildConfig `yaml:"graph_build"`

	// Retrieval configures the semantic index and token lexicon.
	Retrieval RetrievalConfig `yaml:"retrieval"`

	// Execution configures the execute_query tool's limits.
	Execution ExecutionConfig `yaml:"execution"`

	// Planning configures plan_query_for_intent's table/column/join caps.
	Planning PlanningConfig `yaml:"planning"`

	// DebugToolsEnabled gates the find_tables/find_columns debug tools.
	DebugToolsEnabled bool `yaml:"debug_tools_enabled" env:"SCHEMASENSE_DEBUG_TOOLS_ENABLED" env-default:"false"`
}

// EmbeddingConfig selects and tunes the embedding backend used to build the
// semantic index and token lexicon.
type EmbeddingConfig struct {
	// Backend is "openai", "anthropic", or "none" (lexical-only retrieval).
	Backend string `yaml:"backend" env:"SCHEMASENSE_EMBEDDING_BACKEND" env-default:"openai"`
	Model   string `yaml:"model" env:"SCHEMASENSE_EMBEDDING_MODEL" env-default:"text-embedding-3-small"`
	APIKey  string `yaml:"-" env:"SCHEMASENSE_EMBEDDING_API_KEY"`
}

// ReflectionConfig tunes schema discovery, sampling, and startup pacing.
type ReflectionConfig struct {
	PerTableRows           int  `yaml:"per_table_rows" env:"SCHEMASENSE_PER_TABLE_ROWS" env-default:"50"`
	SampleTimeoutSec       int  `yaml:"sample_timeout_sec" env:"SCHEMASENSE_SAMPLE_TIMEOUT_SEC" env-default:"15"`
	ReflectTimeoutSec      int  `yaml:"reflect_timeout_sec" env:"SCHEMASENSE_REFLECT_TIMEOUT_SEC" env-default:"120"`
	MaxColsForEmbeddings   int  `yaml:"max_cols_for_embeddings" env:"SCHEMASENSE_MAX_COLS_FOR_EMBEDDINGS" env-default:"20"`
	MaxSampledColumns      int  `yaml:"max_sampled_columns" env:"SCHEMASENSE_MAX_SAMPLED_COLUMNS" env-default:"40"`
	FastStartup            bool `yaml:"fast_startup" env:"SCHEMASENSE_FAST_STARTUP" env-default:"false"`
	MaxTablesAtStartup     int  `yaml:"max_tables_at_startup" env:"SCHEMASENSE_MAX_TABLES_AT_STARTUP" env-default:"0"`
	ValueConstraintThreshold int `yaml:"value_constraint_threshold" env:"SCHEMASENSE_VALUE_CONSTRAINT_THRESHOLD" env-default:"20"`
}

// GraphBuildConfig tunes subject-area community detection.
type GraphBuildConfig struct {
	MinAreaSize         int  `yaml:"min_area_size" env:"SCHEMASENSE_MIN_AREA_SIZE" env-default:"2"`
	MergeArchiveAreas   bool `yaml:"merge_archive_areas" env:"SCHEMASENSE_MERGE_ARCHIVE_AREAS" env-default:"true"`
	StrictArchiveExclude bool `yaml:"strict_archive_exclude" env:"SCHEMASENSE_STRICT_ARCHIVE_EXCLUDE" env-default:"false"`
}

// RetrievalConfig tunes the semantic index and token lexicon.
type RetrievalConfig struct {
	LexiconTopN  int `yaml:"lexicon_top_n" env:"SCHEMASENSE_LEXICON_TOP_N" env-default:"2000"`
	LexiconMinDF int `yaml:"lexicon_min_df" env:"SCHEMASENSE_LEXICON_MIN_DF" env-default:"1"`
	MorphMinLen  int `yaml:"morph_min_len" env:"SCHEMASENSE_MORPH_MIN_LEN" env-default:"3"`
}

// PlanningConfig bounds plan_query_for_intent's output size.
type PlanningConfig struct {
	TopKTables        int `yaml:"top_k_tables" env:"SCHEMASENSE_TOP_K_TABLES" env-default:"8"`
	MaxColumnsPerTable int `yaml:"max_columns_per_table" env:"SCHEMASENSE_MAX_COLUMNS_PER_TABLE" env-default:"12"`
	JoinLimit         int `yaml:"join_limit" env:"SCHEMASENSE_JOIN_LIMIT" env-default:"10"`
	MaxItems          int `yaml:"max_items" env:"SCHEMASENSE_MAX_ITEMS" env-default:"8"`
}

// ExecutionConfig bounds the execute_query tool.
type ExecutionConfig struct {
	RowLimit        int `yaml:"row_limit" env:"SCHEMASENSE_ROW_LIMIT" env-default:"200"`
	MaxCellChars    int `yaml:"max_cell_chars" env:"SCHEMASENSE_MAX_CELL_CHARS" env-default:"200"`
	MaxPayloadBytes int `yaml:"max_payload_bytes" env:"SCHEMASENSE_MAX_PAYLOAD_BYTES" env-default:"200000"`
}

// Load reads configuration from config.yaml with environment variable
// overrides. The version parameter is injected at build time.
func Load(version string) (*Config, error) {
	cfg := &Config{Version: version}

	if _, err := os.Stat("config.yaml"); err == nil {
		if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
			return nil, fmt.Errorf("read config.yaml: %w", err)
		}
	} else {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("read environment: %w", err)
		}
	}

	if err := cfg.validateTLS(); err != nil {
		return nil, fmt.Errorf("invalid TLS configuration: %w", err)
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("SCHEMASENSE_DATABASE_URL is required")
	}

	return cfg, nil
}

// validateTLS ensures TLS configuration is valid if provided. Both cert and
// key must be provided together, and files must exist.
func (c *Config) validateTLS() error {
	certSet := c.TLSCertPath != ""
	keySet := c.TLSKeyPath != ""

	if certSet != keySet {
		return fmt.Errorf("both tls_cert_path and tls_key_path must be provided together")
	}
	if certSet {
		if _, err := os.Stat(c.TLSCertPath); err != nil {
			return fmt.Errorf("TLS cert file does not exist: %w", err)
		}
		if _, err := os.Stat(c.TLSKeyPath); err != nil {
			return fmt.Errorf("TLS key file does not exist: %w", err)
		}
	}
	return nil
}
