package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Source kinds accepted by source.kind.
const (
	SourceSQL   = "sql"
	SourceJSONL = "jsonl"
)

// Config holds the incidex configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Database  DatabaseConfig  `yaml:"database"`
	Cache     CacheConfig     `yaml:"cache"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Ingestion IngestionConfig `yaml:"ingestion"`
	Search    SearchConfig    `yaml:"search"`
	Source    SourceConfig    `yaml:"source"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// DatabaseConfig holds document store settings.
type DatabaseConfig struct {
	Path             string `yaml:"path"` // file path or :memory:
	PageSize         int    `yaml:"page_size"`
	UpsertChunkSize  int    `yaml:"upsert_chunk_size"`
	ReadinessTimeout int    `yaml:"readiness_timeout_sec"`
}

// CacheConfig holds the optional Valkey KV settings. Without addrs the
// document store's own KV table is used.
type CacheConfig struct {
	Addrs            []string `yaml:"addrs"`
	Username         string   `yaml:"username"`
	Password         string   `yaml:"password"`
	DB               int      `yaml:"db"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// Enabled reports whether a Valkey server is configured.
func (c CacheConfig) Enabled() bool { return len(c.Addrs) > 0 }

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	Provider            string `yaml:"provider"`
	BaseURL             string `yaml:"base_url"`
	APIKey              string `yaml:"api_key"`
	Model               string `yaml:"model"`
	Dimensions          int    `yaml:"dimensions"`
	MaxBatch            int    `yaml:"max_batch"`
	DocumentInstruction string `yaml:"document_instruction"`
	QueryInstruction    string `yaml:"query_instruction"`
}

// IngestionConfig holds ingestion pipeline settings.
type IngestionConfig struct {
	BatchSize        int    `yaml:"batch_size"`
	DelayMs          int    `yaml:"delay_ms"`
	TargetDimensions int    `yaml:"target_dimensions"` // negative disables reduction
	Container        string `yaml:"container"`
}

// SearchConfig holds similarity search defaults.
type SearchConfig struct {
	TitleWeight   float64 `yaml:"title_weight"`
	SummaryWeight float64 `yaml:"summary_weight"`
	MaxResults    int     `yaml:"max_results"`
}

// SourceConfig selects the upstream incident source.
type SourceConfig struct {
	Kind  string `yaml:"kind"` // sql, jsonl
	DSN   string `yaml:"dsn"`
	Query string `yaml:"query"`
	Path  string `yaml:"path"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	return LoadFile(findConfigPath(env))
}

// LoadFile reads configuration from an explicit path.
func LoadFile(configPath string) (Config, error) {
	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 60
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.PageSize <= 0 {
		c.Database.PageSize = 100
	}
	if c.Database.UpsertChunkSize <= 0 {
		c.Database.UpsertChunkSize = 100
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Cache.ReadinessTimeout <= 0 {
		c.Cache.ReadinessTimeout = 10
	}
	if c.Embedding.Provider == "" {
		c.Embedding.Provider = "openai"
	}
	if c.Embedding.MaxBatch <= 0 {
		c.Embedding.MaxBatch = 256
	}
	if c.Ingestion.BatchSize == 0 {
		c.Ingestion.BatchSize = 16
	}
	if c.Ingestion.DelayMs == 0 {
		c.Ingestion.DelayMs = 50
	}
	if c.Ingestion.TargetDimensions == 0 {
		c.Ingestion.TargetDimensions = 3
	}
	if c.Ingestion.Container == "" {
		c.Ingestion.Container = "incidents"
	}
	if c.Search.TitleWeight == 0 && c.Search.SummaryWeight == 0 {
		c.Search.TitleWeight = 0.7
		c.Search.SummaryWeight = 0.3
	}
	if c.Search.MaxResults <= 0 {
		c.Search.MaxResults = 5
	}
	if c.Source.Kind == "" {
		c.Source.Kind = SourceJSONL
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Embedding.Model == "" {
		return fmt.Errorf("embedding.model is required")
	}
	if c.Ingestion.BatchSize < 1 {
		return fmt.Errorf("ingestion.batch_size must be at least 1, got %d", c.Ingestion.BatchSize)
	}
	if c.Ingestion.DelayMs < 0 {
		return fmt.Errorf("ingestion.delay_ms must not be negative, got %d", c.Ingestion.DelayMs)
	}
	if c.Search.TitleWeight < 0 || c.Search.SummaryWeight < 0 {
		return fmt.Errorf("search weights must not be negative, got title=%v summary=%v",
			c.Search.TitleWeight, c.Search.SummaryWeight)
	}
	switch c.Source.Kind {
	case SourceSQL:
		if c.Source.DSN == "" || c.Source.Query == "" {
			return fmt.Errorf("source.dsn and source.query are required for kind %q", SourceSQL)
		}
	case SourceJSONL:
		if c.Source.Path == "" {
			return fmt.Errorf("source.path is required for kind %q", SourceJSONL)
		}
	default:
		return fmt.Errorf("source.kind must be %q or %q, got %q", SourceSQL, SourceJSONL, c.Source.Kind)
	}
	return nil
}

// VectorDimensions returns the vector dimension declared on the container:
// the reduced size when reduction is on, the model size otherwise.
func (c *Config) VectorDimensions() int {
	if c.Ingestion.TargetDimensions > 0 {
		return c.Ingestion.TargetDimensions
	}
	return c.Embedding.Dimensions
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
