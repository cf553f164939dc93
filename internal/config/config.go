package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/joho/godotenv"
)

// Environment variables
const (
	EnvDataPath       = "SOLUTION_MEMORY_PATH"
	EnvSemanticWeight = "SOLUTION_MEMORY_SEMANTIC_WEIGHT"
)

// Defaults
const (
	DefaultDataDirName    = ".solution-memory"
	DefaultSemanticWeight = 0.6
)

// Config holds the server configuration. Embedding provider selection is
// handled separately by the embedder package from its own env vars.
type Config struct {
	// DataDir holds both database files (solutions.db and vectors.db)
	DataDir string

	// SemanticWeight is the semantic share of the hybrid score, in [0,1]
	SemanticWeight float64
}

// Validate checks the configuration for invalid values.
func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.DataDir, validation.Required),
		validation.Field(&c.SemanticWeight, validation.Min(0.0), validation.Max(1.0)),
	)
}

// Load builds a Config from the environment. A .env file in the working
// directory is read first when present; real environment variables win.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		SemanticWeight: DefaultSemanticWeight,
	}

	cfg.DataDir = os.Getenv(EnvDataPath)
	if cfg.DataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return Config{}, fmt.Errorf("failed to get home directory: %w", err)
		}
		cfg.DataDir = filepath.Join(home, DefaultDataDirName)
	}

	if raw := os.Getenv(EnvSemanticWeight); raw != "" {
		weight, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s %q: %w", EnvSemanticWeight, raw, err)
		}
		cfg.SemanticWeight = weight
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}
