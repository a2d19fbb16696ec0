// Package config loads engine configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds the tunable knobs of the analysis engine. Every field has a
// working default; an empty environment yields a usable configuration.
type Config struct {
	LogLevel string
	Pretty   bool

	// Monte Carlo engine
	Trials         int
	Seed           int64
	Workers        int // 0 = all logical CPUs
	TimeoutSeconds int // 0 = no wall-clock budget

	// Reported confidence level for simulation percentile outputs
	ConfidenceLevel float64

	// Variance share of base value treated as significant
	VarianceThreshold float64

	// Minimum co-occurrence frequency for risk clustering
	RiskCoOccurrence float64

	// Relative perturbation magnitude for sensitivity analysis
	SensitivityMagnitude float64
}

// Load reads configuration from environment variables, consulting a .env
// file when present
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		LogLevel:             getEnv("LOG_LEVEL", "info"),
		Pretty:               getEnvAsBool("LOG_PRETTY", false),
		Trials:               getEnvAsInt("SIM_TRIALS", 5000),
		Seed:                 int64(getEnvAsInt("SIM_SEED", 0)),
		Workers:              getEnvAsInt("SIM_WORKERS", 0),
		TimeoutSeconds:       getEnvAsInt("SIM_TIMEOUT_SECONDS", 0),
		ConfidenceLevel:      getEnvAsFloat("SIM_CONFIDENCE_LEVEL", 0.80),
		VarianceThreshold:    getEnvAsFloat("VARIANCE_THRESHOLD", 0.10),
		RiskCoOccurrence:     getEnvAsFloat("RISK_CO_OCCURRENCE", 0.15),
		SensitivityMagnitude: getEnvAsFloat("SENSITIVITY_MAGNITUDE", 0.10),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks configured values for internal consistency
func (c *Config) Validate() error {
	if c.Trials < 1 {
		return fmt.Errorf("SIM_TRIALS must be >= 1, got %d", c.Trials)
	}
	if c.ConfidenceLevel <= 0 || c.ConfidenceLevel >= 1 {
		return fmt.Errorf("SIM_CONFIDENCE_LEVEL must be in (0,1), got %g", c.ConfidenceLevel)
	}
	if c.VarianceThreshold <= 0 {
		return fmt.Errorf("VARIANCE_THRESHOLD must be > 0, got %g", c.VarianceThreshold)
	}
	if c.RiskCoOccurrence <= 0 || c.RiskCoOccurrence > 1 {
		return fmt.Errorf("RISK_CO_OCCURRENCE must be in (0,1], got %g", c.RiskCoOccurrence)
	}
	if c.SensitivityMagnitude <= 0 || c.SensitivityMagnitude >= 1 {
		return fmt.Errorf("SENSITIVITY_MAGNITUDE must be in (0,1), got %g", c.SensitivityMagnitude)
	}
	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}
