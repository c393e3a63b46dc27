// Package config handles configuration management with validation
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config represents the complete configuration structure. Every field has
// a working default; the process runs with no config file at all.
type Config struct {
	Ingest      IngestConfig      `yaml:"ingest"`
	Estimator   EstimatorConfig   `yaml:"estimator"`
	Features    FeaturesConfig    `yaml:"features"`
	Signal      SignalConfig      `yaml:"signal"`
	Risk        RiskConfig        `yaml:"risk"`
	Execution   ExecutionConfig   `yaml:"execution"`
	Persistence PersistenceConfig `yaml:"persistence"`
	Telemetry   TelemetryConfig   `yaml:"telemetry"`
	System      SystemConfig      `yaml:"system"`
}

// IngestConfig contains market data feed settings
type IngestConfig struct {
	StreamURL string   `yaml:"stream_url"`
	Pairs     []string `yaml:"pairs"`
}

// EstimatorConfig contains Kalman filter settings
type EstimatorConfig struct {
	ProcessNoise     float64 `yaml:"process_noise"`
	ObservationNoise float64 `yaml:"observation_noise"`
	ResidualWindow   int     `yaml:"residual_window"`
}

// FeaturesConfig contains feature aggregation settings
type FeaturesConfig struct {
	BaseLeg         string `yaml:"base_leg"`
	DependentLeg    string `yaml:"dependent_leg"`
	CrossPair       string `yaml:"cross_pair"`
	PriceWindow     int    `yaml:"price_window"`
	MinObservations int    `yaml:"min_observations"`
}

// SignalConfig contains signal generation settings
type SignalConfig struct {
	ZScoreThreshold  float64 `yaml:"zscore_threshold"`
	ModelPath        string  `yaml:"model_path"`
	ApproveThreshold float64 `yaml:"approve_threshold"`
}

// RiskConfig contains risk gate settings
type RiskConfig struct {
	MaxPositionNotional  float64 `yaml:"max_position_notional"`
	MaxDailyLoss         float64 `yaml:"max_daily_loss"`
	SlippageTolerance    float64 `yaml:"slippage_tolerance"`
	MaxConsecutiveLosses int     `yaml:"max_consecutive_losses"`
	BreakerCooldownSec   int     `yaml:"breaker_cooldown_seconds"`
}

// ExecutionConfig contains execution simulator settings
type ExecutionConfig struct {
	MaxSlippageBps    int64   `yaml:"max_slippage_bps"`
	TradeNotional     float64 `yaml:"trade_notional"`
	EstimatedSlippage float64 `yaml:"estimated_slippage"`
}

// PersistenceConfig contains event and state store settings. Empty URLs
// disable the respective store.
type PersistenceConfig struct {
	DatabaseURL      Secret `yaml:"database_url"`
	InsertsPerSecond int    `yaml:"inserts_per_second"`
	PoolWorkers      int    `yaml:"pool_workers"`
	PoolCapacity     int    `yaml:"pool_capacity"`
	SQLitePath       string `yaml:"sqlite_path"`
	SnapshotInterval int    `yaml:"snapshot_interval"`
}

// TelemetryConfig contains telemetry settings
type TelemetryConfig struct {
	MetricsPort   int  `yaml:"metrics_port"`
	EnableMetrics bool `yaml:"enable_metrics"`
}

// SystemConfig contains system settings
type SystemConfig struct {
	LogLevel string `yaml:"log_level" validate:"required,oneof=DEBUG INFO WARN ERROR FATAL"`
}

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s' (value: %v): %s", e.Field, e.Value, e.Message)
}

// LoadConfig loads configuration from a YAML file with environment variable
// expansion. Unset fields keep their defaults.
func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	expandedData := expandEnvVars(string(data))

	config := DefaultConfig()
	if err := yaml.Unmarshal([]byte(expandedData), config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// Validate performs comprehensive validation of the configuration
func (c *Config) Validate() error {
	var errors []string

	if err := c.validateIngest(); err != nil {
		errors = append(errors, err.Error())
	}
	if err := c.validateEstimator(); err != nil {
		errors = append(errors, err.Error())
	}
	if err := c.validateFeatures(); err != nil {
		errors = append(errors, err.Error())
	}
	if err := c.validateSignal(); err != nil {
		errors = append(errors, err.Error())
	}
	if err := c.validateRisk(); err != nil {
		errors = append(errors, err.Error())
	}
	if err := c.validateExecution(); err != nil {
		errors = append(errors, err.Error())
	}
	if err := c.validateSystem(); err != nil {
		errors = append(errors, err.Error())
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n%s", strings.Join(errors, "\n"))
	}

	return nil
}

func (c *Config) validateIngest() error {
	if len(c.Ingest.Pairs) == 0 {
		return ValidationError{
			Field:   "ingest.pairs",
			Message: "at least one pair must be configured",
		}
	}
	return nil
}

func (c *Config) validateEstimator() error {
	if c.Estimator.ProcessNoise <= 0 {
		return ValidationError{
			Field:   "estimator.process_noise",
			Value:   c.Estimator.ProcessNoise,
			Message: "process noise must be positive",
		}
	}
	if c.Estimator.ObservationNoise <= 0 {
		return ValidationError{
			Field:   "estimator.observation_noise",
			Value:   c.Estimator.ObservationNoise,
			Message: "observation noise must be positive",
		}
	}
	if c.Estimator.ResidualWindow < 2 {
		return ValidationError{
			Field:   "estimator.residual_window",
			Value:   c.Estimator.ResidualWindow,
			Message: "residual window must hold at least two samples",
		}
	}
	return nil
}

func (c *Config) validateFeatures() error {
	for field, value := range map[string]string{
		"features.base_leg":      c.Features.BaseLeg,
		"features.dependent_leg": c.Features.DependentLeg,
		"features.cross_pair":    c.Features.CrossPair,
	} {
		if value == "" {
			return ValidationError{
				Field:   field,
				Message: "leg symbol is required",
			}
		}
	}
	if c.Features.MinObservations < 1 {
		return ValidationError{
			Field:   "features.min_observations",
			Value:   c.Features.MinObservations,
			Message: "must require at least one observation per leg",
		}
	}
	if c.Features.PriceWindow < c.Features.MinObservations {
		return ValidationError{
			Field:   "features.price_window",
			Value:   c.Features.PriceWindow,
			Message: "price window must hold at least min_observations samples",
		}
	}
	return nil
}

func (c *Config) validateSignal() error {
	if c.Signal.ZScoreThreshold <= 0 {
		return ValidationError{
			Field:   "signal.zscore_threshold",
			Value:   c.Signal.ZScoreThreshold,
			Message: "threshold must be positive",
		}
	}
	if c.Signal.ModelPath != "" && (c.Signal.ApproveThreshold <= 0 || c.Signal.ApproveThreshold > 1) {
		return ValidationError{
			Field:   "signal.approve_threshold",
			Value:   c.Signal.ApproveThreshold,
			Message: "must be in (0, 1] when a model is configured",
		}
	}
	return nil
}

func (c *Config) validateRisk() error {
	if c.Risk.MaxPositionNotional <= 0 {
		return ValidationError{
			Field:   "risk.max_position_notional",
			Value:   c.Risk.MaxPositionNotional,
			Message: "notional ceiling must be positive",
		}
	}
	if c.Risk.MaxDailyLoss <= 0 {
		return ValidationError{
			Field:   "risk.max_daily_loss",
			Value:   c.Risk.MaxDailyLoss,
			Message: "daily loss limit must be positive",
		}
	}
	if c.Risk.SlippageTolerance <= 0 {
		return ValidationError{
			Field:   "risk.slippage_tolerance",
			Value:   c.Risk.SlippageTolerance,
			Message: "slippage tolerance must be positive",
		}
	}
	return nil
}

func (c *Config) validateExecution() error {
	if c.Execution.MaxSlippageBps <= 0 {
		return ValidationError{
			Field:   "execution.max_slippage_bps",
			Value:   c.Execution.MaxSlippageBps,
			Message: "slippage ceiling must be positive",
		}
	}
	if c.Execution.TradeNotional <= 0 {
		return ValidationError{
			Field:   "execution.trade_notional",
			Value:   c.Execution.TradeNotional,
			Message: "trade notional must be positive",
		}
	}
	if c.Execution.TradeNotional > c.Risk.MaxPositionNotional {
		return ValidationError{
			Field:   "execution.trade_notional",
			Value:   c.Execution.TradeNotional,
			Message: "trade notional exceeds risk.max_position_notional, every trade would be rejected",
		}
	}
	return nil
}

func (c *Config) validateSystem() error {
	validLevels := []string{"DEBUG", "INFO", "WARN", "ERROR", "FATAL"}
	if !contains(validLevels, strings.ToUpper(c.System.LogLevel)) {
		return ValidationError{
			Field:   "system.log_level",
			Value:   c.System.LogLevel,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(validLevels, ", ")),
		}
	}
	return nil
}

// String returns a string representation of the configuration. The
// database URL redacts itself through the Secret type.
func (c *Config) String() string {
	data, _ := yaml.Marshal(c)
	return string(data)
}

// Helper functions

func expandEnvVars(s string) string {
	return os.Expand(s, os.Getenv)
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}

// DefaultConfig returns the configuration the process runs with when no
// file is supplied.
func DefaultConfig() *Config {
	return &Config{
		Ingest: IngestConfig{
			StreamURL: "wss://stream.binance.com:9443/stream",
			Pairs:     []string{"BTCUSDT", "ETHUSDT", "ETHBTC"},
		},
		Estimator: EstimatorConfig{
			ProcessNoise:     1e-5,
			ObservationNoise: 1e-3,
			ResidualWindow:   200,
		},
		Features: FeaturesConfig{
			BaseLeg:         "BTCUSDT",
			DependentLeg:    "ETHUSDT",
			CrossPair:       "ETHBTC",
			PriceWindow:     500,
			MinObservations: 10,
		},
		Signal: SignalConfig{
			ZScoreThreshold:  2.0,
			ApproveThreshold: 0.5,
		},
		Risk: RiskConfig{
			MaxPositionNotional: 5000,
			MaxDailyLoss:        0.02,
			SlippageTolerance:   0.0015,
			BreakerCooldownSec:  600,
		},
		Execution: ExecutionConfig{
			MaxSlippageBps:    5,
			TradeNotional:     1000,
			EstimatedSlippage: 0.0005,
		},
		Persistence: PersistenceConfig{
			InsertsPerSecond: 100,
			PoolWorkers:      4,
			PoolCapacity:     1024,
			SnapshotInterval: 500,
		},
		Telemetry: TelemetryConfig{
			MetricsPort:   9100,
			EnableMetrics: true,
		},
		System: SystemConfig{
			LogLevel: "INFO",
		},
	}
}
