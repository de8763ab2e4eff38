// Package config loads and validates console configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/ndtworks/tubescan/internal/engine"
	"github.com/ndtworks/tubescan/internal/inspect"
	"github.com/ndtworks/tubescan/internal/scheduler"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Simulation SimulationConfig `mapstructure:"simulation"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// ServerConfig controls the HTTP console surface.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// SimulationConfig governs partitioning, sequencing and the detection sweep.
type SimulationConfig struct {
	Sectors       int     `mapstructure:"sectors"`
	Strategy      string  `mapstructure:"strategy"`
	Pairing       bool    `mapstructure:"pairing"`
	PairOffset    int     `mapstructure:"pair_offset"`
	BatchSize     int     `mapstructure:"batch_size"`
	DwellFraction float64 `mapstructure:"dwell_fraction"`
	TickMillis    int     `mapstructure:"tick_millis"`
	QualifiedP    float64 `mapstructure:"qualified_probability"`
	DefectiveP    float64 `mapstructure:"defective_probability"`
	SpecialP      float64 `mapstructure:"special_probability"`
	BlindShare    float64 `mapstructure:"blind_share"`
	Seed          int64   `mapstructure:"seed"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("TUBESCAN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("simulation.sectors", 4)
	v.SetDefault("simulation.strategy", string(inspect.StrategyHybrid))
	v.SetDefault("simulation.pairing", true)
	v.SetDefault("simulation.pair_offset", 4)
	v.SetDefault("simulation.batch_size", 10)
	v.SetDefault("simulation.dwell_fraction", 0.95)
	v.SetDefault("simulation.tick_millis", 500)
	v.SetDefault("simulation.qualified_probability", 0.995)
	v.SetDefault("simulation.defective_probability", 0.0049)
	v.SetDefault("simulation.special_probability", 0.0001)
	v.SetDefault("simulation.blind_share", 0.5)
	v.SetDefault("simulation.seed", 0)
	v.SetDefault("logging.development", true)
}

// Validate enforces required values before anything starts. Violations
// surface as InvalidConfigurationError so callers can distinguish them from
// IO failures.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return inspect.NewInvalidConfigurationError("server.port", "must be > 0")
	}
	if c.Simulation.TickMillis <= 0 {
		return inspect.NewInvalidConfigurationError("simulation.tick_millis", "must be > 0")
	}
	if !inspect.Strategy(c.Simulation.Strategy).Valid() {
		return inspect.NewInvalidConfigurationError("simulation.strategy", "must be label, spatial or hybrid")
	}
	return c.Engine().Validate()
}

// Engine converts the simulation section into an engine configuration.
func (c Config) Engine() engine.Config {
	return engine.Config{
		Sectors:    c.Simulation.Sectors,
		Strategy:   inspect.Strategy(c.Simulation.Strategy),
		Pairing:    c.Simulation.Pairing,
		PairOffset: c.Simulation.PairOffset,
		BatchSize:  c.Simulation.BatchSize,
		DwellTicks: scheduler.DwellTicksFor(c.Simulation.DwellFraction),
		Distribution: scheduler.Distribution{
			Qualified:  c.Simulation.QualifiedP,
			Defective:  c.Simulation.DefectiveP,
			Special:    c.Simulation.SpecialP,
			BlindShare: c.Simulation.BlindShare,
		},
		Seed: c.Simulation.Seed,
	}
}

// TickInterval returns the wall-clock duration one scheduler tick maps to.
func (c Config) TickInterval() time.Duration {
	return time.Duration(c.Simulation.TickMillis) * time.Millisecond
}
