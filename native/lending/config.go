package lending

import (
	"fmt"
	"time"

	"github.com/BurntSushi/toml"

	"rwachain/crypto"
)

// Config captures the runtime configuration for the lending module.
type Config struct {
	LiquidationBonusBps uint64 `toml:"LiquidationBonusBps"`
	ProtocolFeeBps      uint64 `toml:"ProtocolFeeBps"`
	Treasury            string `toml:"Treasury"`
	MaxNAVAgeSeconds    int64  `toml:"MaxNAVAgeSeconds"`
}

// Normalise applies defaults to unset values and returns the result.
func (c Config) Normalise() Config {
	cfg := c
	if cfg.LiquidationBonusBps == 0 {
		cfg.LiquidationBonusBps = 10_500
	}
	if cfg.MaxNAVAgeSeconds <= 0 {
		cfg.MaxNAVAgeSeconds = 300
	}
	return cfg
}

// Validate rejects out-of-range settings outright. Misconfiguration is never
// silently clamped.
func (c Config) Validate() error {
	if c.LiquidationBonusBps < 10_000 {
		return ErrBonusBelowPar
	}
	if c.ProtocolFeeBps > 2_000 {
		return ErrFeeTooHigh
	}
	if c.Treasury != "" {
		if _, err := crypto.DecodeAddress(c.Treasury); err != nil {
			return fmt.Errorf("lending config: invalid treasury address: %w", err)
		}
	}
	return nil
}

// MaxNAVAge returns the valuation freshness window as a duration.
func (c Config) MaxNAVAge() time.Duration {
	return time.Duration(c.MaxNAVAgeSeconds) * time.Second
}

// ProtocolConfig converts the validated configuration into the genesis
// protocol config persisted by the engine.
func (c Config) ProtocolConfig() (*ProtocolConfig, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	cfg := &ProtocolConfig{
		LiquidationBonusBps: c.LiquidationBonusBps,
		ProtocolFeeBps:      c.ProtocolFeeBps,
	}
	if c.Treasury != "" {
		treasury, err := crypto.DecodeAddress(c.Treasury)
		if err != nil {
			return nil, fmt.Errorf("lending config: invalid treasury address: %w", err)
		}
		cfg.Treasury = treasury
	}
	return cfg, nil
}

// LoadConfig reads the module configuration from a TOML file, normalises the
// defaults and validates the ranges.
func LoadConfig(path string) (Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, err
	}
	cfg = cfg.Normalise()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
