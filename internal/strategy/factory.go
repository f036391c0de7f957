package strategy

import (
	"errors"
	"fmt"

	"strategy-validation-lab/internal/params"
)

// Config paths read from the strategy tree.
const (
	PathSymbol        = "symbol"
	PathFast          = "signal.fast"
	PathSlow          = "signal.slow"
	PathPositionSize  = "position.size"
	PathCommissionBps = "costs.commission_bps"
	PathFixedFee      = "costs.fixed_fee"
)

// Factory errors
var (
	ErrMissingSymbol       = errors.New("symbol is required")
	ErrInvalidWindows      = errors.New("signal windows must satisfy 0 < fast < slow")
	ErrInvalidPositionSize = errors.New("position.size must be positive")
	ErrNegativeCost        = errors.New("costs must be non-negative")
)

// Config is the typed view of a strategy tree.
type Config struct {
	Symbol        string
	Fast          int
	Slow          int
	PositionSize  float64
	CommissionBps float64
	FixedFee      float64 // currency units per position change
}

// ConfigFromTree reads and validates a Config.
// Returns clear errors for missing/invalid params.
func ConfigFromTree(t params.Tree) (Config, error) {
	var (
		cfg Config
		err error
	)
	if cfg.Symbol, err = t.String(PathSymbol); err != nil {
		return Config{}, err
	}
	if cfg.Symbol == "" {
		return Config{}, ErrMissingSymbol
	}
	if cfg.Fast, err = t.Int(PathFast); err != nil {
		return Config{}, err
	}
	if cfg.Slow, err = t.Int(PathSlow); err != nil {
		return Config{}, err
	}
	if cfg.PositionSize, err = t.Float(PathPositionSize); err != nil {
		return Config{}, err
	}
	if cfg.CommissionBps, err = t.Float(PathCommissionBps); err != nil {
		return Config{}, err
	}
	if cfg.FixedFee, err = t.Float(PathFixedFee); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

// Validate checks parameter consistency.
func (c Config) Validate() error {
	if c.Fast <= 0 || c.Slow <= c.Fast {
		return fmt.Errorf("%w: fast=%d slow=%d", ErrInvalidWindows, c.Fast, c.Slow)
	}
	if c.PositionSize <= 0 {
		return fmt.Errorf("%w: got %v", ErrInvalidPositionSize, c.PositionSize)
	}
	if c.CommissionBps < 0 || c.FixedFee < 0 {
		return fmt.Errorf("%w: commission_bps=%v fixed_fee=%v", ErrNegativeCost, c.CommissionBps, c.FixedFee)
	}
	return nil
}

// FromConfig creates the crossover Strategy for cfg.
func FromConfig(cfg Config) (Strategy, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return NewCrossover(cfg.Fast, cfg.Slow, cfg.PositionSize), nil
}
