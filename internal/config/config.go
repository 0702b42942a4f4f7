// Package config loads the router tuning file. The file is TOML; every
// field has a default so an absent file or a partial file still yields a
// runnable configuration.
package config

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// Config carries the tunable parameters of a routing run.
type Config struct {
	// Pressure amplifies current-iteration resource-contention cost.
	Pressure float64 `toml:"pressure"`
	// History amplifies accumulated cross-iteration congestion cost.
	History float64 `toml:"history"`

	Workers        int     `toml:"workers"`
	SearchLimit    int     `toml:"search_limit"`
	RipUpIters     int     `toml:"ripup_iters"`
	HeuristicScale float64 `toml:"heuristic_scale"`

	Partition Partition `toml:"partition"`
}

// Partition tunes the recursive spatial partitioner.
type Partition struct {
	// Policy is "balanced" or "center".
	Policy           string   `toml:"policy"`
	Depth            int      `toml:"depth"`
	MinArcsPerLeaf   int      `toml:"min_arcs_per_leaf"`
	MinBoxExtent     int      `toml:"min_box_extent"`
	ReservedPatterns []string `toml:"reserved_patterns"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Pressure:       0.5,
		History:        0.5,
		Workers:        0, // 0 = GOMAXPROCS
		SearchLimit:    100000,
		RipUpIters:     20,
		HeuristicScale: 0.1,
		Partition: Partition{
			Policy:       "balanced",
			Depth:        2,
			MinBoxExtent: 1,
		},
	}
}

// Load reads a TOML file over the defaults. An empty path returns the
// defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: load %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects configurations the router cannot honor.
func (c Config) Validate() error {
	if c.Pressure < 0 {
		return fmt.Errorf("config: pressure must be non-negative, got %v", c.Pressure)
	}
	if c.History < 0 {
		return fmt.Errorf("config: history must be non-negative, got %v", c.History)
	}
	if c.Workers < 0 {
		return fmt.Errorf("config: workers must be non-negative, got %d", c.Workers)
	}
	if c.SearchLimit < 0 {
		return fmt.Errorf("config: search_limit must be non-negative, got %d", c.SearchLimit)
	}
	if c.RipUpIters < 0 {
		return fmt.Errorf("config: ripup_iters must be non-negative, got %d", c.RipUpIters)
	}
	switch c.Partition.Policy {
	case "", "balanced", "center":
	default:
		return fmt.Errorf("config: unknown partition policy %q", c.Partition.Policy)
	}
	if c.Partition.Depth < 0 {
		return fmt.Errorf("config: partition depth must be non-negative, got %d", c.Partition.Depth)
	}
	return nil
}
