// Package config covers the configuration surface spec.md §6 names:
// hall-of-fame sizes, the process/population shape, config-file
// round-tripping, and the per-rank log file name. Command-line
// argument parsing is explicitly out of scope (spec.md §6: "no
// additional flags mandated"); this package exposes only the struct
// and its TOML (de)serialization, leaving argument handling to cmd/.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Config is the full configuration surface recognized by this module.
type Config struct {
	// VivariumHallOfFameSize is the number of best-ever individuals kept
	// globally; 0 disables the global archive.
	VivariumHallOfFameSize int `toml:"vivarium-hall-of-fame-size"`
	// DemeHallOfFameSize is the same, per deme; 0 disables.
	DemeHallOfFameSize int `toml:"deme-hall-of-fame-size"`
	// ProcessSize is the total rank count, the coordinator included.
	// cmd/coevolve-coordinator overwrites it with its -size flag and
	// uses that as the transport size; Validate does not check it.
	ProcessSize int `toml:"process-size"`
	// PopulationSizeVector gives the deme count (len) and size of each
	// deme (each entry), in order.
	PopulationSizeVector []int `toml:"population-size-vector"`
	// ConfigFile is the path this Config was loaded from, if any.
	ConfigFile string `toml:"-"`
	// ConfigDump is the path to write this Config to, if any.
	ConfigDump string `toml:"-"`
	// LogFileName is the per-rank log file path; the rank number is
	// interpolated before the extension by package evolog.
	LogFileName string `toml:"log-file-name"`
}

// Default returns a Config with hall-of-fame archives disabled and an
// empty population, matching the "opt in to every feature" posture of
// a configuration surface with no mandated defaults.
func Default() Config {
	return Config{}
}

// Load reads a TOML config file at path into a fresh Config. The
// returned Config's ConfigFile field is set to path.
func Load(path string) (Config, error) {
	var c Config
	if _, err := toml.DecodeFile(path, &c); err != nil {
		return Config{}, fmt.Errorf("config: Load: %w", err)
	}
	c.ConfigFile = path
	return c, nil
}

// Dump writes c to path as TOML, creating or truncating the file.
// ConfigFile/ConfigDump themselves are not round-tripped (they name
// paths, not tunables) and so are excluded via the "-" toml tag.
func (c Config) Dump(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("config: Dump: %w", err)
	}
	defer f.Close()
	if err := toml.NewEncoder(f).Encode(c); err != nil {
		return fmt.Errorf("config: Dump: %w", err)
	}
	return nil
}

// Validate reports whether c's population shape is self-consistent: a
// non-empty PopulationSizeVector with every deme size positive.
func (c Config) Validate() error {
	if len(c.PopulationSizeVector) == 0 {
		return fmt.Errorf("config: Validate: population-size-vector must not be empty")
	}
	for i, n := range c.PopulationSizeVector {
		if n <= 0 {
			return fmt.Errorf("config: Validate: population-size-vector[%d] = %d, must be > 0", i, n)
		}
	}
	return nil
}
