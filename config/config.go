// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package config reads the user's caliper configuration file.
//
// The file is YAML:
//
//	marker: //ZxJ/
//	trials: 3
//	vms:
//	  go122:
//	    executable: /usr/local/go1.22/bin/bench
//	    args: [-test.cpu=1]
//	instruments:
//	  micro:
//	    measurer: time
//	    options:
//	      warmup: 5s
//
// Top-level keys may be overridden by CALIPER_* environment variables,
// which may in turn come from a .env file in the working directory.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/peterlynch/caliper/measurer"
	"github.com/peterlynch/caliper/model"
	"github.com/peterlynch/caliper/scenario"
	"github.com/peterlynch/caliper/wire"
)

// FileName is the default configuration file name in the home
// directory.
const FileName = ".caliperrc"

// EnvPrefix prefixes environment overrides.
const EnvPrefix = "CALIPER"

// A VMConfig describes a named VM.
type VMConfig struct {
	Executable string   `mapstructure:"executable"`
	Args       []string `mapstructure:"args"`
}

// An InstrumentConfig describes a named instrument.
type InstrumentConfig struct {
	Measurer string            `mapstructure:"measurer"`
	Options  map[string]string `mapstructure:"options"`
}

// Config is the resolved configuration.
type Config struct {
	// File is the configuration file that was read, or "".
	File        string
	Marker      string
	Trials      int
	VMs         map[string]VMConfig
	Instruments map[string]InstrumentConfig
}

// Builtins returns the instruments available when the configuration
// file defines none.
func Builtins() map[string]InstrumentConfig {
	return map[string]InstrumentConfig{
		"micro":     {Measurer: measurer.KindTime},
		"time":      {Measurer: measurer.KindTime},
		"instances": {Measurer: measurer.KindInstances},
		"memory":    {Measurer: measurer.KindMemory},
		"debug":     {Measurer: measurer.KindDebug},
	}
}

// DefaultPath returns $HOME/.caliperrc, or "" if there is no home
// directory.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, FileName)
}

// Load reads the configuration file at path. A missing file is not an
// error; Load then returns the defaults.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	v.SetDefault("marker", wire.DefaultMarker)
	v.SetDefault("trials", 1)

	cfg := &Config{}
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("%s: %w", path, err)
			}
			cfg.File = path
		} else if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	cfg.Marker = v.GetString("marker")
	cfg.Trials = v.GetInt("trials")
	if err := CheckMarker(cfg.Marker); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if cfg.Trials < 1 {
		return nil, fmt.Errorf("%s: trials must be at least 1, got %d", path, cfg.Trials)
	}
	if err := v.UnmarshalKey("vms", &cfg.VMs); err != nil {
		return nil, fmt.Errorf("%s: vms: %w", path, err)
	}
	if err := v.UnmarshalKey("instruments", &cfg.Instruments); err != nil {
		return nil, fmt.Errorf("%s: instruments: %w", path, err)
	}
	if len(cfg.Instruments) == 0 {
		cfg.Instruments = Builtins()
	}
	for name, ic := range cfg.Instruments {
		if _, err := measurer.New(ic.Measurer, ic.Options); err != nil {
			return nil, fmt.Errorf("%s: instrument %s: %w", path, name, err)
		}
	}
	return cfg, nil
}

// CheckMarker reports whether marker can frame result lines.
func CheckMarker(marker string) error {
	if marker == "" {
		return errors.New("marker must not be empty")
	}
	if strings.ContainsAny(marker, " \t\r\n") {
		return fmt.Errorf("marker %q contains white space", marker)
	}
	return nil
}

// Instrument returns the named instrument. Options in overrides replace
// those from the configuration.
func (c *Config) Instrument(name string, overrides map[string]string) (model.Instrument, error) {
	ic, ok := c.Instruments[strings.ToLower(name)]
	if !ok {
		return model.Instrument{}, &scenario.ConfigError{Msg: fmt.Sprintf("unknown instrument %q (have %s)", name, strings.Join(c.InstrumentNames(), ", "))}
	}
	opts := make(map[string]string, len(ic.Options)+len(overrides))
	for k, v := range ic.Options {
		opts[k] = v
	}
	for k, v := range overrides {
		opts[k] = v
	}
	if _, err := measurer.New(ic.Measurer, opts); err != nil {
		return model.Instrument{}, &scenario.ConfigError{Msg: fmt.Sprintf("instrument %s: %v", name, err)}
	}
	return model.Instrument{LocalName: name, Name: name, Measurer: ic.Measurer, Options: opts}, nil
}

// InstrumentNames returns the configured instrument names, sorted.
func (c *Config) InstrumentNames() []string {
	names := make([]string, 0, len(c.Instruments))
	for name := range c.Instruments {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ResolveVMs resolves VM names. A name missing from the configuration is the
// path of an executable. With no names, the result is the current
// executable alone.
func (c *Config) ResolveVMs(names []string) []model.VM {
	if len(names) == 0 {
		return []model.VM{scenario.DefaultVM}
	}
	vms := make([]model.VM, 0, len(names))
	for _, name := range names {
		// Configuration keys are case-insensitive.
		if vc, ok := c.VMs[strings.ToLower(name)]; ok {
			vms = append(vms, model.VM{LocalName: name, Name: name, Executable: vc.Executable, Args: vc.Args})
			continue
		}
		vms = append(vms, model.VM{LocalName: name, Name: filepath.Base(name), Executable: name})
	}
	return vms
}
