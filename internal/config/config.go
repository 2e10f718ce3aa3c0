// Package config loads pickletool settings from a TOML file.
//
// Every setting has a command-line flag of the same meaning; a flag given on
// the command line wins over the file.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// Config holds the settings of pickletool.
type Config struct {
	// Zlib tells that pickles read and written are zlib-compressed.
	Zlib    bool `toml:"zlib,omitempty"`
	Verbose bool `toml:"verbose,omitempty"`

	Decode DecodeConfig `toml:"decode"`
	Encode EncodeConfig `toml:"encode"`
}

// DecodeConfig is the [decode] table.
type DecodeConfig struct {
	Format        string `toml:"format,omitempty"` // json | go
	PyDict        bool   `toml:"pydict,omitempty"`
	StrictUnicode bool   `toml:"strict_unicode,omitempty"`
}

// EncodeConfig is the [encode] table.
type EncodeConfig struct {
	From     string `toml:"from,omitempty"` // json | yaml
	NoMemo   bool   `toml:"no_memo,omitempty"`
	MaxDepth int    `toml:"max_depth,omitempty"`
}

// Default returns the settings used when no file is given.
func Default() *Config {
	return &Config{
		Decode: DecodeConfig{Format: "json"},
		Encode: EncodeConfig{From: "json"},
	}
}

// LoadFile reads and validates the settings in the TOML file at path.
func LoadFile(path string) (*Config, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	c, err := LoadBytes(contents)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// LoadBytes parses contents over the defaults and validates the result.
func LoadBytes(contents []byte) (*Config, error) {
	c := Default()
	if err := toml.Unmarshal(contents, c); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate reports every invalid setting in c.
func (c *Config) Validate() error {
	var errs []error
	switch c.Decode.Format {
	case "json", "go":
	default:
		errs = append(errs, fmt.Errorf("invalid decode format %q (want json or go)", c.Decode.Format))
	}
	switch c.Encode.From {
	case "json", "yaml":
	default:
		errs = append(errs, fmt.Errorf("invalid encode input %q (want json or yaml)", c.Encode.From))
	}
	if c.Encode.MaxDepth < -1 {
		errs = append(errs, fmt.Errorf("invalid max depth %d", c.Encode.MaxDepth))
	}
	return errors.Join(errs...)
}

// Marshal returns c as TOML.
func (c *Config) Marshal() ([]byte, error) {
	return toml.Marshal(c)
}
