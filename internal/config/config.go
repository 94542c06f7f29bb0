package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/coreman2200/keyglow/internal/brightness"
	"github.com/coreman2200/keyglow/internal/matrix"
)

type Power struct {
	BudgetMA      uint   `yaml:"budget_ma"`      // 0 = unlimited
	MinCurrentMA  uint   `yaml:"min_current_ma"` // below this the chip is shut down
	ChanMicroAmps uint32 `yaml:"chan_microamps"` // full-scale draw of one channel
}

type I2C struct {
	Bus      string `yaml:"bus"`       // periph bus name, "" = first available
	ChipAddr uint8  `yaml:"chip_addr"` // 8-bit write address, e.g. 0xE8
	Register uint8  `yaml:"register"`  // PWM section, e.g. 0x24
}

type SPI struct {
	Port    string `yaml:"port"`     // e.g. /dev/spidev0.0
	FreqKHz int    `yaml:"freq_khz"` // e.g. 2500
}

type Serial struct {
	Port string `yaml:"port"` // debug console port, "" = stdin
	Baud int    `yaml:"baud"`
}

type Key struct {
	Capability string `yaml:"capability"`
	Args       []int  `yaml:"args,omitempty"`
}

type Config struct {
	Driver       string `yaml:"driver"` // "i2c" | "nrz" | "console" | "sim"
	Addr         string `yaml:"addr"`
	ScanPeriodMs int    `yaml:"scan_period_ms"`

	Luminosity uint8 `yaml:"luminosity"`
	Step       uint8 `yaml:"step"`
	DebounceMs uint8 `yaml:"debounce_ms"`

	ColFlipEveryRow bool `yaml:"col_flip_every_row"`

	Power  Power  `yaml:"power"`
	I2C    I2C    `yaml:"i2c"`
	SPI    SPI    `yaml:"spi,omitempty"`
	Serial Serial `yaml:"serial,omitempty"`

	Keymap map[string]Key `yaml:"keymap"`
}

var drivers = map[string]bool{"i2c": true, "nrz": true, "console": true, "sim": true}

// Default returns the configuration used when no config.yaml is present.
func Default() *Config {
	return &Config{
		Driver:       "sim",
		Addr:         ":8080",
		ScanPeriodMs: 1,
		Luminosity:   brightness.Max,
		Step:         brightness.DefaultStep,
		DebounceMs:   brightness.DefaultDebounce,
		Power:        Power{MinCurrentMA: 150, ChanMicroAmps: 2000},
		I2C:          I2C{ChipAddr: 0xE8, Register: 0x24},
		SPI:          SPI{Port: "/dev/spidev0.0", FreqKHz: 2500},
		Serial:       Serial{Baud: 115200},
		Keymap: map[string]Key{
			"esc":   {Capability: "lightEsc"},
			"fn":    {Capability: "updateLeds"},
			"f1":    {Capability: "decreaseLuminosity"},
			"f2":    {Capability: "increaseLuminosity"},
			"f12":   {Capability: "turnAllLedsOff"},
			"pause": {Capability: "action1"},
			"caps":  {Capability: "blockHold", Args: []int{0x39}},
			"a":     {Capability: "blockKey", Args: []int{0x04}},
		},
	}
}

// Load reads path over the defaults. Keys absent from the file keep their
// default value; a keymap in the file replaces the default keymap.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	c := Default()
	c.Keymap = nil
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if c.Keymap == nil {
		c.Keymap = Default().Keymap
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

func Save(path string, c *Config) error {
	b, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0644)
}

// Validate checks ranges the rest of the program relies on.
func (c *Config) Validate() error {
	var errs []error
	if !drivers[c.Driver] {
		errs = append(errs, fmt.Errorf("unknown driver %q", c.Driver))
	}
	if c.Luminosity != brightness.Off && (c.Luminosity < brightness.Min || c.Luminosity > brightness.Max) {
		errs = append(errs, fmt.Errorf("luminosity %d outside [%d, %d]", c.Luminosity, brightness.Min, brightness.Max))
	}
	if c.ScanPeriodMs < 0 {
		errs = append(errs, fmt.Errorf("scan_period_ms %d is negative", c.ScanPeriodMs))
	}
	for name, k := range c.Keymap {
		if k.Capability == "" {
			errs = append(errs, fmt.Errorf("key %q: no capability", name))
		}
		for _, a := range k.Args {
			if a < 0 || a > 0xFF {
				errs = append(errs, fmt.Errorf("key %q: arg %d is not a byte", name, a))
			}
		}
	}
	return errors.Join(errs...)
}

// MatrixKeymap converts the keymap section for the matrix.
func (c *Config) MatrixKeymap() matrix.Keymap {
	km := make(matrix.Keymap, len(c.Keymap))
	for name, k := range c.Keymap {
		b := matrix.Binding{Capability: k.Capability}
		for _, a := range k.Args {
			b.Args = append(b.Args, byte(a))
		}
		km[name] = b
	}
	return km
}
