package config

import (
	"fmt"
	"os"

	"github.com/coreman2200/funtimes-blinkt/blinkt"
	"github.com/coreman2200/funtimes-blinkt/model"
	"gopkg.in/yaml.v3"
)

const (
	DriverGPIO = "gpio"
	DriverSim  = "sim"
)

type SPIMirror struct {
	Enabled bool   `yaml:"enabled"`
	Dev     string `yaml:"dev"`      // e.g. "" for the first port, or "/dev/spidev0.0"
	SpeedHz int64  `yaml:"speed_hz"` // 0 keeps the driver default
}

type Mirrors struct {
	Console bool      `yaml:"console"`
	SPI     SPIMirror `yaml:"spi,omitempty"`
	WS2812  SPIMirror `yaml:"ws2812,omitempty"`
}

type Config struct {
	Driver      string  `yaml:"driver"` // "gpio" | "sim"
	DataPin     int     `yaml:"data_pin"`
	ClockPin    int     `yaml:"clock_pin"`
	Brightness  float64 `yaml:"brightness"`
	ClearOnExit bool    `yaml:"clear_on_exit"`

	FPS    int    `yaml:"fps"`
	Effect string `yaml:"effect"`
	Addr   string `yaml:"addr"`

	Mirrors Mirrors `yaml:"mirrors,omitempty"`
}

func Default() Config {
	return Config{
		Driver:     DriverGPIO,
		DataPin:    blinkt.DefaultDataPin,
		ClockPin:   blinkt.DefaultClockPin,
		Brightness: model.DefaultBrightness,
		FPS:        30,
		Effect:     "rainbow",
		Addr:       "127.0.0.1:8080",
	}
}

// Load reads a config file over the defaults, so keys missing from the file
// keep their default values.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	c := Default()
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &c, nil
}

func Save(path string, c *Config) error {
	b, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0644)
}

func (c *Config) Validate() error {
	switch c.Driver {
	case DriverGPIO, DriverSim:
	default:
		return fmt.Errorf("unknown driver %q", c.Driver)
	}
	for _, p := range []int{c.DataPin, c.ClockPin} {
		if p < blinkt.MinPin || p > blinkt.MaxPin {
			return fmt.Errorf("%w: %d not in [%d,%d]", blinkt.ErrInvalidGpioPin, p, blinkt.MinPin, blinkt.MaxPin)
		}
	}
	if c.DataPin == c.ClockPin {
		return fmt.Errorf("%w: data and clock pins cannot be the same (%d)", blinkt.ErrInvalidGpioPin, c.DataPin)
	}
	if !(c.Brightness >= 0 && c.Brightness <= 1) {
		return fmt.Errorf("%w: %v", model.ErrInvalidBrightnessLevel, c.Brightness)
	}
	if c.FPS <= 0 {
		return fmt.Errorf("fps must be positive, got %d", c.FPS)
	}
	return nil
}
