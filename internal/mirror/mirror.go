// Package mirror builds the extra outputs a strip can be mirrored to: a
// console preview, an APA102 strip on hardware SPI and a WS2812 strip driven
// over SPI.
package mirror

import (
	"errors"
	"fmt"

	"github.com/coreman2200/funtimes-blinkt/internal/config"
	"github.com/rs/zerolog"
	"periph.io/x/conn/v3/display"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/devices/v3/apa102"
	"periph.io/x/devices/v3/nrzled"
	"periph.io/x/extra/devices/screen"
	"periph.io/x/host/v3"
)

// NewConsole prints the strip as ANSI colour blocks on stdout.
func NewConsole(n int) display.Drawer {
	return screen.New(n)
}

// NewSPI drives an APA102 strip of n pixels on p. The strip image is already
// scaled by pixel brightness, so the global intensity is left at full.
func NewSPI(p spi.Port, n int) (display.Drawer, error) {
	o := apa102.DefaultOpts
	o.NumPixels = n
	o.Intensity = 255
	return apa102.New(p, &o)
}

// NewWS2812 drives a WS2812 (NRZ) strip of n pixels on p.
func NewWS2812(p spi.Port, n int) (display.Drawer, error) {
	return nrzled.NewSPI(p, &nrzled.Opts{
		NumPixels: n,
		Channels:  3,
		Freq:      2500 * physic.KiloHertz,
	})
}

// Open builds every mirror enabled in cfg for a strip of n pixels. The
// returned func closes the SPI ports it opened and must be called after the
// mirrors have been halted.
func Open(cfg config.Mirrors, n int, log zerolog.Logger) ([]display.Drawer, func() error, error) {
	var (
		out   []display.Drawer
		ports []spi.PortCloser
	)
	closeAll := func() error {
		var errs []error
		for _, p := range ports {
			errs = append(errs, p.Close())
		}
		return errors.Join(errs...)
	}

	if cfg.Console {
		out = append(out, NewConsole(n))
	}
	if cfg.SPI.Enabled || cfg.WS2812.Enabled {
		if _, err := host.Init(); err != nil {
			return nil, nil, fmt.Errorf("periph host init: %w", err)
		}
	}

	for _, m := range []struct {
		name string
		cfg  config.SPIMirror
		open func(spi.Port, int) (display.Drawer, error)
	}{
		{"spi", cfg.SPI, NewSPI},
		{"ws2812", cfg.WS2812, NewWS2812},
	} {
		if !m.cfg.Enabled {
			continue
		}
		p, err := spireg.Open(m.cfg.Dev)
		if err != nil {
			_ = closeAll()
			return nil, nil, fmt.Errorf("mirror %s: open %q: %w", m.name, m.cfg.Dev, err)
		}
		ports = append(ports, p)
		if m.cfg.SpeedHz > 0 {
			if err := p.LimitSpeed(physic.Frequency(m.cfg.SpeedHz) * physic.Hertz); err != nil {
				_ = closeAll()
				return nil, nil, fmt.Errorf("mirror %s: limit speed: %w", m.name, err)
			}
		}
		d, err := m.open(p, n)
		if err != nil {
			_ = closeAll()
			return nil, nil, fmt.Errorf("mirror %s: %w", m.name, err)
		}
		log.Info().Str("mirror", m.name).Str("port", p.String()).Msg("mirror ready")
		out = append(out, d)
	}
	return out, closeAll, nil
}
