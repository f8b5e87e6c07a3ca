// Package blinkt drives an eight pixel APA102 strip, such as the Pimoroni
// Blinkt!, by bit-banging two GPIO lines.
//
// A Driver starts Unready. It becomes Ready after Setup, or on the first Show,
// which runs Setup with DefaultDataPin and DefaultClockPin. Close ends its
// life: with clear-on-exit set it sends one last, dark frame first.
//
// A Driver is not safe for concurrent use.
package blinkt

import (
	"errors"
	"fmt"
	"image"
	"iter"

	"github.com/coreman2200/funtimes-blinkt/apa102"
	"github.com/coreman2200/funtimes-blinkt/model"
	"github.com/rs/zerolog"
	"periph.io/x/conn/v3/display"
	"periph.io/x/conn/v3/gpio"
)

const (
	DefaultDataPin  = 23
	DefaultClockPin = 24

	MinPin = 1
	MaxPin = 27
)

var (
	ErrInvalidGpioPin = errors.New("invalid gpio pin")
	ErrClosed         = errors.New("blinkt: driver closed")
)

// State is the lifecycle state of a Driver.
type State int

const (
	Unready State = iota
	Ready
	Closed
)

func (s State) String() string {
	switch s {
	case Unready:
		return "unready"
	case Ready:
		return "ready"
	case Closed:
		return "closed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

type Option func(*Driver)

func WithLogger(l zerolog.Logger) Option {
	return func(d *Driver) { d.log = l }
}

// WithMirror draws the strip to m after every frame sent on the GPIO lines.
func WithMirror(m display.Drawer) Option {
	return func(d *Driver) { d.mirrors = append(d.mirrors, m) }
}

func WithClearOnExit(clear bool) Option {
	return func(d *Driver) { d.clearOnExit = clear }
}

type Driver struct {
	strip *model.Strip
	pins  PinProvider
	log   zerolog.Logger

	state       State
	dataPin     int
	clockPin    int
	data        gpio.PinOut
	clock       gpio.PinOut
	tx          *apa102.Transmitter
	clearOnExit bool
	mirrors     []display.Drawer
	frames      uint64
}

func New(pins PinProvider, opts ...Option) *Driver {
	d := &Driver{
		strip: model.NewStrip(),
		pins:  pins,
		log:   zerolog.Nop(),
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Run creates a Driver, passes it to fn and closes it however fn returns.
func Run(pins PinProvider, fn func(d *Driver) error, opts ...Option) (err error) {
	d := New(pins, opts...)
	defer func() {
		err = errors.Join(err, d.Close())
	}()
	return fn(d)
}

// Setup claims the data and clock lines. Calling it again claims new lines
// and replaces the old assignment; the previous lines are not halted.
// If the clock line cannot be claimed the data line is released again.
func (d *Driver) Setup(dataPin, clockPin int) error {
	if d.state == Closed {
		return ErrClosed
	}
	if err := checkPin("data", dataPin, DefaultDataPin); err != nil {
		return err
	}
	if err := checkPin("clock", clockPin, DefaultClockPin); err != nil {
		return err
	}
	if dataPin == clockPin {
		return fmt.Errorf("%w: data and clock pins cannot be the same (%d)", ErrInvalidGpioPin, dataPin)
	}

	data, err := d.pins.OutputPin(dataPin)
	if err != nil {
		return err
	}
	clock, err := d.pins.OutputPin(clockPin)
	if err != nil {
		_ = data.Halt()
		return err
	}

	d.dataPin, d.clockPin = dataPin, clockPin
	d.data, d.clock = data, clock
	d.tx = apa102.NewTransmitter(data, clock)
	d.state = Ready
	d.log.Debug().Int("data_pin", dataPin).Int("clock_pin", clockPin).Msg("gpio ready")
	return nil
}

func checkPin(name string, pin, def int) error {
	if pin < MinPin || pin > MaxPin {
		return fmt.Errorf("%w: %s pin must be between %d and %d (default is %d), got %d",
			ErrInvalidGpioPin, name, MinPin, MaxPin, def, pin)
	}
	return nil
}

func (d *Driver) State() State {
	return d.state
}

// Pins returns the assigned data and clock pins, zero until Ready.
func (d *Driver) Pins() (data, clock int) {
	return d.dataPin, d.clockPin
}

// Frames returns how many frames have been sent.
func (d *Driver) Frames() uint64 {
	return d.frames
}

// Show sends the whole buffer to the strip. An Unready driver is first set
// up on the default pins.
func (d *Driver) Show() error {
	switch d.state {
	case Closed:
		return ErrClosed
	case Unready:
		d.log.Debug().Msg("show before setup, using default pins")
		if err := d.Setup(DefaultDataPin, DefaultClockPin); err != nil {
			return err
		}
	}
	if err := d.tx.Show(d.strip); err != nil {
		return err
	}
	d.frames++
	return d.mirror()
}

func (d *Driver) mirror() error {
	if len(d.mirrors) == 0 {
		return nil
	}
	im := d.strip.Image()
	var errs []error
	for _, m := range d.mirrors {
		if err := m.Draw(m.Bounds(), im, image.Point{}); err != nil {
			d.log.Warn().Err(err).Str("mirror", m.String()).Msg("mirror draw failed")
			errs = append(errs, fmt.Errorf("mirror %s: %w", m, err))
		}
	}
	return errors.Join(errs...)
}

// SetClearOnExit makes Close blank the strip before releasing the lines.
func (d *Driver) SetClearOnExit(clear bool) {
	d.clearOnExit = clear
}

// Close releases the lines and mirrors. With clear-on-exit set, the strip is
// cleared and shown once more first, which sets up an Unready driver. Close
// is safe to call more than once.
func (d *Driver) Close() error {
	if d.state == Closed {
		return nil
	}
	var errs []error
	if d.clearOnExit {
		d.strip.Clear()
		if err := d.Show(); err != nil {
			errs = append(errs, fmt.Errorf("clear on exit: %w", err))
		}
	}
	for _, p := range []gpio.PinOut{d.data, d.clock} {
		if p == nil {
			continue
		}
		if err := p.Halt(); err != nil {
			errs = append(errs, fmt.Errorf("halt %s: %w", p, err))
		}
	}
	for _, m := range d.mirrors {
		if err := m.Halt(); err != nil {
			errs = append(errs, fmt.Errorf("halt mirror %s: %w", m, err))
		}
	}
	d.data, d.clock, d.tx = nil, nil, nil
	d.state = Closed
	d.log.Debug().Uint64("frames", d.frames).Msg("closed")
	return errors.Join(errs...)
}

// Strip returns the pixel buffer.
func (d *Driver) Strip() *model.Strip {
	return d.strip
}

func (d *Driver) SetBrightness(b float64) error {
	return d.strip.SetBrightness(b)
}

func (d *Driver) SetPixel(i, r, g, b int) error {
	return d.strip.SetPixel(i, r, g, b)
}

func (d *Driver) SetPixelRGBB(i, r, g, b int, brightness float64) error {
	return d.strip.SetPixelRGBB(i, r, g, b, brightness)
}

func (d *Driver) SetPixels(r, g, b int) error {
	return d.strip.SetPixels(r, g, b)
}

func (d *Driver) SetPixelsRGBB(r, g, b int, brightness float64) error {
	return d.strip.SetPixelsRGBB(r, g, b, brightness)
}

func (d *Driver) Pixel(i int) (*model.Pixel, error) {
	return d.strip.Pixel(i)
}

func (d *Driver) Pixels() iter.Seq2[int, *model.Pixel] {
	return d.strip.Pixels()
}

func (d *Driver) Clear() {
	d.strip.Clear()
}
