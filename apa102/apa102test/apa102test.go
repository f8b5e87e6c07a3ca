// Package apa102test records what a Transmitter drives onto its lines and
// decodes it back into frames.
package apa102test

import (
	"errors"
	"fmt"
	"strconv"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
)

const (
	startBits = 32
	endBits   = 36
	pixelBits = 32
)

// Line is a gpiotest.Pin that keeps every level written to it.
type Line struct {
	gpiotest.Pin
	Levels []gpio.Level
	Halted bool
	// Err, when set, is returned by Out without recording anything.
	Err error

	bus *Bus
}

// NewLine returns a standalone line named GPIO<n>.
func NewLine(n int) *Line {
	return &Line{Pin: gpiotest.Pin{N: "GPIO" + strconv.Itoa(n), Num: n, Fn: "Out/Low"}}
}

func (l *Line) Out(level gpio.Level) error {
	if l.Err != nil {
		return l.Err
	}
	l.Levels = append(l.Levels, level)
	if l.bus != nil {
		l.bus.observe(l, level)
	}
	return l.Pin.Out(level)
}

func (l *Line) Halt() error {
	l.Halted = true
	return nil
}

// Bus wires a data and a clock line together and samples the data line on
// every rising clock edge.
type Bus struct {
	Data  *Line
	Clock *Line

	// OnRise is called on every rising clock edge, before the bit is sampled.
	OnRise func()

	bits []bool
	// unstable counts data writes made while the clock was high.
	unstable int
	// glitches counts clock writes that did not toggle the line.
	glitches int
}

func NewBus(data, clock int) *Bus {
	b := &Bus{Data: NewLine(data), Clock: NewLine(clock)}
	b.Data.bus = b
	b.Clock.bus = b
	return b
}

func (b *Bus) observe(l *Line, level gpio.Level) {
	switch l {
	case b.Data:
		if b.Clock.L == gpio.High {
			b.unstable++
		}
	case b.Clock:
		if l.L == level {
			b.glitches++
			return
		}
		if level == gpio.High {
			if b.OnRise != nil {
				b.OnRise()
			}
			b.bits = append(b.bits, bool(b.Data.L))
		}
	}
}

// Pulses returns the number of rising clock edges seen.
func (b *Bus) Pulses() int {
	return len(b.bits)
}

// Bits returns the sampled data bits in order.
func (b *Bus) Bits() []bool {
	return b.bits
}

// Reset forgets everything recorded so far.
func (b *Bus) Reset() {
	b.bits = nil
	b.unstable = 0
	b.glitches = 0
	b.Data.Levels = nil
	b.Clock.Levels = nil
}

// Frame is one decoded transmission, four wire bytes per pixel.
type Frame [][4]byte

// Pixel returns brightness and colour of pixel i as sent on the wire.
func (f Frame) Pixel(i int) (brightness, r, g, b int) {
	p := f[i]
	return int(p[0] & 0x1F), int(p[3]), int(p[2]), int(p[1])
}

// Frames decodes every complete frame of n pixels on the bus.
func (b *Bus) Frames(n int) ([]Frame, error) {
	if b.unstable != 0 {
		return nil, fmt.Errorf("apa102test: data changed %d times while clock was high", b.unstable)
	}
	if b.glitches != 0 {
		return nil, fmt.Errorf("apa102test: %d clock writes did not toggle the line", b.glitches)
	}
	size := startBits + n*pixelBits + endBits
	if len(b.bits)%size != 0 {
		return nil, fmt.Errorf("apa102test: %d bits is not a whole number of %d-bit frames", len(b.bits), size)
	}
	var out []Frame
	for off := 0; off < len(b.bits); off += size {
		f, err := decode(b.bits[off:off+size], n)
		if err != nil {
			return nil, fmt.Errorf("apa102test: frame %d: %w", len(out), err)
		}
		out = append(out, f)
	}
	return out, nil
}

func decode(bits []bool, n int) (Frame, error) {
	for i := 0; i < startBits; i++ {
		if bits[i] {
			return nil, errors.New("start frame carries a one bit")
		}
	}
	for i := len(bits) - endBits; i < len(bits); i++ {
		if bits[i] {
			return nil, errors.New("end frame carries a one bit")
		}
	}
	f := make(Frame, n)
	for p := 0; p < n; p++ {
		for i := 0; i < pixelBits; i++ {
			if bits[startBits+p*pixelBits+i] {
				f[p][i/8] |= 0x80 >> (i % 8)
			}
		}
		if f[p][0]&0xE0 != 0xE0 {
			return nil, fmt.Errorf("pixel %d header %#02x is missing its marker bits", p, f[p][0])
		}
	}
	return f, nil
}
