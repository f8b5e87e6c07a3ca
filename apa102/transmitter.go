package apa102

import (
	"fmt"

	"github.com/coreman2200/funtimes-blinkt/model"
	"periph.io/x/conn/v3/gpio"
)

const (
	StartFrameClocks = 32
	// EndFrameClocks exceeds one clock per device for chains up to this
	// length so the last pixel always latches.
	EndFrameClocks = 36
)

// Phase is where a Transmitter is in a frame.
type Phase int

const (
	Idle Phase = iota
	StartFrame
	PixelFrame
	EndFrame
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case StartFrame:
		return "start-frame"
	case PixelFrame:
		return "pixel"
	case EndFrame:
		return "end-frame"
	}
	return fmt.Sprintf("Phase(%d)", int(p))
}

// Transmitter writes frames to a data and a clock line. It is not safe for
// concurrent use; a frame always runs to completion or to the first line
// error.
type Transmitter struct {
	data  gpio.PinOut
	clock gpio.PinOut
	phase Phase
	pixel int
}

func NewTransmitter(data, clock gpio.PinOut) *Transmitter {
	return &Transmitter{data: data, clock: clock}
}

// Phase returns the current frame phase and, during PixelFrame, the index
// of the pixel being sent.
func (t *Transmitter) Phase() (Phase, int) {
	return t.phase, t.pixel
}

// Show sends the whole strip as one frame. There is no partial update.
func (t *Transmitter) Show(s *model.Strip) error {
	defer t.enter(Idle, 0)

	t.enter(StartFrame, 0)
	if err := t.marker(StartFrameClocks); err != nil {
		return err
	}
	for i, p := range s.Pixels() {
		t.enter(PixelFrame, i)
		for _, b := range Encode(p) {
			if err := t.write(b); err != nil {
				return err
			}
		}
	}
	t.enter(EndFrame, 0)
	return t.marker(EndFrameClocks)
}

func (t *Transmitter) enter(p Phase, pixel int) {
	t.phase = p
	t.pixel = pixel
}

// write sends b most significant bit first.
func (t *Transmitter) write(b byte) error {
	for i := 0; i < 8; i++ {
		if err := t.data.Out(b&bitMask != 0); err != nil {
			return err
		}
		if err := t.pulse(); err != nil {
			return err
		}
		b <<= 1
	}
	return nil
}

func (t *Transmitter) marker(clocks int) error {
	if err := t.data.Out(gpio.Low); err != nil {
		return err
	}
	for i := 0; i < clocks; i++ {
		if err := t.pulse(); err != nil {
			return err
		}
	}
	return nil
}

func (t *Transmitter) pulse() error {
	if err := t.clock.Out(gpio.High); err != nil {
		return err
	}
	return t.clock.Out(gpio.Low)
}
