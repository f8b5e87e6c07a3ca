package blinkt_test

import (
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/coreman2200/funtimes-blinkt/apa102/apa102test"
	"github.com/coreman2200/funtimes-blinkt/blinkt"
	"github.com/coreman2200/funtimes-blinkt/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/gpio"
)

// fakePins hands out lines of a recording bus and counts acquisitions.
type fakePins struct {
	bus      *apa102test.Bus
	acquired []int
	fail     map[int]error
}

func newFakePins() *fakePins {
	return &fakePins{bus: apa102test.NewBus(blinkt.DefaultDataPin, blinkt.DefaultClockPin)}
}

func (f *fakePins) OutputPin(n int) (gpio.PinOut, error) {
	if err := f.fail[n]; err != nil {
		return nil, err
	}
	f.acquired = append(f.acquired, n)
	switch len(f.acquired) % 2 {
	case 1:
		return f.bus.Data, nil
	default:
		return f.bus.Clock, nil
	}
}

func TestShowSetsUpDefaultPinsOnce(t *testing.T) {
	pins := newFakePins()
	d := blinkt.New(pins)
	assert.Equal(t, blinkt.Unready, d.State())

	require.NoError(t, d.Show())
	assert.Equal(t, blinkt.Ready, d.State())
	assert.Equal(t, []int{23, 24}, pins.acquired)

	require.NoError(t, d.Show())
	require.NoError(t, d.Show())
	assert.Equal(t, []int{23, 24}, pins.acquired, "default pins should be claimed exactly once")
	assert.Equal(t, uint64(3), d.Frames())

	data, clock := d.Pins()
	assert.Equal(t, 23, data)
	assert.Equal(t, 24, clock)
}

func TestShowFreshDriverFrame(t *testing.T) {
	pins := newFakePins()
	d := blinkt.New(pins)
	require.NoError(t, d.Show())

	assert.Equal(t, 324, pins.bus.Pulses())
	assert.Len(t, pins.bus.Clock.Levels, 648)
	frames, err := pins.bus.Frames(model.NumPixels)
	require.NoError(t, err)
	require.Len(t, frames, 1)
	for i := 0; i < model.NumPixels; i++ {
		brightness, r, g, b := frames[0].Pixel(i)
		assert.Equal(t, []int{6, 0, 0, 0}, []int{brightness, r, g, b})
	}
}

func TestSetPixelThenShow(t *testing.T) {
	pins := newFakePins()
	d := blinkt.New(pins)
	require.NoError(t, d.SetPixelRGBB(0, 255, 0, 0, 1.0))
	require.NoError(t, d.Show())

	frames, err := pins.bus.Frames(model.NumPixels)
	require.NoError(t, err)
	assert.Equal(t, [4]byte{0xFF, 0x00, 0x00, 0xFF}, frames[0][0])
}

func TestSetupValidatesPins(t *testing.T) {
	cases := []struct {
		name        string
		data, clock int
	}{
		{"data low", 0, 24},
		{"data high", 28, 24},
		{"clock low", 23, 0},
		{"clock high", 23, 28},
		{"same low", 1, 1},
		{"same", 5, 5},
		{"same high", 27, 27},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			pins := newFakePins()
			d := blinkt.New(pins)
			assert.ErrorIs(t, d.Setup(c.data, c.clock), blinkt.ErrInvalidGpioPin)
			assert.Empty(t, pins.acquired, "no pin should be claimed")
			assert.Equal(t, blinkt.Unready, d.State())
		})
	}
}

func TestSetupCustomPins(t *testing.T) {
	pins := newFakePins()
	d := blinkt.New(pins)
	require.NoError(t, d.Setup(1, 27))
	require.NoError(t, d.Show())
	assert.Equal(t, []int{1, 27}, pins.acquired)
}

func TestSetupAgainReclaims(t *testing.T) {
	pins := newFakePins()
	d := blinkt.New(pins)
	require.NoError(t, d.Setup(5, 6))
	require.NoError(t, d.Setup(7, 8))
	assert.Equal(t, []int{5, 6, 7, 8}, pins.acquired)

	data, clock := d.Pins()
	assert.Equal(t, 7, data)
	assert.Equal(t, 8, clock)
}

func TestSetupPropagatesAcquireError(t *testing.T) {
	busy := errors.New("busy")
	pins := newFakePins()
	pins.fail = map[int]error{24: busy}
	d := blinkt.New(pins)

	assert.Equal(t, busy, d.Setup(23, 24))
	assert.Equal(t, blinkt.Unready, d.State())
	assert.Equal(t, busy, d.Show())
}

func TestSetupReleasesDataWhenClockFails(t *testing.T) {
	busy := errors.New("busy")
	cases := []struct {
		name       string
		fail       int
		dataHalted bool
	}{
		{"clock busy", 24, true},
		{"data busy", 23, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			pins := newFakePins()
			pins.fail = map[int]error{c.fail: busy}
			d := blinkt.New(pins)

			assert.Equal(t, busy, d.Setup(23, 24))
			assert.Equal(t, c.dataHalted, pins.bus.Data.Halted)
			assert.False(t, pins.bus.Clock.Halted)
			assert.Equal(t, blinkt.Unready, d.State())
		})
	}
}

func TestValidationHappensBeforeWrites(t *testing.T) {
	pins := newFakePins()
	d := blinkt.New(pins)
	assert.ErrorIs(t, d.SetPixel(8, 0, 0, 0), model.ErrInvalidPixelIndex)
	assert.ErrorIs(t, d.SetPixels(0, 256, 0), model.ErrInvalidColorValue)
	assert.ErrorIs(t, d.SetBrightness(-1), model.ErrInvalidBrightnessLevel)
	_, err := d.Pixel(-1)
	assert.ErrorIs(t, err, model.ErrInvalidPixelIndex)
	assert.Empty(t, pins.acquired)
	assert.Zero(t, pins.bus.Pulses())
}

func TestClearOnExitSendsOneDarkFrame(t *testing.T) {
	pins := newFakePins()
	d := blinkt.New(pins)
	d.SetClearOnExit(true)
	require.NoError(t, d.SetPixelsRGBB(10, 20, 30, 0.5))
	require.NoError(t, d.Show())
	assert.Equal(t, 324, pins.bus.Pulses(), "SetClearOnExit has no immediate effect")

	require.NoError(t, d.Close())
	assert.Equal(t, blinkt.Closed, d.State())

	frames, err := pins.bus.Frames(model.NumPixels)
	require.NoError(t, err)
	require.Len(t, frames, 2)
	for i := 0; i < model.NumPixels; i++ {
		brightness, r, g, b := frames[1].Pixel(i)
		assert.Equal(t, []int{15, 0, 0, 0}, []int{brightness, r, g, b})
	}
	assert.True(t, pins.bus.Data.Halted)
	assert.True(t, pins.bus.Clock.Halted)

	require.NoError(t, d.Close())
	assert.Equal(t, 2*324, pins.bus.Pulses(), "second Close is a no-op")
}

func TestCloseWithoutClearOnExit(t *testing.T) {
	pins := newFakePins()
	d := blinkt.New(pins)
	require.NoError(t, d.Show())
	require.NoError(t, d.Close())
	assert.Equal(t, 324, pins.bus.Pulses())
	assert.ErrorIs(t, d.Show(), blinkt.ErrClosed)
	assert.ErrorIs(t, d.Setup(23, 24), blinkt.ErrClosed)
}

func TestCloseUnreadyWithClearOnExitSetsUp(t *testing.T) {
	pins := newFakePins()
	d := blinkt.New(pins, blinkt.WithClearOnExit(true))
	require.NoError(t, d.Close())
	assert.Equal(t, []int{23, 24}, pins.acquired)
	assert.Equal(t, 324, pins.bus.Pulses())
}

func TestRunClosesOnError(t *testing.T) {
	pins := newFakePins()
	boom := errors.New("boom")
	var seen *blinkt.Driver
	err := blinkt.Run(pins, func(d *blinkt.Driver) error {
		seen = d
		return boom
	}, blinkt.WithClearOnExit(true))

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, blinkt.Closed, seen.State())
	assert.Equal(t, 324, pins.bus.Pulses())
}

func TestClearKeepsBrightness(t *testing.T) {
	d := blinkt.New(newFakePins())
	require.NoError(t, d.SetPixelRGBB(1, 9, 9, 9, 0.8))
	d.Clear()
	p, err := d.Pixel(1)
	require.NoError(t, err)
	assert.Equal(t, 0, p.Red())
	assert.Equal(t, 0.8, p.BrightnessValue())
}

func TestPixelsYieldsInOrder(t *testing.T) {
	d := blinkt.New(newFakePins())
	var idx []int
	for i := range d.Pixels() {
		idx = append(idx, i)
	}
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7}, idx)
}

// fakeDrawer is a display.Drawer that keeps the last image.
type fakeDrawer struct {
	last   *image.NRGBA
	draws  int
	halted bool
	err    error
}

func (f *fakeDrawer) String() string           { return "fake" }
func (f *fakeDrawer) ColorModel() color.Model { return color.NRGBAModel }
func (f *fakeDrawer) Bounds() image.Rectangle { return image.Rect(0, 0, model.NumPixels, 1) }

func (f *fakeDrawer) Halt() error {
	f.halted = true
	return nil
}

func (f *fakeDrawer) Draw(r image.Rectangle, src image.Image, sp image.Point) error {
	f.draws++
	f.last = src.(*image.NRGBA)
	return f.err
}

func TestMirrorReceivesEveryFrame(t *testing.T) {
	m := &fakeDrawer{}
	d := blinkt.New(newFakePins(), blinkt.WithMirror(m))
	require.NoError(t, d.SetPixelRGBB(2, 0, 255, 0, 1.0))
	require.NoError(t, d.Show())
	require.NoError(t, d.Show())

	assert.Equal(t, 2, m.draws)
	assert.Equal(t, uint8(255), m.last.NRGBAAt(2, 0).G)

	require.NoError(t, d.Close())
	assert.True(t, m.halted)
}

func TestMirrorErrorAfterFrame(t *testing.T) {
	pins := newFakePins()
	m := &fakeDrawer{err: errors.New("unplugged")}
	d := blinkt.New(pins, blinkt.WithMirror(m))

	assert.Error(t, d.Show())
	assert.Equal(t, 324, pins.bus.Pulses(), "gpio frame is sent before mirrors")
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "ready", blinkt.Ready.String())
	assert.Equal(t, "State(7)", blinkt.State(7).String())
}
