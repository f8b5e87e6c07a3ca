package apa102_test

import (
	"errors"
	"testing"

	"github.com/coreman2200/funtimes-blinkt/apa102"
	"github.com/coreman2200/funtimes-blinkt/apa102/apa102test"
	"github.com/coreman2200/funtimes-blinkt/model"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/gpio"
)

func TestShowFreshStrip(t *testing.T) {
	bus := apa102test.NewBus(23, 24)
	tx := apa102.NewTransmitter(bus.Data, bus.Clock)

	require.NoError(t, tx.Show(model.NewStrip()))

	assert.Equal(t, 324, bus.Pulses())
	assert.Len(t, bus.Clock.Levels, 648)
	// One low before each marker plus one write per pixel bit.
	assert.Len(t, bus.Data.Levels, 2+256)

	frames, err := bus.Frames(model.NumPixels)
	require.NoError(t, err)
	require.Len(t, frames, 1)

	want := make(apa102test.Frame, model.NumPixels)
	for i := range want {
		want[i] = [4]byte{0xE6, 0, 0, 0}
	}
	if diff := cmp.Diff(want, frames[0]); diff != "" {
		t.Fatalf("frame mismatch (-want +got):\n%s", diff)
	}
}

func TestShowClockAlternates(t *testing.T) {
	bus := apa102test.NewBus(23, 24)
	tx := apa102.NewTransmitter(bus.Data, bus.Clock)
	require.NoError(t, tx.Show(model.NewStrip()))

	for i, l := range bus.Clock.Levels {
		assert.Equal(t, gpio.Level(i%2 == 0), l, "clock write %d", i)
	}
}

func TestShowMarkers(t *testing.T) {
	bus := apa102test.NewBus(23, 24)
	tx := apa102.NewTransmitter(bus.Data, bus.Clock)
	s := model.NewStrip()
	require.NoError(t, s.SetPixelsRGBB(255, 255, 255, 1.0))
	require.NoError(t, tx.Show(s))

	bits := bus.Bits()
	for i := 0; i < apa102.StartFrameClocks; i++ {
		assert.False(t, bits[i], "start bit %d", i)
	}
	for i := len(bits) - apa102.EndFrameClocks; i < len(bits); i++ {
		assert.False(t, bits[i], "end bit %d", i)
	}
	for i := apa102.StartFrameClocks; i < len(bits)-apa102.EndFrameClocks; i++ {
		assert.True(t, bits[i], "pixel bit %d", i)
	}
}

func TestShowFirstPixelRed(t *testing.T) {
	bus := apa102test.NewBus(23, 24)
	tx := apa102.NewTransmitter(bus.Data, bus.Clock)
	s := model.NewStrip()
	require.NoError(t, s.SetPixelRGBB(0, 255, 0, 0, 1.0))
	require.NoError(t, tx.Show(s))

	// Pixel 0 follows the start marker's single low write.
	pixel0 := bus.Data.Levels[1 : 1+32]
	want := []gpio.Level{}
	for _, b := range []byte{0xFF, 0x00, 0x00, 0xFF} {
		for i := 7; i >= 0; i-- {
			want = append(want, gpio.Level(b&(1<<i) != 0))
		}
	}
	assert.Equal(t, want, pixel0)

	frames, err := bus.Frames(model.NumPixels)
	require.NoError(t, err)
	brightness, r, g, b := frames[0].Pixel(0)
	assert.Equal(t, []int{31, 255, 0, 0}, []int{brightness, r, g, b})
}

func TestShowPhases(t *testing.T) {
	bus := apa102test.NewBus(23, 24)
	tx := apa102.NewTransmitter(bus.Data, bus.Clock)

	type step struct {
		phase apa102.Phase
		pixel int
	}
	var seen []step
	bus.OnRise = func() {
		p, i := tx.Phase()
		if len(seen) == 0 || seen[len(seen)-1] != (step{p, i}) {
			seen = append(seen, step{p, i})
		}
	}
	require.NoError(t, tx.Show(model.NewStrip()))

	want := []step{{apa102.StartFrame, 0}}
	for i := 0; i < model.NumPixels; i++ {
		want = append(want, step{apa102.PixelFrame, i})
	}
	want = append(want, step{apa102.EndFrame, 0})
	assert.Equal(t, want, seen)

	p, _ := tx.Phase()
	assert.Equal(t, apa102.Idle, p)
}

func TestShowRepeatsWholeFrame(t *testing.T) {
	bus := apa102test.NewBus(23, 24)
	tx := apa102.NewTransmitter(bus.Data, bus.Clock)
	s := model.NewStrip()
	require.NoError(t, tx.Show(s))
	require.NoError(t, s.SetPixel(7, 1, 2, 3))
	require.NoError(t, tx.Show(s))

	frames, err := bus.Frames(model.NumPixels)
	require.NoError(t, err)
	require.Len(t, frames, 2)
	assert.Equal(t, frames[0][:7], frames[1][:7])
	assert.Equal(t, [4]byte{0xE6, 3, 2, 1}, frames[1][7])
}

func TestShowStopsOnLineError(t *testing.T) {
	bus := apa102test.NewBus(23, 24)
	boom := errors.New("boom")
	bus.Clock.Err = boom
	tx := apa102.NewTransmitter(bus.Data, bus.Clock)

	err := tx.Show(model.NewStrip())
	assert.Equal(t, boom, err)
	assert.Len(t, bus.Data.Levels, 1)

	p, _ := tx.Phase()
	assert.Equal(t, apa102.Idle, p)
}

func TestPhaseString(t *testing.T) {
	assert.Equal(t, "idle", apa102.Idle.String())
	assert.Equal(t, "end-frame", apa102.EndFrame.String())
	assert.Equal(t, "Phase(9)", apa102.Phase(9).String())
}
