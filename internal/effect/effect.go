// Package effect animates a strip by rendering an Effect into it and
// showing it at a fixed frame rate.
package effect

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/coreman2200/funtimes-blinkt/model"
)

// Canvas is the part of a driver an effect may touch.
type Canvas interface {
	SetPixel(i, r, g, b int) error
	SetBrightness(b float64) error
}

// Effect renders the frame at elapsed time t.
type Effect interface {
	Name() string
	Render(c Canvas, t time.Duration) error
}

// Rainbow rotates the colour wheel along the strip once per Period.
type Rainbow struct {
	Period time.Duration
}

func (Rainbow) Name() string { return "rainbow" }

func (e Rainbow) Render(c Canvas, t time.Duration) error {
	phase := float64(t) / float64(e.Period)
	for i := 0; i < model.NumPixels; i++ {
		r, g, b := model.Wheel(phase + float64(i)/model.NumPixels)
		if err := c.SetPixel(i, r, g, b); err != nil {
			return err
		}
	}
	return nil
}

// Pulse breathes the brightness of whatever colours are set, between 0
// and Max, once per Period.
type Pulse struct {
	Period time.Duration
	Max    float64
}

func (Pulse) Name() string { return "pulse" }

func (e Pulse) Render(c Canvas, t time.Duration) error {
	rad := 2 * math.Pi * float64(t) / float64(e.Period)
	return c.SetBrightness(e.Max * (1 - math.Cos(rad)) / 2)
}

// None leaves the strip as it is.
type None struct{}

func (None) Name() string { return "none" }

func (None) Render(c Canvas, t time.Duration) error {
	return nil
}

var effects = map[string]Effect{
	"rainbow": Rainbow{Period: 5 * time.Second},
	"pulse":   Pulse{Period: 2 * time.Second, Max: 1},
	"none":    None{},
}

// Lookup returns the named effect.
func Lookup(name string) (Effect, error) {
	e, ok := effects[name]
	if !ok {
		return nil, fmt.Errorf("unknown effect %q (have %v)", name, Names())
	}
	return e, nil
}

func Names() []string {
	names := make([]string, 0, len(effects))
	for n := range effects {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
