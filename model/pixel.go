package model

import "image/color"

const (
	MaxColor          int     = 255
	DefaultBrightness float64 = 0.2

	colorMask      = 0xFF
	brightnessMask = 0x1F
	brightnessMax  = 31
)

// Pixel is the colour and brightness of a single LED. All four fields are
// validated before they are stored, so a Pixel is always in range.
type Pixel struct {
	red        int
	green      int
	blue       int
	brightness float64
}

// NewPixel returns an unlit pixel at DefaultBrightness.
func NewPixel() Pixel {
	return Pixel{brightness: DefaultBrightness}
}

func (p *Pixel) SetRed(v int) error {
	if err := checkColor("red", v); err != nil {
		return err
	}
	p.red = v
	return nil
}

func (p *Pixel) SetGreen(v int) error {
	if err := checkColor("green", v); err != nil {
		return err
	}
	p.green = v
	return nil
}

func (p *Pixel) SetBlue(v int) error {
	if err := checkColor("blue", v); err != nil {
		return err
	}
	p.blue = v
	return nil
}

func (p *Pixel) SetBrightness(b float64) error {
	if err := checkBrightness(b); err != nil {
		return err
	}
	p.brightness = b
	return nil
}

// SetRGB validates all three channels before storing any of them.
func (p *Pixel) SetRGB(r, g, b int) error {
	if err := checkRGB(r, g, b); err != nil {
		return err
	}
	p.red, p.green, p.blue = r, g, b
	return nil
}

// SetRGBB validates all four values before storing any of them.
func (p *Pixel) SetRGBB(r, g, b int, brightness float64) error {
	if err := checkRGB(r, g, b); err != nil {
		return err
	}
	if err := checkBrightness(brightness); err != nil {
		return err
	}
	p.red, p.green, p.blue = r, g, b
	p.brightness = brightness
	return nil
}

// Clear turns the pixel off. Brightness is kept.
func (p *Pixel) Clear() {
	p.red = 0
	p.green = 0
	p.blue = 0
}

func (p *Pixel) Red() int {
	return p.red & colorMask
}

func (p *Pixel) Green() int {
	return p.green & colorMask
}

func (p *Pixel) Blue() int {
	return p.blue & colorMask
}

// Brightness returns the 5-bit brightness sent in the pixel header.
func (p *Pixel) Brightness() int {
	return int(brightnessMax*p.brightness) & brightnessMask
}

// BrightnessValue returns the brightness as set, 0.0 to 1.0.
func (p *Pixel) BrightnessValue() float64 {
	return p.brightness
}

// RGBA renders the pixel as it would appear on the LED, with each channel
// scaled by the encoded brightness.
func (p *Pixel) RGBA() color.NRGBA {
	scale := float64(p.Brightness()) / brightnessMax
	return color.NRGBA{
		R: uint8(float64(p.Red()) * scale),
		G: uint8(float64(p.Green()) * scale),
		B: uint8(float64(p.Blue()) * scale),
		A: 255,
	}
}

func checkRGB(r, g, b int) error {
	if err := checkColor("red", r); err != nil {
		return err
	}
	if err := checkColor("green", g); err != nil {
		return err
	}
	return checkColor("blue", b)
}
