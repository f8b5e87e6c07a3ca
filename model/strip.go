package model

import (
	"image"
	"iter"
)

// NumPixels is the fixed length of a strip.
const NumPixels = 8

// Strip is a fixed, ordered set of NumPixels pixels. Pixels are never added
// or removed, only mutated in place.
type Strip struct {
	pixels [NumPixels]Pixel
}

func NewStrip() *Strip {
	s := &Strip{}
	for i := range s.pixels {
		s.pixels[i] = NewPixel()
	}
	return s
}

// Pixel returns a mutable handle to pixel i.
func (s *Strip) Pixel(i int) (*Pixel, error) {
	if err := checkIndex(i); err != nil {
		return nil, err
	}
	return &s.pixels[i], nil
}

// Pixels yields every pixel in index order. The sequence can be ranged over
// any number of times.
func (s *Strip) Pixels() iter.Seq2[int, *Pixel] {
	return func(yield func(int, *Pixel) bool) {
		for i := range s.pixels {
			if !yield(i, &s.pixels[i]) {
				return
			}
		}
	}
}

// SetPixel sets the colour of pixel i and keeps its brightness.
func (s *Strip) SetPixel(i, r, g, b int) error {
	p, err := s.Pixel(i)
	if err != nil {
		return err
	}
	return p.SetRGB(r, g, b)
}

// SetPixelRGBB sets the colour and brightness of pixel i.
func (s *Strip) SetPixelRGBB(i, r, g, b int, brightness float64) error {
	p, err := s.Pixel(i)
	if err != nil {
		return err
	}
	return p.SetRGBB(r, g, b, brightness)
}

// SetPixels applies SetPixel to every index in order. A failure stops the
// walk and earlier pixels stay modified.
func (s *Strip) SetPixels(r, g, b int) error {
	for i := range s.pixels {
		if err := s.SetPixel(i, r, g, b); err != nil {
			return err
		}
	}
	return nil
}

// SetPixelsRGBB is SetPixels with a brightness, with the same partial-write
// behaviour on failure.
func (s *Strip) SetPixelsRGBB(r, g, b int, brightness float64) error {
	for i := range s.pixels {
		if err := s.SetPixelRGBB(i, r, g, b, brightness); err != nil {
			return err
		}
	}
	return nil
}

func (s *Strip) SetBrightness(b float64) error {
	if err := checkBrightness(b); err != nil {
		return err
	}
	for i := range s.pixels {
		s.pixels[i].brightness = b
	}
	return nil
}

// Clear turns every pixel off, keeping brightness.
func (s *Strip) Clear() {
	for i := range s.pixels {
		s.pixels[i].Clear()
	}
}

// Image renders the strip as a NumPixels x 1 image.
func (s *Strip) Image() *image.NRGBA {
	im := image.NewNRGBA(image.Rect(0, 0, NumPixels, 1))
	for x := 0; x < im.Rect.Max.X; x++ {
		im.SetNRGBA(x, 0, s.pixels[x].RGBA())
	}
	return im
}
