package model

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidColorValue      = errors.New("invalid color value")
	ErrInvalidBrightnessLevel = errors.New("invalid brightness level")
	ErrInvalidPixelIndex      = errors.New("invalid pixel index")
)

func checkColor(name string, v int) error {
	if v < 0 || v > MaxColor {
		return fmt.Errorf("%w: %s should be between 0 and %d, got %d", ErrInvalidColorValue, name, MaxColor, v)
	}
	return nil
}

// NaN fails both comparisons and is rejected too.
func checkBrightness(b float64) error {
	if !(b >= 0.0 && b <= 1.0) {
		return fmt.Errorf("%w: brightness should be between 0.0 and 1.0, got %v", ErrInvalidBrightnessLevel, b)
	}
	return nil
}

func checkIndex(i int) error {
	if i < 0 || i >= NumPixels {
		return fmt.Errorf("%w: pixel should be between 0 and %d, got %d", ErrInvalidPixelIndex, NumPixels-1, i)
	}
	return nil
}
