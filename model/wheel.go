package model

import "math"

// Wheel maps h in [0,1) onto a fully saturated hue. Values outside the
// range wrap around.
func Wheel(h float64) (r, g, b int) {
	h = math.Mod(h, 1)
	if h < 0 {
		h++
	}
	h *= 6
	switch {
	case h < 1.:
		return 255, int(255 * h), 0
	case h < 2.:
		return int(255 * (2 - h)), 255, 0
	case h < 3.:
		return 0, 255, int(255 * (h - 2))
	case h < 4.:
		return 0, int(255 * (4 - h)), 255
	case h < 5.:
		return int(255 * (h - 4)), 0, 255
	default:
		return 255, 0, int(255 * (6 - h))
	}
}
