// Package apa102 serializes a strip of pixels into the two-wire APA102
// protocol and bit-bangs it out over a data and a clock GPIO line.
//
// A frame is a start marker of StartFrameClocks zero bits, four bytes per
// pixel (header, blue, green, red) sent most significant bit first, and an
// end marker of EndFrameClocks zero bits which latches the data through the
// chain.
package apa102

const (
	headerMask = 0xE0 // 0b11100000
	bitMask    = 0x80 // 0b10000000

	// BytesPerPixel is the size of an encoded pixel.
	BytesPerPixel = 4
)

// Source is the read side of a pixel.
type Source interface {
	Red() int
	Green() int
	Blue() int
	// Brightness is the 5-bit encoded brightness.
	Brightness() int
}

// Encode returns the wire bytes for one pixel: the header carrying the
// brightness, then blue, green and red.
func Encode(p Source) [BytesPerPixel]byte {
	return [BytesPerPixel]byte{
		headerMask | byte(p.Brightness()&0x1F),
		byte(p.Blue()),
		byte(p.Green()),
		byte(p.Red()),
	}
}
