package bjpeg

import "math"

// JFIF YCbCr<->RGB relation constants, K_r=0.299, K_b=0.114, K_g=0.587.
// The usual 1.402/1.772 literals fall out as 2-2*Kr and 2-2*Kb.
const (
	kr = 0.299
	kb = 0.114
	kg = 0.587
)

func clamp255(v float64) uint8 {
	r := int32(math.Round(v))
	if r < 0 {
		return 0
	}
	if r > 255 {
		return 255
	}
	return uint8(r)
}

// grayLevel level-shifts a single-component sample: clamp(s+128, 0, 255).
func grayLevel(y int16) uint8 {
	return clamp255(float64(y) + 128)
}

// ycbcrToRGB converts one reconstructed signed YCbCr triple to RGB, with
// level shift and clamp.
func ycbcrToRGB(y, cb, cr int16) (r, g, b uint8) {
	yf, cbf, crf := float64(y), float64(cb), float64(cr)
	rf := crf*(2-2*kr) + yf
	bf := cbf*(2-2*kb) + yf
	gf := (yf - kb*bf - kr*rf) / kg
	return clamp255(rf + 128), clamp255(gf + 128), clamp255(bf + 128)
}
