package bjpeg

import "math"

// block holds the 64 coefficients of one 8x8 data unit, natural (row-major)
// order, signed and wide enough for a 12-bit coefficient times a 16-bit
// quantizer.
type block [64]int32

// storeZigZag writes a coefficient decoded at zigzag position k into its
// natural-order slot. The inverse zigzag permutation is applied exactly
// once per coefficient, here.
func (b *block) storeZigZag(k int, v int32) { b[zigZagOrder[k]] = v }

// dequantize multiplies every natural-order coefficient by the
// corresponding natural-order quantizer entry. Both the block and the
// table were un-zigzagged at decode/parse time, so no permutation happens
// here.
func (b *block) dequantize(q *quantTable) {
	for p := 0; p < 64; p++ {
		b[p] *= int32(q.at(p))
	}
}

// idctCos[x][u] = cos((2x+1)*u*pi/16), the separable 1-D basis shared by
// both passes of the 2-D inverse DCT (T.81 eq. A.3.3). Precomputed once at
// package init.
var idctCos [8][8]float64

func init() {
	for x := 0; x < 8; x++ {
		for u := 0; u < 8; u++ {
			idctCos[x][u] = math.Cos(float64(2*x+1) * float64(u) * math.Pi / 16)
		}
	}
}

func idctC(u int) float64 {
	if u == 0 {
		return 1 / math.Sqrt2
	}
	return 1
}

// inverseDCT8 computes the 2-D IDCT of a dequantized, natural-order block,
// producing signed samples in [-128,127]. Separable two-pass structure:
// column transform, then row transform, each evaluating the 1-D sums
// against the precomputed cosine table. The 1/4 scale of T.81 eq. A.3.3
// is split as 0.5 per pass.
func (b *block) inverseDCT8() [64]int16 {
	var tmp [64]float64 // after column pass, indexed [row*8+col] in S(v,x)

	// Column pass: for each input column u, transform over v (rows).
	for col := 0; col < 8; col++ {
		for y := 0; y < 8; y++ {
			var sum float64
			for v := 0; v < 8; v++ {
				sum += idctC(v) * float64(b[v*8+col]) * idctCos[y][v]
			}
			tmp[y*8+col] = sum * 0.5
		}
	}

	var out [64]int16
	// Row pass: for each output row, transform the column-pass results over u.
	for row := 0; row < 8; row++ {
		for x := 0; x < 8; x++ {
			var sum float64
			for u := 0; u < 8; u++ {
				sum += idctC(u) * tmp[row*8+u] * idctCos[x][u]
			}
			s := sum * 0.5
			v := int32(math.Round(s))
			if v < -128 {
				v = -128
			} else if v > 127 {
				v = 127
			}
			out[row*8+x] = int16(v)
		}
	}
	return out
}
