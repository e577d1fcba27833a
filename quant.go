package bjpeg

import "github.com/pkg/errors"

// zigZagOrder[k] is the natural-order (row-major) offset of the coefficient
// that appears at position k in T.81's zigzag encoding order (Figure A.6).
var zigZagOrder = [64]int{
	0, 1, 8, 16, 9, 2, 3, 10,
	17, 24, 32, 25, 18, 11, 4, 5,
	12, 19, 26, 33, 40, 48, 41, 34,
	27, 20, 13, 6, 7, 14, 21, 28,
	35, 42, 49, 56, 57, 50, 43, 36,
	29, 22, 15, 23, 30, 37, 44, 51,
	58, 59, 52, 45, 38, 31, 39, 46,
	53, 60, 61, 54, 47, 55, 62, 63,
}

// quantTable holds either 64 unsigned 8-bit or 64 unsigned 16-bit entries,
// presented through a uniform uint16 accessor so dequantization never
// branches on precision.
type quantTable struct {
	sixteenBit bool
	values     [64]uint16 // natural (row-major) order
}

func (q *quantTable) at(naturalIndex int) uint16 { return q.values[naturalIndex] }

// quantStore holds up to 4 quantization tables, identifier 0..3, "absent"
// until a DQT segment installs one.
type quantStore struct {
	tables [4]*quantTable
}

// parseDQT parses a (possibly multi-table) DQT payload and installs each
// table into the store, overwriting any previous occupant of the same
// destination identifier. Entries arrive in zigzag order and are inverted
// to natural order here, once.
func (qs *quantStore) parseDQT(payload []byte) error {
	off := 0
	for off < len(payload) {
		precDest := payload[off]
		off++
		prec := precDest >> 4
		dest := precDest & 0x0f
		if prec != 0 && prec != 1 {
			return errors.Wrapf(ErrUnknownQuantizationTablePrecision, "DQT: precision nibble %d", prec)
		}
		if dest > 3 {
			return errors.Errorf("DQT: destination %d out of range [0,3]", dest)
		}

		table := &quantTable{sixteenBit: prec == 1}
		entrySize := 1
		if table.sixteenBit {
			entrySize = 2
		}
		needed := entrySize * 64
		if off+needed > len(payload) {
			return errors.Errorf("DQT: truncated table for destination %d", dest)
		}
		for k := 0; k < 64; k++ {
			var v uint16
			if table.sixteenBit {
				v = uint16(payload[off])<<8 | uint16(payload[off+1])
				off += 2
			} else {
				v = uint16(payload[off])
				off++
			}
			table.values[zigZagOrder[k]] = v
		}
		qs.tables[dest] = table
	}
	return nil
}

func (qs *quantStore) lookup(id uint8) (*quantTable, error) {
	if id > 3 || qs.tables[id] == nil {
		return nil, errors.Wrapf(ErrUnknownQuantizationTableReferenced, "quantization table %d", id)
	}
	return qs.tables[id], nil
}
