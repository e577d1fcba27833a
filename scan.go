package bjpeg

import "github.com/pkg/errors"

// scanComponentSpec binds one active component (named by frame component
// id) to its DC/AC Huffman table selectors, in the interleave order the
// scan header declares.
type scanComponentSpec struct {
	componentID uint8
	dcSelector  uint8
	acSelector  uint8
}

// scanHeader is the parsed SOS segment.
type scanHeader struct {
	comps []scanComponentSpec
	ss    uint8
	se    uint8
	ah    uint8
	al    uint8
}

// parseSOS parses a Start-Of-Scan payload and validates its component
// references against the frame. Restart intervals and progressive
// spectral/approximation parameters are rejected, not handled.
func parseSOS(payload []byte, fh *frameHeader) (*scanHeader, error) {
	if len(payload) < 1 {
		return nil, errors.New("SOS: empty payload")
	}
	n := int(payload[0])
	if n < 1 || n > 4 {
		return nil, errors.Wrapf(ErrInvalidComponentCount, "SOS: scan component count %d not in [1,4]", n)
	}
	if len(payload) != 1+2*n+3 {
		return nil, errors.New("SOS: segment length does not match component count")
	}

	sh := &scanHeader{}
	off := 1
	for i := 0; i < n; i++ {
		id := payload[off]
		sel := payload[off+1]
		off += 2

		found := false
		for _, c := range fh.components {
			if c.id == id {
				found = true
				break
			}
		}
		if !found {
			return nil, errors.Wrapf(ErrUnknownComponentInScan, "SOS: component id %d not present in frame", id)
		}
		sh.comps = append(sh.comps, scanComponentSpec{
			componentID: id,
			dcSelector:  sel >> 4,
			acSelector:  sel & 0x0f,
		})
	}

	sh.ss, sh.se, sh.ah = payload[off], payload[off+1], payload[off+2]>>4
	sh.al = payload[off+2] & 0x0f
	if sh.ss > 63 || sh.se > 63 || sh.se < sh.ss {
		return nil, errors.Wrapf(ErrInvalidSpectralSelectionValue, "SOS: Ss=%d Se=%d", sh.ss, sh.se)
	}
	if sh.ss != 0 || sh.se != 63 || sh.ah != 0 || sh.al != 0 {
		return nil, errors.Wrapf(ErrUnsupportedFeature, "SOS: Ss=%d Se=%d Ah=%d Al=%d is not baseline (0,63,0,0)", sh.ss, sh.se, sh.ah, sh.al)
	}
	if n != len(fh.components) {
		return nil, errors.Wrapf(ErrUnsupportedFeature, "SOS: scan covers %d of %d frame components; multi-scan streams are not supported", n, len(fh.components))
	}
	return sh, nil
}

// componentBlocks holds the decoded (not yet dequantized) coefficient grid
// for one scan component, row-major over the MCU grid.
type componentBlocks struct {
	componentID uint8
	grid        [][]block // [mcuRow][mcuCol]
}

// decodeMagnitude turns a magnitude category and its raw bits into a
// signed value: a set high bit means the value is positive and equals the
// bits; otherwise it is bits - (2^category - 1).
func decodeMagnitude(category uint8, bits uint32) int32 {
	if category == 0 {
		return 0
	}
	half := uint32(1) << (category - 1)
	if bits&half != 0 {
		return int32(bits)
	}
	return int32(bits) - int32(uint32(1)<<category-1)
}

// decodeScan runs the entropy-coded MCU loop for one subsampling-free
// scan, returning the zigzag-inverted, still-quantized coefficient grid
// per active component. MCUs run in raster order; within each MCU the
// components follow the scan header's interleave order.
func decodeScan(br *bitReader, fh *frameHeader, sh *scanHeader, dcTables, acTables [2]*huffTable, mcuRows, mcuCols int, log Logger) ([]componentBlocks, error) {
	results := make([]componentBlocks, len(sh.comps))
	predictors := make([]int32, len(sh.comps))

	for ci, sc := range sh.comps {
		if sc.dcSelector > 1 || dcTables[sc.dcSelector] == nil {
			return nil, errors.Wrapf(ErrNonexistentDCHuffmanTableReferenced, "scan component %d: DC table %d", sc.componentID, sc.dcSelector)
		}
		if sc.acSelector > 1 || acTables[sc.acSelector] == nil {
			return nil, errors.Wrapf(ErrNonexistentACHuffmanTableReferenced, "scan component %d: AC table %d", sc.componentID, sc.acSelector)
		}
		grid := make([][]block, mcuRows)
		for r := range grid {
			grid[r] = make([]block, mcuCols)
		}
		results[ci] = componentBlocks{componentID: sc.componentID, grid: grid}
	}

	total := mcuRows * mcuCols
	for m := 0; m < total; m++ {
		row, col := m/mcuCols, m%mcuCols
		for ci, sc := range sh.comps {
			blk := &results[ci].grid[row][col]

			// DC decode.
			cat, err := br.readSymbol(dcTables[sc.dcSelector])
			if err != nil {
				return nil, errors.Wrapf(err, "MCU %d component %d: DC symbol", m, sc.componentID)
			}
			if cat > 11 {
				return nil, errors.Wrapf(ErrInvalidDCMagnitude, "MCU %d component %d: DC category %d", m, sc.componentID, cat)
			}
			var diff int32
			if cat > 0 {
				bits, err := br.readBits(uint(cat))
				if err != nil {
					return nil, errors.Wrapf(err, "MCU %d component %d: DC bits", m, sc.componentID)
				}
				diff = decodeMagnitude(cat, bits)
			}
			predictors[ci] += diff
			blk[0] = predictors[ci]

			// AC decode.
			k := 1
			for k <= 63 {
				rs, err := br.readSymbol(acTables[sc.acSelector])
				if err != nil {
					return nil, errors.Wrapf(err, "MCU %d component %d: AC symbol at k=%d", m, sc.componentID, k)
				}
				run := int(rs >> 4)
				size := rs & 0x0f

				switch {
				case rs == 0x00: // EOB
					k = 64
				case rs == 0xf0: // ZRL
					if k+16 > 64 {
						return nil, errors.Errorf("MCU %d component %d: ZRL past end of block at k=%d", m, sc.componentID, k)
					}
					k += 16
				default:
					if size < 1 || size > 10 {
						return nil, errors.Wrapf(ErrInvalidACMagnitude, "MCU %d component %d: AC category %d", m, sc.componentID, size)
					}
					if k+run > 63 {
						return nil, errors.Errorf("MCU %d component %d: run %d overflows block at k=%d", m, sc.componentID, run, k)
					}
					bits, err := br.readBits(uint(size))
					if err != nil {
						return nil, errors.Wrapf(err, "MCU %d component %d: AC bits", m, sc.componentID)
					}
					val := decodeMagnitude(size, bits)
					blk.storeZigZag(k+run, val)
					k += run + 1
				}
			}

			if log != nil {
				log.Debug("decoded MCU block", "mcu", m, "component", sc.componentID, "dc", predictors[ci])
			}
		}
	}
	return results, nil
}
