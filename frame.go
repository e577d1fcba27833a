package bjpeg

import "github.com/pkg/errors"

// component is one SOF0 component descriptor.
type component struct {
	id            uint8
	hSampleFactor uint8
	vSampleFactor uint8
	quantSelector uint8
}

// frameHeader is the parsed SOF0 segment.
type frameHeader struct {
	precision     uint8
	rowCount      uint16 // height
	samplesPerRow uint16 // width
	components    []component
}

// parseSOF0 parses a Start-Of-Frame (baseline) payload. Chroma subsampling
// is not supported, so every sampling factor must be 1; that is enforced
// here rather than deferred to MCU-grid construction.
func parseSOF0(payload []byte) (*frameHeader, error) {
	if len(payload) < 6 {
		return nil, errors.New("SOF0: truncated header")
	}
	fh := &frameHeader{
		precision:     payload[0],
		rowCount:      uint16(payload[1])<<8 | uint16(payload[2]),
		samplesPerRow: uint16(payload[3])<<8 | uint16(payload[4]),
	}
	if fh.precision != 8 {
		return nil, errors.Wrapf(ErrUnsupportedPrecision, "SOF0: sample precision %d", fh.precision)
	}

	nComp := int(payload[5])
	if nComp != 1 && nComp != 3 {
		return nil, errors.Wrapf(ErrInvalidComponentCount, "SOF0: component count %d not in {1,3}", nComp)
	}
	if len(payload) != 6+3*nComp {
		return nil, errors.New("SOF0: segment length does not match component count")
	}

	off := 6
	for i := 0; i < nComp; i++ {
		id := payload[off]
		sf := payload[off+1]
		qs := payload[off+2]
		off += 3

		h := sf >> 4
		v := sf & 0x0f
		if h < 1 || h > 4 || v < 1 || v > 4 {
			return nil, errors.Wrapf(ErrInvalidSamplingFactor, "SOF0: component %d sampling factors %d x %d", id, h, v)
		}
		if h != 1 || v != 1 {
			return nil, errors.Wrapf(ErrInvalidSamplingFactor, "SOF0: component %d: chroma subsampling (%dx%d) is not supported", id, h, v)
		}
		if qs > 3 {
			return nil, errors.Wrapf(ErrUnknownQuantizationTableReferenced, "SOF0: component %d quantization selector %d", id, qs)
		}
		fh.components = append(fh.components, component{id: id, hSampleFactor: h, vSampleFactor: v, quantSelector: qs})
	}
	return fh, nil
}
