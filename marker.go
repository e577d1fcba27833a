package bjpeg

import (
	"bufio"
	"io"

	"github.com/pkg/errors"
)

// Marker values, trimmed to the subset this decoder dispatches on.
const (
	markerTEM   = 0xff01
	markerSOF0  = 0xffc0
	markerSOF1  = 0xffc1
	markerSOF2  = 0xffc2
	markerSOF3  = 0xffc3
	markerDHT   = 0xffc4
	markerSOF5  = 0xffc5
	markerSOF6  = 0xffc6
	markerSOF7  = 0xffc7
	markerSOF9  = 0xffc9
	markerSOF10 = 0xffca
	markerSOF11 = 0xffcb
	markerDAC   = 0xffcc
	markerSOF13 = 0xffcd
	markerSOF14 = 0xffce
	markerSOF15 = 0xffcf
	markerRST0  = 0xffd0
	markerRST7  = 0xffd7
	markerSOI   = 0xffd8
	markerEOI   = 0xffd9
	markerSOS   = 0xffda
	markerDQT   = 0xffdb
	markerDNL   = 0xffdc
	markerDRI   = 0xffdd
	markerDHP   = 0xffde
	markerEXP   = 0xffdf
	markerAPP0  = 0xffe0
	markerAPP15 = 0xffef
	markerCOM   = 0xfffe
)

// streamReader wraps the caller's octet source with the big-endian,
// byte-counted reads the marker/segment layer needs. Buffered, so a
// library caller is not forced to materialize the whole file up front.
type streamReader struct {
	br     *bufio.Reader
	offset int64
}

func newStreamReader(r io.Reader) *streamReader {
	return &streamReader{br: bufio.NewReader(r)}
}

func (s *streamReader) readByte() (byte, error) {
	b, err := s.br.ReadByte()
	if err != nil {
		return 0, err
	}
	s.offset++
	return b, nil
}

func (s *streamReader) readUint16() (uint16, error) {
	hi, err := s.readByte()
	if err != nil {
		return 0, err
	}
	lo, err := s.readByte()
	if err != nil {
		return 0, err
	}
	return uint16(hi)<<8 | uint16(lo), nil
}

func (s *streamReader) readFull(n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(s.br, buf); err != nil {
		return nil, err
	}
	s.offset += int64(n)
	return buf, nil
}

func (s *streamReader) skip(n int) error {
	_, err := io.CopyN(io.Discard, s.br, int64(n))
	s.offset += int64(n)
	return err
}

// readMarker reads the next big-endian 16-bit marker. Any bytes before the
// next 0xFF are discarded, and a run of 0xFF fill bytes (padding before a
// marker, permitted by T.81) is consumed, so the marker code is the first
// non-0xFF byte after them.
func (s *streamReader) readMarker() (uint16, error) {
	b, err := s.readByte()
	if err != nil {
		return 0, err
	}
	for b != 0xff {
		b, err = s.readByte()
		if err != nil {
			return 0, err
		}
	}
	for {
		b2, err := s.readByte()
		if err != nil {
			return 0, err
		}
		if b2 != 0xff {
			return uint16(0xff00) | uint16(b2), nil
		}
	}
}

// readSegmentPayload reads a segment's u16 length (inclusive of itself) and
// returns the length-2 bytes following it.
func (s *streamReader) readSegmentPayload() ([]byte, error) {
	length, err := s.readUint16()
	if err != nil {
		return nil, errors.Wrap(err, "reading segment length")
	}
	if length < 2 {
		return nil, errors.Errorf("segment length %d is less than the 2 length bytes it must include", length)
	}
	return s.readFull(int(length) - 2)
}

// skipSegment advances past a length-prefixed segment without keeping its
// payload, for APPn/COM segments the decoder treats as opaque.
func (s *streamReader) skipSegment() error {
	length, err := s.readUint16()
	if err != nil {
		return errors.Wrap(err, "reading segment length")
	}
	if length < 2 {
		return errors.Errorf("segment length %d is less than the 2 length bytes it must include", length)
	}
	return s.skip(int(length) - 2)
}

func isSOF(marker uint16) bool {
	switch marker {
	case markerSOF0, markerSOF1, markerSOF2, markerSOF3, markerSOF5, markerSOF6,
		markerSOF7, markerSOF9, markerSOF10, markerSOF11, markerSOF13, markerSOF14, markerSOF15:
		return true
	}
	return false
}

func isAPPn(marker uint16) bool {
	return marker >= markerAPP0 && marker <= markerAPP15
}

func isRSTn(marker uint16) bool {
	return marker >= markerRST0 && marker <= markerRST7
}
