package bjpeg

import (
	"bytes"

	"github.com/pkg/errors"
)

// jfifHeader is the parsed APP0/JFIF prolog.
type jfifHeader struct {
	majorRev, minorRev uint8
	densityUnit        uint8
	xDensity, yDensity uint16
	thumbWidth         uint8
	thumbHeight        uint8
}

var jfifIdentifier = []byte("JFIF\x00")

// parseJFIF validates and parses the mandatory APP0/JFIF segment that must
// immediately follow SOI. A second APP0 before SOF, JFXX extensions
// included, is rejected; this decoder never parses thumbnail payloads.
func parseJFIF(payload []byte) (*jfifHeader, error) {
	if len(payload) < 14 {
		return nil, errors.Wrap(ErrInvalidMagicHeader, "APP0: segment too short for a JFIF prolog")
	}
	if !bytes.Equal(payload[0:5], jfifIdentifier) {
		return nil, errors.Wrap(ErrInvalidMagicHeader, "APP0: identifier is not \"JFIF\\0\"")
	}
	h := &jfifHeader{
		majorRev:    payload[5],
		minorRev:    payload[6],
		densityUnit: payload[7],
		xDensity:    uint16(payload[8])<<8 | uint16(payload[9]),
		yDensity:    uint16(payload[10])<<8 | uint16(payload[11]),
		thumbWidth:  payload[12],
		thumbHeight: payload[13],
	}
	if h.densityUnit > 2 {
		return nil, errors.Wrap(ErrInvalidMagicHeader, "APP0: density unit not in {0,1,2}")
	}
	if h.thumbWidth != 0 || h.thumbHeight != 0 {
		return nil, errors.Wrap(ErrInvalidMagicHeader, "APP0: embedded thumbnail present")
	}
	if len(payload) != 14+3*int(h.thumbWidth)*int(h.thumbHeight) {
		return nil, errors.Wrap(ErrInvalidMagicHeader, "APP0: segment length inconsistent with thumbnail dimensions")
	}
	return h, nil
}

// LooksLikeJFIF reports whether header starts a JFIF stream: the first two
// bytes are SOI, and the ASCII bytes "JFIF" appear at absolute offset 6
// (2 bytes SOI + 2 bytes APP0 marker + 2 bytes length). It consumes no
// state beyond peeking at the supplied bytes.
func LooksLikeJFIF(header []byte) bool {
	if len(header) < 10 {
		return false
	}
	if header[0] != 0xff || header[1] != 0xd8 {
		return false
	}
	return bytes.Equal(header[6:10], []byte("JFIF"))
}
