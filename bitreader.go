package bjpeg

import (
	"io"

	"github.com/pkg/errors"
)

// bitReader delivers MSB-first bits from the entropy-coded segment of a
// scan, honouring T.81 byte stuffing: every literal 0xFF in the source is
// followed by a 0x00 that must be discarded before the bits are consumed,
// and an 0xFF followed by any other byte is the next marker, not data.
// A uint64 accumulator plus a running bit count, refilled one byte at a
// time.
type bitReader struct {
	src *streamReader

	acc  uint64
	bits uint

	atMarker  bool
	markerVal uint16 // valid only when atMarker
}

func newBitReader(src *streamReader) *bitReader {
	return &bitReader{src: src}
}

// atScanEnd reports whether the reader has hit the marker that terminates
// the scan (an 0xFF followed by a nonzero byte), and what that marker is.
func (b *bitReader) atScanEnd() (uint16, bool) {
	return b.markerVal, b.atMarker
}

func (b *bitReader) push(v byte) {
	b.acc = b.acc<<8 | uint64(v)
	b.bits += 8
}

// refill pulls one more byte into the accumulator, applying 0xFF00
// unstuffing and marker detection. It is a no-op once atMarker is set.
//
// An 0xFF is resolved before it is ever pushed into the accumulator: the
// byte following it is read immediately to decide whether the 0xFF is
// stuffed data (followed by 0x00) or the start of the next marker
// (followed by anything else). This avoids having to undo a speculative
// push once some of its bits have already been handed out to a caller,
// which a push-then-detect design cannot do without the bit count going
// negative when the read that discovers the marker doesn't land on a byte
// boundary.
func (b *bitReader) refill() error {
	if b.atMarker {
		return errors.New("bit reader: read past end of scan (marker reached)")
	}
	raw, err := b.src.readByte()
	if err != nil {
		if err == io.EOF {
			return errors.New("bit reader: unexpected end of stream inside scan")
		}
		return err
	}
	if raw != 0xff {
		b.push(raw)
		return nil
	}
	next, err := b.src.readByte()
	if err != nil {
		if err == io.EOF {
			return errors.New("bit reader: unexpected end of stream inside scan")
		}
		return err
	}
	if next == 0x00 {
		b.push(0xff)
		return nil
	}
	b.atMarker = true
	b.markerVal = 0xff00 | uint16(next)
	return errors.New("bit reader: marker reached before enough bits were available")
}

// readBits returns the next n bits (1 <= n <= 16), MSB-first.
func (b *bitReader) readBits(n uint) (uint32, error) {
	for b.bits < n {
		if err := b.refill(); err != nil {
			return 0, err
		}
	}
	shift := b.bits - n
	val := uint32((b.acc >> shift) & ((1 << n) - 1))
	b.bits -= n
	b.acc &^= ^uint64(0) << b.bits // drop consumed high bits, keep the rest
	return val, nil
}

// readSymbol walks table one bit at a time (1-bit = left, 0-bit = right)
// until it reaches a leaf, failing once 16 bits have been consumed without
// a match.
func (b *bitReader) readSymbol(table *huffTable) (uint8, error) {
	node := table.root
	for consumed := 0; consumed < 16; consumed++ {
		bit, err := b.readBits(1)
		if err != nil {
			return 0, err
		}
		if bit == 1 {
			node = node.left
		} else {
			node = node.right
		}
		if node == nil {
			return 0, errors.Wrap(ErrNoSuchHuffmanCode, "bit prefix has no matching internal node")
		}
		if node.leaf {
			return node.symbol, nil
		}
	}
	return 0, errors.Wrap(ErrNoSuchHuffmanCode, "16 bits consumed without a match")
}
