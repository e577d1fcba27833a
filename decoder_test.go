package bjpeg

import (
	"bytes"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func u16be(v int) []byte { return []byte{byte(v >> 8), byte(v)} }

func segment(marker uint16, payload []byte) []byte {
	out := []byte{byte(marker >> 8), byte(marker)}
	out = append(out, u16be(len(payload)+2)...)
	return append(out, payload...)
}

func soi() []byte { return []byte{0xff, 0xd8} }
func eoi() []byte { return []byte{0xff, 0xd9} }

func app0Segment() []byte { return segment(markerAPP0, validJFIFPayload()) }

// dqtSegment builds a single 8-bit quantization table at the given
// destination, every entry set to 1 (an identity multiplier).
func dqtSegment(dest uint8) []byte {
	p := make([]byte, 1+64)
	p[0] = dest
	for i := 1; i < len(p); i++ {
		p[i] = 1
	}
	return segment(markerDQT, p)
}

// dhtSegment builds one DC table and one AC table at destination 0, each
// with a single 1-bit code: DC symbol 0 (category 0), AC symbol 0x00 (EOB).
func dhtSegment() []byte {
	p := append([]byte{0x00}, counts16(1, 0)...)
	p = append(p, 0x00)
	p = append(p, 0x10)
	p = append(p, counts16(1, 0)...)
	p = append(p, 0x00)
	return segment(markerDHT, p)
}

func sof0Segment(nComp int, w, h int) []byte {
	p := []byte{8, byte(h >> 8), byte(h), byte(w >> 8), byte(w), byte(nComp)}
	ids := []byte{1, 2, 3}
	for i := 0; i < nComp; i++ {
		p = append(p, ids[i], 0x11, 0x00)
	}
	return segment(markerSOF0, p)
}

func sosSegment(nComp int) []byte {
	p := []byte{byte(nComp)}
	ids := []byte{1, 2, 3}
	for i := 0; i < nComp; i++ {
		p = append(p, ids[i], 0x00)
	}
	p = append(p, 0x00, 0x3f, 0x00)
	return segment(markerSOS, p)
}

// minimalJPEG assembles an 8x8, all-zero-coefficient baseline JPEG with
// nComp components (1 or 3), sharing one quantization table and one
// DC/AC Huffman table pair across every component.
func minimalJPEG(nComp int) []byte {
	var buf bytes.Buffer
	buf.Write(soi())
	buf.Write(app0Segment())
	buf.Write(dqtSegment(0))
	buf.Write(dhtSegment())
	buf.Write(sof0Segment(nComp, 8, 8))
	buf.Write(sosSegment(nComp))
	// One DC(cat0)+AC(EOB) pair of bits per component, zero-padded to a byte.
	bits := make([]int, 0, nComp*2)
	for i := 0; i < nComp; i++ {
		bits = append(bits, 0, 0)
	}
	buf.Write(packBits(bits))
	buf.Write(eoi())
	return buf.Bytes()
}

func TestDecodeMinimalGrayscale(t *testing.T) {
	img, err := Decode(bytes.NewReader(minimalJPEG(1)), Options{})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if img.Width != 8 || img.Height != 8 || img.Channels != 1 {
		t.Fatalf("unexpected image shape: %+v", img)
	}
	want := bytes.Repeat([]byte{128}, 64)
	if diff := cmp.Diff(want, img.Pix); diff != "" {
		t.Fatalf("Pix mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeMinimalColour(t *testing.T) {
	img, err := Decode(bytes.NewReader(minimalJPEG(3)), Options{})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if img.Width != 8 || img.Height != 8 || img.Channels != 3 {
		t.Fatalf("unexpected image shape: %+v", img)
	}
	want := bytes.Repeat([]byte{128, 128, 128}, 64)
	if diff := cmp.Diff(want, img.Pix); diff != "" {
		t.Fatalf("Pix mismatch (-want +got):\n%s", diff)
	}
}

// TestDecodeScanOrderDiffersFromFrameOrder: the scan header lists the
// components in reverse of the frame header's declared order (legal per
// T.81), and the Y/Cb/Cr identity must still follow the frame header. The
// stream gives only component 3 (Cr) a nonzero DC, so a correct decode
// shows a red cast while a scan-order mix-up would brighten all channels
// equally.
func TestDecodeScanOrderDiffersFromFrameOrder(t *testing.T) {
	// DC table: code "0" -> category 0, code "10" -> category 3.
	// AC table: code "0" -> 0x00 (EOB).
	dht := append([]byte{0x00}, counts16(1, 0)...)
	dht[2] = 1 // one code of length 2 as well
	dht = append(dht, 0, 3)
	dht = append(dht, 0x10)
	dht = append(dht, counts16(1, 0)...)
	dht = append(dht, 0x00)

	sos := []byte{3}
	for _, id := range []byte{3, 2, 1} {
		sos = append(sos, id, 0x00)
	}
	sos = append(sos, 0x00, 0x3f, 0x00)

	var buf bytes.Buffer
	buf.Write(soi())
	buf.Write(app0Segment())
	buf.Write(dqtSegment(0))
	buf.Write(segment(markerDHT, dht))
	buf.Write(sof0Segment(3, 8, 8))
	buf.Write(segment(markerSOS, sos))
	// Scan order 3,2,1. Component 3: DC "10" + bits "101" (+5), AC EOB;
	// components 2 and 1: DC "0", AC EOB.
	buf.Write(packBits([]int{1, 0, 1, 0, 1, 0, 0, 0, 0, 0}))
	buf.Write(eoi())

	img, err := Decode(bytes.NewReader(buf.Bytes()), Options{})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	// Y=0, Cb=0, Cr=round(5/8)=1 per sample: R=round(128+1.402)=129,
	// G=round(128-0.299*1.402/0.587)=127, B=128.
	want := bytes.Repeat([]byte{129, 127, 128}, 64)
	if diff := cmp.Diff(want, img.Pix); diff != "" {
		t.Fatalf("Pix mismatch (-want +got):\n%s", diff)
	}
}

// TestDecodeNonMultipleOfEightDimensions: a 10x10 frame needs a 2x2 MCU
// grid; edge blocks still carry a full 8x8 coefficient set, and samples
// beyond the image extent are discarded.
func TestDecodeNonMultipleOfEightDimensions(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(soi())
	buf.Write(app0Segment())
	buf.Write(dqtSegment(0))
	buf.Write(dhtSegment())
	buf.Write(sof0Segment(1, 10, 10))
	buf.Write(sosSegment(1))
	// 4 MCUs, each DC(cat0)+AC(EOB): 8 zero bits, exactly one byte.
	bits := make([]int, 8)
	buf.Write(packBits(bits))
	buf.Write(eoi())

	img, err := Decode(bytes.NewReader(buf.Bytes()), Options{})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if img.Width != 10 || img.Height != 10 || len(img.Pix) != 100 {
		t.Fatalf("unexpected image shape: %dx%d, %d bytes", img.Width, img.Height, len(img.Pix))
	}
	want := bytes.Repeat([]byte{128}, 100)
	if diff := cmp.Diff(want, img.Pix); diff != "" {
		t.Fatalf("Pix mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeRejectsMissingSOI(t *testing.T) {
	_, err := Decode(bytes.NewReader([]byte{0x00, 0x00}), Options{})
	if !errors.Is(err, ErrInvalidMagicHeader) {
		t.Fatalf("Decode(no SOI) = %v, want ErrInvalidMagicHeader", err)
	}
}

func TestDecodeRejectsNonJFIFFirstSegment(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(soi())
	buf.Write(segment(markerDQT, dqtSegment(0)[4:])) // DQT before any APP0
	_, err := Decode(bytes.NewReader(buf.Bytes()), Options{})
	if !errors.Is(err, ErrInvalidMagicHeader) {
		t.Fatalf("Decode(DQT before APP0) = %v, want ErrInvalidMagicHeader", err)
	}
}

func TestDecodeRejectsDuplicateAPP0(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(soi())
	buf.Write(app0Segment())
	buf.Write(app0Segment())
	_, err := Decode(bytes.NewReader(buf.Bytes()), Options{})
	if !errors.Is(err, ErrInvalidMagicHeader) {
		t.Fatalf("Decode(duplicate APP0) = %v, want ErrInvalidMagicHeader", err)
	}
}

func TestDecodeRejectsSecondFrame(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(soi())
	buf.Write(app0Segment())
	buf.Write(dqtSegment(0))
	buf.Write(dhtSegment())
	buf.Write(sof0Segment(1, 8, 8))
	buf.Write(sof0Segment(1, 8, 8))
	_, err := Decode(bytes.NewReader(buf.Bytes()), Options{})
	if !errors.Is(err, ErrUnsupportedMultiframe) {
		t.Fatalf("Decode(two SOF0) = %v, want ErrUnsupportedMultiframe", err)
	}
}

func TestDecodeRejectsProgressiveFrame(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(soi())
	buf.Write(app0Segment())
	buf.Write(dqtSegment(0))
	buf.Write(dhtSegment())
	buf.Write(segment(markerSOF2, sof0Segment(1, 8, 8)[4:]))
	_, err := Decode(bytes.NewReader(buf.Bytes()), Options{})
	if !errors.Is(err, ErrUnsupportedFrameFormat) {
		t.Fatalf("Decode(SOF2) = %v, want ErrUnsupportedFrameFormat", err)
	}
}

func TestDecodeRejectsRestartInterval(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(soi())
	buf.Write(app0Segment())
	buf.Write(segment(markerDRI, []byte{0x00, 0x04}))
	_, err := Decode(bytes.NewReader(buf.Bytes()), Options{})
	if !errors.Is(err, ErrUnsupportedFeature) {
		t.Fatalf("Decode(DRI) = %v, want ErrUnsupportedFeature", err)
	}
}

func TestDecodeRejectsUnknownMarker(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(soi())
	buf.Write(app0Segment())
	buf.Write(segment(0xff02, []byte{0x00}))
	_, err := Decode(bytes.NewReader(buf.Bytes()), Options{})
	if !errors.Is(err, ErrUnknownMarker) {
		t.Fatalf("Decode(unknown marker) = %v, want ErrUnknownMarker", err)
	}
}

func TestDecodeRejectsCOMInsideFrame(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(soi())
	buf.Write(app0Segment())
	buf.Write(dqtSegment(0))
	buf.Write(dhtSegment())
	buf.Write(sof0Segment(1, 8, 8))
	buf.Write(segment(markerCOM, []byte("note")))
	_, err := Decode(bytes.NewReader(buf.Bytes()), Options{})
	if !errors.Is(err, ErrUnknownMarkerInFrame) {
		t.Fatalf("Decode(COM after SOF) = %v, want ErrUnknownMarkerInFrame", err)
	}
}

func TestDecodeRejectsEOIWithoutFrame(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(soi())
	buf.Write(app0Segment())
	buf.Write(eoi())
	_, err := Decode(bytes.NewReader(buf.Bytes()), Options{})
	if err == nil {
		t.Fatalf("expected an error for EOI before any scan completed")
	}
}
