package bjpeg

import (
	"io"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
)

// Options configures a Decode call. The zero value is a fully usable,
// silent decoder.
type Options struct {
	// Logger receives Debug/Info/Warning/Error trace output. Nil (the
	// default) makes logging a no-op.
	Logger Logger
}

// Image is the decoded pixel buffer: grayscale (Channels==1) or RGB
// (Channels==3), row-major. DecodeImage wraps this into a standard
// image.Image.
type Image struct {
	Width, Height int
	Channels      int
	Pix           []uint8 // Width*Height*Channels, row-major
}

// decoderState is the per-instance state of a single decode: table stores,
// the one frame this decoder supports, and a small state machine. Every
// field is owned exclusively by one Decode call; there is no shared
// mutable state between instances or across calls.
type decoderState struct {
	src *streamReader
	log Logger

	sawSOI   bool
	sawJFIF  bool
	sawFrame bool
	sawEOI   bool

	quant  quantStore
	dcTabs [2]*huffTable
	acTabs [2]*huffTable

	frame *frameHeader
	image *Image
}

// Decode reads markers from SOI to EOI, dispatching each segment, and
// returns the reconstructed pixel buffer. Baseline only, single scan, no
// subsampling; restart intervals, multiple frames, and
// progressive/extended/lossless SOF variants are rejected rather than
// handled.
func Decode(r io.Reader, opts Options) (*Image, error) {
	d := &decoderState{src: newStreamReader(r), log: opts.Logger}
	return d.run()
}

func (d *decoderState) logf(level string, msg string, args ...interface{}) {
	if d.log == nil {
		return
	}
	switch level {
	case "debug":
		d.log.Debug(msg, args...)
	case "info":
		d.log.Info(msg, args...)
	case "warning":
		d.log.Warning(msg, args...)
	case "error":
		d.log.Error(msg, args...)
	}
}

func (d *decoderState) run() (*Image, error) {
	// SOI must be the first two bytes of the stream, so it is read directly
	// rather than through readMarker, which skips bytes until a 0xFF.
	marker, err := d.src.readUint16()
	if err != nil {
		return nil, errors.Wrap(err, "reading SOI")
	}
	if marker != markerSOI {
		return nil, errors.Wrapf(ErrInvalidMagicHeader, "expected SOI, got marker %#04x", marker)
	}
	d.sawSOI = true
	d.logf("debug", "SOI")

	for {
		marker, err := d.src.readMarker()
		if err != nil {
			return nil, errors.Wrap(err, "reading marker")
		}

		switch {
		case marker == markerEOI:
			d.sawEOI = true
			d.logf("debug", "EOI")
			return d.finish()

		case marker == markerAPP0 && !d.sawJFIF:
			payload, err := d.src.readSegmentPayload()
			if err != nil {
				return nil, errors.Wrap(err, "reading APP0")
			}
			if _, err := parseJFIF(payload); err != nil {
				return nil, err
			}
			d.sawJFIF = true

		case !d.sawJFIF:
			return nil, errors.Wrap(ErrInvalidMagicHeader, "first segment after SOI is not APP0/JFIF")

		case isAPPn(marker) || marker == markerCOM:
			// A second APP0, JFXX extensions included, is rejected.
			if marker == markerAPP0 {
				return nil, errors.Wrap(ErrInvalidMagicHeader, "duplicate APP0 segment")
			}
			// Once a frame is open, only DHT/DQT/SOS may appear.
			if d.sawFrame {
				return nil, errors.Wrapf(ErrUnknownMarkerInFrame, "marker %#04x", marker)
			}
			if err := d.src.skipSegment(); err != nil {
				return nil, errors.Wrap(err, "skipping APPn/COM")
			}

		case marker == markerDQT:
			payload, err := d.src.readSegmentPayload()
			if err != nil {
				return nil, errors.Wrap(err, "reading DQT")
			}
			if err := d.quant.parseDQT(payload); err != nil {
				return nil, err
			}
			d.logf("debug", "DQT")

		case marker == markerDHT:
			payload, err := d.src.readSegmentPayload()
			if err != nil {
				return nil, errors.Wrap(err, "reading DHT")
			}
			if err := parseDHT(payload, &d.dcTabs, &d.acTabs); err != nil {
				return nil, err
			}
			d.logf("debug", "DHT")

		case marker == markerSOF0:
			if d.sawFrame {
				return nil, errors.Wrap(ErrUnsupportedMultiframe, "second SOF in stream")
			}
			payload, err := d.src.readSegmentPayload()
			if err != nil {
				return nil, errors.Wrap(err, "reading SOF0")
			}
			fh, err := parseSOF0(payload)
			if err != nil {
				return nil, err
			}
			d.frame = fh
			d.sawFrame = true
			d.logf("info", "SOF0", "width", fh.samplesPerRow, "height", fh.rowCount, "components", len(fh.components))

		case isSOF(marker): // any SOF other than SOF0
			return nil, errors.Wrapf(ErrUnsupportedFrameFormat, "marker %#04x", marker)

		case marker == markerDRI || marker == markerDNL || marker == markerDHP || marker == markerEXP:
			return nil, errors.Wrapf(ErrUnsupportedFeature, "marker %#04x", marker)

		case marker == markerDAC:
			return nil, errors.Wrap(ErrUnsupportedFeature, "DAC (arithmetic coding) is not supported")

		case marker == markerSOS:
			if !d.sawFrame {
				return nil, errors.Wrap(ErrUnknownMarkerInFrame, "SOS before SOF")
			}
			payload, err := d.src.readSegmentPayload()
			if err != nil {
				return nil, errors.Wrap(err, "reading SOS")
			}
			sh, err := parseSOS(payload, d.frame)
			if err != nil {
				return nil, err
			}
			if err := d.decodeScanAndReconstruct(sh); err != nil {
				return nil, err
			}

		case isRSTn(marker):
			return nil, errors.Wrapf(ErrUnsupportedFeature, "restart marker %#04x outside an active scan", marker)

		default:
			if d.sawFrame {
				return nil, errors.Wrapf(ErrUnknownMarkerInFrame, "marker %#04x", marker)
			}
			return nil, errors.Wrapf(ErrUnknownMarker, "marker %#04x", marker)
		}
	}
}

func (d *decoderState) finish() (*Image, error) {
	if !d.sawFrame || d.image == nil {
		return nil, errors.New("EOI reached without a completed scan")
	}
	return d.image, nil
}

// decodeScanAndReconstruct runs the entropy decode and then block
// reconstruction and colour conversion, populating d.image.
func (d *decoderState) decodeScanAndReconstruct(sh *scanHeader) error {
	mcuCols := (int(d.frame.samplesPerRow) + 7) / 8
	mcuRows := (int(d.frame.rowCount) + 7) / 8

	br := newBitReader(d.src)
	blocksByComp, err := decodeScan(br, d.frame, sh, d.dcTabs, d.acTabs, mcuRows, mcuCols, d.log)
	if err != nil {
		return err
	}

	channels := len(d.frame.components)
	width, height := int(d.frame.samplesPerRow), int(d.frame.rowCount)
	img := &Image{Width: width, Height: height, Channels: channels, Pix: make([]uint8, width*height*channels)}

	// Sample planes are indexed by the component's position in the frame
	// header, which fixes the Y/Cb/Cr identity; the scan header's interleave
	// order need not match it.
	samples := make([][][]int16, len(d.frame.components)) // [frame comp][mcuRow*8+y][mcuCol*8+x]

	for ci, sc := range sh.comps {
		fi := 0
		var qsel uint8
		for i, c := range d.frame.components {
			if c.id == sc.componentID {
				fi = i
				qsel = c.quantSelector
				break
			}
		}
		q, err := d.quant.lookup(qsel)
		if err != nil {
			return err
		}

		rows := make([][]int16, mcuRows*8)
		for r := range rows {
			rows[r] = make([]int16, mcuCols*8)
		}
		samples[fi] = rows

		grid := blocksByComp[ci].grid
		reconstructRows(mcuRows, func(by int) {
			for bx := 0; bx < mcuCols; bx++ {
				blk := grid[by][bx]
				blk.dequantize(q)
				out := blk.inverseDCT8()
				for y := 0; y < 8; y++ {
					for x := 0; x < 8; x++ {
						rows[by*8+y][bx*8+x] = out[y*8+x]
					}
				}
			}
		})
	}

	reconstructRows(height, func(y int) {
		for x := 0; x < width; x++ {
			idx := (y*width + x) * channels
			if channels == 1 {
				img.Pix[idx] = grayLevel(samples[0][y][x])
				continue
			}
			r, g, b := ycbcrToRGB(samples[0][y][x], samples[1][y][x], samples[2][y][x])
			img.Pix[idx], img.Pix[idx+1], img.Pix[idx+2] = r, g, b
		}
	})

	d.image = img
	return nil
}

// reconstructRows runs work(i) for every i in [0,n) across a bounded pool
// of runtime.GOMAXPROCS(0) goroutines, each claiming rows from a shared
// counter. Block dequantization/IDCT and colour conversion are pure
// functions of independent rows once entropy decoding (inherently
// sequential) has completed, so this is the one place in the decoder that
// parallelises.
func reconstructRows(n int, work func(i int)) {
	if n <= 0 {
		return
	}
	workers := runtime.GOMAXPROCS(0)
	if workers > n {
		workers = n
	}
	if workers <= 1 {
		for i := 0; i < n; i++ {
			work(i)
		}
		return
	}

	var next int32 = -1
	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for {
				i := int(atomic.AddInt32(&next, 1))
				if i >= n {
					return
				}
				work(i)
			}
		}()
	}
	wg.Wait()
}
