// Package bjpeg decodes baseline sequential JPEG (ITU-T T.81 Baseline DCT,
// Huffman-coded, 8-bit precision) images.
package bjpeg

import (
	"image"
	"image/color"
	"io"

	"github.com/pkg/errors"
)

func init() {
	image.RegisterFormat("jpeg-baseline", "\xff\xd8\xff", decodeImage, decodeConfigImage)
}

// toImage converts the package's internal flat pixel buffer into a
// standard image.Image.
func (im *Image) toImage() image.Image {
	if im.Channels == 1 {
		g := image.NewGray(image.Rect(0, 0, im.Width, im.Height))
		copy(g.Pix, im.Pix)
		return g
	}
	rgba := image.NewRGBA(image.Rect(0, 0, im.Width, im.Height))
	for y := 0; y < im.Height; y++ {
		for x := 0; x < im.Width; x++ {
			si := (y*im.Width + x) * 3
			di := rgba.PixOffset(x, y)
			rgba.Pix[di] = im.Pix[si]
			rgba.Pix[di+1] = im.Pix[si+1]
			rgba.Pix[di+2] = im.Pix[si+2]
			rgba.Pix[di+3] = 0xff
		}
	}
	return rgba
}

func decodeImage(r io.Reader) (image.Image, error) {
	im, err := Decode(r, Options{})
	if err != nil {
		return nil, err
	}
	return im.toImage(), nil
}

// DecodeImage decodes r into a standard image.Image: image.Gray for
// single-component (grayscale) frames, image.RGBA for three-component
// frames.
func DecodeImage(r io.Reader, opts Options) (image.Image, error) {
	im, err := Decode(r, opts)
	if err != nil {
		return nil, err
	}
	return im.toImage(), nil
}

// DecodeConfig parses just enough of the stream (through SOF0) to report
// image dimensions and colour model, mirroring image/jpeg.DecodeConfig.
func DecodeConfig(r io.Reader) (image.Config, error) {
	d := &decoderState{src: newStreamReader(r)}
	marker, err := d.src.readUint16()
	if err != nil {
		return image.Config{}, errors.Wrap(err, "reading SOI")
	}
	if marker != markerSOI {
		return image.Config{}, errors.Wrap(ErrInvalidMagicHeader, "expected SOI")
	}
	d.sawSOI = true
	for !d.sawFrame {
		marker, err := d.src.readMarker()
		if err != nil {
			return image.Config{}, errors.Wrap(err, "reading marker")
		}
		switch {
		case marker == markerEOI:
			return image.Config{}, errors.New("EOI reached before a frame header")
		case marker == markerAPP0 && !d.sawJFIF:
			payload, err := d.src.readSegmentPayload()
			if err != nil {
				return image.Config{}, err
			}
			if _, err := parseJFIF(payload); err != nil {
				return image.Config{}, err
			}
			d.sawJFIF = true
		case !d.sawJFIF:
			return image.Config{}, errors.Wrap(ErrInvalidMagicHeader, "first segment after SOI is not APP0/JFIF")
		case marker == markerSOF0:
			payload, err := d.src.readSegmentPayload()
			if err != nil {
				return image.Config{}, err
			}
			fh, err := parseSOF0(payload)
			if err != nil {
				return image.Config{}, err
			}
			d.frame = fh
			d.sawFrame = true
		case isSOF(marker):
			return image.Config{}, errors.Wrap(ErrUnsupportedFrameFormat, "non-SOF0 frame marker")
		default:
			if _, err := d.src.readSegmentPayload(); err != nil {
				return image.Config{}, err
			}
		}
	}
	cfg := image.Config{Width: int(d.frame.samplesPerRow), Height: int(d.frame.rowCount)}
	if len(d.frame.components) == 1 {
		cfg.ColorModel = color.GrayModel
	} else {
		cfg.ColorModel = color.RGBAModel
	}
	return cfg, nil
}

func decodeConfigImage(r io.Reader) (image.Config, error) {
	return DecodeConfig(r)
}
