// Command bjpeg decodes a baseline JPEG file to a PPM/PGM on stdout (or -o).
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/ausocean/utils/logging"
	"github.com/kowalski-imaging/bjpeg"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logging defaults for the -logfile roller.
const (
	logMaxSizeMB = 10
	logMaxBackup = 3
	logMaxAgeDay = 28
)

func main() {
	outPath := flag.String("o", "", "output PPM/PGM path (default: stdout)")
	logPath := flag.String("logfile", "", "rotate log output to this file instead of stderr")
	verbose := flag.Bool("v", false, "enable info-level logging")
	veryVerbose := flag.Bool("vv", false, "enable debug-level logging")
	flag.Parse()

	level := logging.Warning
	switch {
	case *veryVerbose:
		level = logging.Debug
	case *verbose:
		level = logging.Info
	}

	var w io.Writer = os.Stderr
	if *logPath != "" {
		w = &lumberjack.Logger{Filename: *logPath, MaxSize: logMaxSizeMB, MaxBackups: logMaxBackup, MaxAge: logMaxAgeDay}
	}
	log := logging.New(level, w, false)

	in, err := openInput(flag.Arg(0))
	if err != nil {
		log.Error("cannot open input", "error", err.Error())
		os.Exit(1)
	}
	defer in.Close()

	img, err := bjpeg.Decode(in, bjpeg.Options{Logger: log})
	if err != nil {
		log.Error("decode failed", "error", err.Error())
		os.Exit(1)
	}
	log.Info("decoded", "width", img.Width, "height", img.Height, "channels", img.Channels)

	out, err := openOutput(*outPath)
	if err != nil {
		log.Error("cannot open output", "error", err.Error())
		os.Exit(1)
	}
	defer out.Close()

	bw := bufio.NewWriter(out)
	if err := writePNM(bw, img); err != nil {
		log.Error("write failed", "error", err.Error())
		os.Exit(1)
	}
	if err := bw.Flush(); err != nil {
		log.Error("flush failed", "error", err.Error())
		os.Exit(1)
	}
}

func openInput(path string) (io.ReadCloser, error) {
	if path == "" || path == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	return os.Open(path)
}

func openOutput(path string) (io.WriteCloser, error) {
	if path == "" || path == "-" {
		return nopWriteCloser{os.Stdout}, nil
	}
	return os.Create(path)
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

// writePNM emits a grayscale PGM (P5) for single-component images or a
// colour PPM (P6) for three-component images.
func writePNM(w io.Writer, img *bjpeg.Image) error {
	magic := "P6"
	if img.Channels == 1 {
		magic = "P5"
	}
	if _, err := fmt.Fprintf(w, "%s\n%d %d\n255\n", magic, img.Width, img.Height); err != nil {
		return err
	}
	_, err := w.Write(img.Pix)
	return err
}
