package main

import (
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/andybalholm/unpack"
	"github.com/andybalholm/unpack/brotli"
	"github.com/andybalholm/unpack/internal/config"
	"github.com/andybalholm/unpack/lz4"
	"github.com/andybalholm/unpack/png"
	"github.com/andybalholm/unpack/ppm"
	"github.com/andybalholm/unpack/snappy"
	"github.com/andybalholm/unpack/zstd"
)

func main() {
	cfg, err := config.NewConfig(os.Args[1:])
	if err != nil {
		fmt.Println("ERROR: ", err)
		os.Exit(1)
	}

	logrus.SetLevel(cfg.LogLevel())
	logrus.Debug("debug mode enabled")

	switch cfg.Ctx.Command() {
	case "decode <input>":
		displayConfig(cfg)
		err = runDecode(cfg)
	case "info <input>":
		err = runInfo(cfg, os.Stdout)
	default:
		err = errors.Errorf("unknown command %q", cfg.Ctx.Command())
	}

	if err != nil {
		logrus.Errorf("unable to %s: %s", cfg.Ctx.Command(), err)
		os.Exit(1)
	}
}

func displayConfig(cfg *config.Config) {
	logrus.Debug("unpack settings:")
	logrus.Debugf("  version: %s", config.VERSION)
	logrus.Debugf("  config file: %s", cfg.CLI.ConfigFile)
	logrus.Debugf("  input: %s", cfg.CLI.Decode.Input)
	logrus.Debugf("  output: %s", cfg.CLI.Decode.Output)
	logrus.Debugf("  trace: %s", cfg.CLI.Decode.Trace)
	logrus.Debugf("  decode.checksum: %s", cfg.TOML.Decode.Checksum)
	logrus.Debugf("  decode.skip_crc: %v", cfg.TOML.Decode.SkipCRC)
	logrus.Debugf("  decode.disable_output_limit: %v", cfg.TOML.Decode.DisableOutputLimit)
	logrus.Debugf("  output.format: %s", cfg.TOML.Output.Format)
	logrus.Debugf("  output.compression: %s", cfg.TOML.Output.Compression)
	logrus.Debugf("  output.level: %d", cfg.TOML.Output.Level)
}

// newEncoder returns the raster encoder for a compression name from the
// config.
func newEncoder(compression string, level int) (unpack.Encoder, error) {
	switch compression {
	case "none", "":
		return unpack.NopEncoder{}, nil
	case "zstd":
		return zstd.NewEncoder(level), nil
	case "lz4":
		return lz4.NewEncoder(level), nil
	case "snappy":
		return &snappy.Encoder{}, nil
	case "brotli":
		return brotli.NewEncoder(level), nil
	}
	return nil, errors.Errorf("unknown compression %q", compression)
}

func runDecode(cfg *config.Config) error {
	args := cfg.CLI.Decode
	format := cfg.TOML.Output.Format

	data, err := os.ReadFile(args.Input)
	if err != nil {
		return errors.Wrap(err, "error reading input")
	}

	d := png.Decoder{
		Checksum:           cfg.ChecksumPolicy(),
		DisableOutputLimit: cfg.TOML.Decode.DisableOutputLimit,
		SkipCRC:            cfg.TOML.Decode.SkipCRC,
		Trace:              format == "filtered" || args.Trace != "",
		Logger:             logrus.WithField("input", args.Input),
	}
	m, err := d.Decode(data)
	if err != nil {
		return errors.Wrap(err, "error decoding image")
	}

	if args.Trace != "" {
		text := unpack.TextEncoder{}.Encode(nil, m.Filtered, m.Matches)
		if err := os.WriteFile(args.Trace, text, 0o644); err != nil {
			return errors.Wrap(err, "error writing trace")
		}
		logrus.WithFields(logrus.Fields{
			"file":    args.Trace,
			"matches": len(m.Matches),
		}).Debug("Wrote trace")
	}

	enc, err := newEncoder(cfg.TOML.Output.Compression, cfg.TOML.Output.Level)
	if err != nil {
		return err
	}

	raster, err := writeOutput(args.Output, m, format, enc)
	if err != nil {
		return err
	}

	logrus.WithFields(logrus.Fields{
		"output":      args.Output,
		"format":      format,
		"compression": cfg.TOML.Output.Compression,
		"width":       m.Header.Width,
		"height":      m.Header.Height,
		"bytes":       len(raster),
	}).Info("Wrote raster")
	return nil
}

// writeOutput writes the raster for format to a new file at name, and
// returns the raster before encoding. On failure the file is removed.
func writeOutput(name string, m *png.Image, format string, enc unpack.Encoder) (raster []byte, err error) {
	f, err := os.Create(name)
	if err != nil {
		return nil, errors.Wrap(err, "error creating output")
	}
	defer func() {
		if err != nil {
			f.Close()
			os.Remove(name)
		}
	}()

	w := &unpack.Writer{Dest: f, Encoder: enc}
	switch format {
	case "raw":
		raster = m.Pix
		err = w.WriteRaster(raster)
	case "ppm":
		raster, err = ppm.Append(nil, m)
		if err != nil {
			return nil, errors.Wrap(err, "error converting to ppm")
		}
		err = w.WriteRaster(raster)
	case "filtered":
		raster = m.Filtered
		err = w.WriteParsed(raster, m.Matches)
	default:
		err = errors.Errorf("unknown format %q", format)
	}
	if err != nil {
		return nil, err
	}
	if err = f.Close(); err != nil {
		return nil, errors.Wrap(err, "error closing output")
	}
	return raster, nil
}

func runInfo(cfg *config.Config, w io.Writer) error {
	data, err := os.ReadFile(cfg.CLI.Info.Input)
	if err != nil {
		return errors.Wrap(err, "error reading input")
	}

	chunks, err := png.ReadChunks(data)
	if err != nil {
		return errors.Wrap(err, "error reading chunks")
	}
	h, err := png.ParseHeader(chunks[0])
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "size:        %dx%d\n", h.Width, h.Height)
	fmt.Fprintf(w, "color type:  %v\n", h.ColorType)
	fmt.Fprintf(w, "bit depth:   %d\n", h.BitDepth)
	fmt.Fprintf(w, "interlaced:  %v\n", h.Interlaced())
	fmt.Fprintf(w, "stride:      %d\n", h.Stride())
	fmt.Fprintf(w, "chunks:\n")
	for _, c := range chunks {
		fmt.Fprintf(w, "  %s %8d %08x\n", c.Type, len(c.Data), c.CRC)
	}
	return nil
}
