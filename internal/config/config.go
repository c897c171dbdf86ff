package config

import (
	"os"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/andybalholm/unpack/zlib"
)

const (
	EnvVarPrefix = "UNPACK"

	DefaultFormat      = "raw"
	DefaultCompression = "none"
	DefaultLogLevel    = "info"
)

var (
	// VERSION gets set during build
	VERSION = "0.0.0"

	validFormats = map[string]struct{}{
		"raw":      {},
		"ppm":      {},
		"filtered": {},
	}

	// Allowed levels for each compression, inclusive.
	validCompressions = map[string][2]int{
		"none":   {0, 0},
		"zstd":   {0, 22},
		"lz4":    {0, 9},
		"snappy": {0, 0},
		"brotli": {0, 11},
	}
)

type Config struct {
	CLI  *CLI
	TOML *TOML

	// Internal bits
	Ctx *kong.Context
}

type TOML struct {
	Decode *TOMLDecode `toml:"decode"`
	Output *TOMLOutput `toml:"output"`
	Log    *TOMLLog    `toml:"log"`
}

type TOMLDecode struct {
	Checksum           string `toml:"checksum"`
	DisableOutputLimit bool   `toml:"disable_output_limit"`
	SkipCRC            bool   `toml:"skip_crc"`
}

type TOMLOutput struct {
	Format      string `toml:"format"`
	Compression string `toml:"compression"`
	Level       int    `toml:"level"`
}

type TOMLLog struct {
	Level string `toml:"level"`
}

type CLI struct {
	ConfigFile string `kong:"help='Path to the TOML config file',type='path',short='c',name='config'"`

	Decode DecodeCmd `kong:"cmd,help='Decode a PNG file and write its pixels'"`
	Info   InfoCmd   `kong:"cmd,help='Show the header and chunks of a PNG file'"`

	Debug   bool             `kong:"help='Enable debug output',short='d'"`
	Version kong.VersionFlag `help:"Show version and exit" short:"v" env:"-"`
}

type DecodeCmd struct {
	Input  string `kong:"arg,help='PNG file to decode',type='existingfile'"`
	Output string `kong:"help='Output file',short='o',required"`

	Format      string `kong:"help='Output layout: raw, ppm or filtered',short='f'"`
	Compression string `kong:"help='Output compression: none, zstd, lz4, snappy or brotli',short='z'"`
	Level       int    `kong:"help='Compression level; -1 uses the config file or the default',default='-1',short='l'"`

	AcceptBadChecksum bool   `kong:"help='Warn about a bad zlib checksum instead of failing'"`
	SkipCRC           bool   `kong:"help='Do not verify chunk CRCs'"`
	NoOutputLimit     bool   `kong:"help='Let the image data inflate past the size the header calls for'"`
	Trace             string `kong:"help='Write the filtered scanlines, with back-references shown as <length,distance>, to this file',type='path'"`
}

type InfoCmd struct {
	Input string `kong:"arg,help='PNG file to inspect',type='existingfile'"`
}

// NewConfig parses args, loads .env and the config file, and applies CLI
// overrides on top of the file.
func NewConfig(args []string, options ...kong.Option) (*Config, error) {
	// Attempt to load .env
	_ = godotenv.Load(".env")

	cli := &CLI{}
	ctx, err := readCLIArgs(cli, args, options...)
	if err != nil {
		return nil, errors.Wrap(err, "error parsing CLI args")
	}

	tomlConfig, err := readTOML(cli.ConfigFile)
	if err != nil {
		return nil, errors.Wrap(err, "error reading config file")
	}

	applyCLIOverrides(cli, tomlConfig)

	if err := validateTOML(tomlConfig); err != nil {
		return nil, errors.Wrap(err, "error validating config")
	}

	return &Config{
		CLI:  cli,
		TOML: tomlConfig,
		Ctx:  ctx,
	}, nil
}

// ChecksumPolicy returns the zlib checksum policy from [decode] checksum.
func (c *Config) ChecksumPolicy() zlib.ChecksumPolicy {
	var p zlib.ChecksumPolicy
	// Already validated.
	_ = p.UnmarshalText([]byte(c.TOML.Decode.Checksum))
	return p
}

// LogLevel returns the logrus level from [log] level.
func (c *Config) LogLevel() logrus.Level {
	if c.CLI.Debug {
		return logrus.DebugLevel
	}
	level, err := logrus.ParseLevel(c.TOML.Log.Level)
	if err != nil {
		return logrus.InfoLevel
	}
	return level
}

func readCLIArgs(cli *CLI, args []string, options ...kong.Option) (*kong.Context, error) {
	options = append([]kong.Option{
		kong.Name("unpack"),
		kong.Description("PNG decoder with raw, PPM and compressed raster output"),
		kong.UsageOnError(),
		kong.DefaultEnvars(EnvVarPrefix),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
			Summary: true,
		}),
		kong.Vars{
			"version": VERSION,
		},
	}, options...)

	parser, err := kong.New(cli, options...)
	if err != nil {
		return nil, errors.Wrap(err, "error building CLI parser")
	}

	ctx, err := parser.Parse(args)
	if err != nil {
		return nil, err
	}

	if err := validateCLIArgs(cli); err != nil {
		return nil, errors.Wrap(err, "error validating args")
	}

	return ctx, nil
}

func validateCLIArgs(cli *CLI) error {
	if cli == nil {
		return errors.New("config cannot be nil")
	}

	if cli.Decode.Level < -1 {
		return errors.Errorf("--level %d is invalid", cli.Decode.Level)
	}

	return nil
}

func readTOML(file string) (*TOML, error) {
	tomlConfig := &TOML{}

	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, errors.Wrap(err, "error reading file")
		}

		if err := toml.Unmarshal(data, tomlConfig); err != nil {
			return nil, errors.Wrap(err, "error parsing TOML config")
		}
	}

	// Set defaults
	if err := setTOMLDefaults(tomlConfig); err != nil {
		return nil, errors.Wrap(err, "error setting TOML defaults")
	}

	return tomlConfig, nil
}

func setTOMLDefaults(t *TOML) error {
	if t == nil {
		return errors.New("toml config cannot be nil")
	}

	if t.Decode == nil {
		t.Decode = &TOMLDecode{}
	}

	if t.Output == nil {
		t.Output = &TOMLOutput{}
	}

	if t.Log == nil {
		t.Log = &TOMLLog{}
	}

	if t.Decode.Checksum == "" {
		t.Decode.Checksum = zlib.RejectBadChecksum.String()
	}

	if t.Output.Format == "" {
		t.Output.Format = DefaultFormat
	}

	if t.Output.Compression == "" {
		t.Output.Compression = DefaultCompression
	}

	if t.Log.Level == "" {
		t.Log.Level = DefaultLogLevel
	}

	return nil
}

// applyCLIOverrides copies the flags that were given into the TOML config.
func applyCLIOverrides(cli *CLI, t *TOML) {
	d := cli.Decode

	if d.Format != "" {
		t.Output.Format = d.Format
	}

	if d.Compression != "" {
		t.Output.Compression = d.Compression
	}

	if d.Level >= 0 {
		t.Output.Level = d.Level
	}

	if d.AcceptBadChecksum {
		t.Decode.Checksum = zlib.AcceptBadChecksum.String()
	}

	if d.SkipCRC {
		t.Decode.SkipCRC = true
	}

	if d.NoOutputLimit {
		t.Decode.DisableOutputLimit = true
	}

	if cli.Debug {
		t.Log.Level = logrus.DebugLevel.String()
	}
}

func validateTOML(t *TOML) error {
	if t == nil {
		return errors.New("toml config cannot be nil")
	}

	if err := validateTOMLDecode(t.Decode); err != nil {
		return errors.Wrap(err, "decode error(s)")
	}

	if err := validateTOMLOutput(t.Output); err != nil {
		return errors.Wrap(err, "output error(s)")
	}

	if t.Log == nil {
		return errors.New("log cannot be empty")
	}

	if _, err := logrus.ParseLevel(t.Log.Level); err != nil {
		return errors.Wrapf(err, "log.level %s is invalid", t.Log.Level)
	}

	return nil
}

func validateTOMLDecode(d *TOMLDecode) error {
	if d == nil {
		return errors.New("decode cannot be empty")
	}

	var p zlib.ChecksumPolicy
	if err := p.UnmarshalText([]byte(d.Checksum)); err != nil {
		return errors.Wrapf(err, "decode.checksum %s is invalid", d.Checksum)
	}

	return nil
}

func validateTOMLOutput(o *TOMLOutput) error {
	if o == nil {
		return errors.New("output cannot be empty")
	}

	if _, ok := validFormats[o.Format]; !ok {
		return errors.Errorf("output.format %s is invalid", o.Format)
	}

	levels, ok := validCompressions[o.Compression]
	if !ok {
		return errors.Errorf("output.compression %s is invalid", o.Compression)
	}

	if o.Level < levels[0] || o.Level > levels[1] {
		return errors.Errorf("output.level must be between %d and %d for %s", levels[0], levels[1], o.Compression)
	}

	return nil
}
