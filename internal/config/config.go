// Package config loads serialmon settings from flags, SERIALMON_* environment
// variables and an optional YAML file, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"golang.org/x/text/encoding"

	serial "github.com/allbin/serialmon"
	"github.com/allbin/serialmon/session"
)

// EnvPrefix is prepended to every environment variable, e.g. SERIALMON_BAUD
const EnvPrefix = "SERIALMON"

// Keys
const (
	KeyPort        = "port"
	KeyBaud        = "baud"
	KeyDataBits    = "data-bits"
	KeyStopBits    = "stop-bits"
	KeyParity      = "parity"
	KeyFlowControl = "flow-control"
	KeyEncoding    = "encoding"
	KeyDTR         = "dtr"
	KeyRTS         = "rts"
	KeyFlushOnOpen = "flush-on-open"
	KeyLogLevel    = "log.level"
	KeyLogFormat   = "log.format"
	KeyLogFile     = "log.file"
)

// Config is the resolved configuration
type Config struct {
	Port        string `mapstructure:"port"`
	Baud        int    `mapstructure:"baud"`
	DataBits    int    `mapstructure:"data-bits"`
	StopBits    int    `mapstructure:"stop-bits"`
	Parity      string `mapstructure:"parity"`
	FlowControl string `mapstructure:"flow-control"`
	Encoding    string `mapstructure:"encoding"`
	DTR         string `mapstructure:"dtr"` // on, off, or empty to leave alone
	RTS         string `mapstructure:"rts"`
	FlushOnOpen bool   `mapstructure:"flush-on-open"`

	Log LogConfig `mapstructure:"log"`
}

// LogConfig controls the application logger
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

var parities = map[string]serial.Parity{
	"none":  serial.ParityNone,
	"odd":   serial.ParityOdd,
	"even":  serial.ParityEven,
	"mark":  serial.ParityMark,
	"space": serial.ParitySpace,
}

var flowControls = map[string]serial.FlowControl{
	"none":   serial.FlowControlNone,
	"rtscts": serial.FlowControlRTSCTS,
}

// SetDefaults registers the default of every key on v
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyPort, "")
	v.SetDefault(KeyBaud, 115200)
	v.SetDefault(KeyDataBits, 8)
	v.SetDefault(KeyStopBits, 1)
	v.SetDefault(KeyParity, "none")
	v.SetDefault(KeyFlowControl, "none")
	v.SetDefault(KeyEncoding, "utf-8")
	v.SetDefault(KeyDTR, "")
	v.SetDefault(KeyRTS, "")
	v.SetDefault(KeyFlushOnOpen, false)
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, "text")
	v.SetDefault(KeyLogFile, "")
}

// AddFlags declares the serial line flags on fs
func AddFlags(fs *pflag.FlagSet) {
	fs.StringP(KeyPort, "p", "", "Serial port device path (prompted for when empty)")
	fs.IntP(KeyBaud, "b", 115200, "Baud rate (300-4000000)")
	fs.Int(KeyDataBits, 8, "Data bits (5-8)")
	fs.Int(KeyStopBits, 1, "Stop bits (1 or 2)")
	fs.String(KeyParity, "none", "Parity (none, odd, even, mark, space)")
	fs.String(KeyFlowControl, "none", "Flow control (none, rtscts)")
	fs.String(KeyEncoding, "utf-8", "Text encoding of the device (WHATWG label)")
	fs.String(KeyDTR, "", "Drive DTR after opening (on, off)")
	fs.String(KeyRTS, "", "Drive RTS after opening (on, off)")
	fs.Bool(KeyFlushOnOpen, false, "Discard stale input when opening the port")
}

// AddLogFlags declares the logging flags on fs
func AddLogFlags(fs *pflag.FlagSet) {
	fs.String("log-level", "info", "Log level (debug, info, warn, error)")
	fs.String("log-format", "text", "Log format (text, json)")
	fs.String("log-file", "", "Write logs to this file")
}

// BindFlags binds every flag on fs that has a matching key
func BindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	keys := map[string]string{
		"log-level":  KeyLogLevel,
		"log-format": KeyLogFormat,
		"log-file":   KeyLogFile,
	}
	for _, k := range []string{KeyPort, KeyBaud, KeyDataBits, KeyStopBits, KeyParity,
		KeyFlowControl, KeyEncoding, KeyDTR, KeyRTS, KeyFlushOnOpen} {
		keys[k] = k
	}

	for name, key := range keys {
		f := fs.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("bind flag %s: %w", name, err)
		}
	}
	return nil
}

// DefaultFile returns $XDG_CONFIG_HOME/serialmon/config.yaml
func DefaultFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "serialmon", "config.yaml")
}

// Load resolves the configuration. An explicit file must exist; the default
// file is only read when present.
func Load(v *viper.Viper, file string) (*Config, error) {
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	if file == "" {
		if def := DefaultFile(); def != "" {
			if _, err := os.Stat(def); err == nil {
				file = def
			}
		}
	}
	if file != "" {
		v.SetConfigFile(file)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("config file %s not found", file)
			}
			return nil, fmt.Errorf("read config %s: %w", file, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) normalize() {
	c.Parity = strings.ToLower(strings.TrimSpace(c.Parity))
	c.FlowControl = strings.ToLower(strings.TrimSpace(c.FlowControl))
	c.DTR = strings.ToLower(strings.TrimSpace(c.DTR))
	c.RTS = strings.ToLower(strings.TrimSpace(c.RTS))
	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))
	c.Log.Format = strings.ToLower(strings.TrimSpace(c.Log.Format))
}

// Validate checks every field and reports all problems at once
func (c *Config) Validate() error {
	var errs []error

	if _, err := session.ValidateRate(c.Baud); err != nil {
		errs = append(errs, fmt.Errorf("baud: %w", err))
	}
	if c.DataBits < 5 || c.DataBits > 8 {
		errs = append(errs, fmt.Errorf("data-bits: %d is not between 5 and 8", c.DataBits))
	}
	if c.StopBits != 1 && c.StopBits != 2 {
		errs = append(errs, fmt.Errorf("stop-bits: %d is not 1 or 2", c.StopBits))
	}
	if _, ok := parities[c.Parity]; !ok {
		errs = append(errs, fmt.Errorf("parity: unknown mode %q", c.Parity))
	}
	if _, ok := flowControls[c.FlowControl]; !ok {
		errs = append(errs, fmt.Errorf("flow-control: unknown mode %q", c.FlowControl))
	}
	if _, err := session.LookupEncoding(c.Encoding); err != nil {
		errs = append(errs, fmt.Errorf("encoding: %w", err))
	}
	if _, err := parseLine(c.DTR); err != nil {
		errs = append(errs, fmt.Errorf("dtr: %w", err))
	}
	if _, err := parseLine(c.RTS); err != nil {
		errs = append(errs, fmt.Errorf("rts: %w", err))
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		errs = append(errs, fmt.Errorf("log.format: unknown format %q", c.Log.Format))
	}

	return errors.Join(errs...)
}

// SerialOptions returns the line settings as serial options. The baud rate is
// left to the session.
func (c *Config) SerialOptions() ([]serial.Option, error) {
	parity, ok := parities[c.Parity]
	if !ok {
		return nil, fmt.Errorf("unknown parity %q", c.Parity)
	}
	flow, ok := flowControls[c.FlowControl]
	if !ok {
		return nil, fmt.Errorf("unknown flow control %q", c.FlowControl)
	}

	opts := []serial.Option{
		serial.WithDataBits(c.DataBits),
		serial.WithStopBits(c.StopBits),
		serial.WithParity(parity),
		serial.WithFlowControl(flow),
	}

	dtr, err := parseLine(c.DTR)
	if err != nil {
		return nil, err
	}
	if dtr != nil {
		opts = append(opts, serial.WithInitialDTR(*dtr))
	}
	rts, err := parseLine(c.RTS)
	if err != nil {
		return nil, err
	}
	if rts != nil {
		opts = append(opts, serial.WithInitialRTS(*rts))
	}
	if c.FlushOnOpen {
		opts = append(opts, serial.WithFlushOnOpen())
	}
	return opts, nil
}

// TextEncoding returns the configured encoding
func (c *Config) TextEncoding() (encoding.Encoding, error) {
	return session.LookupEncoding(c.Encoding)
}

// parseLine reads an on/off setting; empty means leave the line alone
func parseLine(s string) (*bool, error) {
	var state bool
	switch s {
	case "":
		return nil, nil
	case "on", "high", "true", "1":
		state = true
	case "off", "low", "false", "0":
		state = false
	default:
		return nil, fmt.Errorf("%q is not on or off", s)
	}
	return &state, nil
}

// ParseLevel parses debug, info, warn or error
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("unknown level %q", s)
	}
	return level, nil
}
