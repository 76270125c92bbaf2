package config

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/dshills/plasmashop/internal/config/loader"
	"github.com/dshills/plasmashop/internal/crypt"
	"github.com/dshills/plasmashop/internal/logging"
	"github.com/dshills/plasmashop/internal/textenc"
	"github.com/dshills/plasmashop/internal/watcher"
)

// EnvPrefix is the prefix of environment variables read by Load.
const EnvPrefix = "PLASMASHOP_"

// Config is the resolved plasmashop configuration.
type Config struct {
	Logging  LoggingConfig
	Document DocumentConfig
	Keys     KeysConfig
	Watch    WatchConfig
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum level written (debug, info, warn, error).
	Level string
}

// DocumentConfig holds the modes applied to new and converted documents.
type DocumentConfig struct {
	Encoding   string
	Encryption string
	LineEnding string
}

// KeysConfig holds key material.
type KeysConfig struct {
	// Droid is the default droid key. Empty means none.
	Droid string
}

// WatchConfig holds file watching settings.
type WatchConfig struct {
	DebounceDelay time.Duration
	// BufferSize is the capacity of the watcher's event channel.
	BufferSize int
}

// Default returns the built-in configuration.
func Default() *Config {
	c, _ := fromMap(defaults())
	return c
}

func defaults() map[string]any {
	w := watcher.DefaultConfig()
	return map[string]any{
		"logging": map[string]any{
			"level": "info",
		},
		"document": map[string]any{
			"encoding":   "utf-8",
			"encryption": "none",
			"lineEnding": "keep",
		},
		"keys": map[string]any{
			"droid": "",
		},
		"watch": map[string]any{
			"debounceDelay": w.DebounceDelay.String(),
			"bufferSize":    w.BufferSize,
		},
	}
}

// Option configures Load.
type Option func(*options)

type options struct {
	path      string
	fs        loader.FileSystem
	envPrefix string
}

// WithFile sets the config file to read. Without it only defaults and the
// environment apply.
func WithFile(path string) Option {
	return func(o *options) {
		o.path = path
	}
}

// WithFS sets the file system the config file is read from.
func WithFS(fs loader.FileSystem) Option {
	return func(o *options) {
		o.fs = fs
	}
}

// WithEnvPrefix overrides EnvPrefix. An empty prefix disables the
// environment layer.
func WithEnvPrefix(prefix string) Option {
	return func(o *options) {
		o.envPrefix = prefix
	}
}

// Load merges defaults, the config file and the environment, then
// validates the result.
func Load(opts ...Option) (*Config, error) {
	o := options{fs: loader.DefaultFS(), envPrefix: EnvPrefix}
	for _, opt := range opts {
		opt(&o)
	}

	layers := []loader.Loader{}
	if o.path != "" {
		layers = append(layers, loader.NewFileLoader(o.fs, o.path))
	}
	if o.envPrefix != "" {
		layers = append(layers, loader.NewEnvLoader(o.envPrefix))
	}

	merged := defaults()
	for _, l := range layers {
		data, err := l.Load()
		if err != nil {
			return nil, err
		}
		merged = loader.DeepMerge(merged, data)
	}

	c, err := fromMap(merged)
	if err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// fromMap reads the typed fields out of a merged configuration map.
func fromMap(m map[string]any) (*Config, error) {
	c := &Config{}
	var errs []error

	str := func(path string, dst *string) {
		val, ok := loader.Lookup(m, path)
		if !ok {
			return
		}
		s, ok := val.(string)
		if !ok {
			errs = append(errs, &TypeError{Path: path, Expected: "string", Actual: fmt.Sprintf("%T", val)})
			return
		}
		*dst = s
	}

	str("logging.level", &c.Logging.Level)
	str("document.encoding", &c.Document.Encoding)
	str("document.encryption", &c.Document.Encryption)
	str("document.lineEnding", &c.Document.LineEnding)
	str("keys.droid", &c.Keys.Droid)

	if val, ok := loader.Lookup(m, "watch.debounceDelay"); ok {
		d, err := toDuration(val)
		if err != nil {
			errs = append(errs, &ValidationError{Path: "watch.debounceDelay", Message: err.Error(), Value: val})
		}
		c.Watch.DebounceDelay = d
	}
	if val, ok := loader.Lookup(m, "watch.bufferSize"); ok {
		n, err := toInt(val)
		if err != nil {
			errs = append(errs, &ValidationError{Path: "watch.bufferSize", Message: err.Error(), Value: val})
		}
		c.Watch.BufferSize = n
	}

	return c, errors.Join(errs...)
}

// toDuration accepts a duration string or a whole number of milliseconds.
func toDuration(val any) (time.Duration, error) {
	switch v := val.(type) {
	case string:
		return time.ParseDuration(v)
	case int:
		return time.Duration(v) * time.Millisecond, nil
	case int64:
		return time.Duration(v) * time.Millisecond, nil
	case time.Duration:
		return v, nil
	default:
		return 0, fmt.Errorf("expected duration, got %T", val)
	}
}

// toInt accepts a whole number or its decimal string form.
func toInt(val any) (int, error) {
	switch v := val.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case string:
		return strconv.Atoi(v)
	default:
		return 0, fmt.Errorf("expected integer, got %T", val)
	}
}

// Validate checks that every setting names something plasmashop supports.
func (c *Config) Validate() error {
	var errs []error

	if !logging.ValidLogLevel(c.Logging.Level) {
		errs = append(errs, &ValidationError{Path: "logging.level", Message: "unknown log level", Value: c.Logging.Level})
	}
	if _, err := c.EncodingMode(); err != nil {
		errs = append(errs, &ValidationError{Path: "document.encoding", Message: err.Error(), Value: c.Document.Encoding})
	}
	if _, err := c.EncryptionMode(); err != nil {
		errs = append(errs, &ValidationError{Path: "document.encryption", Message: err.Error(), Value: c.Document.Encryption})
	}
	if _, err := c.LineEnding(); err != nil {
		errs = append(errs, &ValidationError{Path: "document.lineEnding", Message: err.Error(), Value: c.Document.LineEnding})
	}
	if _, err := c.DroidKey(); err != nil {
		errs = append(errs, &ValidationError{Path: "keys.droid", Message: err.Error(), Value: "<redacted>"})
	}
	if c.Watch.DebounceDelay < 0 {
		errs = append(errs, &ValidationError{Path: "watch.debounceDelay", Message: "must not be negative", Value: c.Watch.DebounceDelay})
	}
	if c.Watch.BufferSize < 1 {
		errs = append(errs, &ValidationError{Path: "watch.bufferSize", Message: "must be at least 1", Value: c.Watch.BufferSize})
	}

	return errors.Join(errs...)
}

// LogLevel returns the configured log level.
func (c *Config) LogLevel() logging.LogLevel {
	return logging.ParseLogLevel(c.Logging.Level)
}

// EncodingMode returns the configured document encoding.
func (c *Config) EncodingMode() (textenc.Mode, error) {
	return textenc.ParseMode(c.Document.Encoding)
}

// EncryptionMode returns the configured document encryption.
func (c *Config) EncryptionMode() (crypt.Mode, error) {
	return crypt.ParseMode(c.Document.Encryption)
}

// LineEnding returns the configured line ending. LineEndingMixed means the
// text is kept as is.
func (c *Config) LineEnding() (textenc.LineEnding, error) {
	return textenc.ParseLineEnding(c.Document.LineEnding)
}

// DroidKey returns the configured droid key, or nil when none is set.
func (c *Config) DroidKey() (*crypt.Key, error) {
	if c.Keys.Droid == "" {
		return nil, nil
	}
	k, err := crypt.ParseKey(c.Keys.Droid)
	if err != nil {
		return nil, err
	}
	return &k, nil
}
