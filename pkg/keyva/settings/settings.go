// Package settings loads and validates the configuration for opening a
// keyva database: block size, cache size, write-buffer size, flush
// interval, file paths, and logging, composed and validated the way the
// ecosystem this codebase shares conventions with composes its own
// mapstructure-tagged, validator-checked config trees.
package settings

import (
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/huynhanx03/keyva/pkg/keyva/logging"
)

// Options mirrors the construction-time parameters of a keyva database.
type Options struct {
	BlockSize       uint32 `mapstructure:"block_size" validate:"required,min=512"`
	CacheSize       int    `mapstructure:"cache_size" validate:"required,min=1"`
	WriteBufferSize int    `mapstructure:"write_buffer_size" validate:"required,min=1"`
	FlushIntervalMS int    `mapstructure:"flush_interval_ms" validate:"required,min=1"`
	KeyFileName     string `mapstructure:"key_file_name" validate:"required"`
	ValueFileName   string `mapstructure:"value_file_name" validate:"required"`
}

// Settings is the full configuration tree: store options plus logging.
type Settings struct {
	Options Options        `mapstructure:"options"`
	Logging logging.Config `mapstructure:"logging"`
}

var validate = validator.New()

// Default returns the settings a fresh embedder would reach for: 4KB
// blocks, a 1GB node cache budget, 1MB flush batches, a 1s flush interval,
// and info-level logging to stderr only.
func Default() Settings {
	const defaultBlockSize = 4096
	return Settings{
		Options: Options{
			BlockSize:       defaultBlockSize,
			CacheSize:       (1 << 30) / defaultBlockSize,
			WriteBufferSize: 1 << 20,
			FlushIntervalMS: 1000,
			KeyFileName:     "db.keys",
			ValueFileName:   "db.values",
		},
		Logging: logging.DefaultConfig(),
	}
}

// Load reads a YAML file at path into Settings on top of Default, then
// validates it. The file is parsed into a generic map first and decoded
// with mapstructure so the same `mapstructure` tags drive both this and
// any other config source an embedder composes keyva's settings with.
func Load(path string) (*Settings, error) {
	s := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "settings: read %s", path)
	}

	var raw map[string]interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, errors.Wrapf(err, "settings: parse %s", path)
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &s,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "settings: build decoder")
	}
	if err := decoder.Decode(raw); err != nil {
		return nil, errors.Wrapf(err, "settings: decode %s", path)
	}

	if err := validate.Struct(s); err != nil {
		return nil, errors.Wrap(err, "settings: validate")
	}
	return &s, nil
}
