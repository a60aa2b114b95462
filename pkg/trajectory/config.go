package trajectory

import (
	"encoding/binary"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/jbarnoud/tng/pkg/block"
	"github.com/jbarnoud/tng/pkg/logging"
	"github.com/jbarnoud/tng/pkg/metrics"
	"github.com/jbarnoud/tng/pkg/status"
)

// validate is a singleton validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Config controls how a container lays out and protects its file.
type Config struct {
	// FramesPerFrameSet is the default frame count of a new frame set.
	FramesPerFrameSet int64 `yaml:"frames_per_frame_set" validate:"min=1"`

	// MediumStride and LongStride pick which frame sets anchor the
	// medium and long skip chains: every Nth granule links ahead to the
	// next anchor, so a reader can jump toward a frame without touching
	// every granule between.
	MediumStride int64 `yaml:"medium_stride" validate:"min=1"`
	LongStride   int64 `yaml:"long_stride" validate:"min=1,gtefield=MediumStride"`

	// UseHash selects payload digests: computed on write, verified on
	// read.
	UseHash bool `yaml:"use_hash"`

	// CompressionPrecision is the quantizer step for float coordinates
	// under the value codec.
	CompressionPrecision float64 `yaml:"compression_precision" validate:"gt=0"`

	// Workers bounds concurrent payload encoding during frame set
	// writes; zero means one worker per CPU.
	Workers int `yaml:"workers" validate:"min=0,max=256"`

	// ByteOrder is "big" or "little". Readers ignore it and detect the
	// order from the file itself.
	ByteOrder string `yaml:"byte_order" validate:"oneof=big little"`

	// Logger receives container lifecycle and per-block logs; nil keeps
	// the library silent.
	Logger logging.Logger `yaml:"-"`

	// Metrics receives I/O and codec instrumentation; nil disables it.
	Metrics *metrics.Registry `yaml:"-"`
}

// DefaultConfig returns the configuration a plain Create uses: 100-frame
// sets, hashing on, millibase precision, big-endian files.
func DefaultConfig() Config {
	return Config{
		FramesPerFrameSet:    100,
		MediumStride:         100,
		LongStride:           10000,
		UseHash:              true,
		CompressionPrecision: 0.001,
		Workers:              0,
		ByteOrder:            "big",
	}
}

// LoadConfig reads a YAML config file over the defaults: keys absent
// from the file keep their default, zero values fall back to it too.
func LoadConfig(path string) (Config, error) {
	const op = "trajectory.load_config"
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, status.Failuref(op, ErrConfig, "read %s: %v", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, status.Failuref(op, ErrConfig, "parse %s: %v", path, err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// applyDefaults fills zero-valued fields from DefaultConfig.
func (c *Config) applyDefaults() {
	def := DefaultConfig()
	if c.FramesPerFrameSet == 0 {
		c.FramesPerFrameSet = def.FramesPerFrameSet
	}
	if c.MediumStride == 0 {
		c.MediumStride = def.MediumStride
	}
	if c.LongStride == 0 {
		c.LongStride = def.LongStride
	}
	if c.CompressionPrecision == 0 {
		c.CompressionPrecision = def.CompressionPrecision
	}
	if c.ByteOrder == "" {
		c.ByteOrder = def.ByteOrder
	}
}

// Validate checks the configuration via struct tags and reports the
// first offending field as a recoverable error.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return status.Failuref("trajectory.config", ErrConfig, "%v", formatValidationError(err))
	}
	return nil
}

// formatValidationError converts validator errors to a more user-friendly format
func formatValidationError(err error) error {
	validationErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}
	for _, e := range validationErrs {
		field := e.Field()
		tag := e.Tag()
		param := e.Param()

		switch tag {
		case "min":
			return fmt.Errorf("%s: must be at least %s", field, param)
		case "max":
			return fmt.Errorf("%s: must not exceed %s", field, param)
		case "gt":
			return fmt.Errorf("%s: must be greater than %s", field, param)
		case "gtefield":
			return fmt.Errorf("%s: must not be below %s", field, param)
		case "oneof":
			return fmt.Errorf("%s: must be one of %s", field, param)
		default:
			return fmt.Errorf("%s: validation failed (%s)", field, tag)
		}
	}
	return err
}

func (c Config) byteOrder() binary.ByteOrder {
	if c.ByteOrder == "little" {
		return binary.LittleEndian
	}
	return binary.BigEndian
}

func (c Config) hashMode() block.HashMode {
	if c.UseHash {
		return block.HashUse
	}
	return block.HashSkip
}

func (c Config) logger() logging.Logger {
	if c.Logger == nil {
		return logging.NewNopLogger()
	}
	return c.Logger
}
