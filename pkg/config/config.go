// Package config provides the configuration of a doctext run.
//
// Values are resolved with the usual precedence: command-line flag, then
// DOCTEXT_* environment variable, then the optional YAML config file, then
// the defaults below.
//
//	export_dir:         export
//	nodepack_dir:       nodepack
//	output_path:        doctext-samples.json
//	max_samples:        100000
//	id_column:          document_id
//	text_column:        doctext
//	annotation_ext:     .xml
//	batch_size:         1024
//	progress_interval:  10000
//	output_compression: none
//	metrics_path:       ""
//	log:
//	  level:    info
//	  encoding: console
//
// Nested keys map to environment variables with underscores, so log.level
// is DOCTEXT_LOG_LEVEL.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/ajitpratap0/doctext/internal/pipeline"
	"github.com/ajitpratap0/doctext/pkg/compression"
	"github.com/ajitpratap0/doctext/pkg/errors"
	"github.com/ajitpratap0/doctext/pkg/exclusion"
	"github.com/ajitpratap0/doctext/pkg/logger"
)

// EnvPrefix is the prefix of every environment override
const EnvPrefix = "DOCTEXT"

// Config is the complete configuration of an extraction run
type Config struct {
	// ExportDir holds the Parquet files of the document table export
	ExportDir string `yaml:"export_dir" mapstructure:"export_dir"`
	// NodepackDir is the root of the nodepack XML tree
	NodepackDir string `yaml:"nodepack_dir" mapstructure:"nodepack_dir"`
	// OutputPath is where the JSON artifact is written
	OutputPath string `yaml:"output_path" mapstructure:"output_path"`
	// MaxSamples caps the number of collected samples
	MaxSamples int `yaml:"max_samples" mapstructure:"max_samples"`

	IDColumn      string `yaml:"id_column" mapstructure:"id_column"`
	TextColumn    string `yaml:"text_column" mapstructure:"text_column"`
	AnnotationExt string `yaml:"annotation_ext" mapstructure:"annotation_ext"`

	BatchSize         int64  `yaml:"batch_size" mapstructure:"batch_size"`
	ProgressInterval  int    `yaml:"progress_interval" mapstructure:"progress_interval"`
	OutputCompression string `yaml:"output_compression" mapstructure:"output_compression"`
	// MetricsPath, when set, receives a Prometheus textfile with run metrics
	MetricsPath string `yaml:"metrics_path" mapstructure:"metrics_path"`

	Log logger.Config `yaml:"log" mapstructure:"log"`
}

// Default returns the default configuration
func Default() *Config {
	p := pipeline.DefaultConfig()
	return &Config{
		ExportDir:         p.ExportDir,
		NodepackDir:       "nodepack",
		OutputPath:        "doctext-samples.json",
		MaxSamples:        p.MaxSamples,
		IDColumn:          p.IDColumn,
		TextColumn:        p.TextColumn,
		AnnotationExt:     exclusion.DefaultExtension,
		BatchSize:         p.BatchSize,
		ProgressInterval:  p.ProgressInterval,
		OutputCompression: string(compression.None),
		Log:               logger.DefaultConfig(),
	}
}

// flagKeys maps flag names registered by RegisterFlags to config keys
var flagKeys = map[string]string{
	"export-dir":   "export_dir",
	"nodepack-dir": "nodepack_dir",
	"output":       "output_path",
	"max-samples":  "max_samples",
	"id-column":    "id_column",
	"text-column":  "text_column",
	"compress":     "output_compression",
	"metrics-path": "metrics_path",
	"log-level":    "log.level",
	"log-encoding": "log.encoding",
}

// RegisterFlags adds the overridable settings to fs
func RegisterFlags(fs *pflag.FlagSet) {
	d := Default()
	fs.String("export-dir", d.ExportDir, "Directory containing the Parquet export")
	fs.String("nodepack-dir", d.NodepackDir, "Nodepack directory with system node XML files")
	fs.StringP("output", "o", d.OutputPath, "Path of the JSON artifact to write")
	fs.Int("max-samples", d.MaxSamples, "Stop after collecting this many samples")
	fs.String("id-column", d.IDColumn, "Name of the identifier column")
	fs.String("text-column", d.TextColumn, "Name of the text column")
	fs.String("compress", d.OutputCompression, "Output compression: none, gzip, zstd or lz4")
	fs.String("metrics-path", d.MetricsPath, "Write Prometheus metrics to this textfile")
	fs.String("log-level", d.Log.Level, "Log level (debug, info, warn, error)")
	fs.String("log-encoding", d.Log.Encoding, "Log encoding (console or json)")
}

// Load resolves the configuration from defaults, the optional YAML file at
// path, the environment and flags. flags may be nil. The result is validated.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v, Default())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to read config file").
				WithDetail("path", path)
		}
	}

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to bind flag").
						WithDetail("flag", name)
				}
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to decode configuration")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("export_dir", d.ExportDir)
	v.SetDefault("nodepack_dir", d.NodepackDir)
	v.SetDefault("output_path", d.OutputPath)
	v.SetDefault("max_samples", d.MaxSamples)
	v.SetDefault("id_column", d.IDColumn)
	v.SetDefault("text_column", d.TextColumn)
	v.SetDefault("annotation_ext", d.AnnotationExt)
	v.SetDefault("batch_size", d.BatchSize)
	v.SetDefault("progress_interval", d.ProgressInterval)
	v.SetDefault("output_compression", d.OutputCompression)
	v.SetDefault("metrics_path", d.MetricsPath)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.development", d.Log.Development)
	v.SetDefault("log.encoding", d.Log.Encoding)
	v.SetDefault("log.output_paths", d.Log.OutputPaths)
}

// Validate checks the configuration for values no run can succeed with
func (c *Config) Validate() error {
	invalid := func(field string, value interface{}, reason string) error {
		return errors.Newf(errors.ErrorTypeConfig, "invalid %s: %s", field, reason).
			WithDetail("field", field).
			WithDetail("value", value)
	}

	switch {
	case strings.TrimSpace(c.ExportDir) == "":
		return invalid("export_dir", c.ExportDir, "must not be empty")
	case strings.TrimSpace(c.OutputPath) == "":
		return invalid("output_path", c.OutputPath, "must not be empty")
	case c.MaxSamples <= 0:
		return invalid("max_samples", c.MaxSamples, "must be positive")
	case c.IDColumn == "":
		return invalid("id_column", c.IDColumn, "must not be empty")
	case c.TextColumn == "":
		return invalid("text_column", c.TextColumn, "must not be empty")
	case c.IDColumn == c.TextColumn:
		return invalid("text_column", c.TextColumn, "must differ from id_column")
	case !strings.HasPrefix(c.AnnotationExt, "."):
		return invalid("annotation_ext", c.AnnotationExt, "must start with a dot")
	case c.BatchSize <= 0:
		return invalid("batch_size", c.BatchSize, "must be positive")
	case c.ProgressInterval < 0:
		return invalid("progress_interval", c.ProgressInterval, "must not be negative")
	}

	if _, err := compression.ParseAlgorithm(c.OutputCompression); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "invalid output_compression").
			WithDetail("value", c.OutputCompression)
	}
	return nil
}

// Compression returns the parsed output compression algorithm
func (c *Config) Compression() compression.Algorithm {
	a, err := compression.ParseAlgorithm(c.OutputCompression)
	if err != nil {
		return compression.None
	}
	return a
}

// Pipeline returns the extraction parameters
func (c *Config) Pipeline() pipeline.Config {
	return pipeline.Config{
		ExportDir:        c.ExportDir,
		MaxSamples:       c.MaxSamples,
		IDColumn:         c.IDColumn,
		TextColumn:       c.TextColumn,
		BatchSize:        c.BatchSize,
		ProgressInterval: c.ProgressInterval,
	}
}

// YAML renders the configuration as a config file
func (c *Config) YAML() ([]byte, error) {
	out, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal YAML: %w", err)
	}
	return out, nil
}
