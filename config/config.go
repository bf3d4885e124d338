package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"

	"scalpguard/ml"
)

const (
	DefaultDatasetPath = "data/train_data.csv"
	DefaultModelPath   = "data/trained_model.json"
	DefaultIDColumn    = "user_id"
	EnvFile            = ".env"
)

type Config struct {
	Dataset struct {
		Path      string `yaml:"path"`
		Delimiter string `yaml:"delimiter"`
		Encoding  string `yaml:"encoding"`
	} `yaml:"dataset"`
	Model struct {
		Path     string   `yaml:"path"`
		Preset   string   `yaml:"preset"`
		Features []string `yaml:"features"`
		Label    string   `yaml:"label"`
	} `yaml:"model"`
	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`
	Log struct {
		Level      string `yaml:"level"`
		File       string `yaml:"file"`
		MaxSizeMB  int    `yaml:"max_size_mb"`
		MaxBackups int    `yaml:"max_backups"`
		MaxAgeDays int    `yaml:"max_age_days"`
	} `yaml:"log"`
	Scan struct {
		IDColumn  string `yaml:"id_column"`
		CacheSize int    `yaml:"cache_size"`
	} `yaml:"scan"`
}

func Default() *Config {
	var cfg Config
	cfg.Dataset.Path = DefaultDatasetPath
	cfg.Dataset.Delimiter = ","
	cfg.Dataset.Encoding = "utf-8"
	cfg.Model.Path = DefaultModelPath
	cfg.Model.Preset = ml.PresetBasic
	cfg.Model.Label = ml.DefaultLabel
	cfg.Log.Level = "info"
	cfg.Log.MaxSizeMB = 10
	cfg.Log.MaxBackups = 3
	cfg.Log.MaxAgeDays = 28
	cfg.Scan.IDColumn = DefaultIDColumn
	cfg.Scan.CacheSize = ml.DefaultCacheSize
	return &cfg
}

// Load builds the configuration from defaults, an optional yaml file and
// SCALPGUARD_* environment variables, in increasing priority. Variables in a
// .env file in the working directory are loaded first and never override the
// real environment. An empty path falls back to SCALPGUARD_CONFIG; when both
// are empty no file is read.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(EnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %w", EnvFile, err)
	}

	cfg := Default()
	if path == "" {
		path = os.Getenv("SCALPGUARD_CONFIG")
	}
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	if err := yaml.NewDecoder(file).Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	c.Dataset.Path = envOrDefault("SCALPGUARD_DATASET", c.Dataset.Path)
	c.Dataset.Encoding = envOrDefault("SCALPGUARD_DATASET_ENCODING", c.Dataset.Encoding)
	c.Model.Path = envOrDefault("SCALPGUARD_MODEL", c.Model.Path)
	c.Model.Preset = envOrDefault("SCALPGUARD_PRESET", c.Model.Preset)
	if raw := os.Getenv("SCALPGUARD_FEATURES"); raw != "" {
		c.Model.Features = SplitList(raw)
	}
	c.Model.Label = envOrDefault("SCALPGUARD_LABEL", c.Model.Label)
	c.Database.Path = envOrDefault("SCALPGUARD_DB", c.Database.Path)
	c.Log.Level = envOrDefault("SCALPGUARD_LOG_LEVEL", c.Log.Level)
	c.Log.File = envOrDefault("SCALPGUARD_LOG_FILE", c.Log.File)

	cacheSize, err := envIntOrDefault("SCALPGUARD_SCAN_CACHE_SIZE", c.Scan.CacheSize)
	if err != nil {
		return err
	}
	c.Scan.CacheSize = cacheSize
	return nil
}

// Schema resolves the feature columns. An explicit feature list wins over
// the preset.
func (c *Config) Schema() (ml.Schema, error) {
	features := c.Model.Features
	if len(features) == 0 {
		preset, err := ml.PresetFeatures(c.Model.Preset)
		if err != nil {
			return ml.Schema{}, err
		}
		features = preset
	}
	schema := ml.NewSchema(features, c.Model.Label)
	if err := schema.Validate(); err != nil {
		return ml.Schema{}, err
	}
	return schema, nil
}

func (c *Config) CSVOptions() ml.CSVOptions {
	opts := ml.CSVOptions{Encoding: c.Dataset.Encoding}
	if c.Dataset.Delimiter != "" {
		opts.Delimiter, _ = utf8.DecodeRuneInString(c.Dataset.Delimiter)
	}
	return opts
}

func (c *Config) Validate() error {
	if c.Dataset.Path == "" {
		return errors.New("dataset.path is required")
	}
	if c.Model.Path == "" {
		return errors.New("model.path is required")
	}
	if utf8.RuneCountInString(c.Dataset.Delimiter) > 1 {
		return fmt.Errorf("dataset.delimiter must be a single character, got %q", c.Dataset.Delimiter)
	}
	if c.Dataset.Delimiter == "\"" || c.Dataset.Delimiter == "\n" || c.Dataset.Delimiter == "\r" {
		return fmt.Errorf("dataset.delimiter %q is not allowed", c.Dataset.Delimiter)
	}
	if _, err := c.Schema(); err != nil {
		return fmt.Errorf("model: %w", err)
	}
	if c.Scan.IDColumn == "" {
		return errors.New("scan.id_column is required")
	}
	if c.Scan.CacheSize < 0 {
		return errors.New("scan.cache_size must not be negative")
	}
	return nil
}

// SplitList splits a comma separated list, dropping blank entries.
func SplitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envIntOrDefault(key string, def int) (int, error) {
	if raw := os.Getenv(key); raw != "" {
		val, err := strconv.Atoi(raw)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", key, err)
		}
		return val, nil
	}
	return def, nil
}
