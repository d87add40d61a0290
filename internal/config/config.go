// Package config provides layered configuration for the tiling batch job.
package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config represents the complete configuration for a tiling batch run.
type Config struct {
	Engine  EngineConfig  `yaml:"engine"`
	Tile    TileDefaults  `yaml:"tile"`
	Batch   BatchConfig   `yaml:"batch"`
	Logging LoggingConfig `yaml:"logging"`
}

// EngineConfig holds the external tool locations.
type EngineConfig struct {
	Binary        string `yaml:"binary" env:"GT_ENGINE_BINARY"`
	SegmentBinary string `yaml:"segment_binary" env:"GT_ENGINE_SEGMENT_BINARY"`
	DecoderBinary string `yaml:"decoder_binary" env:"GT_ENGINE_DECODER_BINARY"`
}

// TileDefaults holds the batch-wide tiling parameters applied to every slide.
type TileDefaults struct {
	PatchSize          int     `yaml:"patch_size" env:"GT_TILE_PATCH_SIZE"`
	Method             string  `yaml:"method" env:"GT_TILE_METHOD"`
	Threshold          float64 `yaml:"threshold" env:"GT_TILE_THRESHOLD"`
	OutputDownsample   int     `yaml:"output_downsample" env:"GT_TILE_OUTPUT_DOWNSAMPLE"`
	MaskDownsample     int     `yaml:"mask_downsample" env:"GT_TILE_MASK_DOWNSAMPLE"`
	Borders            string  `yaml:"borders" env:"GT_TILE_BORDERS"`
	Corners            string  `yaml:"corners" env:"GT_TILE_CORNERS"`
	ContentThreshold   int     `yaml:"content_threshold" env:"GT_TILE_CONTENT_THRESHOLD"`
	KConst             int     `yaml:"k_const" env:"GT_TILE_K_CONST"`
	MinimumSegmentSize int     `yaml:"minimum_segmentsize" env:"GT_TILE_MINIMUM_SEGMENTSIZE"`
	SavePatches        bool    `yaml:"save_patches" env:"GT_TILE_SAVE_PATCHES"`
	SaveBlank          bool    `yaml:"save_blank" env:"GT_TILE_SAVE_BLANK"`
	SaveNonSquare      bool    `yaml:"save_nonsquare" env:"GT_TILE_SAVE_NONSQUARE"`
	SaveTileCrossed    bool    `yaml:"save_tilecrossed_image" env:"GT_TILE_SAVE_TILECROSSED_IMAGE"`
	SaveMask           bool    `yaml:"save_mask" env:"GT_TILE_SAVE_MASK"`
	SaveEdges          bool    `yaml:"save_edges" env:"GT_TILE_SAVE_EDGES"`
	Info               string  `yaml:"info" env:"GT_TILE_INFO"`
	Format             string  `yaml:"format" env:"GT_TILE_FORMAT"`
}

// BatchConfig holds batch orchestration settings.
type BatchConfig struct {
	Workers    int    `yaml:"workers" env:"GT_BATCH_WORKERS"`
	ScratchDir string `yaml:"scratch_dir" env:"GT_BATCH_SCRATCH_DIR"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `yaml:"level" env:"GT_LOG_LEVEL"`
	Format     string `yaml:"format" env:"GT_LOG_FORMAT"`
	Output     string `yaml:"output" env:"GT_LOG_OUTPUT"`
	FilePath   string `yaml:"file_path" env:"GT_LOG_FILE_PATH"`
	MaxSize    int    `yaml:"max_size" env:"GT_LOG_MAX_SIZE"`
	MaxBackups int    `yaml:"max_backups" env:"GT_LOG_MAX_BACKUPS"`
	MaxAge     int    `yaml:"max_age" env:"GT_LOG_MAX_AGE"`
}

// DefaultConfig returns a Config with default values.
// The tile section mirrors the fixed parameter set the engine is always
// invoked with; it is kept here so the defaults are auditable in one place.
func DefaultConfig() *Config {
	return &Config{
		Engine: EngineConfig{
			Binary:        "pyhist",
			SegmentBinary: "/pyhist/src/graph_segmentation/segment",
			DecoderBinary: "openslide-show-properties",
		},
		Tile: TileDefaults{
			PatchSize:          256,
			Method:             "otsu",
			Threshold:          0.1,
			OutputDownsample:   8,
			MaskDownsample:     8,
			Borders:            "0000",
			Corners:            "1010",
			ContentThreshold:   1,
			KConst:             1000,
			MinimumSegmentSize: 1000,
			SavePatches:        true,
			SaveBlank:          false,
			SaveNonSquare:      false,
			SaveTileCrossed:    false,
			SaveMask:           true,
			SaveEdges:          false,
			Info:               "verbose",
			Format:             "png",
		},
		Batch: BatchConfig{
			Workers:    1,
			ScratchDir: "output",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
			Output: "stdout",
		},
	}
}

// Loader handles configuration loading from multiple sources.
type Loader struct {
	configPath string
}

// NewLoader creates a new configuration loader.
func NewLoader() *Loader {
	return &Loader{}
}

// WithConfigPath sets the path to the YAML configuration file.
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// Load loads configuration from all sources with proper precedence:
// defaults < YAML file < environment variables
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()

	if l.configPath != "" {
		if err := l.loadFromFile(cfg); err != nil {
			return nil, fmt.Errorf("从文件加载配置失败: %w", err)
		}
	}

	if err := l.applyEnvOverrides(cfg); err != nil {
		return nil, fmt.Errorf("应用环境变量覆盖失败: %w", err)
	}

	return cfg, nil
}

// loadFromFile loads configuration from a YAML file.
func (l *Loader) loadFromFile(cfg *Config) error {
	data, err := os.ReadFile(l.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // File doesn't exist, use defaults
		}
		return fmt.Errorf("读取配置文件失败: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("解析配置文件失败: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func (l *Loader) applyEnvOverrides(cfg *Config) error {
	return l.applyEnvToStruct(reflect.ValueOf(cfg).Elem())
}

// applyEnvToStruct recursively applies environment variables to struct fields.
func (l *Loader) applyEnvToStruct(v reflect.Value) error {
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		if field.Kind() == reflect.Struct {
			if err := l.applyEnvToStruct(field); err != nil {
				return err
			}
			continue
		}

		envTag := fieldType.Tag.Get("env")
		if envTag == "" {
			continue
		}

		envValue := os.Getenv(envTag)
		if envValue == "" {
			continue
		}

		if err := setFieldValue(field, envValue); err != nil {
			return fmt.Errorf("从环境变量 %s 设置字段 %s 失败: %w", envTag, fieldType.Name, err)
		}
	}

	return nil
}

// setFieldValue sets a reflect.Value from a string value.
func setFieldValue(field reflect.Value, value string) error {
	if !field.CanSet() {
		return fmt.Errorf("无法设置字段")
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		i, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("无效的整数: %w", err)
		}
		field.SetInt(i)

	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("无效的浮点数: %w", err)
		}
		field.SetFloat(f)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("无效的布尔值: %w", err)
		}
		field.SetBool(b)

	default:
		return fmt.Errorf("不支持的字段类型: %s", field.Kind())
	}

	return nil
}

// Serialize serializes the configuration to YAML bytes.
func (c *Config) Serialize() ([]byte, error) {
	return yaml.Marshal(c)
}

// ParseConfig parses a YAML configuration from bytes.
func ParseConfig(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}
	return cfg, nil
}

// LoadFromFile loads configuration from a YAML file path.
func LoadFromFile(path string) (*Config, error) {
	return NewLoader().WithConfigPath(path).Load()
}
