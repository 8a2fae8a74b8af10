package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultSizeLimit is the per-document upload limit (10 MiB).
const DefaultSizeLimit int64 = 10 * 1024 * 1024

var (
	once      sync.Once
	appConfig *Config
	loadErr   error
)

// Config holds the whole application configuration.
type Config struct {
	Log       LogConfig       `yaml:"log"`
	Server    ServerConfig    `yaml:"server"`
	Redis     RedisConfig     `yaml:"redis"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	OCR       OCRConfig       `yaml:"ocr"`
	Generator GeneratorConfig `yaml:"generator"`
	Storage   StorageConfig   `yaml:"storage"`
}

type LogConfig struct {
	Level       string   `yaml:"level"`
	Encoding    string   `yaml:"encoding"`
	OutputPaths []string `yaml:"outputPaths"`
}

type ServerConfig struct {
	Addr           string   `yaml:"addr"`
	AllowedOrigins []string `yaml:"allowedOrigins"`
}

type RedisConfig struct {
	Addr        string         `yaml:"addr"`
	DB          int            `yaml:"db"`
	Concurrency int            `yaml:"concurrency"`
	Queues      map[string]int `yaml:"queues"`
}

// PipelineConfig controls the extraction and normalization pipeline.
type PipelineConfig struct {
	SizeLimit           int64  `yaml:"sizeLimit"`
	OCRPolicy           string `yaml:"ocrPolicy"`
	Language            string `yaml:"language"`
	AggressiveCleanup   bool   `yaml:"aggressiveCleanup"`
	ArtifactConcurrency int    `yaml:"artifactConcurrency"`
	WriteSummary        bool   `yaml:"writeSummary"`
}

// OCRConfig selects and tunes the recognition engine.
type OCRConfig struct {
	Engine      string         `yaml:"engine"`
	DPI         int            `yaml:"dpi"`
	PageSegMode int            `yaml:"pageSegMode"`
	Preprocess  bool           `yaml:"preprocess"`
	Textract    TextractConfig `yaml:"textract"`
}

type StorageConfig struct {
	Type     string      `yaml:"type"`
	LocalDir string      `yaml:"localDir"`
	S3       S3Config    `yaml:"s3"`
	Minio    MinioConfig `yaml:"minio"`
}

// Default returns the configuration used when nothing else is set.
func Default() *Config {
	return &Config{
		Log: LogConfig{
			Level:       "info",
			Encoding:    "json",
			OutputPaths: []string{"stdout"},
		},
		Server: ServerConfig{
			Addr:           ":8080",
			AllowedOrigins: []string{"*"},
		},
		Redis: RedisConfig{
			Addr:        "localhost:6379",
			Concurrency: 4,
			Queues: map[string]int{
				"critical": 6,
				"default":  3,
				"low":      1,
			},
		},
		Pipeline: PipelineConfig{
			SizeLimit:           DefaultSizeLimit,
			OCRPolicy:           "per_page",
			Language:            "eng",
			ArtifactConcurrency: 1,
		},
		OCR: OCRConfig{
			Engine:      "tesseract",
			DPI:         300,
			PageSegMode: 3,
			Preprocess:  true,
		},
		Generator: GeneratorConfig{
			Provider:    "gemini",
			Model:       "gemini-2.0-flash",
			TimeoutSecs: 120,
			MaxPoolSize: 4,
		},
		Storage: StorageConfig{
			Type:     "local",
			LocalDir: "data",
		},
	}
}

// Get loads the configuration once per process, from CONFIG_FILE if set.
func Get() (*Config, error) {
	once.Do(func() {
		appConfig, loadErr = Load(os.Getenv("CONFIG_FILE"))
	})
	return appConfig, loadErr
}

// Load builds a Config from defaults, an optional YAML file and the
// environment, in that order. A .env file next to the project root is loaded
// first if present.
func Load(path string) (*Config, error) {
	loadDotEnv()

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the pipeline cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Pipeline.SizeLimit <= 0 {
		errs = append(errs, fmt.Errorf("pipeline.sizeLimit must be positive, got %d", c.Pipeline.SizeLimit))
	}
	switch c.Pipeline.OCRPolicy {
	case "per_page", "whole_document":
	default:
		errs = append(errs, fmt.Errorf("unsupported pipeline.ocrPolicy: %q", c.Pipeline.OCRPolicy))
	}
	if c.Pipeline.ArtifactConcurrency < 1 {
		errs = append(errs, fmt.Errorf("pipeline.artifactConcurrency must be at least 1"))
	}
	switch c.OCR.Engine {
	case "tesseract", "textract":
	default:
		errs = append(errs, fmt.Errorf("unsupported ocr.engine: %q", c.OCR.Engine))
	}
	switch c.Storage.Type {
	case "local", "s3", "minio":
	default:
		errs = append(errs, fmt.Errorf("unsupported storage.type: %q", c.Storage.Type))
	}
	return errors.Join(errs...)
}

func (c *Config) applyEnv() {
	setString(&c.Log.Level, "LOG_LEVEL")
	setString(&c.Log.Encoding, "LOG_ENCODING")
	setList(&c.Log.OutputPaths, "LOG_OUTPUT_PATHS")

	setString(&c.Server.Addr, "DOCFLOW_SERVER_ADDR")
	setList(&c.Server.AllowedOrigins, "DOCFLOW_ALLOWED_ORIGINS")

	setString(&c.Redis.Addr, "REDIS_ADDR")
	setInt(&c.Redis.DB, "REDIS_DB")
	setInt(&c.Redis.Concurrency, "DOCFLOW_WORKER_CONCURRENCY")

	setInt64(&c.Pipeline.SizeLimit, "DOCFLOW_SIZE_LIMIT")
	setString(&c.Pipeline.OCRPolicy, "DOCFLOW_OCR_POLICY")
	setString(&c.Pipeline.Language, "DOCFLOW_OCR_LANGUAGE")
	setBool(&c.Pipeline.AggressiveCleanup, "DOCFLOW_AGGRESSIVE_CLEANUP")
	setInt(&c.Pipeline.ArtifactConcurrency, "DOCFLOW_ARTIFACT_CONCURRENCY")
	setBool(&c.Pipeline.WriteSummary, "DOCFLOW_WRITE_SUMMARY")

	setString(&c.OCR.Engine, "DOCFLOW_OCR_ENGINE")
	setInt(&c.OCR.DPI, "DOCFLOW_OCR_DPI")

	setString(&c.Storage.Type, "DOCFLOW_STORAGE_TYPE")
	setString(&c.Storage.LocalDir, "DOCFLOW_STORAGE_DIR")

	c.OCR.Textract.applyEnv()
	c.Storage.S3.applyEnv()
	c.Storage.Minio.applyEnv()
	c.Generator.applyEnv()
}

func loadDotEnv() {
	// 获取当前文件的目录
	_, filename, _, _ := runtime.Caller(0)
	rootDir := filepath.Dir(filepath.Dir(filename))
	envPath := filepath.Join(rootDir, ".env")

	if _, err := os.Stat(envPath); err != nil {
		return
	}
	if err := godotenv.Load(envPath); err != nil {
		log.Printf("Warning: failed to load %s, falling back to environment variables: %v", envPath, err)
	}
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func setList(dst *[]string, key string) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	*dst = out
}

func setInt(dst *int, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}
