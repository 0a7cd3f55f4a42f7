package config

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	EngineGosseract = "gosseract"
	EngineCLI       = "cli"

	StorageLocal = "local"
	StorageAzure = "azure"
)

type Config struct {
	Host               string
	Port               string
	LogLevel           string
	RequestTimeout     time.Duration
	AnalysisTimeout    time.Duration
	MaxRequestBodySize int64

	// Recognition engine
	OCREngine      string
	OCRLanguage    string
	OCRPageSegMode int
	OCREngineMode  int
	TesseractCmd   string

	// Run log and artifacts
	ResultsCSV     string
	StorageBackend string
	UploadDir      string
	ResultDir      string
	AzureAccount   string
	AzureKey       string
	AzureContainer string

	// Remote input
	ImageURLAllowedHosts []string

	// Optional history mirror
	MySQLDSN string
}

func (c *Config) ServerAddress() string {
	host := strings.TrimSpace(c.Host)
	port := strings.TrimSpace(c.Port)
	return net.JoinHostPort(host, port)
}

// LoadFromEnv reads defaults, an optional config.yaml from the working
// directory, and environment variables, in increasing precedence.
func LoadFromEnv() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}
	v.AutomaticEnv()

	cfg := &Config{
		Host:               v.GetString("host"),
		Port:               v.GetString("port"),
		LogLevel:           v.GetString("log_level"),
		RequestTimeout:     v.GetDuration("request_timeout"),
		AnalysisTimeout:    v.GetDuration("analysis_timeout"),
		MaxRequestBodySize: v.GetInt64("max_request_body_size"),
		OCREngine:          strings.ToLower(strings.TrimSpace(v.GetString("ocr_engine"))),
		OCRLanguage:        strings.TrimSpace(v.GetString("ocr_language")),
		OCRPageSegMode:     v.GetInt("ocr_psm"),
		OCREngineMode:      v.GetInt("ocr_oem"),
		TesseractCmd:       v.GetString("tesseract_cmd"),
		ResultsCSV:         v.GetString("results_csv"),
		StorageBackend:     strings.ToLower(strings.TrimSpace(v.GetString("storage_backend"))),
		UploadDir:          v.GetString("upload_dir"),
		ResultDir:          v.GetString("result_dir"),
		AzureAccount:       v.GetString("azure_storage_account"),
		AzureKey:           v.GetString("azure_storage_key"),
		AzureContainer:     v.GetString("azure_container"),
		MySQLDSN:           v.GetString("mysql_dsn"),
	}
	for _, h := range strings.Split(v.GetString("image_url_allowed_hosts"), ",") {
		if h = strings.TrimSpace(h); h != "" {
			cfg.ImageURLAllowedHosts = append(cfg.ImageURLAllowedHosts, h)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("port", "8080")
	v.SetDefault("log_level", "info")
	v.SetDefault("request_timeout", 30*time.Second)
	v.SetDefault("analysis_timeout", 20*time.Second)
	v.SetDefault("max_request_body_size", 10*1024*1024) // 10MB
	v.SetDefault("ocr_engine", EngineGosseract)
	v.SetDefault("ocr_language", "eng")
	v.SetDefault("ocr_psm", 6)
	v.SetDefault("ocr_oem", 3)
	v.SetDefault("tesseract_cmd", "tesseract")
	v.SetDefault("results_csv", "results.csv")
	v.SetDefault("storage_backend", StorageLocal)
	v.SetDefault("upload_dir", "static/uploads")
	v.SetDefault("result_dir", "static/results")
	v.SetDefault("azure_container", "ocr-runs")
}

// Validate rejects configurations the server cannot start with.
func (c *Config) Validate() error {
	p, err := strconv.Atoi(strings.TrimSpace(c.Port))
	if err != nil || p < 1 || p > 65535 {
		return fmt.Errorf("invalid PORT: %q", c.Port)
	}
	if c.MaxRequestBodySize <= 0 {
		return fmt.Errorf("MAX_REQUEST_BODY_SIZE must be > 0 (got %d)", c.MaxRequestBodySize)
	}
	if c.RequestTimeout <= 0 || c.AnalysisTimeout <= 0 {
		return fmt.Errorf("timeouts must be > 0 (got request=%s, analysis=%s)",
			c.RequestTimeout, c.AnalysisTimeout)
	}
	switch c.OCREngine {
	case EngineGosseract, EngineCLI:
	default:
		return fmt.Errorf("invalid OCR_ENGINE: %q", c.OCREngine)
	}
	if c.OCRLanguage == "" {
		return fmt.Errorf("OCR_LANGUAGE must not be empty")
	}
	if c.OCRPageSegMode < 0 || c.OCRPageSegMode > 13 {
		return fmt.Errorf("OCR_PSM must be within 0..13 (got %d)", c.OCRPageSegMode)
	}
	if c.OCREngineMode < 0 || c.OCREngineMode > 3 {
		return fmt.Errorf("OCR_OEM must be within 0..3 (got %d)", c.OCREngineMode)
	}
	if strings.TrimSpace(c.ResultsCSV) == "" {
		return fmt.Errorf("RESULTS_CSV must not be empty")
	}
	switch c.StorageBackend {
	case StorageLocal:
	case StorageAzure:
		if c.AzureAccount == "" || c.AzureKey == "" {
			return fmt.Errorf("AZURE_STORAGE_ACCOUNT and AZURE_STORAGE_KEY are required for azure storage")
		}
	default:
		return fmt.Errorf("invalid STORAGE_BACKEND: %q", c.StorageBackend)
	}
	return nil
}
