package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"ddreport/internal/errors"

	"go.uber.org/zap/zapcore"
)

// Config represents the complete application configuration
type Config struct {
	Server   ServerConfig
	Report   ReportConfig
	AI       AIConfig
	Database DatabaseConfig
	Log      LogConfig
}

// ServerConfig holds web server settings
type ServerConfig struct {
	Port              string
	GinMode           string
	MaxConcurrentRuns int
	MaxUploadMB       int
}

// ReportConfig holds template, output and typography settings
type ReportConfig struct {
	TemplatePath string
	OutputDir    string
	MappingFile  string
	FontFamily   string
	FontSizePt   float64
	Heading      string
	RawValues    bool
}

// AIConfig holds text-generation settings. The API key has no default.
type AIConfig struct {
	Provider    string
	APIKey      string
	BaseURL     string
	Model       string
	Timeout     time.Duration
	MaxTokens   int
	Temperature float64
}

// DatabaseConfig holds the optional run ledger connection
type DatabaseConfig struct {
	URL string
}

// Enabled reports whether a run ledger is configured
func (d DatabaseConfig) Enabled() bool {
	return d.URL != ""
}

// LogConfig holds logger settings
type LogConfig struct {
	Level string
}

// Load reads configuration from environment variables and validates it for
// the server, which always needs the API key
func Load() (*Config, error) {
	config := FromEnv()
	if err := config.Validate(true); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}
	return config, nil
}

// FromEnv reads configuration without validating it, so callers can apply
// flag overrides before calling Validate
func FromEnv() *Config {
	return &Config{
		Server:   *loadServerConfig(),
		Report:   *loadReportConfig(),
		AI:       *loadAIConfig(),
		Database: DatabaseConfig{URL: os.Getenv("DATABASE_URL")},
		Log:      LogConfig{Level: getEnvOrDefault("LOG_LEVEL", "info")},
	}
}

func loadServerConfig() *ServerConfig {
	return &ServerConfig{
		Port:              getEnvOrDefault("PORT", "8080"),
		GinMode:           getEnvOrDefault("GIN_MODE", "release"),
		MaxConcurrentRuns: getEnvIntOrDefault("MAX_CONCURRENT_RUNS", 2),
		MaxUploadMB:       getEnvIntOrDefault("MAX_UPLOAD_MB", 50),
	}
}

func loadReportConfig() *ReportConfig {
	return &ReportConfig{
		TemplatePath: os.Getenv("TEMPLATE_PATH"),
		OutputDir:    getEnvOrDefault("OUTPUT_DIR", "outputs"),
		MappingFile:  os.Getenv("MAPPING_FILE"),
		FontFamily:   getEnvOrDefault("DOC_FONT_FAMILY", "仿宋_GB2312"),
		FontSizePt:   getEnvFloatOrDefault("DOC_FONT_SIZE_PT", 16),
		Heading:      getEnvOrDefault("REPORT_HEADING", "AI风险评估结论"),
		RawValues:    getEnvBoolOrDefault("EXCEL_RAW_VALUES", false),
	}
}

func loadAIConfig() *AIConfig {
	apiKey := os.Getenv("LLM_API_KEY")
	if apiKey == "" {
		apiKey = os.Getenv("DASHSCOPE_API_KEY")
	}

	provider := strings.ToLower(getEnvOrDefault("LLM_PROVIDER", "openai"))
	return &AIConfig{
		Provider:    provider,
		APIKey:      apiKey,
		BaseURL:     os.Getenv("LLM_BASE_URL"),
		Model:       getEnvOrDefault("LLM_MODEL", defaultModel(provider)),
		Timeout:     getEnvDurationOrDefault("LLM_TIMEOUT", 120*time.Second),
		MaxTokens:   getEnvIntOrDefault("LLM_MAX_TOKENS", 1500),
		Temperature: getEnvFloatOrDefault("LLM_TEMPERATURE", 0.7),
	}
}

// defaultModel is the model each provider gets when LLM_MODEL is unset
func defaultModel(provider string) string {
	if provider == "gemini" {
		return "gemini-2.5-flash"
	}
	return "qwen-turbo"
}

// Validate checks required fields. The template must exist on disk.
func (c *Config) Validate(requireAPIKey bool) error {
	if c.Report.TemplatePath == "" {
		return errors.ConfigInvalid("TEMPLATE_PATH is required")
	}
	info, err := os.Stat(c.Report.TemplatePath)
	if err != nil {
		return errors.ConfigInvalid(fmt.Sprintf("模板文件不存在: %s", c.Report.TemplatePath))
	}
	if info.IsDir() {
		return errors.ConfigInvalid(fmt.Sprintf("template path %s is a directory", c.Report.TemplatePath))
	}
	if c.Report.OutputDir == "" {
		return errors.ConfigInvalid("OUTPUT_DIR must not be empty")
	}
	if c.Report.FontSizePt <= 0 {
		return errors.ConfigInvalid("DOC_FONT_SIZE_PT must be positive")
	}

	if requireAPIKey && c.AI.APIKey == "" {
		return errors.ConfigInvalid("LLM_API_KEY (or DASHSCOPE_API_KEY) is required")
	}
	switch c.AI.Provider {
	case "openai", "gemini":
	default:
		return errors.ConfigInvalid(fmt.Sprintf("LLM_PROVIDER %q is not supported", c.AI.Provider))
	}
	if c.AI.Model == "" {
		return errors.ConfigInvalid("LLM_MODEL must not be empty")
	}
	if c.AI.Timeout <= 0 {
		return errors.ConfigInvalid("LLM_TIMEOUT must be positive")
	}

	if c.Server.MaxConcurrentRuns < 1 {
		return errors.ConfigInvalid("MAX_CONCURRENT_RUNS must be at least 1")
	}
	if c.Server.MaxUploadMB < 1 {
		return errors.ConfigInvalid("MAX_UPLOAD_MB must be at least 1")
	}
	if _, err := c.LogLevel(); err != nil {
		return err
	}
	return nil
}

// LogLevel parses Log.Level into a zap level
func (c *Config) LogLevel() (zapcore.Level, error) {
	level, err := zapcore.ParseLevel(c.Log.Level)
	if err != nil {
		return zapcore.InfoLevel, errors.ConfigInvalid(fmt.Sprintf("LOG_LEVEL %q is not a valid level", c.Log.Level))
	}
	return level, nil
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// Accepts Go durations ("90s") or a bare number of seconds
func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
		if secs, err := strconv.Atoi(value); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultValue
}
