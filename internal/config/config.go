package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App      AppConfig
	Server   ServerConfig
	Database DatabaseConfig
	Log      LogConfig
	LLM      LLMConfig
	Reply    ReplyConfig
	RAG      RAGConfig
	Report   ReportConfig
	Tracing  TracingConfig
}

type AppConfig struct {
	Name        string
	Environment string
}

type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type DatabaseConfig struct {
	URL            string
	MigrationsPath string
	ConnectRetries int
}

type LogConfig struct {
	Level      string
	Format     string
	OutputPath string
}

// LLMConfig configures the chat completion backend shared by extraction,
// reply generation and grounding.
type LLMConfig struct {
	APIKey          string
	BaseURL         string
	ChatModel       string
	ExtractModel    string
	RequestTimeout  time.Duration
	BreakerFailures uint32
	BreakerCooldown time.Duration
}

type ReplyConfig struct {
	Temperature float32
	MaxTokens   int
}

type RAGConfig struct {
	CorpusPath       string
	MaxContextTokens int
}

type ReportConfig struct {
	TelegramToken string
	DoctorChatID  int64
	FontPath      string
}

type TracingConfig struct {
	Enabled     bool
	ServiceName string
	Endpoint    string
	SampleRate  float64
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		App: AppConfig{
			Name:        getEnv("APP_NAME", "hearing-intake"),
			Environment: getEnv("APP_ENV", "development"),
		},
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getEnvInt("SERVER_PORT", 8080),
			ReadTimeout:     getEnvDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvDuration("SERVER_WRITE_TIMEOUT", 120*time.Second),
			ShutdownTimeout: getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Database: DatabaseConfig{
			URL:            getEnv("DATABASE_URL", ""),
			MigrationsPath: getEnv("MIGRATIONS_PATH", "file://migrations"),
			ConnectRetries: getEnvInt("DB_CONNECT_RETRIES", 10),
		},
		Log: LogConfig{
			Level:      getEnv("LOG_LEVEL", "info"),
			Format:     getEnv("LOG_FORMAT", "json"),
			OutputPath: getEnv("LOG_OUTPUT", "stdout"),
		},
		LLM: LLMConfig{
			APIKey:          getEnv("OPENAI_API_KEY", ""),
			BaseURL:         getEnv("OPENAI_BASE_URL", ""),
			ChatModel:       getEnv("OPENAI_MODEL_CHAT", "gpt-4o"),
			ExtractModel:    getEnv("OPENAI_MODEL_EXTRACT", "gpt-4o"),
			RequestTimeout:  getEnvDuration("LLM_REQUEST_TIMEOUT", 90*time.Second),
			BreakerFailures: uint32(getEnvInt("LLM_BREAKER_FAILURES", 5)),
			BreakerCooldown: getEnvDuration("LLM_BREAKER_COOLDOWN", 30*time.Second),
		},
		Reply: ReplyConfig{
			Temperature: float32(getEnvFloat("REPLY_TEMPERATURE", 0.7)),
			MaxTokens:   getEnvInt("REPLY_MAX_TOKENS", 600),
		},
		RAG: RAGConfig{
			CorpusPath:       getEnv("CORPUS_PATH", "data/docs/hearing_loss.pdf"),
			MaxContextTokens: getEnvInt("RAG_MAX_CONTEXT_TOKENS", 0),
		},
		Report: ReportConfig{
			TelegramToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
			DoctorChatID:  getEnvInt64("DOCTOR_CHAT_ID", 0),
			FontPath:      getEnv("REPORT_FONT_PATH", ""),
		},
		Tracing: TracingConfig{
			Enabled:     getEnvBool("TRACING_ENABLED", false),
			ServiceName: getEnv("TRACING_SERVICE_NAME", "hearing-intake"),
			Endpoint:    getEnv("TRACING_ENDPOINT", "localhost:4318"),
			SampleRate:  getEnvFloat("TRACING_SAMPLE_RATE", 0.1),
		},
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func validate(cfg *Config) error {
	var errs []string

	if strings.TrimSpace(cfg.LLM.APIKey) == "" {
		errs = append(errs, "OPENAI_API_KEY is required")
	}
	if cfg.Reply.MaxTokens <= 0 {
		errs = append(errs, "REPLY_MAX_TOKENS must be positive")
	}
	if cfg.Reply.Temperature < 0 || cfg.Reply.Temperature > 2 {
		errs = append(errs, "REPLY_TEMPERATURE must be within [0, 2]")
	}
	if cfg.RAG.MaxContextTokens < 0 {
		errs = append(errs, "RAG_MAX_CONTEXT_TOKENS cannot be negative")
	}
	if cfg.Report.TelegramToken != "" && cfg.Report.DoctorChatID == 0 {
		errs = append(errs, "DOCTOR_CHAT_ID is required when TELEGRAM_BOT_TOKEN is set")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return strings.TrimSpace(v)
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	if v, ok := os.LookupEnv(key); ok {
		if i, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(strings.TrimSpace(v)); err == nil {
			return d
		}
	}
	return fallback
}
