package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ErrMissingConfiguration is returned when a required setting is absent.
var ErrMissingConfiguration = errors.New("config: missing configuration")

const (
	defaultBaseURL    = "https://dashscope.aliyuncs.com/api/v1"
	defaultGatewayURL = "http://localhost:8080"
	defaultFloor      = 40
)

type ServiceType string

const (
	ServiceTypeGateway ServiceType = "gateway"
	ServiceTypeLambda  ServiceType = "lambda"
	ServiceTypeChat    ServiceType = "chat"
)

type Config struct {
	Env         string
	Port        string
	LogLevel    string
	LogFile     string
	VoiceURL    string
	DashScope   DashScopeConfig
	Exchange    ExchangeConfig
	OTel        OTelConfig
	Chat        ChatConfig
	ServiceType ServiceType
}

type DashScopeConfig struct {
	APIKey      string
	APIKeyParam string
	AppID       string
	BaseURL     string
	Timeout     time.Duration
}

type ExchangeConfig struct {
	Table string
}

type OTelConfig struct {
	Endpoint       string
	Headers        string
	ServiceName    string
	ServiceVersion string
	MetricsFile    string
}

type ChatConfig struct {
	GatewayURL   string
	FloorSeconds int
	LogFile      string
}

// Load reads configuration from the environment. In development it first
// loads .env.<service>, falling back to .env.
func Load(service ServiceType) (Config, error) {
	if getEnv("HUIJIN_ENV", "development") == "development" {
		if err := godotenv.Load(fmt.Sprintf(".env.%s", service)); err != nil {
			_ = godotenv.Load(".env")
		}
	}

	cfg := Config{
		ServiceType: service,
		Env:         getEnv("HUIJIN_ENV", "development"),
		Port:        getEnv("PORT", "8080"),
		LogLevel:    getEnv("LOG_LEVEL", ""),
		LogFile:     getEnv("LOG_FILE", ""),
		VoiceURL:    getEnv("VOICE_CALL_URL", ""),
		DashScope: DashScopeConfig{
			APIKey:      firstEnv("DASHSCOPE_API_KEY", "NEXT_PUBLIC_DASHSCOPE_API_KEY"),
			APIKeyParam: getEnv("DASHSCOPE_API_KEY_PARAM", ""),
			AppID:       firstEnv("DASHSCOPE_APP_ID", "NEXT_PUBLIC_APP_ID"),
			BaseURL:     getEnv("DASHSCOPE_BASE_URL", defaultBaseURL),
			Timeout:     getEnvDuration("DASHSCOPE_TIMEOUT", 60*time.Second),
		},
		Exchange: ExchangeConfig{
			Table: getEnv("EXCHANGE_TABLE", ""),
		},
		OTel: OTelConfig{
			Endpoint:       getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
			Headers:        getEnv("OTEL_EXPORTER_OTLP_HEADERS", ""),
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "huijin-"+string(service)),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "dev"),
			MetricsFile:    getEnv("METRICS_FILE", ""),
		},
		Chat: ChatConfig{
			GatewayURL:   getEnv("CHAT_GATEWAY_URL", defaultGatewayURL),
			FloorSeconds: getEnvInt("CHAT_FLOOR_SECONDS", defaultFloor),
			LogFile:      getEnv("CHAT_LOG_FILE", "logs/chat.log"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the settings required by the configured service.
func (c Config) Validate() error {
	switch c.ServiceType {
	case ServiceTypeGateway, ServiceTypeLambda:
		return c.DashScope.Validate()
	case ServiceTypeChat:
		if strings.TrimSpace(c.Chat.GatewayURL) == "" {
			return fmt.Errorf("%w: CHAT_GATEWAY_URL", ErrMissingConfiguration)
		}
		if c.Chat.FloorSeconds < 0 {
			return fmt.Errorf("config: CHAT_FLOOR_SECONDS must not be negative")
		}
	}
	return nil
}

// Validate reports every missing upstream setting at once.
func (c DashScopeConfig) Validate() error {
	var missing []string
	if strings.TrimSpace(c.APIKey) == "" && strings.TrimSpace(c.APIKeyParam) == "" {
		missing = append(missing, "DASHSCOPE_API_KEY (or DASHSCOPE_API_KEY_PARAM)")
	}
	if strings.TrimSpace(c.AppID) == "" {
		missing = append(missing, "DASHSCOPE_APP_ID")
	}
	if strings.TrimSpace(c.BaseURL) == "" {
		missing = append(missing, "DASHSCOPE_BASE_URL")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingConfiguration, strings.Join(missing, ", "))
	}
	return nil
}

// CompletionURL is the app completion endpoint for the configured app.
func (c DashScopeConfig) CompletionURL() string {
	base := strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	return base + "/apps/" + url.PathEscape(strings.TrimSpace(c.AppID)) + "/completion"
}

func (c Config) IsProduction() bool {
	return c.Env == "production"
}

func (c Config) IsDevelopment() bool {
	return c.Env == "development"
}

func (c OTelConfig) Enabled() bool {
	return c.Endpoint != ""
}

func (c ExchangeConfig) Enabled() bool {
	return c.Table != ""
}

func (c Config) FloorDuration() time.Duration {
	return time.Duration(c.Chat.FloorSeconds) * time.Second
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func firstEnv(keys ...string) string {
	for _, key := range keys {
		if value := strings.TrimSpace(os.Getenv(key)); value != "" {
			return value
		}
	}
	return ""
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(value); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}
