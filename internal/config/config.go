// Package config loads runtime settings from .env, an optional YAML file and
// the environment, in increasing order of precedence.
package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Checkpoint backends.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendRedis  = "redis"
	BackendSQL    = "sql"
)

// Config is the full runtime configuration.
type Config struct {
	// OpenAI
	OpenAIAPIKey     string  `mapstructure:"openai_api_key"`
	OpenAIBaseURL    string  `mapstructure:"openai_base_url"`
	ModelName        string  `mapstructure:"model_name"`
	ModelTemperature float64 `mapstructure:"model_temperature"`
	VisionModel      string  `mapstructure:"vision_model"`
	WhisperModel     string  `mapstructure:"whisper_model"`

	// WhatsApp Cloud API
	WhatsAppVerifyToken   string `mapstructure:"whatsapp_verify_token"`
	WhatsAppAccessToken   string `mapstructure:"whatsapp_access_token"`
	WhatsAppPhoneNumberID string `mapstructure:"whatsapp_phone_number_id"`

	// Twilio
	TwilioAccountSID string `mapstructure:"twilio_account_sid"`
	TwilioAuthToken  string `mapstructure:"twilio_auth_token"`
	TwilioFromNumber string `mapstructure:"twilio_from_number"`

	// Storage
	DatabaseDSN       string `mapstructure:"database_dsn"`
	CheckpointBackend string `mapstructure:"checkpoint_backend"`
	CheckpointDir     string `mapstructure:"checkpoint_dir"`
	RedisAddr         string `mapstructure:"redis_addr"`
	RedisPassword     string `mapstructure:"redis_password"`
	RedisDB           int    `mapstructure:"redis_db"`
	EncryptionKey     string `mapstructure:"encryption_key"`
	MaskPII           bool   `mapstructure:"mask_pii"`

	// Flow
	CatalogPath         string  `mapstructure:"catalog_path"`
	FlowVariant         string  `mapstructure:"flow_variant"`
	ConfidenceThreshold float64 `mapstructure:"confidence_threshold"`
	MaxClassifyAttempts int     `mapstructure:"max_classify_attempts"`

	// Runtime
	MediaDir     string `mapstructure:"media_dir"`
	HTTPAddr     string `mapstructure:"http_addr"`
	LogLevel     string `mapstructure:"log_level"`
	MaxInputSize int    `mapstructure:"max_input_size"`
}

var defaults = map[string]any{
	"openai_api_key":    "",
	"openai_base_url":   "",
	"model_name":        "gpt-4o-mini",
	"model_temperature": 0.1,
	"vision_model":      "gpt-4o",
	"whisper_model":     "whisper-1",

	"whatsapp_verify_token":    "",
	"whatsapp_access_token":    "",
	"whatsapp_phone_number_id": "",

	"twilio_account_sid": "",
	"twilio_auth_token":  "",
	"twilio_from_number": "",

	"database_dsn":       "data/incidentbot.db",
	"checkpoint_backend": BackendSQL,
	"checkpoint_dir":     ".incidentbot/threads",
	"redis_addr":         "localhost:6379",
	"redis_password":     "",
	"redis_db":           0,
	"encryption_key":     "",
	"mask_pii":           false,

	"catalog_path":          "",
	"flow_variant":          "direct",
	"confidence_threshold":  0.8,
	"max_classify_attempts": 2,

	"media_dir":      "data/media",
	"http_addr":      ":8000",
	"log_level":      "info",
	"max_input_size": 4096,
}

// Load reads .env (if present), then path (if set), then the environment.
// Environment variables use the upper-cased key, e.g. OPENAI_API_KEY.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that would otherwise fail late.
func (c *Config) Validate() error {
	switch c.CheckpointBackend {
	case BackendMemory, BackendFile, BackendRedis, BackendSQL:
	default:
		return fmt.Errorf("unknown checkpoint_backend %q", c.CheckpointBackend)
	}
	if c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 1 {
		return fmt.Errorf("confidence_threshold must be within [0,1], got %v", c.ConfidenceThreshold)
	}
	if c.MaxClassifyAttempts < 1 {
		return fmt.Errorf("max_classify_attempts must be positive, got %d", c.MaxClassifyAttempts)
	}
	if _, err := c.Key(); err != nil {
		return err
	}
	return nil
}

// Key decodes EncryptionKey. A nil key means encryption is off.
func (c *Config) Key() ([]byte, error) {
	if c.EncryptionKey == "" {
		return nil, nil
	}
	key, err := hex.DecodeString(c.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("encryption_key must be hex: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("encryption_key must be 32 bytes, got %d", len(key))
	}
	return key, nil
}

// WhatsAppEnabled reports whether Cloud API credentials are present.
func (c *Config) WhatsAppEnabled() bool {
	return c.WhatsAppAccessToken != "" && c.WhatsAppPhoneNumberID != ""
}

// TwilioEnabled reports whether Twilio credentials are present.
func (c *Config) TwilioEnabled() bool {
	return c.TwilioAccountSID != "" && c.TwilioAuthToken != "" && c.TwilioFromNumber != ""
}
