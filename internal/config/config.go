// Package config assembles runtime settings from defaults, an optional YAML
// file, a .env file and the process environment, in that order.
package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/chatflow-ai/chatflow/internal/runtime"
	"github.com/chatflow-ai/chatflow/pkg/session"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultPath is read when no config file is given; it may be absent.
const DefaultPath = "chatflow.yaml"

// DefaultMongoURI is used when MONGO_URI is not set.
const DefaultMongoURI = "mongodb://localhost:27017"

// Store backends.
const (
	StoreMongo  = "mongo"
	StoreMemory = "memory"
)

// Config is the full set of runtime settings.
type Config struct {
	Addr      string `yaml:"addr"`
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	// ClientOrigin is the only CORS origin allowed. Empty allows all.
	ClientOrigin string `yaml:"client_origin"`

	Store    string         `yaml:"store"`
	Mongo    MongoConfig    `yaml:"mongo"`
	Redis    RedisConfig    `yaml:"redis"`
	OpenAI   OpenAIConfig   `yaml:"openai"`
	WhatsApp WhatsAppConfig `yaml:"whatsapp"`
	Engine   EngineConfig   `yaml:"engine"`
	Storage  StorageConfig  `yaml:"storage"`
	Tracing  TracingConfig  `yaml:"tracing"`
}

// MongoConfig locates the document store.
type MongoConfig struct {
	URI      string `yaml:"uri"`
	Database string `yaml:"database"`
}

// RedisConfig enables the distributed contact lock when Addr is set.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

// OpenAIConfig selects the AI provider. Without an API key replies are mocked.
type OpenAIConfig struct {
	APIKey         string `yaml:"api_key"`
	Model          string `yaml:"model"`
	BaseURL        string `yaml:"base_url"`
	MaxTokens      int    `yaml:"max_tokens"`
	CircuitBreaker bool   `yaml:"circuit_breaker"`
}

// WhatsAppConfig selects the delivery channel. Without a token sends are mocked.
type WhatsAppConfig struct {
	Token   string `yaml:"token"`
	PhoneID string `yaml:"phone_id"`
	BaseURL string `yaml:"base_url"`
}

// EngineConfig tunes message processing.
type EngineConfig struct {
	BatchMode       string        `yaml:"batch_mode"`
	Serialize       bool          `yaml:"serialize"`
	HistoryLimit    int           `yaml:"history_limit"`
	AITimeout       time.Duration `yaml:"ai_timeout"`
	DeliveryTimeout time.Duration `yaml:"delivery_timeout"`
	LockTTL         time.Duration `yaml:"lock_ttl"`
}

// StorageConfig protects the message audit trail at rest.
type StorageConfig struct {
	// EncryptionKey is a base64 AES-256 key. Empty stores text in clear.
	EncryptionKey string `yaml:"encryption_key"`
	// FallbackKeys are older base64 keys still accepted for reading.
	FallbackKeys []string `yaml:"fallback_keys"`
	// RedactPatterns are regular expressions masked out of message text before storage.
	RedactPatterns []string `yaml:"redact_patterns"`
}

// TracingConfig exports request spans over OTLP when Endpoint is set.
type TracingConfig struct {
	Endpoint    string `yaml:"endpoint"`
	Insecure    bool   `yaml:"insecure"`
	ServiceName string `yaml:"service_name"`
}

// Keys decodes the encryption keys. active is nil when encryption is off.
func (s StorageConfig) Keys() (active []byte, fallbacks [][]byte, err error) {
	if s.EncryptionKey == "" {
		return nil, nil, nil
	}
	decode := func(name, v string) ([]byte, error) {
		key, err := base64.StdEncoding.DecodeString(v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		if len(key) != 32 {
			return nil, fmt.Errorf("%s: want 32 bytes, got %d", name, len(key))
		}
		return key, nil
	}

	if active, err = decode("storage.encryption_key", s.EncryptionKey); err != nil {
		return nil, nil, err
	}
	for i, v := range s.FallbackKeys {
		key, err := decode(fmt.Sprintf("storage.fallback_keys[%d]", i), v)
		if err != nil {
			return nil, nil, err
		}
		fallbacks = append(fallbacks, key)
	}
	return active, fallbacks, nil
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		Addr:      ":8000",
		LogLevel:  "info",
		LogFormat: "text",
		Store:     StoreMongo,
		Mongo:     MongoConfig{URI: DefaultMongoURI, Database: "chatflow_ai"},
		Redis:     RedisConfig{Prefix: "chatflow:"},
		Tracing:   TracingConfig{ServiceName: "chatflow"},
		Engine: EngineConfig{
			BatchMode:       string(runtime.BatchFirst),
			Serialize:       true,
			HistoryLimit:    runtime.DefaultHistoryLimit,
			AITimeout:       runtime.DefaultAITimeout,
			DeliveryTimeout: runtime.DefaultDeliveryTimeout,
			LockTTL:         session.DefaultLockTTL,
		},
	}
}

// Load reads defaults, then path (or DefaultPath when path is empty and the
// file exists), then .env, then environment variables.
func Load(path string) (*Config, error) {
	cfg := Default()

	file, required := path, true
	if file == "" {
		file, required = DefaultPath, false
	}
	if err := cfg.loadFile(file, required); err != nil {
		return nil, err
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string, required bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && !required {
			return nil
		}
		return fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overrides fields from environment variables found by lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	str("CHATFLOW_ADDR", &c.Addr)
	str("CHATFLOW_LOG_LEVEL", &c.LogLevel)
	str("CHATFLOW_LOG_FORMAT", &c.LogFormat)
	str("CHATFLOW_STORE", &c.Store)
	str("CLIENT_ORIGIN", &c.ClientOrigin)
	str("MONGO_URI", &c.Mongo.URI)
	str("MONGO_DB_NAME", &c.Mongo.Database)
	str("REDIS_ADDR", &c.Redis.Addr)
	str("REDIS_PASSWORD", &c.Redis.Password)
	str("OPENAI_API_KEY", &c.OpenAI.APIKey)
	str("OPENAI_MODEL", &c.OpenAI.Model)
	str("OPENAI_BASE_URL", &c.OpenAI.BaseURL)
	str("WHATSAPP_TOKEN", &c.WhatsApp.Token)
	str("WHATSAPP_PHONE_ID", &c.WhatsApp.PhoneID)
	str("CHATFLOW_BATCH_MODE", &c.Engine.BatchMode)
	str("CHATFLOW_ENCRYPTION_KEY", &c.Storage.EncryptionKey)
	str("OTEL_EXPORTER_OTLP_ENDPOINT", &c.Tracing.Endpoint)
	str("OTEL_SERVICE_NAME", &c.Tracing.ServiceName)

	lists := []struct {
		key, sep string
		dst      *[]string
	}{
		{"CHATFLOW_ENCRYPTION_FALLBACK_KEYS", ",", &c.Storage.FallbackKeys},
		// Patterns may contain commas.
		{"CHATFLOW_REDACT_PATTERNS", ";", &c.Storage.RedactPatterns},
	}
	for _, l := range lists {
		if v, ok := lookup(l.key); ok && v != "" {
			*l.dst = splitList(v, l.sep)
		}
	}

	bools := []struct {
		key string
		dst *bool
	}{
		{"CHATFLOW_SERIALIZE", &c.Engine.Serialize},
		{"OTEL_EXPORTER_OTLP_INSECURE", &c.Tracing.Insecure},
	}
	for _, b := range bools {
		v, ok := lookup(b.key)
		if !ok || v == "" {
			continue
		}
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", b.key, err)
		}
		*b.dst = parsed
	}

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"CHATFLOW_AI_TIMEOUT", &c.Engine.AITimeout},
		{"CHATFLOW_DELIVERY_TIMEOUT", &c.Engine.DeliveryTimeout},
		{"CHATFLOW_LOCK_TTL", &c.Engine.LockTTL},
	}
	for _, d := range durations {
		v, ok := lookup(d.key)
		if !ok || v == "" {
			continue
		}
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", d.key, err)
		}
		*d.dst = parsed
	}
	return nil
}

// Validate reports settings the server cannot start with.
func (c *Config) Validate() error {
	var errs []error
	switch c.Store {
	case StoreMongo:
		if c.Mongo.URI == "" {
			errs = append(errs, errors.New("MONGO_URI (mongo.uri) is required for the mongo store"))
		}
	case StoreMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown store %q", c.Store))
	}
	if _, err := runtime.ParseBatchMode(c.Engine.BatchMode); err != nil {
		errs = append(errs, err)
	}
	if c.WhatsApp.Token != "" && c.WhatsApp.PhoneID == "" {
		errs = append(errs, errors.New("WHATSAPP_PHONE_ID is required when WHATSAPP_TOKEN is set"))
	}
	if _, _, err := c.Storage.Keys(); err != nil {
		errs = append(errs, err)
	}
	for _, p := range c.Storage.RedactPatterns {
		if _, err := regexp.Compile(p); err != nil {
			errs = append(errs, fmt.Errorf("storage.redact_patterns: %w", err))
		}
	}
	if c.Redis.Addr != "" && c.Engine.Serialize {
		if budget := c.Engine.AITimeout + c.Engine.DeliveryTimeout; c.Engine.LockTTL <= budget {
			errs = append(errs, fmt.Errorf("engine.lock_ttl (%s) must exceed ai_timeout + delivery_timeout (%s)", c.Engine.LockTTL, budget))
		}
	}
	if c.Engine.HistoryLimit < 0 {
		errs = append(errs, errors.New("engine.history_limit must not be negative"))
	}
	return errors.Join(errs...)
}

func splitList(v, sep string) []string {
	var out []string
	for _, part := range strings.Split(v, sep) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
