package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"wacontacts/internal/infrastructure"
)

const (
	EnvConfigPath        = "CONFIG_PATH"
	EnvDatabaseURL       = "DATABASE_URL"
	EnvDatabaseAuthToken = "DATABASE_AUTH_TOKEN"
	EnvHTTPAddr          = "HTTP_ADDR"
	EnvJWTSecret         = "JWT_SECRET"
	EnvJWTExpiry         = "JWT_EXPIRY"
	EnvDevicesDir        = "WA_DEVICES_DIR"
	EnvSyncChunkSize     = "SYNC_CHUNK_SIZE"
	EnvSyncConcurrency   = "SYNC_CONCURRENCY"
	EnvSyncPauseEvery    = "SYNC_PAUSE_EVERY"
	EnvSyncPauseMS       = "SYNC_PAUSE_MS"
	EnvLogLevel          = "LOG_LEVEL"
	EnvLogFormat         = "LOG_FORMAT"
	EnvTelegramToken     = "TELEGRAM_BOT_TOKEN"
	EnvTelegramChatID    = "TELEGRAM_REPORT_CHAT_ID"
	EnvAdminEmail        = "ADMIN_EMAIL"
	EnvAdminPassword     = "ADMIN_PASSWORD"
	EnvAdminPhone        = "ADMIN_PHONE"
)

var ErrMissingJWTSecret = errors.New("jwt secret is not configured")

type DatabaseConfig struct {
	URL       string `yaml:"url"`
	AuthToken string `yaml:"auth-token"`
}

type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

type JWTConfig struct {
	Secret string        `yaml:"secret"`
	Expiry time.Duration `yaml:"expiry"`
}

type WhatsAppConfig struct {
	DevicesDir string `yaml:"devices-dir"`
}

type SyncConfig struct {
	ChunkSize   int `yaml:"chunk-size"`
	Concurrency int `yaml:"concurrency"`
	PauseEvery  int `yaml:"pause-every"`
	PauseMS     int `yaml:"pause-ms"`
}

func (s SyncConfig) PauseDuration() time.Duration {
	return time.Duration(s.PauseMS) * time.Millisecond
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type TelegramConfig struct {
	BotToken     string `yaml:"bot-token"`
	ReportChatID int64  `yaml:"report-chat-id"`
}

type AdminConfig struct {
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
	Phone    string `yaml:"phone"`
}

type Config struct {
	Database DatabaseConfig `yaml:"database"`
	HTTP     HTTPConfig     `yaml:"http"`
	JWT      JWTConfig      `yaml:"jwt"`
	WhatsApp WhatsAppConfig `yaml:"whatsapp"`
	Sync     SyncConfig     `yaml:"sync"`
	Log      LogConfig      `yaml:"log"`
	Telegram TelegramConfig `yaml:"telegram"`
	Admin    AdminConfig    `yaml:"admin"`
}

func Defaults() Config {
	return Config{
		HTTP:     HTTPConfig{Addr: ":8080"},
		JWT:      JWTConfig{Expiry: 24 * time.Hour},
		WhatsApp: WhatsAppConfig{DevicesDir: "./devices"},
		Sync:     SyncConfig{ChunkSize: 25, Concurrency: 1, PauseEvery: 100, PauseMS: 200},
		Log:      LogConfig{Level: "info", Format: "json"},
	}
}

// Load resolves configuration from defaults, then .env, then the YAML
// file at CONFIG_PATH (or path), then the environment. An explicitly
// named file must exist; the default ./config.yaml is optional.
func Load(path string) (Config, error) {
	_ = godotenv.Load()

	cfg := Defaults()
	explicit := strings.TrimSpace(path) != "" || strings.TrimSpace(os.Getenv(EnvConfigPath)) != ""
	if strings.TrimSpace(path) == "" {
		path = os.Getenv(EnvConfigPath)
	}
	path = ResolveConfigPath(path)

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config file: %w", err)
		}
	case explicit || !errors.Is(err, os.ErrNotExist):
		return cfg, fmt.Errorf("read config file: %w", err)
	}

	applyEnv(&cfg)
	return cfg, nil
}

// ResolveConfigPath normalizes the config path and applies the default.
func ResolveConfigPath(p string) string {
	trimmed := strings.TrimSpace(p)
	if trimmed == "" {
		trimmed = "./config.yaml"
	}
	if abs, err := filepath.Abs(trimmed); err == nil {
		return abs
	}
	return trimmed
}

func applyEnv(cfg *Config) {
	setString(&cfg.Database.URL, EnvDatabaseURL)
	setString(&cfg.Database.AuthToken, EnvDatabaseAuthToken)
	setString(&cfg.HTTP.Addr, EnvHTTPAddr)
	setString(&cfg.JWT.Secret, EnvJWTSecret)
	if raw := strings.TrimSpace(os.Getenv(EnvJWTExpiry)); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil && d > 0 {
			cfg.JWT.Expiry = d
		}
	}
	setString(&cfg.WhatsApp.DevicesDir, EnvDevicesDir)
	setInt(&cfg.Sync.ChunkSize, EnvSyncChunkSize)
	setInt(&cfg.Sync.Concurrency, EnvSyncConcurrency)
	setInt(&cfg.Sync.PauseEvery, EnvSyncPauseEvery)
	setInt(&cfg.Sync.PauseMS, EnvSyncPauseMS)
	setString(&cfg.Log.Level, EnvLogLevel)
	setString(&cfg.Log.Format, EnvLogFormat)
	setString(&cfg.Telegram.BotToken, EnvTelegramToken)
	if raw := strings.TrimSpace(os.Getenv(EnvTelegramChatID)); raw != "" {
		if id, err := strconv.ParseInt(raw, 10, 64); err == nil {
			cfg.Telegram.ReportChatID = id
		}
	}
	setString(&cfg.Admin.Email, EnvAdminEmail)
	setString(&cfg.Admin.Password, EnvAdminPassword)
	setString(&cfg.Admin.Phone, EnvAdminPhone)
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

// Validate checks what every command needs: a reachable store.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Database.URL) == "" {
		return infrastructure.ErrMissingDatabaseURL
	}
	if infrastructure.RequiresAuthToken(c.Database.URL) && strings.TrimSpace(c.Database.AuthToken) == "" {
		return infrastructure.ErrMissingAuthToken
	}
	if c.Sync.ChunkSize < 0 || c.Sync.Concurrency < 0 || c.Sync.PauseEvery < 0 || c.Sync.PauseMS < 0 {
		return fmt.Errorf("sync settings must not be negative")
	}
	return nil
}

// ValidateServe adds the HTTP requirements to Validate.
func (c Config) ValidateServe() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(c.JWT.Secret) == "" {
		return ErrMissingJWTSecret
	}
	return nil
}
