package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

const (
	DefaultConfigPath        = "config.toml"
	DefaultHTTPAddr          = ":8080"
	DefaultJWTExpiresIn      = "24h"
	DefaultPGHost            = "127.0.0.1"
	DefaultPGPort            = 5432
	DefaultPGUser            = "postgres"
	DefaultPGDatabase        = "leadwire"
	DefaultPGSSLMode         = "disable"
	DefaultCompletionBaseURL = "https://api.openai.com/v1"
	DefaultCompletionModel   = "gpt-4o-mini"
	DefaultCompletionTimeout = 30
	DefaultWhatsAppAPIBase   = "https://graph.facebook.com/v19.0"
	DefaultWhatsAppTimeout   = 15
	DefaultKnowledgePath     = "snippets.yaml"
	DefaultDispatchMode      = "workers"
	DefaultDispatchWorkers   = 4
	DefaultDispatchQueue     = 64
	DefaultRedisAddr         = "127.0.0.1:6379"
	DefaultRedisStream       = "leadwire:inbound"
	DefaultRedisGroup        = "leadwire"
	DefaultRedisConsumer     = "leadwire-1"
)

type Config struct {
	BusinessName string           `toml:"business_name"`
	Log          LogConfig        `toml:"log"`
	Server       ServerConfig     `toml:"server"`
	Auth         AuthConfig       `toml:"auth"`
	Postgres     PostgresConfig   `toml:"postgres"`
	Completion   CompletionConfig `toml:"completion"`
	WhatsApp     WhatsAppConfig   `toml:"whatsapp"`
	Knowledge    KnowledgeConfig  `toml:"knowledge"`
	Dispatch     DispatchConfig   `toml:"dispatch"`
	Export       ExportConfig     `toml:"export"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

type ServerConfig struct {
	Addr string `toml:"addr"`
}

type AuthConfig struct {
	JWTSecret    string `toml:"jwt_secret"`
	JWTExpiresIn string `toml:"jwt_expires_in"`
}

type PostgresConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	Database string `toml:"database"`
	SSLMode  string `toml:"sslmode"`
}

// DSN renders the pool connection string.
func (c PostgresConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, c.SSLMode)
}

type CompletionConfig struct {
	BaseURL        string  `toml:"base_url"`
	APIKey         string  `toml:"api_key"`
	Model          string  `toml:"model"`
	MaxTokens      int     `toml:"max_tokens"`
	Temperature    float64 `toml:"temperature"`
	TimeoutSeconds int     `toml:"timeout_seconds"`
}

type WhatsAppConfig struct {
	APIBase        string `toml:"api_base"`
	PhoneNumberID  string `toml:"phone_number_id"`
	AccessToken    string `toml:"access_token"`
	AppSecret      string `toml:"app_secret"`
	VerifyToken    string `toml:"verify_token"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// SendConfigured reports whether outbound delivery credentials are present.
func (c WhatsAppConfig) SendConfigured() bool {
	return c.PhoneNumberID != "" && c.AccessToken != ""
}

type KnowledgeConfig struct {
	Path string `toml:"path"`
}

type DispatchConfig struct {
	Mode      string      `toml:"mode"`
	Workers   int         `toml:"workers"`
	QueueSize int         `toml:"queue_size"`
	Redis     RedisConfig `toml:"redis"`
}

type RedisConfig struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
	Stream   string `toml:"stream"`
	Group    string `toml:"group"`
	Consumer string `toml:"consumer"`
}

type ExportConfig struct {
	Cron      string `toml:"cron"`
	OutputDir string `toml:"output_dir"`
}

func Load(path string) (Config, error) {
	cfg := Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Server: ServerConfig{
			Addr: DefaultHTTPAddr,
		},
		Auth: AuthConfig{
			JWTExpiresIn: DefaultJWTExpiresIn,
		},
		Postgres: PostgresConfig{
			Host:     DefaultPGHost,
			Port:     DefaultPGPort,
			User:     DefaultPGUser,
			Database: DefaultPGDatabase,
			SSLMode:  DefaultPGSSLMode,
		},
		Completion: CompletionConfig{
			BaseURL:        DefaultCompletionBaseURL,
			Model:          DefaultCompletionModel,
			TimeoutSeconds: DefaultCompletionTimeout,
		},
		WhatsApp: WhatsAppConfig{
			APIBase:        DefaultWhatsAppAPIBase,
			TimeoutSeconds: DefaultWhatsAppTimeout,
		},
		Knowledge: KnowledgeConfig{
			Path: DefaultKnowledgePath,
		},
		Dispatch: DispatchConfig{
			Mode:      DefaultDispatchMode,
			Workers:   DefaultDispatchWorkers,
			QueueSize: DefaultDispatchQueue,
			Redis: RedisConfig{
				Addr:     DefaultRedisAddr,
				Stream:   DefaultRedisStream,
				Group:    DefaultRedisGroup,
				Consumer: DefaultRedisConsumer,
			},
		},
	}

	if path == "" {
		path = DefaultConfigPath
	}

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, err
	}

	return cfg, nil
}
