package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds application level configuration loaded from environment variables.
type Config struct {
	ServerPort    string        `env:"SERVER_PORT" envDefault:"8080"`
	MySQLDSN      string        `env:"MYSQL_DSN" envDefault:"user:password@tcp(localhost:3306)/imagevault?charset=utf8mb4&parseTime=True&loc=UTC"`
	ResetDB       bool          `env:"RESET_DB"`
	RedisAddr     string        `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisDB       int           `env:"REDIS_DB" envDefault:"0"`
	RedisPass     string        `env:"REDIS_PASSWORD"`
	JWTSecret     string        `env:"JWT_SECRET" envDefault:"change-me"`
	JWTTTL        time.Duration `env:"JWT_TTL" envDefault:"1h"`
	SwaggerHost   string        `env:"SWAGGER_HOST"`
	ResetLinkBase string        `env:"RESET_LINK_BASE" envDefault:"http://localhost:8080"`
	LogFormat     string        `env:"LOG_FORMAT" envDefault:"json"`
	LogLevel      string        `env:"LOG_LEVEL" envDefault:"info"`

	Storage StorageConfig
	SMTP    SMTPConfig
}

// StorageConfig selects where image payloads live.
type StorageConfig struct {
	Driver     string `env:"STORAGE_DRIVER" envDefault:"inline"`
	S3Bucket   string `env:"S3_BUCKET" envDefault:"images"`
	S3Region   string `env:"S3_REGION" envDefault:"us-east-1"`
	S3Endpoint string `env:"S3_ENDPOINT"`
	S3User     string `env:"S3_ACCESS_KEY"`
	S3Password string `env:"S3_SECRET_KEY"`
}

// SMTPConfig configures password reset mail. An empty Host logs reset links instead.
type SMTPConfig struct {
	Host     string `env:"SMTP_HOST"`
	Port     int    `env:"SMTP_PORT" envDefault:"587"`
	Username string `env:"SMTP_USERNAME"`
	Password string `env:"SMTP_PASSWORD"`
	From     string `env:"SMTP_FROM" envDefault:"project.passreset@gmail.com"`
}

// Load builds Config from environment with sensible defaults.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if cfg.Storage.Driver != "inline" && cfg.Storage.Driver != "s3" {
		return nil, fmt.Errorf("unknown STORAGE_DRIVER %q", cfg.Storage.Driver)
	}
	return cfg, nil
}
