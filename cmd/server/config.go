package main

import (
	"fmt"
	"time"

	"github.com/crealith/authcore/internal/app/auth"
	authredis "github.com/crealith/authcore/internal/app/auth/repo/redis"
	"github.com/crealith/authcore/internal/app/session"
	session_http "github.com/crealith/authcore/internal/app/session/transport/http"
	"github.com/crealith/authcore/internal/app/user"
	"github.com/crealith/authcore/internal/infrastructure/mail"
	"github.com/crealith/authcore/internal/infrastructure/ratelimit"
	"github.com/crealith/authcore/internal/infrastructure/redisx"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

type config struct {
	Port        string   `mapstructure:"port" json:"port"`
	DatabaseDSN string   `mapstructure:"database_dsn" json:"database_dsn"`
	LogLevel    logLevel `mapstructure:"log_level" json:"log_level"`
	MaxBodySize int64    `mapstructure:"max_body_size" json:"max_body_size"`

	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" json:"shutdown_timeout"`

	Redis     redisx.Config             `mapstructure:"redis" json:"redis"`
	Auth      auth.Config               `mapstructure:"auth" json:"auth"`
	Codec     auth.CodecConfig          `mapstructure:"codec" json:"codec"`
	Lockout   authredis.LockoutConfig   `mapstructure:"lockout" json:"lockout"`
	User      user.Config               `mapstructure:"user" json:"user"`
	Session   session.Config            `mapstructure:"session" json:"session"`
	Cookie    session_http.CookieConfig `mapstructure:"cookie" json:"cookie"`
	Mail      mail.Config               `mapstructure:"mail" json:"mail"`
	RateLimit ratelimit.Config          `mapstructure:"rate_limit" json:"rate_limit"`
}

func loadConfig() config {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("config")
	viper.AddConfigPath(".")

	if err := viper.ReadInConfig(); err != nil {
		panic(fmt.Errorf("fatal error config file: %w", err))
	}

	var cfg config
	if err := viper.Unmarshal(&cfg); err != nil {
		panic(fmt.Errorf("fatal error config file: %w", err))
	}

	return cfg
}

type logLevel string

const (
	logLevelDebug logLevel = "debug"
	logLevelInfo  logLevel = "info"
	logLevelWarn  logLevel = "warn"
	logLevelError logLevel = "error"
)

func (l logLevel) zeroLog() zerolog.Level {
	switch l {
	case logLevelDebug:
		return zerolog.DebugLevel
	case logLevelInfo:
		return zerolog.InfoLevel
	case logLevelWarn:
		return zerolog.WarnLevel
	case logLevelError:
		return zerolog.ErrorLevel

	default:
		return zerolog.InfoLevel
	}
}
