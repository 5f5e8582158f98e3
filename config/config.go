package config

import (
	"context"
	"log/slog"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

type Config struct {
	Port               string            `mapstructure:"PORT" validate:"required"`
	InternalAuthHeader string            `mapstructure:"INTERNAL_AUTH_HEADER" validate:"required"`
	Db                 DbConfig          `mapstructure:",squash"`
	Jwt                JwtConfig         `mapstructure:",squash"`
	Nats               NatsConfig        `mapstructure:",squash"`
	Reservation        ReservationConfig `mapstructure:",squash"`
}

type DbConfig struct {
	Host     string `mapstructure:"DB_HOST" validate:"required"`
	Port     string `mapstructure:"DB_PORT" validate:"required"`
	Username string `mapstructure:"DB_USERNAME" validate:"required"`
	Password string `mapstructure:"DB_PASSWORD" validate:"required"`
	DbName   string `mapstructure:"DB_DBNAME" validate:"required"`
	SSLMode  string `mapstructure:"DB_SSLMODE"`
}

type JwtConfig struct {
	SecretKey string `mapstructure:"JWT_SECRETKEY" validate:"required"`
}

type NatsConfig struct {
	Url        string `mapstructure:"NATS_URL" validate:"required"`
	StreamName string `mapstructure:"NATS_STREAM_NAME" validate:"required"`
}

type ReservationConfig struct {
	// Default TTL in minutes for new reservations when the caller does not
	// pass expiration_minutes.
	TTLMinutes int64 `mapstructure:"RESERVATION_TTL_MINUTES" validate:"required,gt=0"`
}

func InitConfig(ctx context.Context) (*Config, error) {
	var cfg Config

	viper.Reset()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.SetConfigType("env")

	envFile := os.Getenv("ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}

	_, err := os.Stat(envFile)
	if !os.IsNotExist(err) {
		viper.SetConfigFile(envFile)

		if err := viper.ReadInConfig(); err != nil {
			slog.WarnContext(ctx, "[InitConfig] ReadInConfig warning, continuing with env vars only", "error", err)
		} else {
			slog.InfoContext(ctx, "[InitConfig] Successfully loaded config file", "file", envFile)
		}
	} else {
		slog.InfoContext(ctx, "[InitConfig] No config file found, using environment variables")
	}

	viper.AutomaticEnv()

	viper.SetDefault("RESERVATION_TTL_MINUTES", 30)

	envVars := []string{
		"PORT",
		"DB_HOST",
		"DB_PORT",
		"DB_USERNAME",
		"DB_PASSWORD",
		"DB_DBNAME",
		"DB_SSLMODE",
		"JWT_SECRETKEY",
		"INTERNAL_AUTH_HEADER",
		"NATS_URL",
		"NATS_STREAM_NAME",
		"RESERVATION_TTL_MINUTES",
	}

	// Bind environment variables explicitly to ensure they're mapped correctly
	for _, key := range envVars {
		viper.BindEnv(key)
	}

	if err := viper.Unmarshal(&cfg); err != nil {
		slog.ErrorContext(ctx, "[InitConfig] Unmarshal", "failed bind config", err)
		return nil, err
	}

	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		validationErrs, ok := err.(validator.ValidationErrors)
		if ok {
			for _, validationErr := range validationErrs {
				slog.ErrorContext(ctx, "[InitConfig] Validation error",
					"field", validationErr.Field(),
					"namespace", validationErr.Namespace(),
					"tag", validationErr.Tag())
			}
		} else {
			slog.ErrorContext(ctx, "[InitConfig] Validation", "error", err)
		}
		return nil, err
	}

	slog.InfoContext(ctx, "[InitConfig] Config loaded successfully",
		"PORT", cfg.Port,
		"DB_HOST", cfg.Db.Host,
		"DB_DBNAME", cfg.Db.DbName,
		"NATS_STREAM_NAME", cfg.Nats.StreamName,
		"RESERVATION_TTL_MINUTES", cfg.Reservation.TTLMinutes)
	return &cfg, nil
}
