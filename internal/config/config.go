package config

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env"
	"github.com/joho/godotenv"
)

type Config struct {
	EnvFile        string        `env:"ENV_FILE"`
	ServerAddr     string        `env:"RUN_ADDRESS"`
	LogLevel       string        `env:"LOG_LEVEL"`
	LogFormat      string        `env:"LOG_FORMAT"`
	DatabaseURI    string        `env:"DATABASE_URI"`
	JWTSecretKey   string        `env:"JWT_SECRET_KEY"`
	SessionTTL     time.Duration `env:"SESSION_TTL"`
	UploadDir      string        `env:"UPLOAD_DIR"`
	UploadMaxBytes int           `env:"UPLOAD_MAX_BYTES"`
	LoanRate       string        `env:"LOAN_INTEREST_RATE"`

	NotifyDriver       string        `env:"NOTIFY_DRIVER"`
	NotifyWebhookURL   string        `env:"NOTIFY_WEBHOOK_URL"`
	NotifyKafkaBrokers string        `env:"NOTIFY_KAFKA_BROKERS"`
	NotifyKafkaTopic   string        `env:"NOTIFY_KAFKA_TOPIC"`
	NotifyWorkers      int           `env:"NOTIFY_WORKERS"`
	NotifyTimeout      time.Duration `env:"NOTIFY_TIMEOUT"`

	AdminEmail    string `env:"ADMIN_EMAIL"`
	AdminPhone    string `env:"ADMIN_PHONE"`
	AdminPassword string `env:"ADMIN_PASSWORD"`
}

func NewConfig() (Config, error) {
	return parse(flag.CommandLine, os.Args[1:])
}

func parse(fs *flag.FlagSet, args []string) (Config, error) {
	cfg := Config{}

	fs.StringVar(&cfg.EnvFile, "e", "", "dotenv file loaded before reading the environment [env:ENV_FILE]")
	fs.StringVar(&cfg.ServerAddr, "a", "0.0.0.0:8080", "server listening address [env:RUN_ADDRESS]")
	fs.StringVar(&cfg.LogLevel, "l", "info", "log output level [env:LOG_LEVEL]")
	fs.StringVar(&cfg.LogFormat, "f", "json", "log output format, json or text [env:LOG_FORMAT]")
	fs.StringVar(&cfg.DatabaseURI, "d", "", "database connection string, in-memory storage when empty [env:DATABASE_URI]")
	fs.StringVar(&cfg.JWTSecretKey, "s", "secretkey", "JWT secret to sign session tokens [env:JWT_SECRET_KEY]")
	fs.DurationVar(&cfg.SessionTTL, "session-ttl", 7*24*time.Hour, "session lifetime [env:SESSION_TTL]")
	fs.StringVar(&cfg.UploadDir, "upload-dir", "uploads", "directory for uploaded documents [env:UPLOAD_DIR]")
	fs.IntVar(&cfg.UploadMaxBytes, "upload-max-bytes", 5<<20, "maximum size of an uploaded file [env:UPLOAD_MAX_BYTES]")
	fs.StringVar(&cfg.LoanRate, "loan-rate", "15", "annual loan interest rate used until one is stored [env:LOAN_INTEREST_RATE]")

	fs.StringVar(&cfg.NotifyDriver, "notify", "log", "notification driver: log, webhook or kafka [env:NOTIFY_DRIVER]")
	fs.StringVar(&cfg.NotifyWebhookURL, "notify-webhook-url", "", "webhook notification endpoint [env:NOTIFY_WEBHOOK_URL]")
	fs.StringVar(&cfg.NotifyKafkaBrokers, "notify-kafka-brokers", "localhost:9092", "comma separated kafka brokers [env:NOTIFY_KAFKA_BROKERS]")
	fs.StringVar(&cfg.NotifyKafkaTopic, "notify-kafka-topic", "notifications", "kafka notification topic [env:NOTIFY_KAFKA_TOPIC]")
	fs.IntVar(&cfg.NotifyWorkers, "notify-workers", 2, "notification dispatch workers [env:NOTIFY_WORKERS]")
	fs.DurationVar(&cfg.NotifyTimeout, "notify-timeout", 10*time.Second, "timeout of a single notification delivery [env:NOTIFY_TIMEOUT]")

	fs.StringVar(&cfg.AdminEmail, "admin-email", "", "email of the bootstrap admin account [env:ADMIN_EMAIL]")
	fs.StringVar(&cfg.AdminPhone, "admin-phone", "", "phone of the bootstrap admin account [env:ADMIN_PHONE]")
	fs.StringVar(&cfg.AdminPassword, "admin-password", "", "password of the bootstrap admin account [env:ADMIN_PASSWORD]")

	if err := fs.Parse(args); err != nil {
		return cfg, fmt.Errorf("flag.Parse: %w", err)
	}

	envFile := cfg.EnvFile
	if v, ok := os.LookupEnv("ENV_FILE"); ok {
		envFile = v
	}

	// Variables already present in the environment win over the file.
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return cfg, fmt.Errorf("godotenv.Load: %w", err)
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("env.Parse: %w", err)
	}

	return cfg, nil
}
