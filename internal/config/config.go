package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	json "github.com/goccy/go-json"
	"github.com/joho/godotenv"

	"github.com/avdushin/minuet-bot/internal/model"
)

// Config — вся конфигурация процесса. Заполняется один раз при старте,
// дальше передаётся в компоненты и не меняется.
type Config struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required,min=1"`

	TelegramToken    string `validate:"required"`
	TelegramChatID   string `validate:"required"`
	TelegramThreadID int

	APIBaseURL     string `validate:"required,url"`
	BookingURLBase string `validate:"required,url"`

	CheckInterval time.Duration
	Targets       []model.Target `validate:"required,min=1,dive"`

	DateFrom time.Time
	DateTo   time.Time

	MetricsAddr string
	Environment string
}

const (
	defaultAPIBaseURL     = "https://edu.automiet.ru/api/v1"
	defaultBookingURLBase = "https://edu.automiet.ru/cars"
	defaultCheckInterval  = 120 * time.Second
)

// Load читает .env (если есть) и переменные окружения, применяет дефолты
// и валидирует результат. Ядро стартует только с валидным конфигом.
func Load() (*Config, error) {
	if err := godotenv.Load(".env"); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := &Config{
		Email:          os.Getenv("EMAIL"),
		Password:       os.Getenv("PASSWORD"),
		TelegramToken:  os.Getenv("TELEGRAM_BOT_TOKEN"),
		TelegramChatID: os.Getenv("TELEGRAM_CHAT_ID"),
		APIBaseURL:     os.Getenv("API_BASE_URL"),
		BookingURLBase: os.Getenv("BOOKING_URL_BASE"),
		MetricsAddr:    os.Getenv("METRICS_ADDR"),
		Environment:    os.Getenv("ENV"),
		CheckInterval:  defaultCheckInterval,
	}

	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = defaultAPIBaseURL
	}
	if cfg.BookingURLBase == "" {
		cfg.BookingURLBase = defaultBookingURLBase
	}
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}

	if raw := os.Getenv("TELEGRAM_MESSAGE_THREAD_ID"); raw != "" {
		threadID, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("parse TELEGRAM_MESSAGE_THREAD_ID: %w", err)
		}
		cfg.TelegramThreadID = threadID
	}

	if raw := os.Getenv("CHECK_INTERVAL_SECONDS"); raw != "" {
		seconds, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("parse CHECK_INTERVAL_SECONDS: %w", err)
		}
		if seconds <= 0 {
			return nil, fmt.Errorf("CHECK_INTERVAL_SECONDS must be positive, got %d", seconds)
		}
		cfg.CheckInterval = time.Duration(seconds) * time.Second
	}

	if raw := os.Getenv("TARGETS"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &cfg.Targets); err != nil {
			return nil, fmt.Errorf("parse TARGETS: %w", err)
		}
	}

	var err error
	cfg.DateFrom, err = parseDate(os.Getenv("DATE_FROM"))
	if err != nil {
		return nil, fmt.Errorf("parse DATE_FROM: %w", err)
	}
	cfg.DateTo, err = parseDate(os.Getenv("DATE_TO"))
	if err != nil {
		return nil, fmt.Errorf("parse DATE_TO: %w", err)
	}
	if cfg.DateTo.Before(cfg.DateFrom) {
		return nil, fmt.Errorf("DATE_TO %s is before DATE_FROM %s",
			cfg.DateTo.Format("2006-01-02"), cfg.DateFrom.Format("2006-01-02"))
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

func parseDate(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, fmt.Errorf("value is required")
	}
	return time.Parse("2006-01-02", raw)
}
