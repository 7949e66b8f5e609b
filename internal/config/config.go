package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

type AppConfig struct {
	Addr           string
	AllowedOrigins []string

	RedisURL   string
	JournalTTL time.Duration

	DatabaseURL string

	ResultWebhookURL string

	MsgOverrideDir string

	SendQueueSize    int
	PingInterval     time.Duration
	DisplayNameLimit int
}

func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		Addr:             ":5000",
		JournalTTL:       24 * time.Hour,
		SendQueueSize:    64,
		PingInterval:     15 * time.Second,
		DisplayNameLimit: 24,
	}

	if v := strings.TrimSpace(os.Getenv("PORT")); v != "" {
		cfg.Addr = ":" + strings.TrimPrefix(v, ":")
	}
	if v, ok := os.LookupEnv("RELAY_ADDR"); ok {
		cfg.Addr = strings.TrimSpace(v)
	}

	if v := strings.TrimSpace(os.Getenv("ALLOWED_ORIGINS")); v != "" {
		for _, p := range strings.Split(v, ",") {
			s := strings.TrimSpace(p)
			if s != "" {
				cfg.AllowedOrigins = append(cfg.AllowedOrigins, s)
			}
		}
	}

	cfg.RedisURL = strings.TrimSpace(os.Getenv("REDIS_URL"))
	cfg.DatabaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	cfg.ResultWebhookURL = strings.TrimSpace(os.Getenv("RESULT_WEBHOOK_URL"))
	cfg.MsgOverrideDir = strings.TrimSpace(os.Getenv("MSG_OVERRIDE_DIR"))

	if n, ok := positiveInt("JOURNAL_TTL_SEC"); ok {
		cfg.JournalTTL = time.Duration(n) * time.Second
	}
	if n, ok := positiveInt("SEND_QUEUE_SIZE"); ok {
		cfg.SendQueueSize = n
	}
	if n, ok := positiveInt("PING_INTERVAL_SEC"); ok {
		cfg.PingInterval = time.Duration(n) * time.Second
	}
	if n, ok := positiveInt("DISPLAY_NAME_LIMIT"); ok {
		cfg.DisplayNameLimit = n
	}

	if cfg.Addr == "" {
		return nil, errors.New("RELAY_ADDR must not be empty")
	}
	return cfg, nil
}

func positiveInt(key string) (int, bool) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}
