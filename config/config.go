package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// Config хранит все конфигурационные параметры приложения.
type Config struct {
	DatabaseURL    string
	DBMaxOpenConns int
	JWTSecretKey   string
	ServerPort     int
	LiveStore      string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	R2AccountID       string
	R2AccessKeyID     string
	R2SecretAccessKey string
	R2BucketName      string
	R2PublicBaseURL   string

	AMQPURL      string
	AMQPExchange string

	MQTTBroker   string
	MQTTUsername string
	MQTTPassword string
	MQTTTopic    string

	CORSAllowedOrigins []string

	Live LiveConfig
}

// LiveConfig - настройки движка живых матчей (опциональный YAML-файл LIVE_CONFIG_FILE).
type LiveConfig struct {
	MinuteTolerance           int             `yaml:"minute_tolerance"`
	MaxMinute                 int             `yaml:"max_minute"`
	SessionIdleTimeout        time.Duration   `yaml:"session_idle_timeout"`
	MatchIdleTimeout          time.Duration   `yaml:"match_idle_timeout"`
	TickInterval              time.Duration   `yaml:"tick_interval"`
	HousekeepingInterval      time.Duration   `yaml:"housekeeping_interval"`
	CoachSubstitutionRequests bool            `yaml:"coach_substitution_requests"`
	SendBufferSize            int             `yaml:"send_buffer_size"`
	Fixtures                  []FixtureConfig `yaml:"fixtures"`
	Rosters                   map[int][]int   `yaml:"rosters"`
}

// FixtureConfig описывает матч для режима LIVE_STORE=memory (без базы данных).
type FixtureConfig struct {
	MatchID      int `yaml:"match_id"`
	TournamentID int `yaml:"tournament_id"`
	HomeTeamID   int `yaml:"home_team_id"`
	AwayTeamID   int `yaml:"away_team_id"`
}

func DefaultLiveConfig() LiveConfig {
	return LiveConfig{
		MinuteTolerance:           2,
		MaxMinute:                 130,
		SessionIdleTimeout:        10 * time.Minute,
		MatchIdleTimeout:          15 * time.Minute,
		TickInterval:              time.Second,
		HousekeepingInterval:      5 * time.Second,
		CoachSubstitutionRequests: true,
		SendBufferSize:            256,
	}
}

// Load загружает конфигурацию из переменных окружения.
// Опционально подгружает .env файл (полезно для локальной разработки).
func Load() (*Config, error) {
	// Загружаем .env файл, если он есть. Ошибку не считаем фатальной.
	_ = godotenv.Load()

	cfg := &Config{
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		JWTSecretKey:      os.Getenv("JWT_SECRET_KEY"),
		LiveStore:         strings.ToLower(os.Getenv("LIVE_STORE")),
		RedisAddr:         os.Getenv("REDIS_ADDR"),
		RedisPassword:     os.Getenv("REDIS_PASSWORD"),
		R2AccountID:       os.Getenv("R2_ACCOUNT_ID"),
		R2AccessKeyID:     os.Getenv("R2_ACCESS_KEY_ID"),
		R2SecretAccessKey: os.Getenv("R2_SECRET_ACCESS_KEY"),
		R2BucketName:      os.Getenv("R2_BUCKET_NAME"),
		R2PublicBaseURL:   os.Getenv("R2_PUBLIC_BASE_URL"),
		AMQPURL:           os.Getenv("AMQP_URL"),
		AMQPExchange:      os.Getenv("AMQP_EXCHANGE"),
		MQTTBroker:        os.Getenv("MQTT_BROKER"),
		MQTTUsername:      os.Getenv("MQTT_USERNAME"),
		MQTTPassword:      os.Getenv("MQTT_PASSWORD"),
		MQTTTopic:         os.Getenv("MQTT_TOPIC"),
		Live:              DefaultLiveConfig(),
	}

	if cfg.LiveStore == "" {
		cfg.LiveStore = StorePostgres
	}
	if cfg.LiveStore != StorePostgres && cfg.LiveStore != StoreMemory {
		return nil, fmt.Errorf("LIVE_STORE must be %q or %q, got %q", StorePostgres, StoreMemory, cfg.LiveStore)
	}
	if cfg.DatabaseURL == "" && cfg.LiveStore == StorePostgres {
		return nil, fmt.Errorf("DATABASE_URL environment variable is not set")
	}
	if cfg.JWTSecretKey == "" {
		return nil, fmt.Errorf("JWT_SECRET_KEY environment variable is not set")
	}

	portStr := os.Getenv("SERVER_PORT")
	if portStr == "" {
		portStr = "8080" // Порт по умолчанию
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_PORT environment variable: %w", err)
	}
	if port <= 0 || port > 65535 {
		return nil, fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", port)
	}
	cfg.ServerPort = port

	cfg.DBMaxOpenConns = 25
	if connsStr := os.Getenv("DB_MAX_OPEN_CONNS"); connsStr != "" {
		cfg.DBMaxOpenConns, err = strconv.Atoi(connsStr)
		if err != nil || cfg.DBMaxOpenConns <= 0 {
			return nil, fmt.Errorf("DB_MAX_OPEN_CONNS must be a positive integer, got %q", connsStr)
		}
	}

	if dbStr := os.Getenv("REDIS_DB"); dbStr != "" {
		cfg.RedisDB, err = strconv.Atoi(dbStr)
		if err != nil {
			return nil, fmt.Errorf("invalid REDIS_DB environment variable: %w", err)
		}
	}
	if cfg.AMQPExchange == "" {
		cfg.AMQPExchange = "live.match.events"
	}
	if cfg.MQTTTopic == "" {
		cfg.MQTTTopic = "live/matches/+/tracking"
	}

	cfg.CORSAllowedOrigins = []string{"*"}
	if origins := os.Getenv("CORS_ALLOWED_ORIGINS"); origins != "" {
		cfg.CORSAllowedOrigins = cfg.CORSAllowedOrigins[:0]
		for _, o := range strings.Split(origins, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.CORSAllowedOrigins = append(cfg.CORSAllowedOrigins, o)
			}
		}
	}

	if path := os.Getenv("LIVE_CONFIG_FILE"); path != "" {
		if err := loadLiveConfig(path, &cfg.Live); err != nil {
			return nil, err
		}
	}
	if err := cfg.Live.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func loadLiveConfig(path string, live *LiveConfig) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read live config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, live); err != nil {
		return fmt.Errorf("failed to parse live config %s: %w", path, err)
	}
	return nil
}

func (l LiveConfig) validate() error {
	if l.MaxMinute <= 0 {
		return fmt.Errorf("max_minute must be positive, got %d", l.MaxMinute)
	}
	if l.MinuteTolerance < 0 {
		return fmt.Errorf("minute_tolerance must not be negative, got %d", l.MinuteTolerance)
	}
	for name, d := range map[string]time.Duration{
		"session_idle_timeout":  l.SessionIdleTimeout,
		"match_idle_timeout":    l.MatchIdleTimeout,
		"tick_interval":         l.TickInterval,
		"housekeeping_interval": l.HousekeepingInterval,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", name, d)
		}
	}
	if l.SendBufferSize <= 0 {
		return fmt.Errorf("send_buffer_size must be positive, got %d", l.SendBufferSize)
	}
	for _, f := range l.Fixtures {
		if f.MatchID <= 0 || f.HomeTeamID <= 0 || f.AwayTeamID <= 0 || f.HomeTeamID == f.AwayTeamID {
			return fmt.Errorf("fixture %d: match and two distinct teams are required", f.MatchID)
		}
	}
	return nil
}
