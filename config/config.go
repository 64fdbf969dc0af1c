package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type RedisConfig struct {
	Enabled  bool   `json:"enabled"`
	Address  string `json:"address"`
	Password string `json:"-"`
	DB       int    `json:"db"`
}

type SMTPConfig struct {
	Host      string `json:"host"`
	Port      int    `json:"port"`
	Username  string `json:"username"`
	Password  string `json:"-"`
	FromName  string `json:"from_name"`
	FromEmail string `json:"from_email"`
}

type IMAPConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"-"`
	Mailbox  string `json:"mailbox"`
}

type OpenAIConfig struct {
	APIKey      string `json:"-"`
	Model       string `json:"model"`
	AssistantID string `json:"assistant_id"`
	FileID      string `json:"file_id"`
}

// DripConfig holds the stage wait intervals. Each wait is measured from
// the previous stage's send timestamp, not from the first email.
type DripConfig struct {
	Drip1Wait time.Duration `json:"drip1_wait"`
	Drip2Wait time.Duration `json:"drip2_wait"`
	Drip3Wait time.Duration `json:"drip3_wait"`
}

type Config struct {
	Environment    string         `json:"environment"`
	ServerPort     string         `json:"server_port"`
	DBHost         string         `json:"db_host"`
	DBPort         string         `json:"db_port"`
	DBUser         string         `json:"db_user"`
	DBPassword     string         `json:"-"`
	DBName         string         `json:"db_name"`
	DBSSLMode      string         `json:"db_ssl_mode"`
	DBMaxIdleConns int            `json:"db_max_idle_conns"`
	DBMaxOpenConns int            `json:"db_max_open_conns"`
	SentryDSN      string         `json:"-"`
	Redis          RedisConfig    `json:"redis"`
	SMTP           SMTPConfig     `json:"smtp"`
	IMAP           IMAPConfig     `json:"imap"`
	OpenAI         OpenAIConfig   `json:"openai"`
	Drip           DripConfig     `json:"drip"`
	BookingURL     string         `json:"booking_url"`
	DailySendLimit int            `json:"daily_send_limit"`
	ReplyLookback  time.Duration  `json:"reply_lookback"`
	Sender         SenderIdentity `json:"sender"`
}

// SenderIdentity is the persona outbound emails are written as.
type SenderIdentity struct {
	Name    string `json:"name"`
	Title   string `json:"title"`
	Company string `json:"company"`
}

func init() {
	// Try to load .env file, but don't fail if it doesn't exist
	_ = godotenv.Load()
}

func Load() (*Config, error) {
	cfg := &Config{
		Environment:    getEnv("ENVIRONMENT", "development"),
		ServerPort:     getEnv("SERVER_PORT", "5000"),
		DBHost:         getEnv("DB_HOST", "localhost"),
		DBPort:         getEnv("DB_PORT", "5432"),
		DBUser:         getEnv("DB_USER", "postgres"),
		DBPassword:     getEnv("DB_PASSWORD", ""),
		DBName:         getEnv("DB_NAME", "dripcast"),
		DBSSLMode:      getEnv("DB_SSL_MODE", "disable"),
		DBMaxIdleConns: getEnvAsInt("DB_MAX_IDLE_CONNS", 10),
		DBMaxOpenConns: getEnvAsInt("DB_MAX_OPEN_CONNS", 100),
		SentryDSN:      getEnv("SENTRY_DSN", ""),
		Redis: RedisConfig{
			Enabled:  getEnv("REDIS_ADDRESS", "") != "",
			Address:  getEnv("REDIS_ADDRESS", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		SMTP: SMTPConfig{
			Host:      getEnv("SMTP_HOST", "smtp.gmail.com"),
			Port:      getEnvAsInt("SMTP_PORT", 587),
			Username:  getEnv("SMTP_USERNAME", ""),
			Password:  getEnv("SMTP_PASSWORD", ""),
			FromName:  getEnv("SMTP_FROM_NAME", ""),
			FromEmail: getEnv("SMTP_FROM_EMAIL", ""),
		},
		IMAP: IMAPConfig{
			Host:     getEnv("IMAP_HOST", "imap.gmail.com"),
			Port:     getEnvAsInt("IMAP_PORT", 993),
			Username: getEnv("IMAP_USERNAME", ""),
			Password: getEnv("IMAP_PASSWORD", ""),
			Mailbox:  getEnv("IMAP_MAILBOX", "INBOX"),
		},
		OpenAI: OpenAIConfig{
			APIKey:      getEnv("OPENAI_API_KEY", ""),
			Model:       getEnv("OPENAI_MODEL", "gpt-4o-mini"),
			AssistantID: getEnv("OPENAI_ASSISTANT_ID", ""),
			FileID:      getEnv("OPENAI_FILE_ID", ""),
		},
		Drip: DripConfig{
			Drip1Wait: time.Duration(getEnvAsInt("DRIP1_WAIT_DAYS", 7)) * 24 * time.Hour,
			Drip2Wait: time.Duration(getEnvAsInt("DRIP2_WAIT_DAYS", 14)) * 24 * time.Hour,
			Drip3Wait: time.Duration(getEnvAsInt("DRIP3_WAIT_DAYS", 30)) * 24 * time.Hour,
		},
		BookingURL:     getEnv("BOOKING_URL", ""),
		DailySendLimit: getEnvAsInt("DAILY_SEND_LIMIT", 500),
		ReplyLookback:  time.Duration(getEnvAsInt("REPLY_LOOKBACK_HOURS", 24)) * time.Hour,
		Sender: SenderIdentity{
			Name:    getEnv("SENDER_NAME", ""),
			Title:   getEnv("SENDER_TITLE", "Chief Strategist"),
			Company: getEnv("SENDER_COMPANY", ""),
		},
	}

	// Validate required configurations
	if cfg.DBPassword == "" {
		return nil, fmt.Errorf("DB_PASSWORD is required")
	}
	if cfg.SMTP.Username == "" || cfg.SMTP.Password == "" {
		return nil, fmt.Errorf("SMTP_USERNAME and SMTP_PASSWORD are required")
	}
	if cfg.OpenAI.APIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is required for content generation")
	}
	if cfg.SMTP.FromEmail == "" {
		cfg.SMTP.FromEmail = cfg.SMTP.Username
	}
	if cfg.IMAP.Username == "" {
		cfg.IMAP.Username = cfg.SMTP.Username
	}
	if cfg.IMAP.Password == "" {
		cfg.IMAP.Password = cfg.SMTP.Password
	}

	return cfg, nil
}

func ConnectDB(cfg *Config) (*gorm.DB, error) {
	log.Println("Attempting to connect to database...")

	dsn := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.DBHost,
		cfg.DBPort,
		cfg.DBUser,
		cfg.DBPassword,
		cfg.DBName,
		cfg.DBSSLMode,
	)
	log.Println("Using connection string:", maskPassword(dsn))

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get DB instance: %w", err)
	}

	sqlDB.SetMaxIdleConns(cfg.DBMaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.DBMaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Hour)
	sqlDB.SetConnMaxIdleTime(30 * time.Minute)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("database ping failed: %w", err)
	}

	log.Println("✅ Successfully connected to the database")
	return db, nil
}

// Helper functions
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	var value int
	_, err := fmt.Sscanf(valueStr, "%d", &value)
	if err != nil {
		return fallback
	}
	return value
}

func maskPassword(dsn string) string {
	const passwordMarker = "password="
	startIdx := strings.Index(dsn, passwordMarker)
	if startIdx == -1 {
		return dsn
	}
	startIdx += len(passwordMarker)
	endIdx := strings.Index(dsn[startIdx:], " ")
	if endIdx == -1 {
		endIdx = len(dsn)
	} else {
		endIdx += startIdx
	}
	return dsn[:startIdx] + "*****" + dsn[endIdx:]
}
