package config

import (
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Database    DatabaseConfig
	Supabase    SupabaseConfig
	Messaging   MessagingConfig
	RateLimit   RateLimitConfig
	LogLevel    string
	GinMode     string
	DemoMode    bool
	AutoMigrate bool
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type SupabaseConfig struct {
	URL            string
	AnonKey        string
	ServiceRoleKey string
	JWTSecret      string
}

// MessagingConfig tunes the chat screens. The defaults match what the mobile
// client used: 50 rows per page, 100 rows per conversation load and a
// half-second recheck after a send.
type MessagingConfig struct {
	PageSize        int
	LoadLimit       int
	RecheckDelay    time.Duration
	DisplayTimeZone string
	ComplaintLimit  int
}

type RateLimitConfig struct {
	SendRPS   float64
	SendBurst int
}

func New() *Config {
	return &Config{
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME", "postgres"),
			SSLMode:  getEnv("DB_SSLMODE", "require"),
		},
		Supabase: SupabaseConfig{
			URL:            strings.TrimRight(getEnv("SUPABASE_URL", ""), "/"),
			AnonKey:        getEnv("SUPABASE_ANON_KEY", ""),
			ServiceRoleKey: getEnv("SUPABASE_SERVICE_ROLE_KEY", ""),
			JWTSecret:      getEnv("SUPABASE_JWT_SECRET", ""),
		},
		Messaging: MessagingConfig{
			PageSize:        getEnvInt("MESSAGES_PAGE_SIZE", 50),
			LoadLimit:       getEnvInt("MESSAGES_LOAD_LIMIT", 100),
			RecheckDelay:    getEnvDuration("MESSAGES_RECHECK_DELAY", 500*time.Millisecond),
			DisplayTimeZone: getEnv("DISPLAY_TIMEZONE", "Europe/Istanbul"),
			ComplaintLimit:  getEnvInt("DASHBOARD_COMPLAINT_LIMIT", 10),
		},
		RateLimit: RateLimitConfig{
			SendRPS:   getEnvFloat("SEND_RATE_RPS", 2),
			SendBurst: getEnvInt("SEND_RATE_BURST", 5),
		},
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		GinMode:     getEnv("GIN_MODE", "debug"),
		DemoMode:    getEnvBool("DEMO_MODE", false),
		AutoMigrate: getEnvBool("DB_AUTO_MIGRATE", false),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil && v > 0 {
		return v
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if v, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil && v > 0 {
		return v
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if v, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return v
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if v, err := time.ParseDuration(os.Getenv(key)); err == nil && v >= 0 {
		return v
	}
	return defaultValue
}

func (c *Config) GetDatabaseURL() string {
	return c.buildDatabaseURL()
}

func (c *Config) buildDatabaseURL() string {
	var sb strings.Builder

	sb.WriteString("postgres://")
	sb.WriteString(url.QueryEscape(c.Database.User))
	if c.Database.Password != "" {
		sb.WriteString(":")
		sb.WriteString(url.QueryEscape(c.Database.Password))
	}
	sb.WriteString("@")
	sb.WriteString(c.Database.Host)
	sb.WriteString(":")
	sb.WriteString(c.Database.Port)
	sb.WriteString("/")
	sb.WriteString(c.Database.DBName)

	if c.Database.SSLMode != "" {
		sb.WriteString("?sslmode=")
		sb.WriteString(c.Database.SSLMode)
	}

	return sb.String()
}

func (c *Config) GetCORSOrigins() []string {
	origins := getEnv("CORS_ORIGINS", "http://localhost:8081")
	return strings.Split(origins, ",")
}

// DisplayLocation resolves the zone used for bubble timestamps, falling back
// to UTC when the zone database does not know the name.
func (c *Config) DisplayLocation() *time.Location {
	loc, err := time.LoadLocation(c.Messaging.DisplayTimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}
