package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Auth     AuthConfig
	Booking  BookingConfig
	Realtime RealtimeConfig
	QR       QRConfig
	LogLevel string
}

type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	CORSOrigins     []string
}

type DatabaseConfig struct {
	DSN           string
	MaxOpenConns  int
	MaxIdleConns  int
	MaxLifetime   time.Duration
	ConnectTries  int
	MigrationsDir string
	AutoMigrate   bool
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Enabled  bool
}

type KafkaConfig struct {
	Brokers []string
	Enabled bool
	Topics  TopicConfig
}

type TopicConfig struct {
	TicketBooked    string
	TicketCancelled string
	EventDeleted    string
	MessageSent     string
}

type AuthConfig struct {
	OIDCIssuer       string
	JWTSecret        string
	AdminEmail       string
	IdentityCacheTTL time.Duration
}

type BookingConfig struct {
	MaxRetries int
}

type RealtimeConfig struct {
	SendBuffer   int
	PingInterval time.Duration
	WriteTimeout time.Duration
}

type QRConfig struct {
	SecretKey string
}

func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            getEnv("PORT", ":5000"),
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT_SECONDS", 5*time.Second),
			CORSOrigins:     getEnvList("CORS_ORIGINS", []string{"http://localhost:3000", "http://localhost:5173"}),
		},
		Database: DatabaseConfig{
			DSN:           getEnv("POSTGRES_DSN", ""),
			MaxOpenConns:  getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:  getEnvInt("DB_MAX_IDLE_CONNS", 25),
			MaxLifetime:   time.Duration(getEnvInt("DB_MAX_LIFETIME_MINUTES", 5)) * time.Minute,
			ConnectTries:  getEnvInt("DB_CONNECT_TRIES", 5),
			MigrationsDir: getEnv("MIGRATIONS_DIR", "./migrations"),
			AutoMigrate:   getEnvBool("AUTO_MIGRATE", true),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			Enabled:  getEnvBool("REDIS_ENABLED", true),
		},
		Kafka: KafkaConfig{
			Brokers: getEnvList("KAFKA_BROKERS", []string{"localhost:9092"}),
			Enabled: getEnvBool("KAFKA_ENABLED", false),
			Topics: TopicConfig{
				TicketBooked:    getEnv("KAFKA_TOPIC_TICKET_BOOKED", "marketplace.ticket.booked"),
				TicketCancelled: getEnv("KAFKA_TOPIC_TICKET_CANCELLED", "marketplace.ticket.cancelled"),
				EventDeleted:    getEnv("KAFKA_TOPIC_EVENT_DELETED", "marketplace.event.deleted"),
				MessageSent:     getEnv("KAFKA_TOPIC_MESSAGE_SENT", "marketplace.message.sent"),
			},
		},
		Auth: AuthConfig{
			OIDCIssuer:       getEnv("OIDC_ISSUER", ""),
			JWTSecret:        getEnv("JWT_SECRET", ""),
			AdminEmail:       getEnv("ADMIN_EMAIL", ""),
			IdentityCacheTTL: getEnvDuration("IDENTITY_CACHE_TTL_SECONDS", 5*time.Minute),
		},
		Booking: BookingConfig{
			MaxRetries: getEnvInt("BOOKING_MAX_RETRIES", 3),
		},
		Realtime: RealtimeConfig{
			SendBuffer:   getEnvInt("REALTIME_SEND_BUFFER", 32),
			PingInterval: getEnvDuration("REALTIME_PING_SECONDS", 30*time.Second),
			WriteTimeout: getEnvDuration("REALTIME_WRITE_TIMEOUT_SECONDS", 10*time.Second),
		},
		QR: QRConfig{
			SecretKey: getEnv("QR_SECRET_KEY", ""),
		},
		LogLevel: getEnv("LOG_LEVEL", "INFO"),
	}
}

// Validate reports every required setting that is missing.
func (c *Config) Validate() error {
	var problems []string
	if c.Database.DSN == "" {
		problems = append(problems, "POSTGRES_DSN not set")
	}
	if c.Auth.OIDCIssuer == "" && c.Auth.JWTSecret == "" {
		problems = append(problems, "one of OIDC_ISSUER or JWT_SECRET must be set")
	}
	if c.QR.SecretKey == "" {
		problems = append(problems, "QR_SECRET_KEY not set")
	}
	if c.Booking.MaxRetries < 0 {
		problems = append(problems, "BOOKING_MAX_RETRIES must not be negative")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		problems = append(problems, "KAFKA_BROKERS empty while KAFKA_ENABLED=true")
	}
	if len(problems) > 0 {
		return errors.New("invalid configuration: " + strings.Join(problems, "; "))
	}
	return nil
}

func (t TopicConfig) All() []string {
	return []string{t.TicketBooked, t.TicketCancelled, t.EventDeleted, t.MessageSent}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvDuration reads a whole number of seconds.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil && parsed >= 0 {
			return time.Duration(parsed) * time.Second
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

func (c *Config) String() string {
	return fmt.Sprintf("port=%s redis=%v(%s) kafka=%v oidc=%t jwt=%t retries=%d",
		c.Server.Port, c.Redis.Enabled, c.Redis.Addr, c.Kafka.Enabled,
		c.Auth.OIDCIssuer != "", c.Auth.JWTSecret != "", c.Booking.MaxRetries)
}
