// Package config loads application configuration from environment variables.
package config

import (
	"log"
	"os"
	"strings"
	"time"
)

// Store drivers accepted in STORE_DRIVER.
const (
	DriverMemory = "memory"
	DriverMySQL  = "mysql"
	DriverMongo  = "mongo"
)

// Config holds all runtime configuration values. Each field corresponds to
// an environment variable.
type Config struct {
	Env         string         // application environment (e.g. "dev", "prod")
	Port        string         // HTTP port to listen on
	JWTSecret   string         // secret used to verify access tokens
	StoreDriver string         // memory, mysql or mongo
	DBUser      string         // database username
	DBPass      string         // database password (optional)
	DBHost      string         // database host address
	DBPort      string         // database port number
	DBName      string         // database name
	MongoURI    string         // MongoDB connection string
	MongoDB     string         // MongoDB database name
	Location    *time.Location // business time zone for dates and validity windows
	LeaseTTL    time.Duration  // how long a payment processing claim is honoured
	LogDir      string         // where the audit consumer writes its log
	AMQPURL     string         // RabbitMQ URL, empty disables events
}

// Load reads configuration values from environment variables and returns a
// Config. Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message. Database settings are
// only required for the driver that uses them.
func Load() Config {
	cfg := Config{
		Env:         must("APP_ENV"),
		Port:        must("APP_PORT"),
		JWTSecret:   must("JWT_SECRET"),
		StoreDriver: strings.ToLower(envStr("STORE_DRIVER", DriverMySQL)),
		LeaseTTL:    envDur("PAYMENT_LEASE_TTL", 2*time.Minute),
		LogDir:      envStr("AUDIT_LOG_DIR", "logs"),
		AMQPURL:     firstNonEmpty(os.Getenv("RABBITMQ_URL"), os.Getenv("AMQP_URL")),
	}

	tz := envStr("APP_TIMEZONE", "Europe/Warsaw")
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Fatalf("invalid APP_TIMEZONE %q: %v", tz, err)
	}
	cfg.Location = loc

	switch cfg.StoreDriver {
	case DriverMySQL:
		cfg.DBUser = must("DB_USER")
		cfg.DBPass = os.Getenv("DB_PASS") // empty allowed
		cfg.DBHost = must("DB_HOST")
		cfg.DBPort = must("DB_PORT")
		cfg.DBName = must("DB_NAME")
	case DriverMongo:
		cfg.MongoURI = must("MONGO_URI")
		cfg.MongoDB = envStr("MONGO_DB", "classbook")
	case DriverMemory:
	default:
		log.Fatalf("unknown STORE_DRIVER %q (want memory, mysql or mongo)", cfg.StoreDriver)
	}
	return cfg
}

// must retrieves the value of a required environment variable. If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
