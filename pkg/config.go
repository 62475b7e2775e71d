package pkg

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

// Config holds everything a run needs. It is built once by the entry point and
// handed to each component at construction.
type Config struct {
	EndpointURL string

	DBDriver          string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	TableName         string
	ArangoCertificate string

	PushgatewayURL string
	MetricsJob     string

	LogLevel  string
	LogFormat string
}

const DefaultEnvFile = ".env"

// LoadEnvFiles populates the process environment from dotenv files. Variables
// already set win. A missing DefaultEnvFile is ignored; any other missing file
// is an error.
func LoadEnvFiles(files ...string) error {
	if len(files) == 0 {
		if _, err := os.Stat(DefaultEnvFile); errors.Is(err, os.ErrNotExist) {
			return nil
		}
		files = []string{DefaultEnvFile}
	}
	if err := godotenv.Load(files...); err != nil {
		return fmt.Errorf("failed loading env files %v: %w", files, err)
	}
	return nil
}

// LoadConfig reads the configuration through getenv, applying defaults, and
// validates it.
func LoadConfig(getenv func(string) string) (*Config, error) {
	envOrDefault := func(k, d string) string {
		if v := strings.TrimSpace(getenv(k)); v != "" {
			return v
		}
		return d
	}

	cfg := &Config{
		EndpointURL:       envOrDefault("ENDPOINT_URL", DefaultEndpointURL),
		DBDriver:          strings.ToLower(envOrDefault("DB_DRIVER", DriverPostgres)),
		DBHost:            envOrDefault("DB_HOST", "localhost"),
		DBPort:            envOrDefault("DB_PORT", ""),
		DBName:            envOrDefault("DB_NAME", "covid_data"),
		DBUser:            envOrDefault("DB_USER", "postgres"),
		DBPassword:        getenv("DB_PASSWORD"),
		DBSSLMode:         envOrDefault("DB_SSLMODE", "disable"),
		TableName:         envOrDefault("TABLE_NAME", "covid_data"),
		ArangoCertificate: getenv("ARANGO_CERTIFICATE"),
		PushgatewayURL:    envOrDefault("PUSHGATEWAY_URL", ""),
		MetricsJob:        envOrDefault("METRICS_JOB", "covid_etl"),
		LogLevel:          strings.ToLower(envOrDefault("LOG_LEVEL", "info")),
		LogFormat:         strings.ToLower(envOrDefault("LOG_FORMAT", "console")),
	}
	if cfg.DBPort == "" {
		cfg.DBPort = defaultPort(cfg.DBDriver)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaultPort(driver string) string {
	switch driver {
	case DriverSQLServer:
		return "1433"
	case DriverArangoDB:
		return "8529"
	case DriverSQLite:
		return ""
	default:
		return "5432"
	}
}

func (cfg *Config) Validate() error {
	endpoint, err := url.Parse(cfg.EndpointURL)
	if err != nil || (endpoint.Scheme != "http" && endpoint.Scheme != "https") || endpoint.Host == "" {
		return fmt.Errorf("ENDPOINT_URL %q must be an absolute http(s) URL", cfg.EndpointURL)
	}

	switch cfg.DBDriver {
	case DriverPostgres, DriverSQLServer, DriverArangoDB:
		port, err := strconv.Atoi(cfg.DBPort)
		if err != nil || port < 1 || port > 65535 {
			return fmt.Errorf("DB_PORT %q must be a number between 1 and 65535", cfg.DBPort)
		}
	case DriverSQLite:
	default:
		return fmt.Errorf("DB_DRIVER %q must be one of %s, %s, %s, %s",
			cfg.DBDriver, DriverPostgres, DriverSQLite, DriverSQLServer, DriverArangoDB)
	}

	if cfg.DBName == "" {
		return errors.New("DB_NAME must not be empty")
	}
	if cfg.TableName == "" {
		return errors.New("TABLE_NAME must not be empty")
	}
	if cfg.PushgatewayURL != "" {
		if _, err := url.ParseRequestURI(cfg.PushgatewayURL); err != nil {
			return fmt.Errorf("PUSHGATEWAY_URL %q: %w", cfg.PushgatewayURL, err)
		}
	}
	if _, err := zerolog.ParseLevel(cfg.LogLevel); err != nil {
		return fmt.Errorf("LOG_LEVEL %q: %w", cfg.LogLevel, err)
	}
	if cfg.LogFormat != LogFormatConsole && cfg.LogFormat != LogFormatJSON {
		return fmt.Errorf("LOG_FORMAT %q must be %s or %s", cfg.LogFormat, LogFormatConsole, LogFormatJSON)
	}
	return nil
}

func (cfg *Config) PostgresDSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.DBUser, cfg.DBPassword),
		Host:     net.JoinHostPort(cfg.DBHost, cfg.DBPort),
		Path:     "/" + cfg.DBName,
		RawQuery: url.Values{"sslmode": {cfg.DBSSLMode}}.Encode(),
	}
	return u.String()
}

func (cfg *Config) SQLServerDSN() string {
	u := url.URL{
		Scheme:   "sqlserver",
		User:     url.UserPassword(cfg.DBUser, cfg.DBPassword),
		Host:     net.JoinHostPort(cfg.DBHost, cfg.DBPort),
		RawQuery: url.Values{"database": {cfg.DBName}}.Encode(),
	}
	return u.String()
}

// ArangoEndpoint uses https when a CA certificate is configured.
func (cfg *Config) ArangoEndpoint() string {
	scheme := "http"
	if cfg.ArangoCertificate != "" {
		scheme = "https"
	}
	return scheme + "://" + net.JoinHostPort(cfg.DBHost, cfg.DBPort)
}

// String renders the config for logs with the password masked.
func (cfg *Config) String() string {
	password := ""
	if cfg.DBPassword != "" {
		password = "****"
	}
	return fmt.Sprintf("endpoint=%s driver=%s host=%s port=%s db=%s user=%s password=%s table=%s",
		cfg.EndpointURL, cfg.DBDriver, cfg.DBHost, cfg.DBPort, cfg.DBName, cfg.DBUser, password, cfg.TableName)
}
