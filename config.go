package formgen

import (
	"strings"
	"time"
)

// Store drivers understood by the factory.
const (
	StoreDriverPGX      = "pgx"
	StoreDriverPostgres = "postgres"
	StoreDriverSQLite   = "sqlite"
	StoreDriverDuckDB   = "duckdb"
	StoreDriverMemory   = "memory"
)

// Config consolidates settings for building a Generator and its collaborators
type Config struct {
	Schema  SchemaConfig  `json:"schema"`
	Store   StoreConfig   `json:"store"`
	Form    FormConfig    `json:"form"`
	Logging LoggingConfig `json:"logging"`
	Server  ServerConfig  `json:"server"`
}

// SchemaConfig names where entity schema documents are loaded from.
// Directory wins when both a directory and a bucket are set.
type SchemaConfig struct {
	Directory string   `json:"directory"`
	S3        S3Config `json:"s3"`
}

// S3Config locates schema documents in an S3 bucket.
type S3Config struct {
	Bucket       string `json:"bucket"`
	Prefix       string `json:"prefix"`
	Region       string `json:"region"`
	Endpoint     string `json:"endpoint"`
	UsePathStyle bool   `json:"usePathStyle"`
	AccessKey    string `json:"accessKey"`
	SecretKey    string `json:"secretKey"`
}

// Enabled reports whether an S3 schema source is configured.
func (c S3Config) Enabled() bool {
	return c.Bucket != ""
}

// StoreConfig contains entity store connection settings
type StoreConfig struct {
	Driver          string        `json:"driver"`
	DSN             string        `json:"dsn"`
	Host            string        `json:"host"`
	Port            int           `json:"port"`
	Database        string        `json:"database"`
	Username        string        `json:"username"`
	Password        string        `json:"password"`
	SSLMode         string        `json:"sslMode"`
	UseIAM          bool          `json:"useIAM"`
	Region          string        `json:"region"`
	MaxConnections  int           `json:"maxConnections"`
	MaxIdleConns    int           `json:"maxIdleConns"`
	ConnMaxLifetime time.Duration `json:"connMaxLifetime"`
	ConnMaxIdleTime time.Duration `json:"connMaxIdleTime"`
	Timeout         time.Duration `json:"timeout"`
}

// FormConfig holds the field mapping policy.
type FormConfig struct {
	PropertyBlacklist  []string     `json:"propertyBlacklist"`
	PropertyWhitelist  []string     `json:"propertyWhitelist"`
	EmailProperties    []string     `json:"emailProperties"`
	PasswordProperties []string     `json:"passwordProperties"`
	ToOneChoice        ToOneChoice  `json:"toOneChoice"`
	ToManyChoice       ToManyChoice `json:"toManyChoice"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Port            int           `json:"port"`
	ReadTimeout     time.Duration `json:"readTimeout"`
	WriteTimeout    time.Duration `json:"writeTimeout"`
	ShutdownTimeout time.Duration `json:"shutdownTimeout"`
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		Store: StoreConfig{
			Driver:          StoreDriverPGX,
			Host:            "localhost",
			Port:            5432,
			SSLMode:         "disable",
			MaxConnections:  10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
			ConnMaxIdleTime: 5 * time.Minute,
			Timeout:         30 * time.Second,
		},
		Form: FormConfig{
			ToOneChoice:  ToOneSelect,
			ToManyChoice: ToManyMultiCheckbox,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			ShutdownTimeout: 5 * time.Second,
		},
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Schema.Directory == "" && !c.Schema.S3.Enabled() {
		return &ConfigError{Field: "schema", Message: "either directory or s3.bucket must be set"}
	}

	switch strings.ToLower(c.Store.Driver) {
	case StoreDriverMemory:
	case StoreDriverPGX, StoreDriverPostgres:
		if c.Store.DSN == "" && c.Store.Host == "" {
			return &ConfigError{Field: "store.host", Message: "required when store.dsn is empty"}
		}
		if c.Store.MaxConnections <= 0 {
			return &ConfigError{Field: "store.maxConnections", Message: "must be greater than 0"}
		}
		if c.Store.UseIAM && c.Store.Region == "" {
			return &ConfigError{Field: "store.region", Message: "required when store.useIAM is set"}
		}
	case StoreDriverSQLite, StoreDriverDuckDB:
		if c.Store.DSN == "" {
			return &ConfigError{Field: "store.dsn", Message: "required for driver " + c.Store.Driver}
		}
	default:
		return &ConfigError{Field: "store.driver", Message: "unsupported driver: " + c.Store.Driver}
	}

	if c.Form.ToOneChoice != "" {
		if _, ok := ParseToOneChoice(string(c.Form.ToOneChoice)); !ok {
			return &ConfigError{Field: "form.toOneChoice", Message: "must be select or radio"}
		}
	}
	if c.Form.ToManyChoice != "" {
		if _, ok := ParseToManyChoice(string(c.Form.ToManyChoice)); !ok {
			return &ConfigError{Field: "form.toManyChoice", Message: "must be multiselect or multicheckbox"}
		}
	}

	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return &ConfigError{Field: "server.port", Message: "must be between 0 and 65535"}
	}

	return nil
}

// ConfigError represents a configuration validation error
type ConfigError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ConfigError) Error() string {
	return "config validation error for field '" + e.Field + "': " + e.Message
}
