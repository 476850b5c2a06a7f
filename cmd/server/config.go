package main

import (
	"time"

	"github.com/lychee-technology/formgen"
	"github.com/lychee-technology/formgen/internal"
)

// loadConfig reads settings from environment variables on top of
// formgen.DefaultConfig.
func loadConfig() *formgen.Config {
	cfg := formgen.DefaultConfig()

	cfg.Schema.Directory = getEnv("SCHEMA_DIR", "")
	cfg.Schema.S3 = formgen.S3Config{
		Bucket:       getEnv("SCHEMA_S3_BUCKET", ""),
		Prefix:       getEnv("SCHEMA_S3_PREFIX", ""),
		Region:       getEnv("SCHEMA_S3_REGION", getEnv("AWS_REGION", "")),
		Endpoint:     getEnv("SCHEMA_S3_ENDPOINT", ""),
		UsePathStyle: getEnvBool("SCHEMA_S3_PATH_STYLE", false),
		AccessKey:    getEnv("AWS_ACCESS_KEY_ID", ""),
		SecretKey:    getEnv("AWS_SECRET_ACCESS_KEY", ""),
	}

	cfg.Store = formgen.StoreConfig{
		Driver:          getEnv("STORE_DRIVER", cfg.Store.Driver),
		DSN:             getEnv("STORE_DSN", ""),
		Host:            getEnv("DB_HOST", cfg.Store.Host),
		Port:            getEnvInt("DB_PORT", cfg.Store.Port),
		Database:        getEnv("DB_NAME", "formgen"),
		Username:        getEnv("DB_USER", "postgres"),
		Password:        getEnv("DB_PASSWORD", ""),
		SSLMode:         getEnv("DB_SSL_MODE", cfg.Store.SSLMode),
		UseIAM:          getEnvBool("DB_USE_IAM", false),
		Region:          getEnv("DB_REGION", getEnv("AWS_REGION", "")),
		MaxConnections:  getEnvInt("DB_MAX_CONNECTIONS", cfg.Store.MaxConnections),
		MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", cfg.Store.MaxIdleConns),
		ConnMaxLifetime: time.Duration(getEnvInt("DB_CONN_MAX_LIFETIME_SECONDS", 300)) * time.Second,
		ConnMaxIdleTime: time.Duration(getEnvInt("DB_CONN_MAX_IDLE_TIME_SECONDS", 300)) * time.Second,
		Timeout:         time.Duration(getEnvInt("DB_TIMEOUT_SECONDS", 30)) * time.Second,
	}

	cfg.Form.PropertyBlacklist = internal.SplitList(getEnv("FORM_BLACKLIST", ""))
	cfg.Form.PropertyWhitelist = internal.SplitList(getEnv("FORM_WHITELIST", ""))
	cfg.Form.EmailProperties = internal.SplitList(getEnv("FORM_EMAIL_PROPERTIES", ""))
	cfg.Form.PasswordProperties = internal.SplitList(getEnv("FORM_PASSWORD_PROPERTIES", ""))
	cfg.Form.ToOneChoice = formgen.ToOneChoice(getEnv("FORM_TO_ONE", string(cfg.Form.ToOneChoice)))
	cfg.Form.ToManyChoice = formgen.ToManyChoice(getEnv("FORM_TO_MANY", string(cfg.Form.ToManyChoice)))

	cfg.Logging.Level = getEnv("LOG_LEVEL", cfg.Logging.Level)
	cfg.Logging.Format = getEnv("LOG_FORMAT", cfg.Logging.Format)

	cfg.Server.Port = getEnvInt("PORT", cfg.Server.Port)
	cfg.Server.ReadTimeout = getEnvDuration("SERVER_READ_TIMEOUT", cfg.Server.ReadTimeout)
	cfg.Server.WriteTimeout = getEnvDuration("SERVER_WRITE_TIMEOUT", cfg.Server.WriteTimeout)
	cfg.Server.ShutdownTimeout = getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", cfg.Server.ShutdownTimeout)

	return cfg
}
