package factory

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dsql/auth"
	_ "github.com/duckdb/duckdb-go/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"
	"github.com/lychee-technology/formgen"
	"github.com/lychee-technology/formgen/internal"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// Components is a generator wired to its schema catalog and entity store.
type Components struct {
	Generator *formgen.Generator
	Catalog   formgen.SchemaCatalog
	Store     formgen.EntityStore

	closeFn func() error
}

// Close releases the store's connections.
func (c *Components) Close() error {
	if c == nil || c.closeFn == nil {
		return nil
	}
	return c.closeFn()
}

// test hooks
var (
	iamTokenGenerator = generateIAMToken
	s3RegistryLoader  = loadS3Registry
)

// NewGeneratorWithConfig loads the entity schemas, opens the configured
// entity store and returns a generator using both.
//
// Usage:
//
//	cfg := formgen.DefaultConfig()
//	cfg.Schema.Directory = "./schemas"
//	components, err := factory.NewGeneratorWithConfig(ctx, cfg)
//	if err != nil {
//	    // handle error
//	}
//	defer components.Close()
//	form, err := components.Generator.Generate(ctx, "book")
func NewGeneratorWithConfig(ctx context.Context, cfg *formgen.Config) (*Components, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	registry, err := loadRegistry(ctx, cfg.Schema)
	if err != nil {
		return nil, err
	}

	store, closeFn, err := openStore(ctx, cfg.Store, registry)
	if err != nil {
		return nil, err
	}

	generator := formgen.NewGenerator(registry, store)
	if err := generator.ApplyFormConfig(cfg.Form); err != nil {
		releaseStore(closeFn)
		return nil, err
	}

	zap.S().Infow("form generator ready",
		"entities", len(registry.ListEntities()),
		"driver", strings.ToLower(cfg.Store.Driver))

	return &Components{
		Generator: generator,
		Catalog:   registry,
		Store:     store,
		closeFn:   closeFn,
	}, nil
}

// releaseStore closes a store that is not handed to the caller.
func releaseStore(closeFn func() error) {
	if closeFn == nil {
		return
	}
	if err := closeFn(); err != nil {
		zap.S().Warnw("failed to close entity store", "err", err)
	}
}

func loadRegistry(ctx context.Context, cfg formgen.SchemaConfig) (*internal.SchemaRegistry, error) {
	if cfg.Directory != "" {
		return internal.NewSchemaRegistryFromDirectory(cfg.Directory)
	}
	return s3RegistryLoader(ctx, cfg.S3)
}

func loadS3Registry(ctx context.Context, cfg formgen.S3Config) (*internal.SchemaRegistry, error) {
	client, err := internal.NewS3Client(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return internal.NewSchemaRegistryFromS3(ctx, client, cfg.Bucket, cfg.Prefix)
}

func openStore(ctx context.Context, cfg formgen.StoreConfig, catalog formgen.EntityCatalog) (formgen.EntityStore, func() error, error) {
	switch driver := strings.ToLower(cfg.Driver); driver {
	case formgen.StoreDriverMemory:
		store, err := internal.LoadMemoryEntityStore(cfg.DSN, catalog)
		if err != nil {
			return nil, nil, err
		}
		return store, nil, nil

	case formgen.StoreDriverPGX:
		pool, err := createPool(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		return internal.NewPostgresEntityStore(pool, catalog), func() error {
			pool.Close()
			return nil
		}, nil

	case formgen.StoreDriverPostgres, formgen.StoreDriverSQLite, formgen.StoreDriverDuckDB:
		dsn := cfg.DSN
		if driver == formgen.StoreDriverPostgres {
			var err error
			if dsn, err = postgresDSN(ctx, cfg); err != nil {
				return nil, nil, err
			}
		}
		db, err := openDB(ctx, driver, dsn, cfg)
		if err != nil {
			return nil, nil, err
		}
		return internal.NewSQLEntityStore(db, catalog), db.Close, nil

	default:
		return nil, nil, fmt.Errorf("unsupported store driver: %s", cfg.Driver)
	}
}

func createPool(ctx context.Context, cfg formgen.StoreConfig) (*pgxpool.Pool, error) {
	dsn, err := postgresDSN(ctx, cfg)
	if err != nil {
		return nil, err
	}

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}
	if cfg.MaxConnections > 0 {
		poolConfig.MaxConns = int32(cfg.MaxConnections)
	}
	if cfg.MaxIdleConns > 0 && cfg.MaxIdleConns <= cfg.MaxConnections {
		poolConfig.MinConns = int32(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.ConnMaxLifetime
	}
	if cfg.ConnMaxIdleTime > 0 {
		poolConfig.MaxConnIdleTime = cfg.ConnMaxIdleTime
	}
	if cfg.Timeout > 0 {
		poolConfig.ConnConfig.ConnectTimeout = cfg.Timeout
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout(cfg))
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return pool, nil
}

func openDB(ctx context.Context, driver, dsn string, cfg formgen.StoreConfig) (*sql.DB, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if cfg.MaxConnections > 0 {
		db.SetMaxOpenConns(cfg.MaxConnections)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	if cfg.ConnMaxIdleTime > 0 {
		db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout(cfg))
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping %s database: %w", driver, err)
	}
	return db, nil
}

func pingTimeout(cfg formgen.StoreConfig) time.Duration {
	if cfg.Timeout > 0 && cfg.Timeout < 5*time.Second {
		return cfg.Timeout
	}
	return 5 * time.Second
}

// postgresDSN returns cfg.DSN when set, otherwise a keyword/value connection
// string understood by both pgx and lib/pq. With UseIAM the password is a
// DSQL auth token.
func postgresDSN(ctx context.Context, cfg formgen.StoreConfig) (string, error) {
	if cfg.DSN != "" {
		return cfg.DSN, nil
	}

	password := cfg.Password
	if cfg.UseIAM {
		token, err := iamTokenGenerator(ctx, cfg)
		switch {
		case err == nil && token != "":
			password = token
			zap.S().Infow("generated IAM auth token for Postgres connection (dsql)", "host", cfg.Host)
		case password != "":
			zap.S().Warnw("failed to generate IAM auth token; falling back to configured password", "err", err)
		default:
			return "", fmt.Errorf("generate IAM auth token: %w", err)
		}
	}

	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}

	parts := []string{
		"host=" + quoteDSNValue(cfg.Host),
		fmt.Sprintf("port=%d", cfg.Port),
	}
	if cfg.Username != "" {
		parts = append(parts, "user="+quoteDSNValue(cfg.Username))
	}
	if password != "" {
		parts = append(parts, "password="+quoteDSNValue(password))
	}
	if cfg.Database != "" {
		parts = append(parts, "dbname="+quoteDSNValue(cfg.Database))
	}
	parts = append(parts, "sslmode="+quoteDSNValue(sslMode))
	return strings.Join(parts, " "), nil
}

func quoteDSNValue(v string) string {
	if v != "" && !strings.ContainsAny(v, ` '\`) {
		return v
	}
	r := strings.NewReplacer(`\`, `\\`, `'`, `\'`)
	return "'" + r.Replace(v) + "'"
}

func generateIAMToken(ctx context.Context, cfg formgen.StoreConfig) (string, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(cfg.Region))
	if err != nil {
		return "", fmt.Errorf("load aws config: %w", err)
	}
	endpoint := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	return auth.GenerateDbConnectAuthToken(ctx, endpoint, awsCfg.Region, awsCfg.Credentials)
}
