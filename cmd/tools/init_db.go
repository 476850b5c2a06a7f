package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lychee-technology/formgen"
	"github.com/lychee-technology/formgen/internal"
	"go.uber.org/zap"
)

func runInitDB(args []string, out io.Writer) error {
	flags := flag.NewFlagSet("init-db", flag.ContinueOnError)
	flags.SetOutput(out)

	store := formgen.StoreConfig{}
	flags.StringVar(&store.DSN, "dsn", envOr("STORE_DSN", ""), "PostgreSQL connection string (overrides the -db-* options)")
	flags.StringVar(&store.Host, "db-host", envOr("DB_HOST", "localhost"), "database host")
	flags.IntVar(&store.Port, "db-port", envIntOr("DB_PORT", 5432), "database port")
	flags.StringVar(&store.Database, "db-name", envOr("DB_NAME", "formgen"), "database name")
	flags.StringVar(&store.Username, "db-user", envOr("DB_USER", "postgres"), "database user")
	flags.StringVar(&store.Password, "db-password", envOr("DB_PASSWORD", ""), "database password")
	flags.StringVar(&store.SSLMode, "db-ssl-mode", envOr("DB_SSL_MODE", "disable"), "database sslmode")
	schemaDir := flags.String("schema-dir", envOr("SCHEMA_DIR", ""), "Directory containing JSON schema files")
	dryRun := flags.Bool("dry-run", false, "Print the statements instead of executing them")

	if err := flags.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}
	if *schemaDir == "" {
		return fmt.Errorf("-schema-dir must be provided")
	}

	registry, err := internal.NewSchemaRegistryFromDirectory(*schemaDir)
	if err != nil {
		return err
	}
	stmts := entityTableStatements(registry)

	if *dryRun {
		for _, stmt := range stmts {
			fmt.Fprintln(out, stmt+";")
		}
		return nil
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, storeConnString(store))
	if err != nil {
		return fmt.Errorf("create connection pool: %w", err)
	}
	defer pool.Close()

	err = pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		for _, stmt := range stmts {
			if _, err := tx.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("exec %q: %w", stmt, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	zap.S().Infow("option tables created", "entities", len(registry.ListEntities()), "statements", len(stmts))
	return nil
}

// entityTableStatements creates one table per entity with its id column and,
// when declared, its display column plus an index on it.
func entityTableStatements(registry *internal.SchemaRegistry) []string {
	var stmts []string
	for _, name := range registry.ListEntities() {
		entity, ok := registry.Entity(name)
		if !ok {
			continue
		}
		table := pgx.Identifier(strings.Split(entity.Table, ".")).Sanitize()
		columns := []string{pgx.Identifier{entity.IDColumn}.Sanitize() + " " + idColumnType(entity.IDType) + " PRIMARY KEY"}
		if entity.DisplayColumn != "" {
			columns = append(columns, pgx.Identifier{entity.DisplayColumn}.Sanitize()+" TEXT")
		}
		stmts = append(stmts, fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", table, strings.Join(columns, ", ")))

		if entity.DisplayColumn != "" {
			index := strings.ReplaceAll(entity.Table, ".", "_") + "_" + entity.DisplayColumn + "_idx"
			stmts = append(stmts, fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (%s)",
				pgx.Identifier{index}.Sanitize(), table, pgx.Identifier{entity.DisplayColumn}.Sanitize()))
		}
	}
	return stmts
}

// idColumnType maps the JSON type of an identifier onto a column type so
// that rows sort by the identifier's own ordering.
func idColumnType(jsonType string) string {
	switch jsonType {
	case "integer":
		return "BIGINT"
	case "number":
		return "NUMERIC"
	default:
		return "TEXT"
	}
}

// storeConnString returns cfg.DSN or a postgres URL built from its parts.
func storeConnString(cfg formgen.StoreConfig) string {
	if cfg.DSN != "" {
		return cfg.DSN
	}
	u := &url.URL{
		Scheme: "postgres",
		User:   url.User(cfg.Username),
		Host:   cfg.Host + ":" + strconv.Itoa(cfg.Port),
		Path:   "/" + cfg.Database,
	}
	if cfg.Password != "" {
		u.User = url.UserPassword(cfg.Username, cfg.Password)
	}
	if cfg.SSLMode != "" {
		u.RawQuery = url.Values{"sslmode": {cfg.SSLMode}}.Encode()
	}
	return u.String()
}
