package factory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/lychee-technology/formgen"
	"github.com/lychee-technology/formgen/internal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

// ---------------------------------------------------------------------------
// Helper functions
// ---------------------------------------------------------------------------

const bookSchema = `{
  "type": "object",
  "properties": {
    "id": {"type": "integer", "x-column": {"id": true}},
    "title": {"type": "string"},
    "author": {"type": "integer", "x-relation": {"target": "author"}},
    "tags": {"type": "array", "x-relation": {"target": "tag", "type": "many"}}
  }
}`

const authorSchema = `{
  "type": "object",
  "x-display-name": "name",
  "properties": {
    "id": {"type": "integer", "x-column": {"id": true}},
    "name": {"type": "string"}
  }
}`

const tagSchema = `{
  "type": "object",
  "x-display-name": "label",
  "properties": {
    "id": {"type": "integer", "x-column": {"id": true}},
    "label": {"type": "string"}
  }
}`

func writeSchemaDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	for name, doc := range map[string]string{"book": bookSchema, "author": authorSchema, "tag": tagSchema} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name+".json"), []byte(doc), 0o644))
	}
	return dir
}

func withIAMTokenGenerator(t *testing.T, gen func(context.Context, formgen.StoreConfig) (string, error)) {
	t.Helper()
	prev := iamTokenGenerator
	iamTokenGenerator = gen
	t.Cleanup(func() {
		iamTokenGenerator = prev
	})
}

func withS3RegistryLoader(t *testing.T, loader func(context.Context, formgen.S3Config) (*internal.SchemaRegistry, error)) {
	t.Helper()
	prev := s3RegistryLoader
	s3RegistryLoader = loader
	t.Cleanup(func() {
		s3RegistryLoader = prev
	})
}

// ---------------------------------------------------------------------------
// NewGeneratorWithConfig
// ---------------------------------------------------------------------------

func TestNewGeneratorWithConfig_NilConfig(t *testing.T) {
	_, err := NewGeneratorWithConfig(context.Background(), nil)
	assert.Error(t, err)
}

func TestNewGeneratorWithConfig_InvalidConfig(t *testing.T) {
	cfg := formgen.DefaultConfig()
	_, err := NewGeneratorWithConfig(context.Background(), cfg)
	require.Error(t, err)

	var configErr *formgen.ConfigError
	require.True(t, errors.As(err, &configErr))
	assert.Equal(t, "schema", configErr.Field)
}

func TestNewGeneratorWithConfig_MemoryStore(t *testing.T) {
	ctx := context.Background()
	fixture := filepath.Join(t.TempDir(), "rows.json")
	require.NoError(t, os.WriteFile(fixture, []byte(`{
		"author": [{"id": "2", "label": "Bo"}, {"id": "1", "label": "Ann"}],
		"tag": [{"id": "7", "label": "go"}]
	}`), 0o644))

	cfg := formgen.DefaultConfig()
	cfg.Schema.Directory = writeSchemaDir(t)
	cfg.Store = formgen.StoreConfig{Driver: formgen.StoreDriverMemory, DSN: fixture}
	cfg.Form.ToOneChoice = formgen.ToOneRadio
	cfg.Form.ToManyChoice = formgen.ToManyMultiSelect

	components, err := NewGeneratorWithConfig(ctx, cfg)
	require.NoError(t, err)
	defer components.Close()

	assert.Equal(t, []string{"author", "book", "tag"}, components.Catalog.ListEntities())

	form, err := components.Generator.Generate(ctx, "book")
	require.NoError(t, err)
	assert.Equal(t, []string{"title", "author", "tags", formgen.SubmitName}, form.FieldNames())

	author, ok := form.Field("author")
	require.True(t, ok)
	assert.Equal(t, formgen.FieldKindRadio, author.Kind)
	assert.Equal(t, []formgen.Option{
		{Value: formgen.NoneOptionValue, Label: formgen.NoneOptionLabel},
		{Value: "1", Label: "Ann"},
		{Value: "2", Label: "Bo"},
	}, author.Options)

	tags, ok := form.Field("tags")
	require.True(t, ok)
	assert.Equal(t, formgen.FieldKindMultiSelect, tags.Kind)
}

func TestNewGeneratorWithConfig_SQLiteStore(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "library.db")

	seed, err := sql.Open("sqlite", dbPath)
	require.NoError(t, err)
	for _, stmt := range []string{
		`CREATE TABLE author (id INTEGER PRIMARY KEY, name TEXT)`,
		`CREATE TABLE tag (id INTEGER PRIMARY KEY, label TEXT)`,
		`INSERT INTO author (id, name) VALUES (10, 'Cy'), (1, 'Ann')`,
	} {
		_, err := seed.ExecContext(ctx, stmt)
		require.NoError(t, err)
	}
	require.NoError(t, seed.Close())

	cfg := formgen.DefaultConfig()
	cfg.Schema.Directory = writeSchemaDir(t)
	cfg.Store = formgen.StoreConfig{Driver: formgen.StoreDriverSQLite, DSN: dbPath, MaxConnections: 2}
	cfg.Form.PropertyBlacklist = []string{"title"}

	components, err := NewGeneratorWithConfig(ctx, cfg)
	require.NoError(t, err)
	defer components.Close()

	form, err := components.Generator.Generate(ctx, "book")
	require.NoError(t, err)
	// empty tag table drops the collection field
	assert.Equal(t, []string{"author", formgen.SubmitName}, form.FieldNames())

	author, ok := form.Field("author")
	require.True(t, ok)
	assert.Equal(t, []formgen.Option{
		{Value: formgen.NoneOptionValue, Label: formgen.NoneOptionLabel},
		{Value: "1", Label: "Ann"},
		{Value: "10", Label: "Cy"},
	}, author.Options)
}

func TestNewGeneratorWithConfig_MissingSchemaDirectory(t *testing.T) {
	cfg := formgen.DefaultConfig()
	cfg.Schema.Directory = filepath.Join(t.TempDir(), "missing")
	cfg.Store = formgen.StoreConfig{Driver: formgen.StoreDriverMemory}

	_, err := NewGeneratorWithConfig(context.Background(), cfg)
	assert.Error(t, err)
}

func TestNewGeneratorWithConfig_S3Source(t *testing.T) {
	var gotCfg formgen.S3Config
	withS3RegistryLoader(t, func(ctx context.Context, cfg formgen.S3Config) (*internal.SchemaRegistry, error) {
		gotCfg = cfg
		return internal.NewSchemaRegistryFromDocuments(map[string][]byte{"author": []byte(authorSchema)})
	})

	cfg := formgen.DefaultConfig()
	cfg.Schema.S3 = formgen.S3Config{Bucket: "forms", Prefix: "library/"}
	cfg.Store = formgen.StoreConfig{Driver: formgen.StoreDriverMemory}

	components, err := NewGeneratorWithConfig(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, "forms", gotCfg.Bucket)
	assert.Equal(t, []string{"author"}, components.Catalog.ListEntities())
	assert.NoError(t, components.Close())
}

func TestNewGeneratorWithConfig_PGXUnreachable(t *testing.T) {
	cfg := formgen.DefaultConfig()
	cfg.Schema.Directory = writeSchemaDir(t)
	cfg.Store.Host = "127.0.0.1"
	cfg.Store.Port = 1
	cfg.Store.Timeout = time.Second

	_, err := NewGeneratorWithConfig(context.Background(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to ping database")
}

// Integration test against a real database. Skips if DATABASE_URL is not set.
func TestNewGeneratorWithConfig_PGXIntegration(t *testing.T) {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("DATABASE_URL not set; skipping integration test")
	}
	ctx := context.Background()

	suffix := time.Now().UnixNano()
	authorTable := fmt.Sprintf("author_test_%d", suffix)
	schema := fmt.Sprintf(`{"x-table": %q, "x-display-name": "name", "properties": {
		"id": {"type": "integer", "x-column": {"id": true}},
		"name": {"type": "string"}}}`, authorTable)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "author.json"), []byte(schema), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "book.json"), []byte(bookSchema), 0o644))

	db, err := sql.Open("postgres", dbURL)
	require.NoError(t, err)
	defer db.Close()
	_, err = db.ExecContext(ctx, fmt.Sprintf(`CREATE TABLE %s (id INTEGER PRIMARY KEY, name TEXT)`, authorTable))
	require.NoError(t, err)
	t.Cleanup(func() {
		db.Exec(fmt.Sprintf("DROP TABLE IF EXISTS %s", authorTable))
	})
	_, err = db.ExecContext(ctx, fmt.Sprintf(`INSERT INTO %s (id, name) VALUES (1, 'Ann')`, authorTable))
	require.NoError(t, err)

	cfg := formgen.DefaultConfig()
	cfg.Schema.Directory = dir
	cfg.Store.DSN = dbURL

	components, err := NewGeneratorWithConfig(ctx, cfg)
	require.NoError(t, err)
	defer components.Close()

	options, err := components.Generator.ResolveOptions(ctx, "author")
	require.NoError(t, err)
	assert.Equal(t, []formgen.Option{{Value: "1", Label: "Ann"}}, options)
}

// ---------------------------------------------------------------------------
// Connection strings
// ---------------------------------------------------------------------------

func TestPostgresDSN(t *testing.T) {
	tests := []struct {
		name string
		cfg  formgen.StoreConfig
		want string
	}{
		{
			name: "explicit dsn wins",
			cfg:  formgen.StoreConfig{DSN: "postgres://u@h/db", Host: "ignored"},
			want: "postgres://u@h/db",
		},
		{
			name: "keyword form",
			cfg:  formgen.StoreConfig{Host: "db", Port: 5432, Username: "app", Password: "secret", Database: "forms", SSLMode: "require"},
			want: "host=db port=5432 user=app password=secret dbname=forms sslmode=require",
		},
		{
			name: "quotes special characters",
			cfg:  formgen.StoreConfig{Host: "db", Port: 5432, Password: `it's a \pw`},
			want: `host=db port=5432 password='it\'s a \\pw' sslmode=disable`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := postgresDSN(context.Background(), tt.cfg)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPostgresDSN_IAM(t *testing.T) {
	cfg := formgen.StoreConfig{Host: "cluster.dsql", Port: 5432, Username: "admin", UseIAM: true, Region: "us-east-1"}

	t.Run("token replaces password", func(t *testing.T) {
		withIAMTokenGenerator(t, func(ctx context.Context, c formgen.StoreConfig) (string, error) {
			return "tok", nil
		})
		got, err := postgresDSN(context.Background(), cfg)
		require.NoError(t, err)
		assert.Contains(t, got, "password=tok")
	})

	t.Run("falls back to password", func(t *testing.T) {
		withIAMTokenGenerator(t, func(ctx context.Context, c formgen.StoreConfig) (string, error) {
			return "", assert.AnError
		})
		withPassword := cfg
		withPassword.Password = "fallback"
		got, err := postgresDSN(context.Background(), withPassword)
		require.NoError(t, err)
		assert.Contains(t, got, "password=fallback")
	})

	t.Run("fails without fallback", func(t *testing.T) {
		withIAMTokenGenerator(t, func(ctx context.Context, c formgen.StoreConfig) (string, error) {
			return "", assert.AnError
		})
		_, err := postgresDSN(context.Background(), cfg)
		assert.ErrorIs(t, err, assert.AnError)
	})
}

func TestComponentsCloseNil(t *testing.T) {
	var c *Components
	assert.NoError(t, c.Close())
	assert.NoError(t, (&Components{}).Close())
}

func TestReleaseStoreLogsCloseError(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	restore := zap.ReplaceGlobals(zap.New(core))
	t.Cleanup(restore)

	closed := 0
	releaseStore(func() error {
		closed++
		return errors.New("connection reset")
	})
	releaseStore(nil)

	assert.Equal(t, 1, closed)
	entries := logs.FilterMessage("failed to close entity store").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "connection reset", entries[0].ContextMap()["err"])
}
