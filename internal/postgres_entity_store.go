package internal

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/lychee-technology/formgen"
	"go.uber.org/zap"
)

type entityRowPool interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PostgresEntityStore lists entity rows through a pgx pool.
type PostgresEntityStore struct {
	pool    entityRowPool
	catalog formgen.EntityCatalog
}

func NewPostgresEntityStore(pool entityRowPool, catalog formgen.EntityCatalog) *PostgresEntityStore {
	return &PostgresEntityStore{pool: pool, catalog: catalog}
}

// FindAll returns all rows of entityType ordered ascending by id.
func (s *PostgresEntityStore) FindAll(ctx context.Context, entityType string) ([]formgen.Row, error) {
	table, err := s.catalog.EntityTable(entityType)
	if err != nil {
		return nil, err
	}

	query := buildListRowsQuery(table)
	zap.S().Debugw("listing entity rows", "entity", entityType, "query", query)

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, formgen.NewStoreError(entityType, err)
	}

	result, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (formgen.Row, error) {
		var id string
		var label *string
		if err := row.Scan(&id, &label); err != nil {
			return nil, err
		}
		return toRecord(id, label), nil
	})
	if err != nil {
		return nil, formgen.NewStoreError(entityType, err)
	}
	return result, nil
}
