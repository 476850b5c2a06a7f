package internal

import (
	"context"
	"database/sql"

	"github.com/lychee-technology/formgen"
	"go.uber.org/zap"
)

// SQLEntityStore lists entity rows through database/sql. It serves the
// lib/pq, SQLite and DuckDB drivers.
type SQLEntityStore struct {
	db      *sql.DB
	catalog formgen.EntityCatalog
}

func NewSQLEntityStore(db *sql.DB, catalog formgen.EntityCatalog) *SQLEntityStore {
	return &SQLEntityStore{db: db, catalog: catalog}
}

// FindAll returns all rows of entityType ordered ascending by id.
func (s *SQLEntityStore) FindAll(ctx context.Context, entityType string) ([]formgen.Row, error) {
	table, err := s.catalog.EntityTable(entityType)
	if err != nil {
		return nil, err
	}

	query := buildListRowsQuery(table)
	zap.S().Debugw("listing entity rows", "entity", entityType, "query", query)

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, formgen.NewStoreError(entityType, err)
	}
	defer rows.Close()

	var result []formgen.Row
	for rows.Next() {
		var id string
		var label sql.NullString
		if err := rows.Scan(&id, &label); err != nil {
			return nil, formgen.NewStoreError(entityType, err)
		}
		result = append(result, formgen.Record{RowID: id, Label: label.String})
	}
	if err := rows.Err(); err != nil {
		return nil, formgen.NewStoreError(entityType, err)
	}
	return result, nil
}
