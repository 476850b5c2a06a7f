package internal

import (
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/lychee-technology/formgen"
)

// buildListRowsQuery selects id and display label of every row, both cast to
// text. Rows are ordered by the table-qualified id column so the sort uses
// the column's own type rather than the text output column. The statement is
// valid for PostgreSQL, SQLite and DuckDB.
func buildListRowsQuery(table formgen.EntityTable) string {
	idColumn := rowAlias + "." + quoteColumn(table.IDColumn)
	return fmt.Sprintf(
		"SELECT CAST(%s AS TEXT) AS option_value, CAST(%s.%s AS TEXT) AS option_label FROM %s AS %s ORDER BY %s ASC",
		idColumn,
		rowAlias, quoteColumn(table.DisplayColumn),
		sanitizeIdentifier(table.Table), rowAlias,
		idColumn,
	)
}

const rowAlias = "e"

func quoteColumn(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

// toRecord builds a row, treating a NULL label as empty.
func toRecord(id string, label *string) formgen.Record {
	record := formgen.Record{RowID: id}
	if label != nil {
		record.Label = *label
	}
	return record
}
