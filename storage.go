package formgen

import (
	"context"
)

// PropertyReader provides the ordered properties of an entity type.
type PropertyReader interface {
	// GetProperties returns properties in declaration order. Unknown entity
	// types fail with a resolution error.
	GetProperties(ctx context.Context, entityType string) ([]PropertyDescriptor, error)
}

// EntityStore lists stored rows of an entity type.
type EntityStore interface {
	// FindAll returns every row of entityType ordered ascending by identifier.
	FindAll(ctx context.Context, entityType string) ([]Row, error)
}

// EntityCatalog resolves where an entity type's rows live and which column
// provides their display label.
type EntityCatalog interface {
	EntityTable(entityType string) (EntityTable, error)
}

// SchemaCatalog is a registry of entity schemas usable both as the
// generator's property reader and as a store's table catalog.
type SchemaCatalog interface {
	PropertyReader
	EntityCatalog
	ListEntities() []string
}
