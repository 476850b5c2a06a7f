package internal

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/lychee-technology/formgen"
)

// MemoryEntityStore keeps entity rows in memory. When a catalog is set,
// lookups go through it first so unknown entity types and missing display
// names fail the same way they do for the SQL stores.
type MemoryEntityStore struct {
	mu      sync.RWMutex
	rows    map[string][]formgen.Record
	catalog formgen.EntityCatalog
}

func NewMemoryEntityStore(catalog formgen.EntityCatalog) *MemoryEntityStore {
	return &MemoryEntityStore{
		rows:    make(map[string][]formgen.Record),
		catalog: catalog,
	}
}

// LoadMemoryEntityStore reads a JSON fixture of the form
// {"author": [{"id": "1", "label": "Ann"}]}.
func LoadMemoryEntityStore(path string, catalog formgen.EntityCatalog) (*MemoryEntityStore, error) {
	store := NewMemoryEntityStore(catalog)
	if path == "" {
		return store, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fixture file: %w", err)
	}
	var fixture map[string][]formgen.Record
	if err := json.Unmarshal(data, &fixture); err != nil {
		return nil, fmt.Errorf("failed to parse fixture file %s: %w", path, err)
	}
	for entityType, records := range fixture {
		store.Put(entityType, records...)
	}
	return store, nil
}

// Put adds or replaces rows by id.
func (s *MemoryEntityStore) Put(entityType string, records ...formgen.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing := s.rows[entityType]
	for _, record := range records {
		replaced := false
		for i := range existing {
			if existing[i].RowID == record.RowID {
				existing[i] = record
				replaced = true
				break
			}
		}
		if !replaced {
			existing = append(existing, record)
		}
	}
	sort.SliceStable(existing, func(i, j int) bool {
		return compareIdentifiers(existing[i].RowID, existing[j].RowID) < 0
	})
	s.rows[entityType] = existing
}

// FindAll returns rows of entityType ordered ascending by id.
func (s *MemoryEntityStore) FindAll(ctx context.Context, entityType string) ([]formgen.Row, error) {
	if s.catalog != nil {
		if _, err := s.catalog.EntityTable(entityType); err != nil {
			return nil, err
		}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	records := s.rows[entityType]
	result := make([]formgen.Row, 0, len(records))
	for _, record := range records {
		result = append(result, record)
	}
	return result, nil
}
