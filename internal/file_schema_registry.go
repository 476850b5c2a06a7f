package internal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/lychee-technology/formgen"
	"go.uber.org/zap"
)

// EntitySchema is the parsed form of one entity schema document. IDType is
// the JSON type of the identifier property, empty when none is declared.
type EntitySchema struct {
	Name                string
	Table               string
	IDColumn            string
	IDType              string
	DisplayNameProperty string
	DisplayColumn       string
	Properties          []formgen.PropertyDescriptor
}

// SchemaRegistry reads entity schemas from JSON Schema documents. Property
// order follows the order of keys in each document's "properties" object.
//
// Extension keywords:
//   - "x-table": table holding the entity rows (defaults to the entity name)
//   - "x-display-name": property whose value labels the entity in option lists
//   - "x-column": {"type": "text", "id": true, "name": "db_column"}
//   - "x-relation": {"target": "person", "type": "one" | "many"}
type SchemaRegistry struct {
	mu       sync.RWMutex
	entities map[string]*EntitySchema
	order    []string
}

// NewSchemaRegistryFromDirectory loads every *.json file in schemaDir. The
// entity name is the file name without extension.
func NewSchemaRegistryFromDirectory(schemaDir string) (*SchemaRegistry, error) {
	entries, err := os.ReadDir(schemaDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema directory: %w", err)
	}

	docs := make(map[string][]byte)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(schemaDir, name))
		if err != nil {
			return nil, fmt.Errorf("failed to read schema file %s: %w", name, err)
		}
		docs[strings.TrimSuffix(name, ".json")] = data
	}

	if len(docs) == 0 {
		return nil, fmt.Errorf("no schema files found in directory: %s", schemaDir)
	}

	registry, err := NewSchemaRegistryFromDocuments(docs)
	if err != nil {
		return nil, err
	}
	zap.S().Infow("loaded entity schemas", "count", len(docs), "directory", schemaDir)
	return registry, nil
}

// NewSchemaRegistryFromDocuments parses schema documents keyed by entity name.
func NewSchemaRegistryFromDocuments(docs map[string][]byte) (*SchemaRegistry, error) {
	registry := &SchemaRegistry{
		entities: make(map[string]*EntitySchema, len(docs)),
	}

	names := make([]string, 0, len(docs))
	for name := range docs {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		entity, err := parseEntitySchema(name, docs[name])
		if err != nil {
			return nil, err
		}
		registry.entities[name] = entity
		registry.order = append(registry.order, name)
	}

	for _, name := range registry.order {
		for _, prop := range registry.entities[name].Properties {
			if !prop.Kind.IsReference() {
				continue
			}
			if _, ok := registry.entities[prop.TargetEntityType]; !ok {
				zap.S().Warnw("relation target is not a registered entity",
					"entity", name, "property", prop.Name, "target", prop.TargetEntityType)
			}
		}
	}

	return registry, nil
}

// GetProperties returns a copy of the entity's properties in declaration order.
func (r *SchemaRegistry) GetProperties(ctx context.Context, entityType string) ([]formgen.PropertyDescriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entity, ok := r.entities[entityType]
	if !ok {
		return nil, formgen.NewResolutionError(entityType)
	}
	props := make([]formgen.PropertyDescriptor, len(entity.Properties))
	copy(props, entity.Properties)
	return props, nil
}

// EntityTable reports where rows of entityType are stored. Entities without
// a display name property fail with a configuration error.
func (r *SchemaRegistry) EntityTable(entityType string) (formgen.EntityTable, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entity, ok := r.entities[entityType]
	if !ok {
		return formgen.EntityTable{}, formgen.NewResolutionError(entityType)
	}
	if entity.DisplayColumn == "" {
		return formgen.EntityTable{}, formgen.NewDisplayNameMissingError(entityType)
	}
	return formgen.EntityTable{
		EntityType:    entity.Name,
		Table:         entity.Table,
		IDColumn:      entity.IDColumn,
		DisplayColumn: entity.DisplayColumn,
	}, nil
}

// Entity returns a copy of the parsed schema of name.
func (r *SchemaRegistry) Entity(name string) (EntitySchema, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entity, ok := r.entities[name]
	if !ok {
		return EntitySchema{}, false
	}
	clone := *entity
	clone.Properties = append([]formgen.PropertyDescriptor(nil), entity.Properties...)
	return clone, true
}

// ListEntities returns registered entity names in sorted order.
func (r *SchemaRegistry) ListEntities() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

type rawEntitySchema struct {
	Type        any                        `json:"type"`
	Table       string                     `json:"x-table"`
	DisplayName string                     `json:"x-display-name"`
	Properties  json.RawMessage            `json:"properties"`
	Defs        map[string]json.RawMessage `json:"$defs"`
}

type rawProperty struct {
	Type     any          `json:"type"`
	Format   string       `json:"format"`
	Ref      string       `json:"$ref"`
	Column   *rawColumn   `json:"x-column"`
	Relation *rawRelation `json:"x-relation"`
}

type rawColumn struct {
	Type string `json:"type"`
	ID   bool   `json:"id"`
	Name string `json:"name"`
}

type rawRelation struct {
	Target string `json:"target"`
	Type   string `json:"type"`
}

func parseEntitySchema(name string, data []byte) (*EntitySchema, error) {
	var check jsonschema.Schema
	if err := json.Unmarshal(data, &check); err != nil {
		return nil, formgen.NewSchemaError(name, "failed to unmarshal into jsonschema.Schema", err)
	}
	if _, err := check.Resolve(&jsonschema.ResolveOptions{}); err != nil {
		return nil, formgen.NewSchemaError(name, "failed to resolve JSON schema", err)
	}

	var raw rawEntitySchema
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, formgen.NewSchemaError(name, "failed to parse schema document", err)
	}

	entity := &EntitySchema{
		Name:                name,
		Table:               raw.Table,
		DisplayNameProperty: raw.DisplayName,
	}
	if entity.Table == "" {
		entity.Table = name
	}

	keys, values, err := orderedObject(raw.Properties)
	if err != nil {
		return nil, formgen.NewSchemaError(name, "failed to read properties", err)
	}

	columns := make(map[string]string, len(keys))
	columnTypes := make(map[string]string, len(keys))
	for _, key := range keys {
		prop, err := decodeProperty(values[key], raw.Defs)
		if err != nil {
			return nil, formgen.NewSchemaError(name, "invalid property", err).WithField(key)
		}

		descriptor, err := describeProperty(key, prop)
		if err != nil {
			return nil, formgen.NewSchemaError(name, err.Error(), nil).WithField(key)
		}
		entity.Properties = append(entity.Properties, descriptor)

		if descriptor.Kind != formgen.PropertyKindColumn {
			continue
		}
		columnName := key
		if prop.Column != nil && prop.Column.Name != "" {
			columnName = prop.Column.Name
		}
		columns[key] = columnName
		if _, seen := columnTypes[columnName]; !seen {
			columnTypes[columnName] = primaryType(prop.Type)
		}
		if descriptor.IsIdentifier && entity.IDColumn == "" {
			entity.IDColumn = columnName
		}
	}

	if entity.IDColumn == "" {
		entity.IDColumn = "id"
	}
	entity.IDType = columnTypes[entity.IDColumn]

	if entity.DisplayNameProperty != "" {
		column, ok := columns[entity.DisplayNameProperty]
		if !ok {
			return nil, formgen.NewSchemaError(name, "x-display-name must name a column property", nil).
				WithField(entity.DisplayNameProperty)
		}
		entity.DisplayColumn = column
	}

	return entity, nil
}

// decodeProperty decodes a property, following a local "#/$defs/..." reference.
// Extension keywords on the referencing property take precedence.
func decodeProperty(data json.RawMessage, defs map[string]json.RawMessage) (rawProperty, error) {
	var prop rawProperty
	if err := json.Unmarshal(data, &prop); err != nil {
		return rawProperty{}, err
	}
	if prop.Ref == "" {
		return prop, nil
	}

	const prefix = "#/$defs/"
	if !strings.HasPrefix(prop.Ref, prefix) {
		return rawProperty{}, fmt.Errorf("unsupported $ref %q", prop.Ref)
	}
	def, ok := defs[strings.TrimPrefix(prop.Ref, prefix)]
	if !ok {
		return rawProperty{}, fmt.Errorf("unresolved $ref %q", prop.Ref)
	}
	var resolved rawProperty
	if err := json.Unmarshal(def, &resolved); err != nil {
		return rawProperty{}, err
	}
	if prop.Column != nil {
		resolved.Column = prop.Column
	}
	if prop.Relation != nil {
		resolved.Relation = prop.Relation
	}
	if prop.Format != "" {
		resolved.Format = prop.Format
	}
	return resolved, nil
}

func describeProperty(name string, prop rawProperty) (formgen.PropertyDescriptor, error) {
	descriptor := formgen.PropertyDescriptor{Name: name}
	jsonType := primaryType(prop.Type)

	if prop.Relation != nil {
		if prop.Relation.Target == "" {
			return descriptor, fmt.Errorf("x-relation requires a target")
		}
		descriptor.TargetEntityType = prop.Relation.Target
		switch strings.ToLower(prop.Relation.Type) {
		case "one", "reference", "many-to-one", "one-to-one":
			descriptor.Kind = formgen.PropertyKindReferenceOne
		case "many", "collection", "one-to-many", "many-to-many":
			descriptor.Kind = formgen.PropertyKindReferenceMany
		case "":
			descriptor.Kind = formgen.PropertyKindReferenceOne
			if jsonType == "array" {
				descriptor.Kind = formgen.PropertyKindReferenceMany
			}
		default:
			return descriptor, fmt.Errorf("unsupported x-relation type %q", prop.Relation.Type)
		}
		return descriptor, nil
	}

	if jsonType == "object" || jsonType == "array" {
		descriptor.Kind = formgen.PropertyKindOther
		return descriptor, nil
	}

	descriptor.Kind = formgen.PropertyKindColumn
	descriptor.DeclaredType = declaredType(jsonType, prop)
	descriptor.IsIdentifier = prop.Column != nil && prop.Column.ID
	return descriptor, nil
}

func declaredType(jsonType string, prop rawProperty) string {
	if prop.Column != nil && prop.Column.Type != "" {
		return strings.ToLower(prop.Column.Type)
	}
	switch prop.Format {
	case "date-time":
		return formgen.DeclaredTypeDateTime
	case "date":
		return formgen.DeclaredTypeDate
	case "time":
		return formgen.DeclaredTypeTime
	}
	if jsonType == "boolean" {
		return formgen.DeclaredTypeBoolean
	}
	return ""
}

// primaryType returns the first non-null JSON type of a "type" keyword,
// which may be a string or a list.
func primaryType(t any) string {
	switch v := t.(type) {
	case string:
		return v
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok && s != "null" {
				return s
			}
		}
	}
	return ""
}

// orderedObject decodes a JSON object keeping its key order.
func orderedObject(data json.RawMessage) ([]string, map[string]json.RawMessage, error) {
	values := make(map[string]json.RawMessage)
	if len(bytes.TrimSpace(data)) == 0 || string(bytes.TrimSpace(data)) == "null" {
		return nil, values, nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return nil, nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, nil, fmt.Errorf("expected object, got %v", tok)
	}

	var keys []string
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, nil, fmt.Errorf("expected object key, got %v", tok)
		}
		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return nil, nil, err
		}
		if _, dup := values[key]; !dup {
			keys = append(keys, key)
		}
		values[key] = value
	}
	if _, err := dec.Token(); err != nil {
		return nil, nil, err
	}
	return keys, values, nil
}
