package formgen

import (
	"context"
	"strings"

	"go.uber.org/zap"
)

// Sentinel option prepended to single-reference choice fields.
const (
	NoneOptionValue = "0"
	NoneOptionLabel = "-none-"
)

// Generator derives a FormDefinition from an entity type's properties.
//
// Policy settings are applied through the setters before Generate is called.
// A Generator must not be reconfigured while a Generate call is running.
type Generator struct {
	reader PropertyReader
	store  EntityStore

	blacklist          nameSet
	whitelist          nameSet
	emailProperties    nameSet
	passwordProperties nameSet

	toOne  ToOneChoice
	toMany ToManyChoice
}

// NewGenerator creates a Generator with the default choice kinds
// (Select for single references, MultiCheckbox for collections).
func NewGenerator(reader PropertyReader, store EntityStore) *Generator {
	return &Generator{
		reader: reader,
		store:  store,
		toOne:  ToOneSelect,
		toMany: ToManyMultiCheckbox,
	}
}

// SetPropertyBlacklist excludes the named properties. An empty list disables the blacklist.
func (g *Generator) SetPropertyBlacklist(names []string) {
	g.blacklist = newNameSet(names)
}

// SetPropertyWhitelist restricts generation to the named properties. An empty
// list disables the whitelist. A name on both lists is excluded.
func (g *Generator) SetPropertyWhitelist(names []string) {
	g.whitelist = newNameSet(names)
}

// SetEmailProperties renders the named untyped columns as email inputs.
func (g *Generator) SetEmailProperties(names []string) {
	g.emailProperties = newNameSet(names)
}

// SetPasswordProperties renders the named untyped columns as a password
// input followed by a repeat input.
func (g *Generator) SetPasswordProperties(names []string) {
	g.passwordProperties = newNameSet(names)
}

// SetToOneChoice selects Select or Radio for single references.
func (g *Generator) SetToOneChoice(choice ToOneChoice) error {
	parsed, ok := ParseToOneChoice(string(choice))
	if !ok {
		return NewConfigurationError("", ErrCodeInvalidChoice, "unsupported to-one choice: "+string(choice))
	}
	g.toOne = parsed
	return nil
}

// SetToManyChoice selects MultiSelect or MultiCheckbox for collection references.
func (g *Generator) SetToManyChoice(choice ToManyChoice) error {
	parsed, ok := ParseToManyChoice(string(choice))
	if !ok {
		return NewConfigurationError("", ErrCodeInvalidChoice, "unsupported to-many choice: "+string(choice))
	}
	g.toMany = parsed
	return nil
}

// ApplyFormConfig copies every policy setting from cfg.
func (g *Generator) ApplyFormConfig(cfg FormConfig) error {
	g.SetPropertyBlacklist(cfg.PropertyBlacklist)
	g.SetPropertyWhitelist(cfg.PropertyWhitelist)
	g.SetEmailProperties(cfg.EmailProperties)
	g.SetPasswordProperties(cfg.PasswordProperties)
	if cfg.ToOneChoice != "" {
		if err := g.SetToOneChoice(cfg.ToOneChoice); err != nil {
			return err
		}
	}
	if cfg.ToManyChoice != "" {
		if err := g.SetToManyChoice(cfg.ToManyChoice); err != nil {
			return err
		}
	}
	return nil
}

// Clone returns a Generator sharing collaborators with g and holding a copy
// of its policy settings.
func (g *Generator) Clone() *Generator {
	return &Generator{
		reader:             g.reader,
		store:              g.store,
		blacklist:          g.blacklist.clone(),
		whitelist:          g.whitelist.clone(),
		emailProperties:    g.emailProperties.clone(),
		passwordProperties: g.passwordProperties.clone(),
		toOne:              g.toOne,
		toMany:             g.toMany,
	}
}

// Generate builds the form for entityType with the default FormBuilder.
// On error no form is returned.
func (g *Generator) Generate(ctx context.Context, entityType string) (*FormDefinition, error) {
	builder := NewFormBuilder(entityType)
	if err := g.GenerateInto(ctx, entityType, builder); err != nil {
		return nil, err
	}
	return builder.Build(), nil
}

// GenerateInto appends the fields for entityType to builder, followed by the
// submit element. When an error is returned the builder may hold a partial
// field list and should be discarded.
func (g *Generator) GenerateInto(ctx context.Context, entityType string, builder FormBuilder) error {
	if strings.TrimSpace(entityType) == "" {
		return NewError(ErrorTypeResolution, ErrCodeEntityTypeEmpty, "entity type is required")
	}
	if g.reader == nil || g.store == nil {
		return NewError(ErrorTypeInternal, ErrCodeCollaboratorMissing, "generator requires a property reader and an entity store")
	}

	properties, err := g.reader.GetProperties(ctx, entityType)
	if err != nil {
		return err
	}

	useWhitelist := len(g.whitelist) > 0
	useBlacklist := len(g.blacklist) > 0

	for _, property := range properties {
		name := property.Name
		if (useWhitelist && !g.whitelist.has(name)) || (useBlacklist && g.blacklist.has(name)) {
			zap.S().Debugw("property filtered", "entity", entityType, "property", name)
			continue
		}

		switch property.Kind {
		case PropertyKindColumn:
			if property.IsIdentifier {
				continue
			}
			g.addColumnField(builder, property)
		case PropertyKindReferenceOne:
			if err := g.addSingleChoiceField(ctx, builder, property); err != nil {
				return err
			}
		case PropertyKindReferenceMany:
			if err := g.addMultiChoiceField(ctx, builder, property); err != nil {
				return err
			}
		default:
			continue
		}
	}

	builder.AddSubmit(SubmitName, SubmitValue)
	return nil
}

// addColumnField maps a plain column onto a field kind. The declared type is
// checked before the email and password overrides.
func (g *Generator) addColumnField(builder FormBuilder, property PropertyDescriptor) {
	name := property.Name
	field := FieldSpec{Name: name, Label: name}

	switch property.DeclaredType {
	case DeclaredTypeDateTime:
		field.Kind = FieldKindDateTime
	case DeclaredTypeDate:
		field.Kind = FieldKindDate
	case DeclaredTypeTime:
		field.Kind = FieldKindTime
	case DeclaredTypeText:
		field.Kind = FieldKindTextarea
	case DeclaredTypeBoolean:
		field.Kind = FieldKindCheckbox
	default:
		switch {
		case g.emailProperties.has(name):
			field.Kind = FieldKindEmail
		case g.passwordProperties.has(name):
			builder.Add(FieldSpec{Name: name, Kind: FieldKindPassword, Label: name})
			field = FieldSpec{Name: name + "2", Kind: FieldKindPassword, Label: name + " (repeat)"}
		default:
			field.Kind = FieldKindText
		}
	}

	builder.Add(field)
}

func (g *Generator) addSingleChoiceField(ctx context.Context, builder FormBuilder, property PropertyDescriptor) error {
	kind := FieldKindSelect
	if g.toOne == ToOneRadio {
		kind = FieldKindRadio
	}

	resolved, err := g.ResolveOptions(ctx, property.TargetEntityType)
	if err != nil {
		return err
	}

	options := make([]Option, 0, len(resolved)+1)
	options = append(options, Option{Value: NoneOptionValue, Label: NoneOptionLabel})
	for _, opt := range resolved {
		if opt.Value == NoneOptionValue {
			// the sentinel keeps its slot
			continue
		}
		options = append(options, opt)
	}

	builder.Add(FieldSpec{
		Name:    property.Name,
		Kind:    kind,
		Label:   property.Name,
		Options: options,
	})
	return nil
}

func (g *Generator) addMultiChoiceField(ctx context.Context, builder FormBuilder, property PropertyDescriptor) error {
	field := FieldSpec{Name: property.Name, Label: property.Name}
	if g.toMany == ToManyMultiSelect {
		field.Kind = FieldKindMultiSelect
		field.Attributes = map[string]any{"multiple": true}
	} else {
		field.Kind = FieldKindMultiCheckbox
	}

	options, err := g.ResolveOptions(ctx, property.TargetEntityType)
	if err != nil {
		return err
	}
	if len(options) == 0 {
		zap.S().Debugw("collection reference has no rows, field omitted",
			"property", property.Name, "target", property.TargetEntityType)
		return nil
	}

	field.Options = options
	builder.Add(field)
	return nil
}

// ResolveOptions lists every row of entityType, ordered by identifier, as
// options keyed by row identifier. A repeated identifier keeps its first
// position and takes the later label.
func (g *Generator) ResolveOptions(ctx context.Context, entityType string) ([]Option, error) {
	if g.store == nil {
		return nil, NewError(ErrorTypeInternal, ErrCodeCollaboratorMissing, "generator requires an entity store")
	}
	if entityType == "" {
		return nil, NewConfigurationError("", ErrCodeRelationTargetMissing, "reference property has no target entity type")
	}

	rows, err := g.store.FindAll(ctx, entityType)
	if err != nil {
		return nil, err
	}

	options := make([]Option, 0, len(rows))
	positions := make(map[string]int, len(rows))
	for _, row := range rows {
		id := row.ID()
		if pos, seen := positions[id]; seen {
			options[pos].Label = row.DisplayLabel()
			continue
		}
		positions[id] = len(options)
		options = append(options, Option{Value: id, Label: row.DisplayLabel()})
	}
	return options, nil
}

type nameSet map[string]struct{}

func newNameSet(names []string) nameSet {
	if len(names) == 0 {
		return nil
	}
	set := make(nameSet, len(names))
	for _, name := range names {
		set[name] = struct{}{}
	}
	return set
}

func (s nameSet) has(name string) bool {
	_, ok := s[name]
	return ok
}

func (s nameSet) clone() nameSet {
	if s == nil {
		return nil
	}
	out := make(nameSet, len(s))
	for k := range s {
		out[k] = struct{}{}
	}
	return out
}
