package formgen

// Submit element appended to every generated form.
const (
	SubmitName  = "save"
	SubmitValue = "save"
)

// FormBuilder accumulates form fields in order.
type FormBuilder interface {
	Add(field FieldSpec)
	AddSubmit(name, value string)
	Build() *FormDefinition
}

type formBuilder struct {
	entityType string
	fields     []FieldSpec
}

// NewFormBuilder returns the default FormBuilder.
func NewFormBuilder(entityType string) FormBuilder {
	return &formBuilder{entityType: entityType}
}

func (b *formBuilder) Add(field FieldSpec) {
	b.fields = append(b.fields, field)
}

func (b *formBuilder) AddSubmit(name, value string) {
	b.fields = append(b.fields, FieldSpec{Name: name, Kind: FieldKindSubmit, Value: value})
}

func (b *formBuilder) Build() *FormDefinition {
	fields := make([]FieldSpec, len(b.fields))
	copy(fields, b.fields)
	return &FormDefinition{EntityType: b.entityType, Fields: fields}
}
