package mapper

// Direction identifies which side of a mapping is the source.
type Direction string

const (
	// JSONToFHIR maps a flat source document into a FHIR resource shape.
	JSONToFHIR Direction = "JSON_TO_FHIR"
	// FHIRToJSON maps a FHIR resource shape back into a flat document.
	FHIRToJSON Direction = "FHIR_TO_JSON"
)

// Valid reports whether d is a known direction.
func (d Direction) Valid() bool {
	return d == JSONToFHIR || d == FHIRToJSON
}

// Mapping is a named, versioned, ordered collection of field rules that
// converts one document shape into another. Mappings are loaded once and
// treated as immutable, shared, read-only data for the engine's lifetime.
type Mapping struct {
	ID            string         `json:"id"`
	Name          string         `json:"name,omitempty"`
	Version       string         `json:"version,omitempty"`
	Direction     Direction      `json:"direction"`
	SourceType    string         `json:"sourceType,omitempty"`
	TargetType    string         `json:"targetType,omitempty"`
	Description   string         `json:"description,omitempty"`
	FieldMappings []FieldMapping `json:"fieldMappings"`
}

// FieldMapping is one declarative instruction describing how to derive and
// place a single target value.
type FieldMapping struct {
	ID string `json:"id"`

	// SourcePath addresses the value to extract. When empty the field can
	// only produce a value through DefaultValue.
	SourcePath string `json:"sourcePath,omitempty"`

	// TargetPath addresses where the final value is written.
	TargetPath string `json:"targetPath"`

	// DataType is an optional semantic type tag (boolean, integer,
	// decimal); other tags keep the value as-is.
	DataType string `json:"dataType,omitempty"`

	// TransformExpression, when set, rewrites the working value. A
	// transform failure is fatal to the whole transformation.
	TransformExpression string `json:"transformExpression,omitempty"`

	// Condition, when set, must evaluate truthy for the field to be
	// processed at all.
	Condition string `json:"condition,omitempty"`

	// Validator names a validation rule applied to the final value, e.g.
	// notEmpty() or regex(pattern).
	Validator string `json:"validator,omitempty"`

	Required bool `json:"required,omitempty"`

	// DefaultValue is a literal, or a $ctx. reference resolved against the
	// transformation context, used when extraction yields nil.
	DefaultValue string `json:"defaultValue,omitempty"`

	// LookupTable references a code lookup table by id.
	LookupTable string `json:"lookupTable,omitempty"`

	Description string `json:"description,omitempty"`
}
