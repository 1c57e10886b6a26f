package mapper

import (
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// ============================================================================
// Transformation engine
// ============================================================================

// contextRefPrefix marks a default value as a context reference rather than
// a literal, e.g. "$ctx.organizationId".
const contextRefPrefix = "$ctx."

// Engine executes mappings from a registry against source documents. It
// holds no mutable state across calls apart from the package-level compiled
// expression cache, so a single Engine is safe for concurrent use.
type Engine struct {
	registry *Registry
	log      zerolog.Logger
}

// NewEngine creates an engine over the given registry.
func NewEngine(registry *Registry, log zerolog.Logger) *Engine {
	return &Engine{registry: registry, log: log}
}

// Registry returns the registry the engine runs against.
func (e *Engine) Registry() *Registry { return e.registry }

// Transform looks up the mapping by id, checks it against the caller's
// intended direction, and executes it. On failure the caller receives the
// error and no partial target; when tracing was enabled the context's trace
// carries the failure for diagnosis.
func (e *Engine) Transform(source map[string]interface{}, mappingID string, direction Direction, ctx *Context) (map[string]interface{}, error) {
	m := e.registry.Mapping(mappingID)
	if m == nil {
		return nil, &TransformError{MappingID: mappingID, Cause: errMappingNotFound(mappingID)}
	}
	if m.Direction != direction {
		return nil, &DirectionError{MappingID: m.ID, Expected: m.Direction, Actual: direction}
	}
	return e.Execute(source, m, ctx)
}

// Execute runs a mapping's field rules in declared order against the source
// document and returns the built target document.
func (e *Engine) Execute(source map[string]interface{}, m *Mapping, ctx *Context) (map[string]interface{}, error) {
	if ctx == nil {
		ctx = NewContext()
	}
	if ctx.trace != nil {
		ctx.trace.begin(m.ID)
	}

	target := make(map[string]interface{})
	if m.Direction == JSONToFHIR && m.TargetType != "" {
		target["resourceType"] = m.TargetType
	}

	for _, field := range m.FieldMappings {
		o := e.applyField(m, field, source, target, ctx)
		if o.err == nil {
			continue
		}
		if o.fatal {
			err := &TransformError{MappingID: m.ID, FieldID: field.ID, Cause: o.err}
			if ctx.trace != nil {
				ctx.trace.finishFailure(err)
			}
			e.log.Error().Err(o.err).
				Str("mapping_id", m.ID).
				Str("field_id", field.ID).
				Msg("transformation failed")
			return nil, err
		}
		e.log.Debug().Err(o.err).
			Str("mapping_id", m.ID).
			Str("field_id", field.ID).
			Msg("optional field skipped")
	}

	if ctx.trace != nil {
		ctx.trace.finishSuccess()
	}
	return target, nil
}

type mappingNotFoundError string

func errMappingNotFound(id string) error { return mappingNotFoundError(id) }

func (e mappingNotFoundError) Error() string { return "mapping not found: " + string(e) }

// ============================================================================
// Field pipeline
// ============================================================================

// fieldOutcome is the result of one field rule's pipeline. err nil means the
// field completed or was legitimately skipped; fatal marks an error that
// must abort the whole transformation.
type fieldOutcome struct {
	err   error
	fatal bool
}

func fieldOK() fieldOutcome { return fieldOutcome{} }

func fieldFailed(err error, required bool) fieldOutcome {
	return fieldOutcome{err: err, fatal: required}
}

func fieldFatal(err error) fieldOutcome {
	return fieldOutcome{err: err, fatal: true}
}

// applyField runs the fixed pipeline for one field rule: condition, extract,
// default, transform, required check, lookup, type coercion, validate,
// write. The step order never varies; unset steps pass through.
func (e *Engine) applyField(m *Mapping, field FieldMapping, source, target map[string]interface{}, ctx *Context) fieldOutcome {
	ft := FieldTrace{
		FieldID:         field.ID,
		SourcePath:      field.SourcePath,
		TargetPath:      field.TargetPath,
		Expression:      field.TransformExpression,
		Condition:       field.Condition,
		ConditionPassed: true,
		StartTime:       time.Now(),
	}
	record := func(o fieldOutcome) fieldOutcome {
		if o.err != nil {
			ft.ErrorMessage = o.err.Error()
		}
		ft.EndTime = time.Now()
		if ctx.trace != nil {
			ctx.trace.addField(ft)
		}
		return o
	}

	// 1. Condition
	if field.Condition != "" {
		pass, err := EvaluateCondition(field.Condition, buildEnv(source, nil, ctx))
		if err != nil {
			return record(fieldFailed(err, field.Required))
		}
		if !pass {
			ft.ConditionPassed = false
			return record(fieldOK())
		}
	}

	// 2. Extract
	var value interface{}
	if field.SourcePath != "" {
		v, err := GetValue(source, field.SourcePath)
		if err != nil {
			return record(fieldFailed(err, field.Required))
		}
		value = v
	}
	ft.SourceValue = value

	// 3. Default
	if value == nil && field.DefaultValue != "" {
		value = resolveDefault(field.DefaultValue, ctx)
	}

	// 4. Transform. Transforms are load-bearing: a failure here aborts the
	// whole mapping regardless of the required flag.
	if field.TransformExpression != "" {
		v, err := Evaluate(field.TransformExpression, buildEnv(source, value, ctx))
		if err != nil {
			return record(fieldFatal(err))
		}
		value = v
	}

	// 5. Required check
	if value == nil {
		if field.Required {
			return record(fieldFatal(&RequiredFieldError{FieldID: field.ID, SourcePath: field.SourcePath}))
		}
		return record(fieldOK())
	}

	// 6. Lookup. A declared lookup is assumed always resolvable, so a miss
	// is fatal even for optional fields.
	if field.LookupTable != "" {
		table := e.registry.Table(field.LookupTable)
		if table == nil {
			return record(fieldFatal(&LookupMissError{TableID: field.LookupTable, Code: stringify(value)}))
		}
		result, err := table.Lookup(stringify(value), m.Direction)
		if err != nil {
			return record(fieldFatal(err))
		}
		value = result.Code
	}

	// 7. Type coercion. A parse failure falls back silently to the
	// pre-coercion value.
	value = coerceType(value, field.DataType)

	// 8. Validate
	if field.Validator != "" {
		if err := runValidator(field.ID, field.Validator, value); err != nil {
			return record(fieldFailed(err, field.Required))
		}
	}

	// 9. Write
	ft.ResultValue = value
	if err := SetValue(target, field.TargetPath, value); err != nil {
		return record(fieldFailed(err, field.Required))
	}
	return record(fieldOK())
}

// buildEnv constructs the per-evaluation variable environment: every
// top-level source key as a direct variable, the working value under
// "value", and the merged context namespace under "$ctx". Nothing else is
// bound.
func buildEnv(source map[string]interface{}, value interface{}, ctx *Context) map[string]interface{} {
	env := make(map[string]interface{}, len(source)+2)
	for k, v := range source {
		env[k] = v
	}
	env["value"] = value
	env["$ctx"] = ctx.ctxValues()
	return env
}

// resolveDefault resolves a field's default: a $ctx. reference against
// settings, then the fixed identifiers, then variables; anything else is a
// literal string.
func resolveDefault(defaultValue string, ctx *Context) interface{} {
	if !strings.HasPrefix(defaultValue, contextRefPrefix) {
		return defaultValue
	}
	key := defaultValue[len(contextRefPrefix):]
	if v, ok := ctx.Settings[key]; ok {
		return v
	}
	switch key {
	case "organizationId":
		if ctx.OrganizationID != "" {
			return ctx.OrganizationID
		}
	case "facilityId":
		if ctx.FacilityID != "" {
			return ctx.FacilityID
		}
	case "tenantId":
		if ctx.TenantID != "" {
			return ctx.TenantID
		}
	}
	if v, ok := ctx.Variables[key]; ok {
		return v
	}
	return nil
}

// coerceType converts the value per the field's semantic type tag. Unknown
// tags and parse failures keep the value as-is.
func coerceType(value interface{}, dataType string) interface{} {
	switch strings.ToLower(dataType) {
	case "boolean":
		if b, ok := value.(bool); ok {
			return b
		}
		s := strings.ToLower(strings.TrimSpace(stringify(value)))
		if s == "true" {
			return true
		}
		if s == "false" {
			return false
		}
		return value
	case "integer", "int":
		if isIntegral(value) {
			return value
		}
		if f, ok := toFloat(value); ok {
			return int64(f)
		}
		if i, err := strconv.ParseInt(strings.TrimSpace(stringify(value)), 10, 64); err == nil {
			return i
		}
		return value
	case "decimal", "double", "float":
		if f, ok := toFloat(value); ok {
			return f
		}
		if f, err := strconv.ParseFloat(strings.TrimSpace(stringify(value)), 64); err == nil {
			return f
		}
		return value
	default:
		return value
	}
}
