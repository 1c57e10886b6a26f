package mapper

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"
)

// ---------------------------------------------------------------------------
// helpers
// ---------------------------------------------------------------------------

func newTestEngine(t *testing.T, mappings []*Mapping, tables []*LookupTable) *Engine {
	t.Helper()
	registry, err := NewRegistry(mappings, tables)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	return NewEngine(registry, zerolog.Nop())
}

func patientMapping() *Mapping {
	return &Mapping{
		ID:         "patient-to-fhir",
		Name:       "Patient",
		Version:    "1.0",
		Direction:  JSONToFHIR,
		SourceType: "patient",
		TargetType: "Patient",
		FieldMappings: []FieldMapping{
			{
				ID:         "patient-id",
				SourcePath: "patientId",
				TargetPath: "identifier[0].value",
				Required:   true,
			},
			{
				ID:                  "ssn",
				SourcePath:          "ssn",
				TargetPath:          "identifier[1].value",
				TransformExpression: "fn.removeHyphens(value)",
				Condition:           "fn.isNotEmpty(ssn)",
			},
		},
	}
}

func mustTransform(t *testing.T, e *Engine, source map[string]interface{}, mappingID string, direction Direction, ctx *Context) map[string]interface{} {
	t.Helper()
	target, err := e.Transform(source, mappingID, direction, ctx)
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	return target
}

// ---------------------------------------------------------------------------
// End-to-end
// ---------------------------------------------------------------------------

func TestTransformEndToEnd(t *testing.T) {
	e := newTestEngine(t, []*Mapping{patientMapping()}, nil)
	source := map[string]interface{}{
		"patientId": "P1",
		"ssn":       "123-45-6789",
	}

	target := mustTransform(t, e, source, "patient-to-fhir", JSONToFHIR, nil)

	if target["resourceType"] != "Patient" {
		t.Errorf("expected resourceType Patient, got %v", target["resourceType"])
	}
	identifiers, ok := target["identifier"].([]interface{})
	if !ok || len(identifiers) != 2 {
		t.Fatalf("expected 2 identifiers, got %v", target["identifier"])
	}
	first := identifiers[0].(map[string]interface{})
	if first["value"] != "P1" {
		t.Errorf("expected P1, got %v", first["value"])
	}
	second := identifiers[1].(map[string]interface{})
	if second["value"] != "123456789" {
		t.Errorf("expected 123456789, got %v", second["value"])
	}
}

func TestTransformUnknownMapping(t *testing.T) {
	e := newTestEngine(t, []*Mapping{patientMapping()}, nil)
	_, err := e.Transform(map[string]interface{}{}, "nope", JSONToFHIR, nil)
	if err == nil {
		t.Fatal("expected error for unknown mapping")
	}
}

func TestTransformDirectionMismatch(t *testing.T) {
	e := newTestEngine(t, []*Mapping{patientMapping()}, nil)
	_, err := e.Transform(map[string]interface{}{"patientId": "P1"}, "patient-to-fhir", FHIRToJSON, nil)
	if err == nil {
		t.Fatal("expected direction error")
	}
	var dirErr *DirectionError
	if !errors.As(err, &dirErr) {
		t.Fatalf("expected *DirectionError, got %T", err)
	}
	if dirErr.Expected != JSONToFHIR || dirErr.Actual != FHIRToJSON {
		t.Errorf("unexpected direction error: %+v", dirErr)
	}
}

func TestTransformReverseDirectionSkipsResourceType(t *testing.T) {
	m := &Mapping{
		ID:        "fhir-to-flat",
		Direction: FHIRToJSON,
		FieldMappings: []FieldMapping{
			{ID: "id", SourcePath: "identifier[0].value", TargetPath: "patientId"},
		},
	}
	e := newTestEngine(t, []*Mapping{m}, nil)
	source := map[string]interface{}{
		"identifier": []interface{}{map[string]interface{}{"value": "P1"}},
	}
	target := mustTransform(t, e, source, "fhir-to-flat", FHIRToJSON, nil)
	if _, present := target["resourceType"]; present {
		t.Error("reverse mapping must not tag resourceType")
	}
	if target["patientId"] != "P1" {
		t.Errorf("expected P1, got %v", target["patientId"])
	}
}

// ---------------------------------------------------------------------------
// Required / optional policy
// ---------------------------------------------------------------------------

func TestRequiredMissingAborts(t *testing.T) {
	m := &Mapping{
		ID:        "req",
		Direction: JSONToFHIR,
		FieldMappings: []FieldMapping{
			{ID: "first", SourcePath: "a", TargetPath: "out.a"},
			{ID: "must-have", SourcePath: "missing", TargetPath: "out.b", Required: true},
			{ID: "after", SourcePath: "c", TargetPath: "out.c"},
		},
	}
	e := newTestEngine(t, []*Mapping{m}, nil)

	target, err := e.Transform(map[string]interface{}{"a": 1, "c": 2}, "req", JSONToFHIR, nil)
	if err == nil {
		t.Fatal("expected error for missing required field")
	}
	if target != nil {
		t.Error("no partial target on failure")
	}

	var te *TransformError
	if !errors.As(err, &te) {
		t.Fatalf("expected *TransformError, got %T", err)
	}
	if te.FieldID != "must-have" {
		t.Errorf("error must identify the field, got %q", te.FieldID)
	}
	var reqErr *RequiredFieldError
	if !errors.As(err, &reqErr) {
		t.Errorf("expected wrapped *RequiredFieldError, got %v", err)
	}
}

func TestOptionalMissingIsSilent(t *testing.T) {
	m := &Mapping{
		ID:        "opt",
		Direction: JSONToFHIR,
		FieldMappings: []FieldMapping{
			{ID: "maybe", SourcePath: "missing", TargetPath: "out.a"},
			{ID: "present", SourcePath: "b", TargetPath: "out.b"},
		},
	}
	e := newTestEngine(t, []*Mapping{m}, nil)

	target := mustTransform(t, e, map[string]interface{}{"b": "v"}, "opt", JSONToFHIR, nil)
	out := target["out"].(map[string]interface{})
	if _, present := out["a"]; present {
		t.Error("optional missing field must write nothing")
	}
	if out["b"] != "v" {
		t.Errorf("expected v, got %v", out["b"])
	}
}

func TestTransformErrorFatalEvenWhenOptional(t *testing.T) {
	m := &Mapping{
		ID:        "xf",
		Direction: JSONToFHIR,
		FieldMappings: []FieldMapping{
			{
				ID:                  "broken",
				SourcePath:          "a",
				TargetPath:          "out.a",
				TransformExpression: "1 +", // does not compile
			},
		},
	}
	e := newTestEngine(t, []*Mapping{m}, nil)

	_, err := e.Transform(map[string]interface{}{"a": "x"}, "xf", JSONToFHIR, nil)
	if err == nil {
		t.Fatal("transform failure must abort even for optional fields")
	}
	var exprErr *ExpressionError
	if !errors.As(err, &exprErr) {
		t.Fatalf("expected wrapped *ExpressionError, got %T", err)
	}
}

func TestConditionErrorSkipsOptionalField(t *testing.T) {
	m := &Mapping{
		ID:        "cond-err",
		Direction: JSONToFHIR,
		FieldMappings: []FieldMapping{
			{ID: "broken", SourcePath: "a", TargetPath: "out.a", Condition: "1 +"},
			{ID: "fine", SourcePath: "b", TargetPath: "out.b"},
		},
	}
	e := newTestEngine(t, []*Mapping{m}, nil)

	target := mustTransform(t, e, map[string]interface{}{"a": 1, "b": 2}, "cond-err", JSONToFHIR, nil)
	out := target["out"].(map[string]interface{})
	if _, present := out["a"]; present {
		t.Error("field with failing optional condition must be skipped")
	}
	if out["b"] == nil {
		t.Error("later fields must still run")
	}
}

// ---------------------------------------------------------------------------
// Condition
// ---------------------------------------------------------------------------

func TestConditionShortCircuit(t *testing.T) {
	m := &Mapping{
		ID:        "cond",
		Direction: JSONToFHIR,
		FieldMappings: []FieldMapping{
			{
				ID:         "guarded",
				SourcePath: "a",
				TargetPath: "out.a",
				Condition:  "fn.isNotEmpty(ssn)",
				// Would fail loudly if the pipeline ran past the condition.
				TransformExpression: "fn.toInt(value)",
			},
		},
	}
	e := newTestEngine(t, []*Mapping{m}, nil)

	ctx := NewContext()
	ctx.EnableTracing()
	target := mustTransform(t, e, map[string]interface{}{"a": "not-a-number"}, "cond", JSONToFHIR, ctx)
	if _, present := target["out"]; present {
		t.Error("short-circuited field must write nothing")
	}

	ft, ok := ctx.Trace().FieldByID("guarded")
	if !ok {
		t.Fatal("expected field trace for short-circuited field")
	}
	if ft.ConditionPassed {
		t.Error("trace must record conditionPassed=false")
	}
	if ft.ErrorMessage != "" {
		t.Errorf("short circuit is not an error, got %q", ft.ErrorMessage)
	}
}

// ---------------------------------------------------------------------------
// Defaults and context
// ---------------------------------------------------------------------------

func TestDefaultLiteral(t *testing.T) {
	m := &Mapping{
		ID:        "def",
		Direction: JSONToFHIR,
		FieldMappings: []FieldMapping{
			{ID: "status", SourcePath: "status", TargetPath: "status", DefaultValue: "active"},
		},
	}
	e := newTestEngine(t, []*Mapping{m}, nil)

	target := mustTransform(t, e, map[string]interface{}{}, "def", JSONToFHIR, nil)
	if target["status"] != "active" {
		t.Errorf("expected active, got %v", target["status"])
	}

	// An extracted value wins over the default.
	target = mustTransform(t, e, map[string]interface{}{"status": "inactive"}, "def", JSONToFHIR, nil)
	if target["status"] != "inactive" {
		t.Errorf("expected inactive, got %v", target["status"])
	}
}

func TestDefaultContextReference(t *testing.T) {
	m := &Mapping{
		ID:        "ctxdef",
		Direction: JSONToFHIR,
		FieldMappings: []FieldMapping{
			{ID: "org", SourcePath: "org", TargetPath: "managingOrganization.reference", DefaultValue: "$ctx.organizationId"},
			{ID: "site", SourcePath: "site", TargetPath: "site", DefaultValue: "$ctx.siteCode"},
			{ID: "batch", SourcePath: "batch", TargetPath: "batch", DefaultValue: "$ctx.batchId"},
		},
	}
	e := newTestEngine(t, []*Mapping{m}, nil)

	ctx := NewContext()
	ctx.OrganizationID = "org-77"
	ctx.Settings["siteCode"] = "SITE-A"
	ctx.SetVariable("batchId", "b-1")

	target := mustTransform(t, e, map[string]interface{}{}, "ctxdef", JSONToFHIR, ctx)
	if got := mustGet(t, target, "managingOrganization.reference"); got != "org-77" {
		t.Errorf("expected org-77, got %v", got)
	}
	if target["site"] != "SITE-A" {
		t.Errorf("settings must resolve, got %v", target["site"])
	}
	if target["batch"] != "b-1" {
		t.Errorf("variables must resolve, got %v", target["batch"])
	}
}

func TestDefaultContextSettingsWinOverIdentifiers(t *testing.T) {
	ctx := NewContext()
	ctx.OrganizationID = "from-identifier"
	ctx.Settings["organizationId"] = "from-settings"
	if got := resolveDefault("$ctx.organizationId", ctx); got != "from-settings" {
		t.Errorf("settings take priority, got %v", got)
	}
}

func TestContextExposedToExpressions(t *testing.T) {
	m := &Mapping{
		ID:        "ctxexpr",
		Direction: JSONToFHIR,
		FieldMappings: []FieldMapping{
			{
				ID:                  "tenant-tag",
				SourcePath:          "id",
				TargetPath:          "meta.source",
				TransformExpression: "$ctx.tenantId + '/' + value",
			},
		},
	}
	e := newTestEngine(t, []*Mapping{m}, nil)

	ctx := NewContext()
	ctx.TenantID = "t-9"
	target := mustTransform(t, e, map[string]interface{}{"id": "42"}, "ctxexpr", JSONToFHIR, ctx)
	if got := mustGet(t, target, "meta.source"); got != "t-9/42" {
		t.Errorf("expected t-9/42, got %v", got)
	}
}

// ---------------------------------------------------------------------------
// Lookup
// ---------------------------------------------------------------------------

func TestLookupAppliedToField(t *testing.T) {
	m := &Mapping{
		ID:        "withlookup",
		Direction: JSONToFHIR,
		FieldMappings: []FieldMapping{
			{ID: "gender", SourcePath: "sex", TargetPath: "gender", LookupTable: "gender"},
		},
	}
	e := newTestEngine(t, []*Mapping{m}, []*LookupTable{genderTable()})

	target := mustTransform(t, e, map[string]interface{}{"sex": "F"}, "withlookup", JSONToFHIR, nil)
	if target["gender"] != "female" {
		t.Errorf("expected female, got %v", target["gender"])
	}
}

func TestLookupMissFatalEvenWhenOptional(t *testing.T) {
	m := &Mapping{
		ID:        "misslookup",
		Direction: JSONToFHIR,
		FieldMappings: []FieldMapping{
			{ID: "gender", SourcePath: "sex", TargetPath: "gender", LookupTable: "gender", Required: false},
		},
	}
	e := newTestEngine(t, []*Mapping{m}, []*LookupTable{genderTable()})

	_, err := e.Transform(map[string]interface{}{"sex": "X"}, "misslookup", JSONToFHIR, nil)
	if err == nil {
		t.Fatal("lookup miss must abort even for optional fields")
	}
	var miss *LookupMissError
	if !errors.As(err, &miss) {
		t.Fatalf("expected wrapped *LookupMissError, got %T", err)
	}
}

func TestLookupReverseInReverseMapping(t *testing.T) {
	m := &Mapping{
		ID:        "revlookup",
		Direction: FHIRToJSON,
		FieldMappings: []FieldMapping{
			{ID: "sex", SourcePath: "gender", TargetPath: "sex", LookupTable: "gender"},
		},
	}
	e := newTestEngine(t, []*Mapping{m}, []*LookupTable{genderTable()})

	target := mustTransform(t, e, map[string]interface{}{"gender": "male"}, "revlookup", FHIRToJSON, nil)
	if target["sex"] != "M" {
		t.Errorf("expected M, got %v", target["sex"])
	}
}

// ---------------------------------------------------------------------------
// Type coercion
// ---------------------------------------------------------------------------

func TestTypeCoercion(t *testing.T) {
	m := &Mapping{
		ID:        "types",
		Direction: JSONToFHIR,
		FieldMappings: []FieldMapping{
			{ID: "active", SourcePath: "active", TargetPath: "active", DataType: "boolean"},
			{ID: "count", SourcePath: "count", TargetPath: "count", DataType: "integer"},
			{ID: "weight", SourcePath: "weight", TargetPath: "weight", DataType: "decimal"},
		},
	}
	e := newTestEngine(t, []*Mapping{m}, nil)

	source := map[string]interface{}{"active": "true", "count": "12", "weight": "72.5"}
	target := mustTransform(t, e, source, "types", JSONToFHIR, nil)

	if target["active"] != true {
		t.Errorf("expected true, got %v (%T)", target["active"], target["active"])
	}
	if target["count"] != int64(12) {
		t.Errorf("expected 12, got %v (%T)", target["count"], target["count"])
	}
	if target["weight"] != 72.5 {
		t.Errorf("expected 72.5, got %v (%T)", target["weight"], target["weight"])
	}
}

func TestTypeCoercionSilentFallback(t *testing.T) {
	m := &Mapping{
		ID:        "badtypes",
		Direction: JSONToFHIR,
		FieldMappings: []FieldMapping{
			{ID: "count", SourcePath: "count", TargetPath: "count", DataType: "integer"},
		},
	}
	e := newTestEngine(t, []*Mapping{m}, nil)

	// An unparseable value keeps its pre-coercion form, without error.
	target := mustTransform(t, e, map[string]interface{}{"count": "twelve"}, "badtypes", JSONToFHIR, nil)
	if target["count"] != "twelve" {
		t.Errorf("expected silent fallback to twelve, got %v", target["count"])
	}
}

// ---------------------------------------------------------------------------
// Validation
// ---------------------------------------------------------------------------

func TestValidatorAbortsRequiredField(t *testing.T) {
	m := &Mapping{
		ID:        "validated",
		Direction: JSONToFHIR,
		FieldMappings: []FieldMapping{
			{
				ID:         "ssn",
				SourcePath: "ssn",
				TargetPath: "ssn",
				Validator:  `regex(^\d{3}-\d{2}-\d{4}$)`,
				Required:   true,
			},
		},
	}
	e := newTestEngine(t, []*Mapping{m}, nil)

	_, err := e.Transform(map[string]interface{}{"ssn": "garbage"}, "validated", JSONToFHIR, nil)
	if err == nil {
		t.Fatal("expected validation error")
	}
	var valErr *ValidationError
	if !errors.As(err, &valErr) {
		t.Fatalf("expected wrapped *ValidationError, got %T", err)
	}
}

func TestValidatorSkipsOptionalField(t *testing.T) {
	m := &Mapping{
		ID:        "optvalidated",
		Direction: JSONToFHIR,
		FieldMappings: []FieldMapping{
			{ID: "ssn", SourcePath: "ssn", TargetPath: "ssn", Validator: "minLength(9)"},
			{ID: "name", SourcePath: "name", TargetPath: "name"},
		},
	}
	e := newTestEngine(t, []*Mapping{m}, nil)

	target := mustTransform(t, e, map[string]interface{}{"ssn": "123", "name": "n"}, "optvalidated", JSONToFHIR, nil)
	if _, present := target["ssn"]; present {
		t.Error("rejected optional field must write nothing")
	}
	if target["name"] != "n" {
		t.Errorf("expected n, got %v", target["name"])
	}
}

// ---------------------------------------------------------------------------
// Tracing
// ---------------------------------------------------------------------------

func TestTraceSuccess(t *testing.T) {
	e := newTestEngine(t, []*Mapping{patientMapping()}, nil)

	ctx := NewContext()
	ctx.EnableTracingWithID("trace-1")
	source := map[string]interface{}{"patientId": "P1", "ssn": "123-45-6789"}
	mustTransform(t, e, source, "patient-to-fhir", JSONToFHIR, ctx)

	trace := ctx.Trace()
	if trace == nil {
		t.Fatal("expected trace")
	}
	if trace.TraceID != "trace-1" || trace.MappingID != "patient-to-fhir" {
		t.Errorf("unexpected trace identity: %+v", trace)
	}
	if !trace.Success {
		t.Error("expected success=true")
	}
	if trace.EndTime.Before(trace.StartTime) {
		t.Error("end time must not precede start time")
	}
	if len(trace.Fields) != 2 {
		t.Fatalf("expected 2 field traces, got %d", len(trace.Fields))
	}

	ssn, _ := trace.FieldByID("ssn")
	if ssn.SourceValue != "123-45-6789" {
		t.Errorf("expected raw source value, got %v", ssn.SourceValue)
	}
	if ssn.ResultValue != "123456789" {
		t.Errorf("expected transformed value, got %v", ssn.ResultValue)
	}
	if ssn.Expression != "fn.removeHyphens(value)" {
		t.Errorf("trace must record the expression, got %q", ssn.Expression)
	}
}

func TestTraceFailure(t *testing.T) {
	e := newTestEngine(t, []*Mapping{patientMapping()}, nil)

	ctx := NewContext()
	ctx.EnableTracing()
	_, err := e.Transform(map[string]interface{}{"ssn": "x"}, "patient-to-fhir", JSONToFHIR, ctx)
	if err == nil {
		t.Fatal("expected error for missing required patientId")
	}

	trace := ctx.Trace()
	if trace.Success {
		t.Error("expected success=false")
	}
	if trace.ErrorMessage == "" {
		t.Error("expected error message on trace")
	}
	ft, ok := trace.FieldByID("patient-id")
	if !ok {
		t.Fatal("failed field must still be traced")
	}
	if ft.ErrorMessage == "" {
		t.Error("field trace must carry the failure")
	}
}

func TestNoTraceWithoutOptIn(t *testing.T) {
	e := newTestEngine(t, []*Mapping{patientMapping()}, nil)
	ctx := NewContext()
	mustTransform(t, e, map[string]interface{}{"patientId": "P1"}, "patient-to-fhir", JSONToFHIR, ctx)
	if ctx.Trace() != nil {
		t.Error("trace must only exist when requested")
	}
}

// ---------------------------------------------------------------------------
// Concurrency
// ---------------------------------------------------------------------------

func TestConcurrentTransforms(t *testing.T) {
	e := newTestEngine(t, []*Mapping{patientMapping()}, nil)

	done := make(chan error, 16)
	for i := 0; i < 16; i++ {
		go func(n int) {
			source := map[string]interface{}{"patientId": "P1", "ssn": "123-45-6789"}
			ctx := NewContext()
			ctx.EnableTracing()
			_, err := e.Transform(source, "patient-to-fhir", JSONToFHIR, ctx)
			done <- err
		}(i)
	}
	for i := 0; i < 16; i++ {
		if err := <-done; err != nil {
			t.Fatalf("concurrent transform failed: %v", err)
		}
	}
}
