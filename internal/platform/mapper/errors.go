package mapper

import "fmt"

// PathError reports a malformed path expression. Reads never produce a
// PathError -- a missing path resolves to nil. Only writes with a broken
// addressing grammar (non-numeric index, empty key) raise it.
type PathError struct {
	Path   string
	Reason string
}

func (e *PathError) Error() string {
	return fmt.Sprintf("invalid path %q: %s", e.Path, e.Reason)
}

// ExpressionError reports a compile or evaluation failure of a condition or
// transform expression. It always carries the offending expression text.
type ExpressionError struct {
	Expression string
	Message    string
	Cause      error
}

func (e *ExpressionError) Error() string {
	return fmt.Sprintf("expression %q: %s", e.Expression, e.Message)
}

func (e *ExpressionError) Unwrap() error { return e.Cause }

// LookupMissError reports a code that could not be resolved against a
// declared lookup table. A declared lookup is assumed always resolvable, so
// a miss is fatal to the whole transformation regardless of the field's
// required flag.
type LookupMissError struct {
	TableID string
	Code    string
}

func (e *LookupMissError) Error() string {
	return fmt.Sprintf("no mapping found for code %q in lookup table %q", e.Code, e.TableID)
}

// RequiredFieldError reports a required field whose value was still absent
// after extraction, default resolution and transformation.
type RequiredFieldError struct {
	FieldID    string
	SourcePath string
}

func (e *RequiredFieldError) Error() string {
	if e.SourcePath != "" {
		return fmt.Sprintf("required field missing: %s (field %s)", e.SourcePath, e.FieldID)
	}
	return fmt.Sprintf("required field missing: %s", e.FieldID)
}

// ValidationError reports a value rejected by a field rule's validator.
type ValidationError struct {
	FieldID   string
	Validator string
	Message   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("field %s: %s", e.FieldID, e.Message)
}

// DirectionError reports a mapping invoked against the wrong direction.
type DirectionError struct {
	MappingID string
	Expected  Direction
	Actual    Direction
}

func (e *DirectionError) Error() string {
	return fmt.Sprintf("mapping %s: invalid direction, expected %s but got %s",
		e.MappingID, e.Expected, e.Actual)
}

// SecurityError reports a mapping set vetoed by the security scanner.
type SecurityError struct {
	MappingID string
	Issues    []SecurityIssue
}

func (e *SecurityError) Error() string {
	return fmt.Sprintf("mapping %s: %d critical security issue(s) found in expressions",
		e.MappingID, len(e.Issues))
}

// TransformError wraps any failure raised while processing a field mapping,
// identifying the mapping and field for caller-side logging.
type TransformError struct {
	MappingID string
	FieldID   string
	Cause     error
}

func (e *TransformError) Error() string {
	return fmt.Sprintf("mapping %s: failed to map field %s: %v", e.MappingID, e.FieldID, e.Cause)
}

func (e *TransformError) Unwrap() error { return e.Cause }
