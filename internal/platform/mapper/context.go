package mapper

import "github.com/google/uuid"

// Context carries the caller-supplied ambient values available to every
// expression and default-value resolution during one transformation call.
// It is constructed and owned by the caller, read-only during the call, and
// never retained by the engine afterwards. A Context must not be shared
// between concurrent transformations.
type Context struct {
	OrganizationID string
	FacilityID     string
	TenantID       string
	Settings       map[string]string
	Variables      map[string]interface{}

	trace *Trace
}

// NewContext creates an empty transformation context.
func NewContext() *Context {
	return &Context{
		Settings:  make(map[string]string),
		Variables: make(map[string]interface{}),
	}
}

// SetVariable stores a custom variable exposed to expressions via $ctx.
func (c *Context) SetVariable(key string, value interface{}) {
	if c.Variables == nil {
		c.Variables = make(map[string]interface{})
	}
	c.Variables[key] = value
}

// Variable returns the custom variable stored under key, or nil.
func (c *Context) Variable(key string) interface{} {
	return c.Variables[key]
}

// EnableTracing turns on per-field tracing for the next transformation. A
// random trace id is generated.
func (c *Context) EnableTracing() {
	c.EnableTracingWithID(uuid.NewString())
}

// EnableTracingWithID turns on per-field tracing using the given trace id.
func (c *Context) EnableTracingWithID(traceID string) {
	c.trace = NewTrace(traceID)
}

// TracingEnabled reports whether the caller requested tracing.
func (c *Context) TracingEnabled() bool { return c.trace != nil }

// Trace returns the trace collected during the last transformation, or nil
// when tracing was not enabled.
func (c *Context) Trace() *Trace { return c.trace }

// ctxValues merges the context's identifiers, settings and variables into
// the single namespace exposed to expressions as $ctx. Settings are applied
// after variables so a setting wins over a variable with the same key,
// while the fixed identifiers always win.
func (c *Context) ctxValues() map[string]interface{} {
	values := make(map[string]interface{}, len(c.Variables)+len(c.Settings)+3)
	for k, v := range c.Variables {
		values[k] = v
	}
	for k, v := range c.Settings {
		values[k] = v
	}
	if c.OrganizationID != "" {
		values["organizationId"] = c.OrganizationID
	}
	if c.FacilityID != "" {
		values["facilityId"] = c.FacilityID
	}
	if c.TenantID != "" {
		values["tenantId"] = c.TenantID
	}
	return values
}
