package mapping

import (
	"time"

	"github.com/google/uuid"

	"github.com/fhirbridge/fhirbridge/internal/platform/mapper"
)

// Definition is a stored mapping definition. The full declarative document
// lives in Document; the indexed columns are denormalized from it for
// listing and lookup without parsing JSON.
type Definition struct {
	ID         uuid.UUID        `json:"id"`
	MappingID  string           `json:"mappingId"`
	Name       string           `json:"name"`
	Version    string           `json:"version"`
	Direction  mapper.Direction `json:"direction"`
	SourceType string           `json:"sourceType"`
	TargetType string           `json:"targetType"`
	Enabled    bool             `json:"enabled"`
	Document   *mapper.Mapping  `json:"document"`
	CreatedAt  time.Time        `json:"createdAt"`
	UpdatedAt  time.Time        `json:"updatedAt"`
}

// LookupDefinition is a stored code lookup table.
type LookupDefinition struct {
	ID        uuid.UUID           `json:"id"`
	TableID   string              `json:"tableId"`
	Name      string              `json:"name"`
	Enabled   bool                `json:"enabled"`
	Document  *mapper.LookupTable `json:"document"`
	CreatedAt time.Time           `json:"createdAt"`
	UpdatedAt time.Time           `json:"updatedAt"`
}

// NewDefinition wraps a mapping document for storage, denormalizing the
// indexed columns.
func NewDefinition(doc *mapper.Mapping) *Definition {
	return &Definition{
		MappingID:  doc.ID,
		Name:       doc.Name,
		Version:    doc.Version,
		Direction:  doc.Direction,
		SourceType: doc.SourceType,
		TargetType: doc.TargetType,
		Enabled:    true,
		Document:   doc,
	}
}

// NewLookupDefinition wraps a lookup table document for storage.
func NewLookupDefinition(doc *mapper.LookupTable) *LookupDefinition {
	return &LookupDefinition{
		TableID:  doc.ID,
		Name:     doc.Name,
		Enabled:  true,
		Document: doc,
	}
}

// ConvertRequest is the body of a conversion call: the source document plus
// optional ambient context values.
type ConvertRequest struct {
	Source         map[string]interface{} `json:"source"`
	OrganizationID string                 `json:"organizationId,omitempty"`
	FacilityID     string                 `json:"facilityId,omitempty"`
	TenantID       string                 `json:"tenantId,omitempty"`
	Settings       map[string]string      `json:"settings,omitempty"`
	Variables      map[string]interface{} `json:"variables,omitempty"`
}

// ConvertResponse carries the produced target document and, when requested,
// the per-field trace.
type ConvertResponse struct {
	MappingID string                 `json:"mappingId"`
	Target    map[string]interface{} `json:"target"`
	Trace     *mapper.Trace          `json:"trace,omitempty"`
}

// TranslateRequest is the body of a code translation call.
type TranslateRequest struct {
	Code      string           `json:"code"`
	Direction mapper.Direction `json:"direction,omitempty"`
}

// ValidationReport is the result of a dry-run validation of a candidate
// mapping against the current lookup tables.
type ValidationReport struct {
	Valid          bool                   `json:"valid"`
	Error          string                 `json:"error,omitempty"`
	SecurityIssues []mapper.SecurityIssue `json:"securityIssues,omitempty"`
}
