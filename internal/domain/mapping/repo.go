package mapping

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a definition does not exist.
var ErrNotFound = errors.New("mapping: not found")

type Repository interface {
	CreateMapping(ctx context.Context, def *Definition) error
	GetMapping(ctx context.Context, id uuid.UUID) (*Definition, error)
	GetMappingByMappingID(ctx context.Context, mappingID string) (*Definition, error)
	ListMappings(ctx context.Context, limit, offset int) ([]*Definition, int, error)
	ListEnabledMappings(ctx context.Context) ([]*Definition, error)
	UpdateMapping(ctx context.Context, def *Definition) error
	DeleteMapping(ctx context.Context, id uuid.UUID) error

	CreateLookup(ctx context.Context, def *LookupDefinition) error
	GetLookup(ctx context.Context, id uuid.UUID) (*LookupDefinition, error)
	GetLookupByTableID(ctx context.Context, tableID string) (*LookupDefinition, error)
	ListLookups(ctx context.Context, limit, offset int) ([]*LookupDefinition, int, error)
	ListEnabledLookups(ctx context.Context) ([]*LookupDefinition, error)
	UpdateLookup(ctx context.Context, def *LookupDefinition) error
	DeleteLookup(ctx context.Context, id uuid.UUID) error
}
