package mapping

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/fhirbridge/fhirbridge/internal/platform/mapper"
)

// Service owns the live registry snapshot and the engine over it. Writes go
// through the repository and then rebuild the snapshot, so a bad definition
// can never replace a working registry: the rebuild fails, the write is
// reported to the caller, and conversions keep running on the last good
// snapshot until a successful reload.
type Service struct {
	repo Repository
	log  zerolog.Logger

	mu     sync.RWMutex
	engine *mapper.Engine
	issues []mapper.SecurityIssue
}

// NewService creates a service. The repository may be nil when definitions
// come only from files; in that case the registry is installed with
// UseRegistry and CRUD operations report an error.
func NewService(repo Repository, log zerolog.Logger) *Service {
	return &Service{repo: repo, log: log}
}

// UseRegistry installs an already-built registry snapshot, replacing any
// previous one.
func (s *Service) UseRegistry(registry *mapper.Registry, issues []mapper.SecurityIssue) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.engine = mapper.NewEngine(registry, s.log)
	s.issues = issues
}

// Reload rebuilds the registry snapshot from the enabled definitions in the
// repository. On failure the previous snapshot stays live.
func (s *Service) Reload(ctx context.Context) error {
	if s.repo == nil {
		return fmt.Errorf("mapping: no repository configured")
	}

	defs, err := s.repo.ListEnabledMappings(ctx)
	if err != nil {
		return err
	}
	lookups, err := s.repo.ListEnabledLookups(ctx)
	if err != nil {
		return err
	}

	mappings := make([]*mapper.Mapping, 0, len(defs))
	for _, def := range defs {
		mappings = append(mappings, def.Document)
	}
	tables := make([]*mapper.LookupTable, 0, len(lookups))
	for _, def := range lookups {
		tables = append(tables, def.Document)
	}

	registry, err := mapper.NewRegistry(mappings, tables)
	if err != nil {
		return fmt.Errorf("mapping: rebuild registry: %w", err)
	}

	var issues []mapper.SecurityIssue
	for _, m := range mappings {
		found, _ := mapper.ScanMapping(m)
		issues = append(issues, found...)
	}

	s.UseRegistry(registry, issues)
	s.log.Info().
		Int("mappings", len(mappings)).
		Int("lookup_tables", len(tables)).
		Msg("registry reloaded")
	return nil
}

func (s *Service) currentEngine() (*mapper.Engine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.engine == nil {
		return nil, fmt.Errorf("mapping: no registry loaded")
	}
	return s.engine, nil
}

// ============================================================================
// Conversion
// ============================================================================

// Convert executes the named mapping against the request's source document.
// The returned response carries the trace when withTrace is set, on success
// and on failure alike.
func (s *Service) Convert(ctx context.Context, mappingID string, direction mapper.Direction, req *ConvertRequest, withTrace bool) (*ConvertResponse, error) {
	engine, err := s.currentEngine()
	if err != nil {
		return nil, err
	}

	tc := mapper.NewContext()
	tc.OrganizationID = req.OrganizationID
	tc.FacilityID = req.FacilityID
	tc.TenantID = req.TenantID
	for k, v := range req.Settings {
		tc.Settings[k] = v
	}
	for k, v := range req.Variables {
		tc.SetVariable(k, v)
	}
	if withTrace {
		tc.EnableTracing()
	}

	target, err := engine.Transform(req.Source, mappingID, direction, tc)
	resp := &ConvertResponse{MappingID: mappingID, Target: target, Trace: tc.Trace()}
	if err != nil {
		return resp, err
	}
	return resp, nil
}

// Translate resolves a single code through a lookup table.
func (s *Service) Translate(ctx context.Context, tableID, code string, direction mapper.Direction) (mapper.CodeResult, error) {
	engine, err := s.currentEngine()
	if err != nil {
		return mapper.CodeResult{}, err
	}
	table := engine.Registry().Table(tableID)
	if table == nil {
		return mapper.CodeResult{}, fmt.Errorf("mapping: %w: lookup table %s", ErrNotFound, tableID)
	}
	if direction == "" {
		direction = mapper.JSONToFHIR
	}
	return table.Lookup(code, direction)
}

// Validate dry-runs a candidate mapping against the current lookup tables
// without installing it.
func (s *Service) Validate(ctx context.Context, doc *mapper.Mapping) *ValidationReport {
	report := &ValidationReport{Valid: true}

	issues, err := mapper.ScanMapping(doc)
	report.SecurityIssues = issues
	if err != nil {
		report.Valid = false
		report.Error = err.Error()
		return report
	}

	var tables []*mapper.LookupTable
	if engine, err := s.currentEngine(); err == nil {
		tables = engine.Registry().Tables()
	}
	if _, err := mapper.NewRegistry([]*mapper.Mapping{doc}, tables); err != nil {
		report.Valid = false
		report.Error = err.Error()
	}
	return report
}

// Stats reports the live registry's contents.
func (s *Service) Stats() (mapper.RegistryStats, error) {
	engine, err := s.currentEngine()
	if err != nil {
		return mapper.RegistryStats{}, err
	}
	return engine.Registry().Stats(), nil
}

// SecurityIssues returns the non-fatal scanner findings of the live
// registry.
func (s *Service) SecurityIssues() []mapper.SecurityIssue {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.issues
}

// ============================================================================
// Definition CRUD
// ============================================================================

func (s *Service) requireRepo() error {
	if s.repo == nil {
		return fmt.Errorf("mapping: definitions are file-managed, no repository configured")
	}
	return nil
}

// CreateMapping validates, stores and activates a new mapping definition.
func (s *Service) CreateMapping(ctx context.Context, doc *mapper.Mapping) (*Definition, error) {
	if err := s.requireRepo(); err != nil {
		return nil, err
	}
	if report := s.Validate(ctx, doc); !report.Valid {
		return nil, fmt.Errorf("mapping: invalid definition: %s", report.Error)
	}
	def := NewDefinition(doc)
	if err := s.repo.CreateMapping(ctx, def); err != nil {
		return nil, err
	}
	if err := s.Reload(ctx); err != nil {
		return nil, err
	}
	return def, nil
}

func (s *Service) GetMapping(ctx context.Context, id uuid.UUID) (*Definition, error) {
	if err := s.requireRepo(); err != nil {
		return nil, err
	}
	return s.repo.GetMapping(ctx, id)
}

func (s *Service) ListMappings(ctx context.Context, limit, offset int) ([]*Definition, int, error) {
	if err := s.requireRepo(); err != nil {
		return nil, 0, err
	}
	return s.repo.ListMappings(ctx, limit, offset)
}

// UpdateMapping replaces a stored definition's document and re-activates
// the registry.
func (s *Service) UpdateMapping(ctx context.Context, id uuid.UUID, doc *mapper.Mapping, enabled bool) (*Definition, error) {
	if err := s.requireRepo(); err != nil {
		return nil, err
	}
	def, err := s.repo.GetMapping(ctx, id)
	if err != nil {
		return nil, err
	}
	updated := NewDefinition(doc)
	updated.ID = def.ID
	updated.Enabled = enabled
	if err := s.repo.UpdateMapping(ctx, updated); err != nil {
		return nil, err
	}
	if err := s.Reload(ctx); err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *Service) DeleteMapping(ctx context.Context, id uuid.UUID) error {
	if err := s.requireRepo(); err != nil {
		return err
	}
	if err := s.repo.DeleteMapping(ctx, id); err != nil {
		return err
	}
	return s.Reload(ctx)
}

// ============================================================================
// Lookup table CRUD
// ============================================================================

func (s *Service) CreateLookup(ctx context.Context, doc *mapper.LookupTable) (*LookupDefinition, error) {
	if err := s.requireRepo(); err != nil {
		return nil, err
	}
	def := NewLookupDefinition(doc)
	if err := s.repo.CreateLookup(ctx, def); err != nil {
		return nil, err
	}
	if err := s.Reload(ctx); err != nil {
		return nil, err
	}
	return def, nil
}

func (s *Service) GetLookup(ctx context.Context, id uuid.UUID) (*LookupDefinition, error) {
	if err := s.requireRepo(); err != nil {
		return nil, err
	}
	return s.repo.GetLookup(ctx, id)
}

func (s *Service) ListLookups(ctx context.Context, limit, offset int) ([]*LookupDefinition, int, error) {
	if err := s.requireRepo(); err != nil {
		return nil, 0, err
	}
	return s.repo.ListLookups(ctx, limit, offset)
}

func (s *Service) UpdateLookup(ctx context.Context, id uuid.UUID, doc *mapper.LookupTable, enabled bool) (*LookupDefinition, error) {
	if err := s.requireRepo(); err != nil {
		return nil, err
	}
	def, err := s.repo.GetLookup(ctx, id)
	if err != nil {
		return nil, err
	}
	updated := NewLookupDefinition(doc)
	updated.ID = def.ID
	updated.Enabled = enabled
	if err := s.repo.UpdateLookup(ctx, updated); err != nil {
		return nil, err
	}
	if err := s.Reload(ctx); err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *Service) DeleteLookup(ctx context.Context, id uuid.UUID) error {
	if err := s.requireRepo(); err != nil {
		return err
	}
	if err := s.repo.DeleteLookup(ctx, id); err != nil {
		return err
	}
	return s.Reload(ctx)
}
