package mapper

import "fmt"

// ============================================================================
// Registry
// ============================================================================

// Registry holds the validated, immutable set of mappings and lookup tables
// the engine runs against. It is built once by a loader and safely shared
// across concurrent transformations without locking.
type Registry struct {
	mappings      map[string]*Mapping
	mappingsByNam map[string]*Mapping
	tables        map[string]*LookupTable
	ordered       []*Mapping
}

// RegistryStats summarizes registry contents for health and admin endpoints.
type RegistryStats struct {
	Mappings     int `json:"mappings"`
	LookupTables int `json:"lookupTables"`
	FieldRules   int `json:"fieldRules"`
}

// NewRegistry validates and indexes the given mappings and lookup tables.
// Structural invariants are enforced here: unique ids, a known direction,
// non-empty field rules, unique reverse codes on bidirectional tables, and
// every referenced lookup table present. Each mapping is also run through
// the security scanner; a critical finding refuses the whole set.
func NewRegistry(mappings []*Mapping, tables []*LookupTable) (*Registry, error) {
	r := &Registry{
		mappings:      make(map[string]*Mapping, len(mappings)),
		mappingsByNam: make(map[string]*Mapping, len(mappings)),
		tables:        make(map[string]*LookupTable, len(tables)),
	}

	for _, table := range tables {
		if table.ID == "" {
			return nil, fmt.Errorf("lookup table %q: missing id", table.Name)
		}
		if _, exists := r.tables[table.ID]; exists {
			return nil, fmt.Errorf("duplicate lookup table id %q", table.ID)
		}
		if err := checkTable(table); err != nil {
			return nil, err
		}
		r.tables[table.ID] = table
	}

	for _, m := range mappings {
		if m.ID == "" {
			return nil, fmt.Errorf("mapping %q: missing id", m.Name)
		}
		if _, exists := r.mappings[m.ID]; exists {
			return nil, fmt.Errorf("duplicate mapping id %q", m.ID)
		}
		if !m.Direction.Valid() {
			return nil, fmt.Errorf("mapping %q: unknown direction %q", m.ID, m.Direction)
		}
		if len(m.FieldMappings) == 0 {
			return nil, fmt.Errorf("mapping %q: no field mappings", m.ID)
		}
		if err := checkFields(r, m); err != nil {
			return nil, err
		}
		if _, err := ScanMapping(m); err != nil {
			return nil, err
		}
		r.mappings[m.ID] = m
		if m.Name != "" {
			r.mappingsByNam[m.Name] = m
		}
		r.ordered = append(r.ordered, m)
	}

	return r, nil
}

func checkTable(table *LookupTable) error {
	sourceSeen := make(map[string]bool, len(table.Mappings))
	targetSeen := make(map[string]bool, len(table.Mappings))
	for _, entry := range table.Mappings {
		if entry.SourceCode == "" {
			return fmt.Errorf("lookup table %q: entry with empty source code", table.ID)
		}
		if sourceSeen[entry.SourceCode] {
			return fmt.Errorf("lookup table %q: duplicate source code %q", table.ID, entry.SourceCode)
		}
		sourceSeen[entry.SourceCode] = true
		if table.Bidirectional {
			if targetSeen[entry.TargetCode] {
				return fmt.Errorf("lookup table %q: duplicate target code %q in bidirectional table",
					table.ID, entry.TargetCode)
			}
			targetSeen[entry.TargetCode] = true
		}
	}
	return nil
}

func checkFields(r *Registry, m *Mapping) error {
	fieldSeen := make(map[string]bool, len(m.FieldMappings))
	for _, field := range m.FieldMappings {
		if field.ID == "" {
			return fmt.Errorf("mapping %q: field with empty id", m.ID)
		}
		if fieldSeen[field.ID] {
			return fmt.Errorf("mapping %q: duplicate field id %q", m.ID, field.ID)
		}
		fieldSeen[field.ID] = true
		if field.TargetPath == "" {
			return fmt.Errorf("mapping %q: field %q missing target path", m.ID, field.ID)
		}
		if field.SourcePath == "" && field.DefaultValue == "" {
			return fmt.Errorf("mapping %q: field %q has neither source path nor default value",
				m.ID, field.ID)
		}
		if field.LookupTable != "" {
			if _, ok := r.tables[field.LookupTable]; !ok {
				return fmt.Errorf("mapping %q: field %q references unknown lookup table %q",
					m.ID, field.ID, field.LookupTable)
			}
		}
	}
	return nil
}

// Mapping returns the mapping with the given id, or nil.
func (r *Registry) Mapping(id string) *Mapping { return r.mappings[id] }

// MappingByName returns the mapping with the given name, or nil.
func (r *Registry) MappingByName(name string) *Mapping { return r.mappingsByNam[name] }

// FindMapping returns the first mapping, in load order, declared for the
// given source type and direction, or nil.
func (r *Registry) FindMapping(sourceType string, direction Direction) *Mapping {
	for _, m := range r.ordered {
		if m.SourceType == sourceType && m.Direction == direction {
			return m
		}
	}
	return nil
}

// Table returns the lookup table with the given id, or nil.
func (r *Registry) Table(id string) *LookupTable { return r.tables[id] }

// Mappings returns all mappings in load order.
func (r *Registry) Mappings() []*Mapping { return r.ordered }

// Tables returns all lookup tables, in arbitrary order.
func (r *Registry) Tables() []*LookupTable {
	out := make([]*LookupTable, 0, len(r.tables))
	for _, t := range r.tables {
		out = append(out, t)
	}
	return out
}

// Stats counts the registry's contents.
func (r *Registry) Stats() RegistryStats {
	stats := RegistryStats{
		Mappings:     len(r.mappings),
		LookupTables: len(r.tables),
	}
	for _, m := range r.ordered {
		stats.FieldRules += len(m.FieldMappings)
	}
	return stats
}
