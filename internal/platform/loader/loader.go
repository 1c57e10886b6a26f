package loader

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/fhirbridge/fhirbridge/internal/platform/mapper"
)

// ============================================================================
// Definition loader
// ============================================================================
//
// A definitions directory holds mapping and lookup table definitions:
//
//	<dir>/mappings/*.json    one mapping per file
//	<dir>/mappings/*.xlsx    one workbook, one mapping per sheet
//	<dir>/lookups/*.json     one lookup table per file
//	<dir>/lookups/*.xlsx     one workbook, one lookup table per sheet
//
// Loading ends with registry construction, which enforces the structural
// invariants and runs the expression security scan. A critical security
// finding always refuses the whole set, strict or not.

// Loader reads mapping and lookup definitions from disk and builds the
// registry the engine runs against.
type Loader struct {
	log    zerolog.Logger
	strict bool
}

// New creates a loader. In strict mode any unreadable or malformed file
// aborts the load; otherwise such files are logged and skipped.
func New(log zerolog.Logger, strict bool) *Loader {
	return &Loader{log: log, strict: strict}
}

// Result carries everything a load produced: the registry plus the
// non-fatal security findings for reporting.
type Result struct {
	Registry       *mapper.Registry
	SecurityIssues []mapper.SecurityIssue
}

// LoadDir loads every definition under dir and builds a validated registry.
func (l *Loader) LoadDir(dir string) (*Result, error) {
	mappings, err := l.loadMappings(filepath.Join(dir, "mappings"))
	if err != nil {
		return nil, err
	}
	tables, err := l.loadLookups(filepath.Join(dir, "lookups"))
	if err != nil {
		return nil, err
	}
	if len(mappings) == 0 {
		return nil, fmt.Errorf("loader: no mappings found under %s", dir)
	}

	registry, err := mapper.NewRegistry(mappings, tables)
	if err != nil {
		return nil, fmt.Errorf("loader: %w", err)
	}

	// Registry construction already vetoed critical findings; re-scan to
	// surface the non-fatal ones for reporting.
	var issues []mapper.SecurityIssue
	for _, m := range mappings {
		found, _ := mapper.ScanMapping(m)
		issues = append(issues, found...)
	}

	l.log.Info().
		Str("dir", dir).
		Int("mappings", len(mappings)).
		Int("lookup_tables", len(tables)).
		Int("security_findings", len(issues)).
		Msg("definitions loaded")

	return &Result{Registry: registry, SecurityIssues: issues}, nil
}

func (l *Loader) loadMappings(dir string) ([]*mapper.Mapping, error) {
	files, err := definitionFiles(dir)
	if err != nil {
		return nil, err
	}

	var mappings []*mapper.Mapping
	for _, path := range files {
		switch strings.ToLower(filepath.Ext(path)) {
		case ".json":
			m, err := LoadMappingFile(path)
			if err != nil {
				if l.strict {
					return nil, err
				}
				l.log.Warn().Err(err).Str("file", path).Msg("skipping mapping file")
				continue
			}
			mappings = append(mappings, m)
		case ".xlsx":
			fromSheet, err := LoadMappingWorkbook(path)
			if err != nil {
				if l.strict {
					return nil, err
				}
				l.log.Warn().Err(err).Str("file", path).Msg("skipping mapping workbook")
				continue
			}
			mappings = append(mappings, fromSheet...)
		}
	}
	return mappings, nil
}

func (l *Loader) loadLookups(dir string) ([]*mapper.LookupTable, error) {
	files, err := definitionFiles(dir)
	if err != nil {
		return nil, err
	}

	var tables []*mapper.LookupTable
	for _, path := range files {
		switch strings.ToLower(filepath.Ext(path)) {
		case ".json":
			t, err := LoadLookupFile(path)
			if err != nil {
				if l.strict {
					return nil, err
				}
				l.log.Warn().Err(err).Str("file", path).Msg("skipping lookup file")
				continue
			}
			tables = append(tables, t)
		case ".xlsx":
			fromSheet, err := LoadLookupWorkbook(path)
			if err != nil {
				if l.strict {
					return nil, err
				}
				l.log.Warn().Err(err).Str("file", path).Msg("skipping lookup workbook")
				continue
			}
			tables = append(tables, fromSheet...)
		}
	}
	return tables, nil
}

// definitionFiles lists the definition files in dir in stable name order. A
// missing directory is not an error -- it simply holds no definitions.
func definitionFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("loader: read dir %s: %w", dir, err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		switch strings.ToLower(filepath.Ext(name)) {
		case ".json", ".xlsx":
			files = append(files, filepath.Join(dir, name))
		}
	}
	sort.Strings(files)
	return files, nil
}

// LoadMappingFile reads a single JSON mapping definition.
func LoadMappingFile(path string) (*mapper.Mapping, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("loader: read %s: %w", path, err)
	}
	var m mapper.Mapping
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("loader: parse %s: %w", path, err)
	}
	if m.ID == "" {
		m.ID = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return &m, nil
}

// LoadLookupFile reads a single JSON lookup table definition.
func LoadLookupFile(path string) (*mapper.LookupTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("loader: read %s: %w", path, err)
	}
	var t mapper.LookupTable
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("loader: parse %s: %w", path, err)
	}
	if t.ID == "" {
		t.ID = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return &t, nil
}
