package mapper

// LookupTable is a static, read-only code-to-code dictionary translating
// coded values (and optionally their coding system) between two
// vocabularies. Tables are built once at load time and safely shared across
// concurrent transformations.
type LookupTable struct {
	ID                  string      `json:"id"`
	Name                string      `json:"name,omitempty"`
	SourceSystem        string      `json:"sourceSystem,omitempty"`
	DefaultTargetSystem string      `json:"defaultTargetSystem,omitempty"`
	Bidirectional       bool        `json:"bidirectional,omitempty"`
	Mappings            []CodeEntry `json:"mappings"`
}

// CodeEntry is a single code-to-code mapping inside a lookup table.
type CodeEntry struct {
	SourceCode string `json:"sourceCode"`
	TargetCode string `json:"targetCode"`

	// TargetSystem overrides the table's DefaultTargetSystem when set.
	TargetSystem string `json:"targetSystem,omitempty"`

	Display string `json:"display,omitempty"`
}

// CodeResult is the outcome of a successful lookup. System is empty when
// neither the entry nor the table declares a target system; callers emitting
// coding objects skip empty systems rather than inventing one.
type CodeResult struct {
	Code    string `json:"code"`
	System  string `json:"system,omitempty"`
	Display string `json:"display,omitempty"`
}

// LookupForward resolves a source code to its target code, system and
// display. A miss returns a LookupMissError -- never a nil result.
func (t *LookupTable) LookupForward(code string) (CodeResult, error) {
	for _, entry := range t.Mappings {
		if entry.SourceCode == code {
			system := entry.TargetSystem
			if system == "" {
				system = t.DefaultTargetSystem
			}
			return CodeResult{Code: entry.TargetCode, System: system, Display: entry.Display}, nil
		}
	}
	return CodeResult{}, &LookupMissError{TableID: t.ID, Code: code}
}

// LookupReverse resolves a target code back to its source code. Valid only
// for bidirectional tables, whose target codes are unique by the load-time
// invariant.
func (t *LookupTable) LookupReverse(code string) (CodeResult, error) {
	if !t.Bidirectional {
		return CodeResult{}, &LookupMissError{TableID: t.ID, Code: code}
	}
	for _, entry := range t.Mappings {
		if entry.TargetCode == code {
			return CodeResult{Code: entry.SourceCode, System: t.SourceSystem, Display: entry.Display}, nil
		}
	}
	return CodeResult{}, &LookupMissError{TableID: t.ID, Code: code}
}

// Lookup resolves a code in the direction implied by the mapping: forward
// for JSON to FHIR, reverse for FHIR to JSON when the table is
// bidirectional, forward otherwise.
func (t *LookupTable) Lookup(code string, direction Direction) (CodeResult, error) {
	if direction == FHIRToJSON && t.Bidirectional {
		return t.LookupReverse(code)
	}
	return t.LookupForward(code)
}
