package loader

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/fhirbridge/fhirbridge/internal/platform/mapper"
)

// ============================================================================
// Excel workbooks
// ============================================================================
//
// Mapping workbooks carry one mapping per sheet, plus an optional "Config"
// sheet with key/value pairs shared by every mapping (currently: version).
// A mapping sheet lays out as:
//
//	ID:           patient-to-fhir
//	Direction:    JSON_TO_FHIR
//	Source Type:  patient
//	Target Type:  Patient
//	(blank)
//	id | sourcePath | targetPath | dataType | transformExpression | ...
//	<field rows>
//
// Lookup workbooks carry one table per sheet:
//
//	ID:                     gender
//	Name:                   Gender codes
//	Source System:          http://example.org/local
//	Default Target System:  http://hl7.org/fhir/administrative-gender
//	Bidirectional:          true
//	(blank)
//	sourceCode | targetCode | targetSystem | display
//	<code rows>
//
// Sheets named Config or README are never parsed as definitions.

// LoadMappingWorkbook reads every mapping sheet in an xlsx workbook.
func LoadMappingWorkbook(path string) ([]*mapper.Mapping, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("loader: open workbook %s: %w", path, err)
	}
	defer f.Close()

	config := readConfigSheet(f)

	var mappings []*mapper.Mapping
	for _, sheet := range f.GetSheetList() {
		if isMetaSheet(sheet) {
			continue
		}
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("loader: workbook %s sheet %s: %w", path, sheet, err)
		}
		m, err := mappingFromSheet(sheet, rows, config)
		if err != nil {
			return nil, fmt.Errorf("loader: workbook %s: %w", path, err)
		}
		mappings = append(mappings, m)
	}
	return mappings, nil
}

// LoadLookupWorkbook reads every lookup table sheet in an xlsx workbook.
func LoadLookupWorkbook(path string) ([]*mapper.LookupTable, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("loader: open workbook %s: %w", path, err)
	}
	defer f.Close()

	var tables []*mapper.LookupTable
	for _, sheet := range f.GetSheetList() {
		if isMetaSheet(sheet) {
			continue
		}
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("loader: workbook %s sheet %s: %w", path, sheet, err)
		}
		t, err := lookupFromSheet(sheet, rows)
		if err != nil {
			return nil, fmt.Errorf("loader: workbook %s: %w", path, err)
		}
		tables = append(tables, t)
	}
	return tables, nil
}

func isMetaSheet(name string) bool {
	switch strings.ToLower(name) {
	case "config", "readme":
		return true
	}
	return false
}

// readConfigSheet reads the optional Config sheet as lowercase key/value
// pairs, skipping its header row.
func readConfigSheet(f *excelize.File) map[string]string {
	rows, err := f.GetRows("Config")
	if err != nil || len(rows) == 0 {
		return nil
	}
	config := make(map[string]string)
	for _, row := range rows[1:] {
		if len(row) < 2 || strings.TrimSpace(row[0]) == "" {
			continue
		}
		config[strings.ToLower(strings.TrimSpace(row[0]))] = strings.TrimSpace(row[1])
	}
	return config
}

// ============================================================================
// Mapping sheets
// ============================================================================

func mappingFromSheet(sheet string, rows [][]string, config map[string]string) (*mapper.Mapping, error) {
	m := &mapper.Mapping{
		ID:      metaValue(rows, 0),
		Name:    sheet,
		Version: config["version"],
	}
	if m.ID == "" {
		m.ID = sheetSlug(sheet)
	}
	if d := metaValue(rows, 1); d != "" {
		m.Direction = mapper.Direction(d)
	}
	m.SourceType = metaValue(rows, 2)
	m.TargetType = metaValue(rows, 3)

	headerIdx := findHeaderRow(rows, "id")
	if headerIdx == -1 {
		return nil, fmt.Errorf("sheet %s: no field header row", sheet)
	}
	columns := buildColumnMap(rows[headerIdx])

	for _, row := range rows[headerIdx+1:] {
		if rowEmpty(row) {
			continue
		}
		field := mapper.FieldMapping{
			ID:                  cellValue(row, columns, "id"),
			SourcePath:          cellValue(row, columns, "sourcepath"),
			TargetPath:          cellValue(row, columns, "targetpath"),
			DataType:            cellValue(row, columns, "datatype"),
			TransformExpression: cellValue(row, columns, "transformexpression"),
			Condition:           cellValue(row, columns, "condition"),
			Validator:           cellValue(row, columns, "validator"),
			Required:            parseFlag(cellValue(row, columns, "required")),
			DefaultValue:        cellValue(row, columns, "defaultvalue"),
			LookupTable:         cellValue(row, columns, "lookuptable"),
			Description:         cellValue(row, columns, "description"),
		}
		m.FieldMappings = append(m.FieldMappings, field)
	}
	return m, nil
}

// ============================================================================
// Lookup sheets
// ============================================================================

func lookupFromSheet(sheet string, rows [][]string) (*mapper.LookupTable, error) {
	t := &mapper.LookupTable{
		ID:                  metaValue(rows, 0),
		Name:                metaValue(rows, 1),
		SourceSystem:        metaValue(rows, 2),
		DefaultTargetSystem: metaValue(rows, 3),
		Bidirectional:       parseFlag(metaValue(rows, 4)),
	}
	if t.ID == "" {
		t.ID = sheetSlug(sheet)
	}
	if t.Name == "" {
		t.Name = sheet
	}

	headerIdx := findHeaderRow(rows, "sourcecode")
	if headerIdx == -1 {
		return nil, fmt.Errorf("sheet %s: no code header row", sheet)
	}
	columns := buildColumnMap(rows[headerIdx])

	for _, row := range rows[headerIdx+1:] {
		if rowEmpty(row) {
			continue
		}
		t.Mappings = append(t.Mappings, mapper.CodeEntry{
			SourceCode:   cellValue(row, columns, "sourcecode"),
			TargetCode:   cellValue(row, columns, "targetcode"),
			TargetSystem: cellValue(row, columns, "targetsystem"),
			Display:      cellValue(row, columns, "display"),
		})
	}
	return t, nil
}

// ============================================================================
// Cell helpers
// ============================================================================

// metaValue returns the second cell of a metadata row, tolerating short or
// missing rows.
func metaValue(rows [][]string, idx int) string {
	if idx >= len(rows) || len(rows[idx]) < 2 {
		return ""
	}
	return strings.TrimSpace(rows[idx][1])
}

// findHeaderRow locates the header row by its first column name. Metadata
// rows label their first cell with a trailing colon, so a plain column name
// is unambiguous.
func findHeaderRow(rows [][]string, firstColumn string) int {
	for i, row := range rows {
		if len(row) > 0 && strings.EqualFold(strings.TrimSpace(row[0]), firstColumn) {
			return i
		}
	}
	return -1
}

// buildColumnMap indexes header cells by lowercase name with spaces removed.
func buildColumnMap(header []string) map[string]int {
	columns := make(map[string]int, len(header))
	for i, cell := range header {
		name := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(cell), " ", ""))
		if name != "" {
			columns[name] = i
		}
	}
	return columns
}

func cellValue(row []string, columns map[string]int, name string) string {
	idx, ok := columns[name]
	if !ok || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func rowEmpty(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

func parseFlag(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "yes", "y", "1":
		return true
	}
	return false
}

func sheetSlug(sheet string) string {
	return strings.ToLower(strings.Join(strings.Fields(sheet), "-"))
}
