package excel

// ExcelConfig holds configuration for the workbook source
type ExcelConfig struct {
	// RawValues returns stored cell values instead of display-formatted ones
	// (dates come back as serial numbers).
	RawValues bool `json:"raw_values"`
	// Extensions accepted for uploaded workbooks, lower-case with the dot.
	Extensions []string `json:"extensions"`
}

// DefaultExcelConfig returns sensible defaults for workbook reading
func DefaultExcelConfig() ExcelConfig {
	return ExcelConfig{
		RawValues:  false,
		Extensions: []string{".xlsx", ".xlsm"},
	}
}
