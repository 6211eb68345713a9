package ports

// CellReader reads string cell values from the active sheet of a workbook
type CellReader interface {
	CellValue(addr string) (string, error)
}
