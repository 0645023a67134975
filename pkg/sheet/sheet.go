// Package sheet reads and writes the tabular files the processor works on:
// Excel workbooks (first sheet) and CSV.
package sheet

import (
	"errors"
	"path/filepath"
	"strings"
)

var (
	// ErrUnsupportedFormat is returned for file extensions we cannot handle.
	ErrUnsupportedFormat = errors.New("unsupported file format")

	// ErrEmptySheet is returned when the input has no header row.
	ErrEmptySheet = errors.New("sheet has no header row")
)

// Format is a tabular file format.
type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatCSV  Format = "csv"
)

// resultsSuffix is inserted before the extension of output files.
const resultsSuffix = "_results"

// DetectFormat picks the format from the file extension. Files without an
// extension are treated as workbooks.
func DetectFormat(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm", ".xltx", ".xltm", "":
		return FormatXLSX, nil
	case ".csv":
		return FormatCSV, nil
	default:
		return "", ErrUnsupportedFormat
	}
}

// OutputPath returns the results path for input: the same base name with
// "_results" before the extension, or "_results.xlsx" when input has none.
func OutputPath(input string) string {
	ext := filepath.Ext(input)
	if ext == "" || ext == input || strings.HasSuffix(input, string(filepath.Separator)+ext) {
		return input + resultsSuffix + ".xlsx"
	}
	return strings.TrimSuffix(input, ext) + resultsSuffix + ext
}

// Table is a header row plus data rows. Data rows may be shorter than the
// header; missing cells read as "".
type Table struct {
	Header []string
	Rows   [][]string
}

// Column returns the index of the header matching name, ignoring case and
// surrounding whitespace, or -1.
func (t *Table) Column(name string) int {
	want := strings.ToLower(strings.TrimSpace(name))
	for i, h := range t.Header {
		if strings.ToLower(strings.TrimSpace(h)) == want {
			return i
		}
	}
	return -1
}

// Cell returns the value at row/col, or "" when out of range.
func (t *Table) Cell(row, col int) string {
	if row < 0 || row >= len(t.Rows) || col < 0 {
		return ""
	}
	cells := t.Rows[row]
	if col >= len(cells) {
		return ""
	}
	return cells[col]
}

// Read loads a table from path.
func Read(path string) (*Table, error) {
	format, err := DetectFormat(path)
	if err != nil {
		return nil, err
	}

	switch format {
	case FormatCSV:
		return readCSV(path)
	default:
		return readXLSX(path)
	}
}

// Write stores header and rows at path in the format implied by its
// extension.
func Write(path string, header []string, rows [][]string) error {
	format, err := DetectFormat(path)
	if err != nil {
		return err
	}

	switch format {
	case FormatCSV:
		return writeCSV(path, header, rows)
	default:
		return writeXLSX(path, header, rows)
	}
}
