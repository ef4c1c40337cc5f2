// Package codec reads and writes the spreadsheet boundary: CSV and XLSX files
// whose first row is the header. Header cells are matched verbatim against
// mapping source columns with no trimming and no case folding.
package codec

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"pim-service/internal/models"
)

// RowNumberKey is a pseudo-column carrying the 1-based file row number for
// error reporting. Underscore keeps it out of any real header namespace.
const RowNumberKey = "_row"

// ParseError marks a file as unreadable. It is fatal for the whole import:
// no rows are processed after one.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse spreadsheet: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Row is one parsed data row keyed by exact header text.
type Row map[string]string

// Parse reads a spreadsheet into rows. The first row is the header; its cell
// text becomes the row keys. Unreadable input yields a ParseError and no rows.
func Parse(r io.Reader, format models.ImportFormat) ([]Row, error) {
	switch format {
	case models.ImportFormatCSV:
		return parseCSV(r)
	case models.ImportFormatXLSX:
		return parseXLSX(r)
	default:
		return nil, &ParseError{Err: fmt.Errorf("unsupported format %q", format)}
	}
}

func parseCSV(r io.Reader) ([]Row, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	headers, err := reader.Read()
	if err != nil {
		return nil, &ParseError{Err: fmt.Errorf("failed to read CSV header: %w", err)}
	}

	var rows []Row
	lineNum := 1

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &ParseError{Err: fmt.Errorf("error reading line %d: %w", lineNum+1, err)}
		}

		row := make(Row)
		for i, value := range record {
			if i < len(headers) {
				row[headers[i]] = value
			}
		}
		row[RowNumberKey] = strconv.Itoa(lineNum + 1)
		rows = append(rows, row)
		lineNum++
	}

	return rows, nil
}

func parseXLSX(r io.Reader) ([]Row, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, &ParseError{Err: fmt.Errorf("failed to open Excel file: %w", err)}
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, &ParseError{Err: fmt.Errorf("no sheets found in Excel file")}
	}

	excelRows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, &ParseError{Err: fmt.Errorf("failed to read sheet: %w", err)}
	}

	if len(excelRows) == 0 {
		return nil, &ParseError{Err: fmt.Errorf("file has no header row")}
	}

	headers := excelRows[0]

	var rows []Row
	for rowIdx, excelRow := range excelRows[1:] {
		row := make(Row)
		for i, value := range excelRow {
			if i < len(headers) {
				row[headers[i]] = value
			}
		}
		row[RowNumberKey] = strconv.Itoa(rowIdx + 2)
		rows = append(rows, row)
	}

	return rows, nil
}

// EmitTemplate writes a header-only spreadsheet for a mapping: column order
// equals mapping order, no data rows. Output content is deterministic for a
// given mapping.
func EmitTemplate(entries []models.MappingEntry, format models.ImportFormat, w io.Writer) error {
	headers := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.SourceColumn != "" {
			headers = append(headers, e.SourceColumn)
		}
	}

	switch format {
	case models.ImportFormatCSV:
		writer := csv.NewWriter(w)
		if err := writer.Write(headers); err != nil {
			return fmt.Errorf("failed to write CSV header: %w", err)
		}
		writer.Flush()
		return writer.Error()
	case models.ImportFormatXLSX:
		f := excelize.NewFile()
		defer f.Close()

		sheetName := "Template"
		f.SetSheetName("Sheet1", sheetName)

		for i, header := range headers {
			cell, err := excelize.CoordinatesToCellName(i+1, 1)
			if err != nil {
				return fmt.Errorf("failed to address column %d: %w", i+1, err)
			}
			if err := f.SetCellValue(sheetName, cell, header); err != nil {
				return fmt.Errorf("failed to write header cell: %w", err)
			}
			colName, _ := excelize.ColumnNumberToName(i + 1)
			f.SetColWidth(sheetName, colName, colName, 20)
		}

		if err := f.Write(w); err != nil {
			return fmt.Errorf("failed to write workbook: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("unsupported format %q", format)
	}
}

// FormatFromFilename sniffs the import format from a file name extension.
func FormatFromFilename(name string) (models.ImportFormat, bool) {
	lower := strings.ToLower(name)
	switch {
	case strings.HasSuffix(lower, ".csv"):
		return models.ImportFormatCSV, true
	case strings.HasSuffix(lower, ".xlsx"):
		return models.ImportFormatXLSX, true
	default:
		return "", false
	}
}
