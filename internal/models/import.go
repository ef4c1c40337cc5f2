package models

import "fmt"

// ImportFormat represents the file format for import
type ImportFormat string

const (
	ImportFormatCSV  ImportFormat = "csv"
	ImportFormatXLSX ImportFormat = "xlsx"
)

// ImportReport is the consumer-facing outcome of an import run: an ordered
// human-readable log plus success/error counters. It is always produced,
// even when every row fails.
type ImportReport struct {
	Success   int      `json:"success"`
	Errors    int      `json:"errors"`
	Skipped   int      `json:"skipped"`
	Cancelled bool     `json:"cancelled"`
	Logs      []string `json:"logs"`
}

// Summary returns the single user-visible summary line.
func (r *ImportReport) Summary() string {
	return fmt.Sprintf("%d imported, %d errors", r.Success, r.Errors)
}

// ImportResponse wraps an import report for the HTTP surface
type ImportResponse struct {
	Success bool          `json:"success"`
	Summary string        `json:"summary"`
	Report  *ImportReport `json:"report"`
}

// BulkSaveRecord is one buffered record in a spreadsheet bulk save request.
// Fields are keyed by target field name, exactly as the edit buffer holds them.
type BulkSaveRecord struct {
	ID     string            `json:"id" binding:"required"`
	Fields map[string]string `json:"fields" binding:"required"`
}

// BulkSaveRequest applies buffered spreadsheet edits through a template
type BulkSaveRequest struct {
	TemplateID string           `json:"templateId" binding:"required"`
	Records    []BulkSaveRecord `json:"records" binding:"required,min=1"`
}

// BulkSaveFailure reports one record that could not be saved
type BulkSaveFailure struct {
	ID    string `json:"id"`
	Error string `json:"error"`
}

// BulkSaveResponse reports per-record outcomes of a bulk save
type BulkSaveResponse struct {
	Success   bool              `json:"success"`
	Succeeded []string          `json:"succeeded"`
	Failed    []BulkSaveFailure `json:"failed"`
}
