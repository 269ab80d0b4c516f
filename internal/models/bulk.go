package models

import "time"

type BulkStatus string

const (
	BulkQueued     BulkStatus = "queued"
	BulkProcessing BulkStatus = "processing"
	BulkValidating BulkStatus = "validating"
	BulkExecuting  BulkStatus = "executing"
	BulkCompleted  BulkStatus = "completed"
	BulkFailed     BulkStatus = "failed"
)

func (s BulkStatus) IsTerminal() bool {
	return s == BulkCompleted || s == BulkFailed
}

type RowStatus string

const (
	RowValid   RowStatus = "valid"
	RowWarning RowStatus = "warning"
	RowError   RowStatus = "error"
)

// Columns of a bulk payment file, in order. Description and reference are optional.
var BulkHeaders = []string{"Recipient", "Email", "Amount", "Currency", "Description", "Reference"}

const (
	ColRecipient = iota
	ColEmail
	ColAmount
	ColCurrency
	ColDescription
	ColReference
)

// BulkRow is one payment line of an uploaded bulk file.
type BulkRow struct {
	ID     int       `json:"id"`
	Data   []string  `json:"data"`
	Status RowStatus `json:"status"`
	Errors []string  `json:"errors"`
}

// Field returns column i, or "" when the row is shorter.
func (r BulkRow) Field(i int) string {
	if i < 0 || i >= len(r.Data) {
		return ""
	}
	return r.Data[i]
}

type BulkJob struct {
	JobID     string     `json:"jobId"`
	Status    BulkStatus `json:"status"`
	Progress  int        `json:"progress"`
	Rows      []BulkRow  `json:"rows,omitempty"`
	Processed int        `json:"processed"`
	Error     string     `json:"error,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
}

// BulkJobResponse answers both job start and job poll.
type BulkJobResponse struct {
	JobID     string     `json:"jobId"`
	Status    BulkStatus `json:"status"`
	Progress  int        `json:"progress"`
	Processed int        `json:"processed"`
	Error     string     `json:"error,omitempty"`
}

type ValidationSummary struct {
	Valid    int `json:"valid"`
	Warnings int `json:"warnings"`
	Errors   int `json:"errors"`
}

type BulkValidationResponse struct {
	Rows    []BulkRow         `json:"rows"`
	Summary ValidationSummary `json:"summary"`
}

// Summarize counts rows per validation status.
func Summarize(rows []BulkRow) ValidationSummary {
	var s ValidationSummary
	for _, r := range rows {
		switch r.Status {
		case RowValid:
			s.Valid++
		case RowWarning:
			s.Warnings++
		case RowError:
			s.Errors++
		}
	}
	return s
}
