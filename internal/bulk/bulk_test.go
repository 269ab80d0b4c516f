package bulk

import (
	"errors"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/akylbek/payment-system/sunny-gateway/internal/apperr"
	"github.com/akylbek/payment-system/sunny-gateway/internal/models"
)

const sampleCSV = `Recipient,Email,Amount,Currency,Description,Reference
John Smith,john@example.com,500.00,USD,May Invoice,INV-123
Jane Doe,jane@example.com,750.50,EUR,Consulting Fee,CONS-456
Acme Corp,,1200.00,GBP,Services,SVC-789
Tech Systems,info@techsystems.com,-50.00,USD,Refund,REF-101
,,,,,
`

func TestParseCSV(t *testing.T) {
	t.Parallel()

	rows, err := Parse("payments.csv", strings.NewReader(sampleCSV))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 4 {
		t.Fatalf("expected 4 rows, got %d", len(rows))
	}

	want := []struct {
		status models.RowStatus
		errors []string
	}{
		{models.RowValid, nil},
		{models.RowValid, nil},
		{models.RowWarning, []string{"Email is required"}},
		{models.RowError, []string{"Amount must be positive"}},
	}
	for i, w := range want {
		if rows[i].ID != i+1 {
			t.Fatalf("row %d: expected id %d, got %d", i, i+1, rows[i].ID)
		}
		if rows[i].Status != w.status {
			t.Fatalf("row %d: expected %v, got %v", i+1, w.status, rows[i].Status)
		}
		if strings.Join(rows[i].Errors, ";") != strings.Join(w.errors, ";") {
			t.Fatalf("row %d: expected errors %v, got %v", i+1, w.errors, rows[i].Errors)
		}
	}

	summary := models.Summarize(rows)
	if summary != (models.ValidationSummary{Valid: 2, Warnings: 1, Errors: 1}) {
		t.Fatalf("unexpected summary %+v", summary)
	}
}

func TestParseXLSX(t *testing.T) {
	t.Parallel()

	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	records := [][]any{
		{"Recipient", "Email", "Amount", "Currency"},
		{"John Smith", "john@example.com", "500.00", "USD"},
		{"Acme Corp", "not-an-email", "12", "gbp"},
	}
	for i, rec := range records {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(sheet, cell, &rec); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rows, err := Parse("payments.XLSX", buf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0].Status != models.RowValid {
		t.Fatalf("expected first row valid, got %v %v", rows[0].Status, rows[0].Errors)
	}
	if rows[1].Status != models.RowWarning || rows[1].Errors[0] != "Email is invalid" {
		t.Fatalf("expected email warning, got %v %v", rows[1].Status, rows[1].Errors)
	}
}

func TestValidateRow(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		data   []string
		status models.RowStatus
		first  string
	}{
		{"valid", []string{"A", "a@b.co", "1", "USD"}, models.RowValid, ""},
		{"missing recipient", []string{"", "a@b.co", "1", "USD"}, models.RowError, "Recipient is required"},
		{"zero amount", []string{"A", "a@b.co", "0", "USD"}, models.RowError, "Amount must be positive"},
		{"text amount", []string{"A", "a@b.co", "ten", "USD"}, models.RowError, "Amount must be a number"},
		{"missing currency", []string{"A", "a@b.co", "1"}, models.RowError, "Currency is required"},
		{"bad currency", []string{"A", "a@b.co", "1", "US1"}, models.RowError, "Currency must be a 3-letter code"},
		{"non-ascii currency", []string{"A", "a@b.co", "1", "ÄB"}, models.RowError, "Currency must be a 3-letter code"},
		{"errors before warnings", []string{"A", "", "-1", "USD"}, models.RowError, "Amount must be positive"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			row := models.BulkRow{ID: 1, Data: tt.data}
			ValidateRow(&row)
			if row.Status != tt.status {
				t.Fatalf("expected %v, got %v (%v)", tt.status, row.Status, row.Errors)
			}
			if tt.first == "" {
				if len(row.Errors) != 0 {
					t.Fatalf("expected no messages, got %v", row.Errors)
				}
				return
			}
			if row.Errors[0] != tt.first {
				t.Fatalf("expected %q, got %v", tt.first, row.Errors)
			}
		})
	}
}

func TestParse_Rejects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		filename string
		body     string
	}{
		{"unsupported type", "payments.pdf", "x"},
		{"header only", "payments.csv", "Recipient,Email,Amount,Currency\n"},
		{"empty", "payments.csv", ""},
		{"malformed csv", "payments.csv", "a,b\n\"unterminated,c\n"},
		{"not a workbook", "payments.xlsx", "plain text"},
	}
	for _, tt := range tests {
		if _, err := Parse(tt.filename, strings.NewReader(tt.body)); !errors.Is(err, apperr.ErrValidation) {
			t.Fatalf("%s: expected %v, got %v", tt.name, apperr.ErrValidation, err)
		}
	}
}
