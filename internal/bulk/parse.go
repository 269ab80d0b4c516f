// Package bulk reads bulk payment files and validates their rows.
package bulk

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/akylbek/payment-system/sunny-gateway/internal/apperr"
	"github.com/akylbek/payment-system/sunny-gateway/internal/models"
)

// MaxRows bounds a single upload.
const MaxRows = 10000

// Parse picks the reader by file extension and validates every row.
// The first row is always treated as the header.
func Parse(filename string, r io.Reader) ([]models.BulkRow, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		return ParseCSV(r)
	case ".xlsx":
		return ParseXLSX(r)
	default:
		return nil, apperr.Validationf("unsupported file type %q, upload a CSV or XLSX file", filepath.Ext(filename))
	}
}

func ParseCSV(r io.Reader) ([]models.BulkRow, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var records [][]string
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, apperr.Validationf("malformed CSV: %v", err)
		}
		records = append(records, record)
	}
	return buildRows(records)
}

func ParseXLSX(r io.Reader) ([]models.BulkRow, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, apperr.Validationf("unreadable XLSX file: %v", err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return nil, apperr.Validationf("XLSX file has no sheets")
	}
	records, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheet, err)
	}
	return buildRows(records)
}

func buildRows(records [][]string) ([]models.BulkRow, error) {
	if len(records) <= 1 {
		return nil, apperr.Validationf("bulk file has no payment rows")
	}

	var rows []models.BulkRow
	for _, record := range records[1:] {
		if blank(record) {
			continue
		}
		if len(rows) == MaxRows {
			return nil, apperr.Validationf("bulk file exceeds %d rows", MaxRows)
		}
		row := models.BulkRow{ID: len(rows) + 1, Data: trim(record)}
		ValidateRow(&row)
		rows = append(rows, row)
	}
	if len(rows) == 0 {
		return nil, apperr.Validationf("bulk file has no payment rows")
	}
	return rows, nil
}

func blank(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func trim(record []string) []string {
	out := make([]string, len(record))
	for i, v := range record {
		out[i] = strings.TrimSpace(v)
	}
	return out
}
