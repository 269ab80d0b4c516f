package bulk

import (
	"net/mail"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/akylbek/payment-system/sunny-gateway/internal/models"
)

// ValidateRow sets the row's status and messages. A missing or malformed
// email only warns; everything else is an error.
func ValidateRow(row *models.BulkRow) {
	var errs, warnings []string

	if row.Field(models.ColRecipient) == "" {
		errs = append(errs, "Recipient is required")
	}

	switch email := row.Field(models.ColEmail); {
	case email == "":
		warnings = append(warnings, "Email is required")
	default:
		if _, err := mail.ParseAddress(email); err != nil {
			warnings = append(warnings, "Email is invalid")
		}
	}

	if raw := row.Field(models.ColAmount); raw == "" {
		errs = append(errs, "Amount is required")
	} else if amount, err := decimal.NewFromString(raw); err != nil {
		errs = append(errs, "Amount must be a number")
	} else if !amount.IsPositive() {
		errs = append(errs, "Amount must be positive")
	}

	if currency := row.Field(models.ColCurrency); currency == "" {
		errs = append(errs, "Currency is required")
	} else if !isCurrencyCode(currency) {
		errs = append(errs, "Currency must be a 3-letter code")
	}

	row.Errors = append(errs, warnings...)
	switch {
	case len(errs) > 0:
		row.Status = models.RowError
	case len(warnings) > 0:
		row.Status = models.RowWarning
	default:
		row.Status = models.RowValid
		row.Errors = []string{}
	}
}

func isCurrencyCode(s string) bool {
	s = strings.ToUpper(strings.TrimSpace(s))
	if len(s) != 3 {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < 'A' || s[i] > 'Z' {
			return false
		}
	}
	return true
}
