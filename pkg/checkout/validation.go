package checkout

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	pkgerrors "github.com/angelmondragon/payflow-backend/pkg/errors"
)

// MaxLines caps how many lines a single checkout may carry.
const MaxLines = 50

// LineValidationInput describes one requested order line.
type LineValidationInput struct {
	SellerID  uuid.UUID
	ProductID uuid.UUID
	Quantity  int
	UnitPrice decimal.Decimal
}

// LineViolationDetail exposes the data returned to callers when a line is rejected.
type LineViolationDetail struct {
	Index     int       `json:"index"`
	ProductID uuid.UUID `json:"product_id"`
	Reason    string    `json:"reason"`
}

// ValidateLines checks every line and reports all violations at once.
func ValidateLines(lines []LineValidationInput) error {
	if len(lines) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "at least one item is required")
	}
	if len(lines) > MaxLines {
		return pkgerrors.Newf(pkgerrors.CodeValidation, "at most %d items per order", MaxLines)
	}

	var violations []LineViolationDetail
	for i, line := range lines {
		reason := lineViolation(line)
		if reason == "" {
			continue
		}
		violations = append(violations, LineViolationDetail{
			Index:     i,
			ProductID: line.ProductID,
			Reason:    reason,
		})
	}
	if len(violations) == 0 {
		return nil
	}
	return pkgerrors.Newf(pkgerrors.CodeValidation, "%d item(s) are invalid", len(violations)).WithDetails(map[string]any{
		"violations": violations,
	})
}

func lineViolation(line LineValidationInput) string {
	switch {
	case line.SellerID == uuid.Nil:
		return "seller_id is required"
	case line.ProductID == uuid.Nil:
		return "product_id is required"
	case line.Quantity < 1:
		return "quantity must be at least 1"
	case !line.UnitPrice.IsPositive():
		return "unit_price must be greater than zero"
	case line.UnitPrice.Exponent() < -2 && !line.UnitPrice.Equal(line.UnitPrice.Round(2)):
		return "unit_price supports at most two decimal places"
	}
	return ""
}
