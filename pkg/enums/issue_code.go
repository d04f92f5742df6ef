package enums

import "fmt"

// IssueCode identifies a checkout context issue.
type IssueCode string

const (
	IssueEmptyCart       IssueCode = "EMPTY_CART"
	IssueMissingProduct  IssueCode = "MISSING_PRODUCT"
	IssueProductBlocked  IssueCode = "PRODUCT_BLOCKED"
	IssueOutOfStock      IssueCode = "OUT_OF_STOCK"
	IssuePriceChanged    IssueCode = "PRICE_CHANGED"
	IssueInvalidQuantity IssueCode = "INVALID_QUANTITY"
)

var validIssueCodes = []IssueCode{
	IssueEmptyCart,
	IssueMissingProduct,
	IssueProductBlocked,
	IssueOutOfStock,
	IssuePriceChanged,
	IssueInvalidQuantity,
}

// String implements fmt.Stringer.
func (c IssueCode) String() string {
	return string(c)
}

// IsValid reports whether the value is a known IssueCode.
func (c IssueCode) IsValid() bool {
	for _, candidate := range validIssueCodes {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseIssueCode converts raw input into a IssueCode.
func ParseIssueCode(value string) (IssueCode, error) {
	for _, candidate := range validIssueCodes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid issue code %q", value)
}
