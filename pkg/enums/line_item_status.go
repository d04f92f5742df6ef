package enums

import "fmt"

// LineItemStatus is the per-item flag recorded after placement.
type LineItemStatus string

const (
	LineItemStatusActive    LineItemStatus = "active"
	LineItemStatusCancelled LineItemStatus = "cancelled"
	LineItemStatusReturned  LineItemStatus = "returned"
)

var validLineItemStatuses = []LineItemStatus{
	LineItemStatusActive,
	LineItemStatusCancelled,
	LineItemStatusReturned,
}

// String implements fmt.Stringer.
func (s LineItemStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known LineItemStatus.
func (s LineItemStatus) IsValid() bool {
	for _, candidate := range validLineItemStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseLineItemStatus converts raw input into a LineItemStatus.
func ParseLineItemStatus(value string) (LineItemStatus, error) {
	for _, candidate := range validLineItemStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid line item status %q", value)
}
