package enums

import "fmt"

// IssueLevel separates blocking checkout issues from advisory ones.
type IssueLevel string

const (
	IssueLevelError IssueLevel = "error"
	IssueLevelWarn  IssueLevel = "warn"
)

var validIssueLevels = []IssueLevel{
	IssueLevelError,
	IssueLevelWarn,
}

// String implements fmt.Stringer.
func (l IssueLevel) String() string {
	return string(l)
}

// IsValid reports whether the value is a known IssueLevel.
func (l IssueLevel) IsValid() bool {
	for _, candidate := range validIssueLevels {
		if candidate == l {
			return true
		}
	}
	return false
}

// ParseIssueLevel converts raw input into a IssueLevel.
func ParseIssueLevel(value string) (IssueLevel, error) {
	for _, candidate := range validIssueLevels {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid issue level %q", value)
}
