package checkout

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// Line is a purchasable cart line priced at the product's current price.
type Line struct {
	CartItemID     uuid.UUID `json:"cartItemId"`
	ProductID      uuid.UUID `json:"productId"`
	Name           string    `json:"name"`
	Image          string    `json:"image,omitempty"`
	Color          string    `json:"color,omitempty"`
	UnitPriceMinor int64     `json:"unitPriceMinor"`
	Quantity       int       `json:"quantity"`
	LineTotalMinor int64     `json:"lineTotalMinor"`
}

// Issue is one problem found while validating the cart.
type Issue struct {
	Level         enums.IssueLevel `json:"level"`
	Code          enums.IssueCode  `json:"code"`
	Message       string           `json:"message"`
	CartItemID    *uuid.UUID       `json:"cartItemId,omitempty"`
	ProductID     *uuid.UUID       `json:"productId,omitempty"`
	Available     *int             `json:"available,omitempty"`
	Requested     *int             `json:"requested,omitempty"`
	OldPriceMinor *int64           `json:"oldPriceMinor,omitempty"`
	NewPriceMinor *int64           `json:"newPriceMinor,omitempty"`
}

// Context is the server-side view of a cart at checkout time.
type Context struct {
	UserID   uuid.UUID `json:"userId"`
	Currency string    `json:"currency"`
	Lines    []Line    `json:"items"`
	Totals   Totals    `json:"totals"`
	Issues   []Issue   `json:"issues"`
}

// HasBlockingIssues reports whether any error-level issue prevents placement.
func (c *Context) HasBlockingIssues() bool {
	for _, issue := range c.Issues {
		if issue.Level == enums.IssueLevelError {
			return true
		}
	}
	return false
}

// BlockingIssues returns only the error-level issues.
func (c *Context) BlockingIssues() []Issue {
	var out []Issue
	for _, issue := range c.Issues {
		if issue.Level == enums.IssueLevelError {
			out = append(out, issue)
		}
	}
	return out
}
