package types

import (
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// PayoutDestination is where a manual COD refund is sent.
type PayoutDestination struct {
	Method        enums.PayoutMethod `json:"method"`
	UPIID         string             `json:"upiId,omitempty"`
	AccountName   string             `json:"accountName,omitempty"`
	AccountNumber string             `json:"accountNumber,omitempty"`
	IFSC          string             `json:"ifsc,omitempty"`
	BankName      string             `json:"bankName,omitempty"`
	Branch        string             `json:"branch,omitempty"`
	SetAt         time.Time          `json:"setAt"`
}

// PayoutTransfer records the out-of-band transfer that settled a payout.
type PayoutTransfer struct {
	Reference string    `json:"reference"`
	PaidAt    time.Time `json:"paidAt"`
	Notes     string    `json:"notes,omitempty"`
}
