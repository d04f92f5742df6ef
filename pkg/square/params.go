package square

import (
	"strings"

	sq "github.com/square/square-go-sdk"
)

// OrderCreateParams describes the single-line Square order that backs a
// storefront payment. ReferenceID carries the storefront order code.
type OrderCreateParams struct {
	LocationID     string
	ReferenceID    string
	Name           string
	AmountMinor    int64
	Currency       string
	IdempotencyKey string
}

func (p OrderCreateParams) toSquareRequest(idempotencyKey string) *sq.CreateOrderRequest {
	name := strings.TrimSpace(p.Name)
	if name == "" {
		name = "Storefront order"
	}
	order := &sq.Order{
		LocationID: p.LocationID,
		LineItems: []*sq.OrderLineItem{
			{
				Name:           ptrString(name),
				Quantity:       "1",
				BasePriceMoney: moneyPtr(p.AmountMinor, p.Currency),
			},
		},
	}
	if trimmed := strings.TrimSpace(p.ReferenceID); trimmed != "" {
		order.ReferenceID = ptrString(trimmed)
	}
	return &sq.CreateOrderRequest{
		Order:          order,
		IdempotencyKey: ptrString(idempotencyKey),
	}
}

// RefundCreateParams encapsulates a refund against a completed payment.
type RefundCreateParams struct {
	PaymentID      string
	AmountMinor    int64
	Currency       string
	Reason         string
	IdempotencyKey string
}

func (p RefundCreateParams) toSquareRequest(idempotencyKey string) *sq.RefundPaymentRequest {
	req := &sq.RefundPaymentRequest{
		IdempotencyKey: idempotencyKey,
		AmountMoney:    moneyPtr(p.AmountMinor, p.Currency),
		PaymentID:      ptrString(p.PaymentID),
	}
	if trimmed := strings.TrimSpace(p.Reason); trimmed != "" {
		req.Reason = ptrString(trimmed)
	}
	return req
}

func ptrString(value string) *string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return &value
}

func int64Ptr(value int64) *int64 {
	return &value
}

func currencyPtr(code string) *sq.Currency {
	trimmed := strings.ToUpper(strings.TrimSpace(code))
	if trimmed == "" {
		trimmed = "INR"
	}
	c := sq.Currency(trimmed)
	return &c
}

func moneyPtr(amount int64, currency string) *sq.Money {
	if amount == 0 {
		return nil
	}
	return &sq.Money{
		Amount:   int64Ptr(amount),
		Currency: currencyPtr(currency),
	}
}

// MoneyValues unpacks a Square money value into minor units and an ISO code.
func MoneyValues(m *sq.Money) (int64, string) {
	if m == nil {
		return 0, ""
	}
	var amount int64
	if m.Amount != nil {
		amount = *m.Amount
	}
	currency := ""
	if m.Currency != nil {
		currency = string(*m.Currency)
	}
	return amount, currency
}
