package payouts

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

var (
	upiPattern  = regexp.MustCompile(`^[\w.\-]{2,}@[A-Za-z]{2,}$`)
	ifscPattern = regexp.MustCompile(`^[A-Z]{4}0[A-Z0-9]{6}$`)

	validate = mustValidator()
)

// DestinationInput is where the customer wants a COD refund sent.
type DestinationInput struct {
	Method        enums.PayoutMethod `json:"method" validate:"required,oneof=UPI BANK"`
	UPIID         string             `json:"upiId" validate:"omitempty,upi"`
	AccountName   string             `json:"accountName" validate:"omitempty,max=120"`
	AccountNumber string             `json:"accountNumber" validate:"omitempty,numeric,min=6,max=20"`
	IFSC          string             `json:"ifsc" validate:"omitempty,ifsc"`
	BankName      string             `json:"bankName" validate:"omitempty,max=120"`
	Branch        string             `json:"branch" validate:"omitempty,max=120"`
}

// TransferInput records the out-of-band transfer an admin made.
type TransferInput struct {
	Reference string `json:"reference" validate:"required,max=120"`
	Notes     string `json:"notes" validate:"max=500"`
}

func mustValidator() *validator.Validate {
	v, err := newValidator()
	if err != nil {
		panic(fmt.Sprintf("payouts: build validator: %v", err))
	}
	return v
}

func newValidator() (*validator.Validate, error) {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "" {
			return f.Name
		}
		return name
	})
	if err := v.RegisterValidation("upi", func(fl validator.FieldLevel) bool {
		return upiPattern.MatchString(fl.Field().String())
	}); err != nil {
		return nil, fmt.Errorf("register upi: %w", err)
	}
	if err := v.RegisterValidation("ifsc", func(fl validator.FieldLevel) bool {
		return ifscPattern.MatchString(fl.Field().String())
	}); err != nil {
		return nil, fmt.Errorf("register ifsc: %w", err)
	}
	return v, nil
}

// normalize trims the input and upper-cases the IFSC code.
func (d DestinationInput) normalize() DestinationInput {
	d.UPIID = strings.TrimSpace(d.UPIID)
	d.AccountName = strings.TrimSpace(d.AccountName)
	d.AccountNumber = strings.TrimSpace(d.AccountNumber)
	d.IFSC = strings.ToUpper(strings.TrimSpace(d.IFSC))
	d.BankName = strings.TrimSpace(d.BankName)
	d.Branch = strings.TrimSpace(d.Branch)
	return d
}

// Validate checks the field formats and that the fields the method needs are present.
func (d DestinationInput) Validate() error {
	if err := validate.Struct(d); err != nil {
		return validationError(err)
	}
	missing := map[string]string{}
	switch d.Method {
	case enums.PayoutMethodUPI:
		if d.UPIID == "" {
			missing["upiId"] = "is required"
		}
	case enums.PayoutMethodBank:
		if d.AccountName == "" {
			missing["accountName"] = "is required"
		}
		if d.AccountNumber == "" {
			missing["accountNumber"] = "is required"
		}
		if d.IFSC == "" {
			missing["ifsc"] = "is required"
		}
	}
	if len(missing) > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "payout destination is incomplete").WithDetails(missing)
	}
	return nil
}

func validationError(err error) error {
	errs, ok := err.(validator.ValidationErrors)
	if !ok {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payout details")
	}
	details := map[string]string{}
	for _, fe := range errs {
		switch fe.Tag() {
		case "upi":
			details[fe.Field()] = "must look like name@bank"
		case "ifsc":
			details[fe.Field()] = "must be a valid IFSC code"
		case "required":
			details[fe.Field()] = "is required"
		default:
			details[fe.Field()] = "is invalid"
		}
	}
	return pkgerrors.New(pkgerrors.CodeValidation, "invalid payout details").WithDetails(details)
}
