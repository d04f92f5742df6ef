package checkout

import (
	"context"
	"net/http"
	"testing"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/api/controllers/controllertest"
	checkoutsvc "github.com/angelmondragon/storefront-backend/internal/checkout"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

type stubService struct {
	placeInput  checkoutsvc.PlaceOrderInput
	placeUserID uuid.UUID
	placeErr    error
	validateErr error
}

func (s *stubService) BuildContext(_ context.Context, userID uuid.UUID) (*checkoutsvc.Context, error) {
	return &checkoutsvc.Context{UserID: userID, Currency: "INR"}, nil
}

func (s *stubService) Validate(_ context.Context, userID uuid.UUID) (*checkoutsvc.Context, error) {
	if s.validateErr != nil {
		return nil, s.validateErr
	}
	return &checkoutsvc.Context{UserID: userID, Currency: "INR"}, nil
}

func (s *stubService) PlaceOrder(_ context.Context, userID uuid.UUID, input checkoutsvc.PlaceOrderInput) (*checkoutsvc.PlaceOrderResult, error) {
	s.placeUserID = userID
	s.placeInput = input
	if s.placeErr != nil {
		return nil, s.placeErr
	}
	return &checkoutsvc.PlaceOrderResult{
		Order:      &models.Order{ID: uuid.New(), Code: "ORD-7", UserID: userID},
		NextAction: "redirect",
	}, nil
}

const validAddress = `{"type":"home","name":"Asha","building":"12","street":"MG Road","landmark":"Temple","city":"Pune","state":"MH","country":"IN","postalCode":"411001","phone":"9999999999","altPhone":"8888888888"}`

func TestContextRequiresUser(t *testing.T) {
	resp := controllertest.Serve(Context(&stubService{}, nil), controllertest.Request{Path: "/api/v1/checkout"})
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestContextReturnsCart(t *testing.T) {
	userID := uuid.New()
	resp := controllertest.Serve(Context(&stubService{}, nil), controllertest.Request{
		Path:   "/api/v1/checkout",
		UserID: userID,
		Role:   enums.ActorRoleCustomer,
	})
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	var got checkoutsvc.Context
	controllertest.DecodeData(t, resp, &got)
	if got.UserID != userID || got.Currency != "INR" {
		t.Fatalf("unexpected context %+v", got)
	}
}

func TestValidateSurfacesBlockingIssues(t *testing.T) {
	svc := &stubService{validateErr: pkgerrors.New(pkgerrors.CodeOutOfStock, "an item is out of stock")}
	resp := controllertest.Serve(Validate(svc, nil), controllertest.Request{
		Method: http.MethodPost,
		Path:   "/api/v1/checkout/validate",
		UserID: uuid.New(),
	})
	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d", resp.Code)
	}
	env := controllertest.Decode(t, resp)
	if env.Error == nil || env.Error.Message != "an item is out of stock" {
		t.Fatalf("unexpected error %+v", env.Error)
	}
}

func TestPlaceCreatesOrder(t *testing.T) {
	svc := &stubService{}
	userID := uuid.New()
	resp := controllertest.Serve(Place(svc, nil), controllertest.Request{
		Method: http.MethodPost,
		Path:   "/api/v1/checkout",
		Body:   `{"paymentMethod":"cod","address":` + validAddress + `,"note":"  leave at door  "}`,
		UserID: userID,
	})
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", resp.Code, resp.Body.String())
	}
	if svc.placeUserID != userID {
		t.Fatalf("expected order placed for caller")
	}
	if svc.placeInput.PaymentMethod != enums.PaymentMethodCOD {
		t.Fatalf("unexpected payment method %s", svc.placeInput.PaymentMethod)
	}
	if svc.placeInput.Address == nil || svc.placeInput.Address.City != "Pune" {
		t.Fatalf("expected address snapshot passed through")
	}
	if svc.placeInput.Note != "leave at door" {
		t.Fatalf("expected trimmed note, got %q", svc.placeInput.Note)
	}
}

func TestPlaceRequiresExactlyOneAddressSource(t *testing.T) {
	cases := map[string]string{
		"neither": `{"paymentMethod":"cod"}`,
		"both":    `{"paymentMethod":"cod","addressId":"` + uuid.NewString() + `","address":` + validAddress + `}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			svc := &stubService{}
			resp := controllertest.Serve(Place(svc, nil), controllertest.Request{
				Method: http.MethodPost,
				Path:   "/api/v1/checkout",
				Body:   body,
				UserID: uuid.New(),
			})
			if resp.Code != http.StatusBadRequest {
				t.Fatalf("expected 400 got %d", resp.Code)
			}
			if svc.placeUserID != uuid.Nil {
				t.Fatalf("service should not be called")
			}
		})
	}
}

func TestPlaceRejectsUnknownFields(t *testing.T) {
	resp := controllertest.Serve(Place(&stubService{}, nil), controllertest.Request{
		Method: http.MethodPost,
		Path:   "/api/v1/checkout",
		Body:   `{"paymentMethod":"cod","addressId":"` + uuid.NewString() + `","total":1}`,
		UserID: uuid.New(),
	})
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestPlaceWithoutServiceIsInternal(t *testing.T) {
	resp := controllertest.Serve(Place(nil, nil), controllertest.Request{Method: http.MethodPost, Path: "/api/v1/checkout"})
	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 got %d", resp.Code)
	}
}
