package payouts

import (
	"context"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/api/controllers/controllertest"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	payoutsvc "github.com/angelmondragon/storefront-backend/internal/payouts"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

type stubService struct {
	actor       orders.Actor
	destination payoutsvc.DestinationInput
	transfer    payoutsvc.TransferInput
	err         error
	called      bool
}

func (s *stubService) EnsureForOrder(context.Context, *gorm.DB, *models.Order) (*models.Payout, error) {
	return nil, nil
}

func (s *stubService) Get(_ context.Context, actor orders.Actor, orderID uuid.UUID) (*models.Payout, error) {
	s.actor = actor
	if s.err != nil {
		return nil, s.err
	}
	return &models.Payout{OrderID: orderID, AmountMinor: 4500, Status: enums.PayoutStatusPendingDestination}, nil
}

func (s *stubService) SetDestination(_ context.Context, actor orders.Actor, orderID uuid.UUID, input payoutsvc.DestinationInput) (*models.Payout, error) {
	s.called = true
	s.actor = actor
	s.destination = input
	if s.err != nil {
		return nil, s.err
	}
	return &models.Payout{OrderID: orderID, Status: enums.PayoutStatusReady}, nil
}

func (s *stubService) MarkPaid(_ context.Context, actor orders.Actor, orderID uuid.UUID, input payoutsvc.TransferInput) (*models.Payout, error) {
	s.called = true
	s.actor = actor
	s.transfer = input
	if s.err != nil {
		return nil, s.err
	}
	return &models.Payout{OrderID: orderID, Status: enums.PayoutStatusPaid}, nil
}

func request(method, body string, role enums.ActorRole) controllertest.Request {
	return controllertest.Request{
		Method: method,
		Path:   "/payout",
		Body:   body,
		UserID: uuid.New(),
		Role:   role,
		Params: map[string]string{"orderId": uuid.NewString()},
	}
}

func TestGetPayout(t *testing.T) {
	svc := &stubService{}
	resp := controllertest.Serve(Get(svc, nil), request(http.MethodGet, "", enums.ActorRoleCustomer))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	var got models.Payout
	controllertest.DecodeData(t, resp, &got)
	if got.Status != enums.PayoutStatusPendingDestination || got.AmountMinor != 4500 {
		t.Fatalf("unexpected payout %+v", got)
	}
}

func TestGetPayoutOfOtherUser(t *testing.T) {
	svc := &stubService{err: pkgerrors.New(pkgerrors.CodeForbidden, "payout belongs to another user")}
	resp := controllertest.Serve(Get(svc, nil), request(http.MethodGet, "", enums.ActorRoleCustomer))
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", resp.Code)
	}
}

func TestSetDestinationDefersValidationToService(t *testing.T) {
	svc := &stubService{}
	resp := controllertest.Serve(SetDestination(svc, nil), request(http.MethodPut, `{"method":"UPI","upiId":"asha@okbank"}`, enums.ActorRoleCustomer))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	if svc.destination.Method != enums.PayoutMethodUPI || svc.destination.UPIID != "asha@okbank" {
		t.Fatalf("unexpected destination %+v", svc.destination)
	}
}

func TestSetDestinationServiceValidationError(t *testing.T) {
	svc := &stubService{err: pkgerrors.New(pkgerrors.CodeValidation, "validation failed").WithDetails(map[string]string{"ifsc": "invalid"})}
	resp := controllertest.Serve(SetDestination(svc, nil), request(http.MethodPut, `{"method":"BANK","ifsc":"bad"}`, enums.ActorRoleCustomer))
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
	env := controllertest.Decode(t, resp)
	if env.Error.Details["ifsc"] != "invalid" {
		t.Fatalf("expected ifsc detail, got %+v", env.Error.Details)
	}
}

func TestSetDestinationRejectsUnknownFields(t *testing.T) {
	svc := &stubService{}
	resp := controllertest.Serve(SetDestination(svc, nil), request(http.MethodPut, `{"method":"UPI","vpa":"x@y"}`, enums.ActorRoleCustomer))
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
	if svc.called {
		t.Fatalf("service should not be called")
	}
}

func TestMarkPaid(t *testing.T) {
	svc := &stubService{}
	resp := controllertest.Serve(MarkPaid(svc, nil), request(http.MethodPost, `{"reference":"UTR123","notes":"sent via NEFT"}`, enums.ActorRoleAdmin))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if svc.transfer.Reference != "UTR123" || !svc.actor.IsAdmin() {
		t.Fatalf("unexpected call %+v %+v", svc.transfer, svc.actor)
	}
}

func TestMarkPaidRequiresReference(t *testing.T) {
	svc := &stubService{}
	resp := controllertest.Serve(MarkPaid(svc, nil), request(http.MethodPost, `{"notes":"sent"}`, enums.ActorRoleAdmin))
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
	if svc.called {
		t.Fatalf("service should not be called")
	}
}

func TestMarkPaidBeforeDestination(t *testing.T) {
	svc := &stubService{err: pkgerrors.New(pkgerrors.CodePayoutNotReady, "payout destination not set")}
	resp := controllertest.Serve(MarkPaid(svc, nil), request(http.MethodPost, `{"reference":"UTR1"}`, enums.ActorRoleAdmin))
	if resp.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 got %d", resp.Code)
	}
	env := controllertest.Decode(t, resp)
	if env.Error.Message != "payout destination not set" {
		t.Fatalf("unexpected message %q", env.Error.Message)
	}
}
