package returns

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/api/controllers/controllertest"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	returnsvc "github.com/angelmondragon/storefront-backend/internal/returns"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

type stubService struct {
	calls   []string
	actor   orders.Actor
	request returnsvc.RequestInput
	reject  returnsvc.RejectInput
	err     error
}

func (s *stubService) CheckEligibility(context.Context, uuid.UUID, uuid.UUID) (*returnsvc.EligibilityResult, error) {
	s.calls = append(s.calls, "eligibility")
	deadline := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	return &returnsvc.EligibilityResult{Eligible: true, Deadline: &deadline}, s.err
}

func (s *stubService) Request(_ context.Context, _ uuid.UUID, orderID uuid.UUID, input returnsvc.RequestInput) (*models.Order, error) {
	s.calls = append(s.calls, "request")
	s.request = input
	if s.err != nil {
		return nil, s.err
	}
	return &models.Order{ID: orderID, Status: enums.OrderStatusReturnRequested}, nil
}

func (s *stubService) Approve(_ context.Context, actor orders.Actor, orderID uuid.UUID) (*models.Order, error) {
	s.calls = append(s.calls, "approve")
	s.actor = actor
	return &models.Order{ID: orderID, Status: enums.OrderStatusReturning}, s.err
}

func (s *stubService) Reject(_ context.Context, actor orders.Actor, orderID uuid.UUID, input returnsvc.RejectInput) (*models.Order, error) {
	s.calls = append(s.calls, "reject")
	s.actor = actor
	s.reject = input
	return &models.Order{ID: orderID, Status: enums.OrderStatusDelivered}, s.err
}

func (s *stubService) MarkReceived(_ context.Context, actor orders.Actor, orderID uuid.UUID) (*models.Order, error) {
	s.calls = append(s.calls, "received")
	s.actor = actor
	return &models.Order{ID: orderID, Status: enums.OrderStatusReturned}, s.err
}

func TestEligibility(t *testing.T) {
	svc := &stubService{}
	orderID := uuid.New()
	resp := controllertest.Serve(Eligibility(svc, nil), controllertest.Request{
		Path:   "/return/eligibility",
		UserID: uuid.New(),
		Params: map[string]string{"orderId": orderID.String()},
	})
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	var got returnsvc.EligibilityResult
	controllertest.DecodeData(t, resp, &got)
	if !got.Eligible || got.Deadline == nil {
		t.Fatalf("unexpected eligibility %+v", got)
	}
}

func TestRequestCreatesReturn(t *testing.T) {
	svc := &stubService{}
	orderID := uuid.New()
	lineID := uuid.New()
	resp := controllertest.Serve(Request(svc, nil), controllertest.Request{
		Method: http.MethodPost,
		Path:   "/return",
		Body:   `{"items":[{"lineId":"` + lineID.String() + `","quantity":1}],"reason":"wrong size","evidence":["https://img.example/1.jpg"]}`,
		UserID: uuid.New(),
		Params: map[string]string{"orderId": orderID.String()},
	})
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", resp.Code, resp.Body.String())
	}
	if len(svc.request.Items) != 1 || svc.request.Items[0].LineID != lineID {
		t.Fatalf("unexpected items %+v", svc.request.Items)
	}
}

func TestRequestValidatesItems(t *testing.T) {
	cases := map[string]string{
		"no items":      `{"items":[],"reason":"wrong size"}`,
		"zero quantity": `{"items":[{"lineId":"` + uuid.NewString() + `","quantity":0}],"reason":"wrong size"}`,
		"no reason":     `{"items":[{"lineId":"` + uuid.NewString() + `","quantity":1}]}`,
		"bad evidence":  `{"items":[{"lineId":"` + uuid.NewString() + `","quantity":1}],"reason":"x","evidence":["not a url"]}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			svc := &stubService{}
			resp := controllertest.Serve(Request(svc, nil), controllertest.Request{
				Method: http.MethodPost,
				Path:   "/return",
				Body:   body,
				UserID: uuid.New(),
				Params: map[string]string{"orderId": uuid.NewString()},
			})
			if resp.Code != http.StatusBadRequest {
				t.Fatalf("expected 400 got %d", resp.Code)
			}
			if len(svc.calls) != 0 {
				t.Fatalf("service should not be called")
			}
		})
	}
}

func TestRequestOutsideWindow(t *testing.T) {
	svc := &stubService{err: pkgerrors.New(pkgerrors.CodeStateConflict, "return window has closed")}
	resp := controllertest.Serve(Request(svc, nil), controllertest.Request{
		Method: http.MethodPost,
		Path:   "/return",
		Body:   `{"items":[{"lineId":"` + uuid.NewString() + `","quantity":1}],"reason":"late"}`,
		UserID: uuid.New(),
		Params: map[string]string{"orderId": uuid.NewString()},
	})
	if resp.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 got %d", resp.Code)
	}
}

func TestAdminActions(t *testing.T) {
	adminID := uuid.New()
	cases := []struct {
		name    string
		handler func(returnsvc.Service) http.HandlerFunc
		body    string
		call    string
		status  enums.OrderStatus
	}{
		{"approve", func(s returnsvc.Service) http.HandlerFunc { return AdminApprove(s, nil) }, "", "approve", enums.OrderStatusReturning},
		{"reject", func(s returnsvc.Service) http.HandlerFunc { return AdminReject(s, nil) }, `{"category":"damaged","reason":"item used"}`, "reject", enums.OrderStatusDelivered},
		{"received", func(s returnsvc.Service) http.HandlerFunc { return AdminReceived(s, nil) }, "", "received", enums.OrderStatusReturned},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &stubService{}
			resp := controllertest.Serve(tc.handler(svc), controllertest.Request{
				Method: http.MethodPost,
				Path:   "/return/" + tc.name,
				Body:   tc.body,
				UserID: adminID,
				Role:   enums.ActorRoleAdmin,
				Params: map[string]string{"orderId": uuid.NewString()},
			})
			if resp.Code != http.StatusOK {
				t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
			}
			if len(svc.calls) != 1 || svc.calls[0] != tc.call {
				t.Fatalf("unexpected calls %v", svc.calls)
			}
			if !svc.actor.IsAdmin() || svc.actor.UserID != adminID {
				t.Fatalf("unexpected actor %+v", svc.actor)
			}
			var got models.Order
			controllertest.DecodeData(t, resp, &got)
			if got.Status != tc.status {
				t.Fatalf("expected %s got %s", tc.status, got.Status)
			}
		})
	}
}

func TestAdminRejectRequiresCategory(t *testing.T) {
	svc := &stubService{}
	resp := controllertest.Serve(AdminReject(svc, nil), controllertest.Request{
		Method: http.MethodPost,
		Path:   "/return/reject",
		Body:   `{"reason":"item used"}`,
		UserID: uuid.New(),
		Role:   enums.ActorRoleAdmin,
		Params: map[string]string{"orderId": uuid.NewString()},
	})
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
	if len(svc.calls) != 0 {
		t.Fatalf("service should not be called")
	}
}
