package webhooks

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

type recordingService struct {
	body      []byte
	signature string
	err       error
	calls     int
}

func (r *recordingService) HandleWebhook(_ context.Context, body []byte, signature string) error {
	r.calls++
	r.body = body
	r.signature = signature
	return r.err
}

func post(t *testing.T, h http.Handler, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/gateway", strings.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp := httptest.NewRecorder()
	h.ServeHTTP(resp, req)
	return resp
}

func TestGatewayWebhookForwardsBodyAndSignature(t *testing.T) {
	svc := &recordingService{}
	resp := post(t, GatewayWebhook(svc, nil), `{"type":"payment.captured"}`, map[string]string{signatureHeader: " abc123 "})
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if string(svc.body) != `{"type":"payment.captured"}` {
		t.Fatalf("unexpected body %s", svc.body)
	}
	if svc.signature != "abc123" {
		t.Fatalf("unexpected signature %q", svc.signature)
	}
}

func TestGatewayWebhookFallsBackToSquareHeader(t *testing.T) {
	svc := &recordingService{}
	post(t, GatewayWebhook(svc, nil), `{}`, map[string]string{squareSignatureHeader: "sq-sig"})
	if svc.signature != "sq-sig" {
		t.Fatalf("expected square signature header, got %q", svc.signature)
	}
}

func TestGatewayWebhookAcknowledgesFailures(t *testing.T) {
	cases := map[string]GatewayWebhookService{
		"handler error": &recordingService{err: errors.New("signature invalid")},
		"no service":    nil,
	}
	for name, svc := range cases {
		t.Run(name, func(t *testing.T) {
			resp := post(t, GatewayWebhook(svc, nil), `{"type":"payment.failed"}`, nil)
			if resp.Code != http.StatusOK {
				t.Fatalf("expected 200 got %d", resp.Code)
			}
			if !strings.Contains(resp.Body.String(), `"received":true`) {
				t.Fatalf("unexpected body %s", resp.Body.String())
			}
		})
	}
}
