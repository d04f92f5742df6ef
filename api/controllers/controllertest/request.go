// Package controllertest builds authenticated requests for handler tests.
package controllertest

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/api/middleware"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// Request is a handler invocation under test.
type Request struct {
	Method string
	Path   string
	Body   string
	UserID uuid.UUID
	Role   enums.ActorRole
	Params map[string]string
}

// Build returns the http request with the auth context and chi params seeded
// the way the router would.
func (r Request) Build() *http.Request {
	var body io.Reader
	if r.Body != "" {
		body = strings.NewReader(r.Body)
	}
	method := r.Method
	if method == "" {
		method = http.MethodGet
	}
	req := httptest.NewRequest(method, r.Path, body)

	ctx := req.Context()
	if r.UserID != uuid.Nil {
		ctx = middleware.WithUserID(ctx, r.UserID.String())
	}
	if r.Role != "" {
		ctx = middleware.WithRole(ctx, r.Role)
	}
	if len(r.Params) > 0 {
		rctx := chi.NewRouteContext()
		for k, v := range r.Params {
			rctx.URLParams.Add(k, v)
		}
		ctx = context.WithValue(ctx, chi.RouteCtxKey, rctx)
	}
	return req.WithContext(ctx)
}

// Serve runs the handler and returns the recorded response.
func Serve(h http.Handler, r Request) *httptest.ResponseRecorder {
	resp := httptest.NewRecorder()
	h.ServeHTTP(resp, r.Build())
	return resp
}

// Envelope mirrors the success and error response shapes.
type Envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

// Decode parses the recorded body into the response envelope.
func Decode(t *testing.T, resp *httptest.ResponseRecorder) Envelope {
	t.Helper()
	var env Envelope
	if err := json.Unmarshal(resp.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode response %q: %v", resp.Body.String(), err)
	}
	return env
}

// DecodeData parses the data member into dest.
func DecodeData(t *testing.T, resp *httptest.ResponseRecorder, dest any) {
	t.Helper()
	env := Decode(t, resp)
	if err := json.Unmarshal(env.Data, dest); err != nil {
		t.Fatalf("decode data %s: %v", string(env.Data), err)
	}
}
