package controllers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/angelmondragon/storefront-backend/pkg/config"
)

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

func TestHealthReady(t *testing.T) {
	cfg := &config.Config{App: config.AppConfig{Env: "dev"}}
	cases := map[string]struct {
		db, redis Pinger
		want      int
	}{
		"all up":        {db: fakePinger{}, redis: fakePinger{}, want: http.StatusOK},
		"db down":       {db: fakePinger{err: errors.New("conn refused")}, redis: fakePinger{}, want: http.StatusServiceUnavailable},
		"redis missing": {db: fakePinger{}, redis: nil, want: http.StatusServiceUnavailable},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			resp := httptest.NewRecorder()
			HealthReady(cfg, nil, tc.db, tc.redis).ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
			if resp.Code != tc.want {
				t.Fatalf("expected %d got %d", tc.want, resp.Code)
			}
			if resp.Header().Get("X-Storefront-Env") != "dev" {
				t.Fatalf("missing env header")
			}
		})
	}
}
