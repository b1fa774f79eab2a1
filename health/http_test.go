package health

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestLivenessHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	LivenessHandler()(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "OK" {
		t.Fatalf("got %d %q", rec.Code, rec.Body.String())
	}
}

func TestReadinessHandler(t *testing.T) {
	tests := []struct {
		name     string
		result   Result
		wantCode int
		wantBody string
	}{
		{"healthy", Healthy("ok"), http.StatusOK, "healthy"},
		{"degraded stays ready", Degraded("slow"), http.StatusOK, "degraded"},
		{"unhealthy", Unhealthy("down", errors.New("dial tcp: refused")), http.StatusServiceUnavailable, "unhealthy"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			agg := NewAggregator(0)
			agg.Register(fixed("store", tt.result))

			mux := http.NewServeMux()
			RegisterHandlers(mux, agg)
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

			if rec.Code != tt.wantCode {
				t.Fatalf("code = %d, want %d", rec.Code, tt.wantCode)
			}
			var resp Response
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if resp.Status != tt.wantBody {
				t.Errorf("status = %q, want %q", resp.Status, tt.wantBody)
			}
			if resp.Checks["store"].Message != tt.result.Message {
				t.Errorf("check = %+v", resp.Checks["store"])
			}
			if tt.result.Err != nil && resp.Checks["store"].Error != tt.result.Err.Error() {
				t.Errorf("error = %q", resp.Checks["store"].Error)
			}
		})
	}
}
