package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCORS(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })

	tests := []struct {
		name       string
		origins    string
		reqOrigin  string
		method     string
		wantOrigin string
		wantStatus int
	}{
		{"wildcard", "*", "https://a.example", http.MethodGet, "*", http.StatusOK},
		{"listed", "https://a.example, https://b.example", "https://b.example", http.MethodGet, "https://b.example", http.StatusOK},
		{"not listed", "https://a.example", "https://evil.example", http.MethodGet, "", http.StatusOK},
		{"preflight", "https://a.example", "https://a.example", http.MethodOptions, "https://a.example", http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/api/sources", nil)
			req.Header.Set("Origin", tt.reqOrigin)
			rec := httptest.NewRecorder()
			CORS(tt.origins)(ok).ServeHTTP(rec, req)

			if got := rec.Header().Get("Access-Control-Allow-Origin"); got != tt.wantOrigin {
				t.Errorf("Allow-Origin = %q, want %q", got, tt.wantOrigin)
			}
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}
