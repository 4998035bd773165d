package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCORS(t *testing.T) {
	cases := []struct {
		name        string
		allowed     []string
		method      string
		origin      string
		preflight   bool
		wantStatus  int
		wantOrigin  string
		wantHandled bool
	}{
		{name: "listed origin", allowed: []string{"https://ops.example.com"}, method: http.MethodGet,
			origin: "https://ops.example.com", wantStatus: http.StatusOK, wantOrigin: "https://ops.example.com", wantHandled: true},
		{name: "trailing slash in allowlist", allowed: []string{" https://ops.example.com/ "}, method: http.MethodGet,
			origin: "https://ops.example.com", wantStatus: http.StatusOK, wantOrigin: "https://ops.example.com", wantHandled: true},
		{name: "unknown origin still served", allowed: []string{"https://ops.example.com"}, method: http.MethodGet,
			origin: "https://evil.example", wantStatus: http.StatusOK, wantHandled: true},
		{name: "wildcard echoes origin", allowed: []string{"*"}, method: http.MethodPost,
			origin: "https://anywhere.example", wantStatus: http.StatusOK, wantOrigin: "https://anywhere.example", wantHandled: true},
		{name: "no origin header", allowed: []string{"*"}, method: http.MethodGet,
			wantStatus: http.StatusOK, wantHandled: true},
		{name: "preflight allowed", allowed: []string{"https://ops.example.com"}, method: http.MethodOptions,
			origin: "https://ops.example.com", preflight: true, wantStatus: http.StatusNoContent, wantOrigin: "https://ops.example.com"},
		{name: "preflight rejected", allowed: []string{"https://ops.example.com"}, method: http.MethodOptions,
			origin: "https://evil.example", preflight: true, wantStatus: http.StatusForbidden},
		{name: "plain options passes through", allowed: []string{"https://ops.example.com"}, method: http.MethodOptions,
			origin: "https://ops.example.com", wantStatus: http.StatusOK, wantOrigin: "https://ops.example.com", wantHandled: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			handled := false
			next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				handled = true
				w.WriteHeader(http.StatusOK)
			})

			req := httptest.NewRequest(tc.method, "/admin/bookings", nil)
			if tc.origin != "" {
				req.Header.Set("Origin", tc.origin)
			}
			if tc.preflight {
				req.Header.Set("Access-Control-Request-Method", http.MethodPatch)
			}
			rec := httptest.NewRecorder()
			CORS(tc.allowed)(next).ServeHTTP(rec, req)

			assert.Equal(t, tc.wantStatus, rec.Code)
			assert.Equal(t, tc.wantHandled, handled)
			assert.Equal(t, tc.wantOrigin, rec.Header().Get("Access-Control-Allow-Origin"))
			if tc.wantOrigin != "" {
				assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), http.MethodPatch)
				assert.Equal(t, corsAllowedHeaders, rec.Header().Get("Access-Control-Allow-Headers"))
				assert.Equal(t, "Origin", rec.Header().Get("Vary"))
			}
		})
	}
}
