package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

// okHandler is a trivial protected handler used as the auth middleware target.
func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthMiddleware(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		apiKey     string
		authHeader string
		wantStatus int
	}{
		{
			name:       "disabled when key empty",
			apiKey:     "",
			authHeader: "",
			wantStatus: http.StatusOK,
		},
		{
			name:       "valid token",
			apiKey:     "sekret",
			authHeader: "Bearer sekret",
			wantStatus: http.StatusOK,
		},
		{
			name:       "case-insensitive scheme",
			apiKey:     "sekret",
			authHeader: "bearer sekret",
			wantStatus: http.StatusOK,
		},
		{
			name:       "missing header",
			apiKey:     "sekret",
			authHeader: "",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "wrong token",
			apiKey:     "sekret",
			authHeader: "Bearer wrong",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "malformed header",
			apiKey:     "sekret",
			authHeader: "sekret",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "wrong scheme",
			apiKey:     "sekret",
			authHeader: "Basic sekret",
			wantStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h := authMiddleware(tt.apiKey, okHandler())

			req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			w := httptest.NewRecorder()

			h.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("expected %d, got %d", tt.wantStatus, w.Code)
			}
			if tt.wantStatus == http.StatusUnauthorized &&
				w.Header().Get("WWW-Authenticate") == "" {
				t.Error("expected WWW-Authenticate challenge on 401")
			}
		})
	}
}

func TestBearerToken(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		header string
		want   string
	}{
		{"absent", "", ""},
		{"well formed", "Bearer abc123", "abc123"},
		{"lowercase scheme", "bearer abc123", "abc123"},
		{"padded token", "Bearer  abc123 ", "abc123"},
		{"bare token", "abc123", ""},
		{"wrong scheme", "Basic abc123", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			if got := bearerToken(req); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}
