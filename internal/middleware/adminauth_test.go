package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/AnshRaj112/connectpro-relay/pkg/utils"
)

func adminProtected(t *testing.T, hash string) http.Handler {
	t.Helper()
	return AdminAuth(hash)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
}

func TestAdminAuthAcceptsValidToken(t *testing.T) {
	hash, err := utils.HashToken("s3cret")
	if err != nil {
		t.Fatalf("hash failed: %v", err)
	}
	h := adminProtected(t, hash)

	req := httptest.NewRequest(http.MethodGet, "/api/admin/owners", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("valid token rejected: %d", rec.Code)
	}
}

func TestAdminAuthRejectsBadToken(t *testing.T) {
	hash, _ := utils.HashToken("s3cret")
	h := adminProtected(t, hash)

	tests := []struct {
		name   string
		header string
	}{
		{"wrong token", "Bearer wrong"},
		{"no bearer prefix", "s3cret"},
		{"empty header", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/admin/owners", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("expected 401, got %d", rec.Code)
			}
		})
	}
}

// No configured hash means the admin surface does not exist.
func TestAdminAuthDisabledWithoutHash(t *testing.T) {
	h := adminProtected(t, "")

	req := httptest.NewRequest(http.MethodGet, "/api/admin/owners", nil)
	req.Header.Set("Authorization", "Bearer anything")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 when disabled, got %d", rec.Code)
	}
}
