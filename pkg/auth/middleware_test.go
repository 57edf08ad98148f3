package auth_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/dealforge/governor/pkg/auth"
)

const testSecret = "test-signing-secret"

func createTestToken(t *testing.T, sub string, roles []string, expiry time.Time) string {
	t.Helper()
	claims := auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			ExpiresAt: jwt.NewNumericDate(expiry),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    "governor-test",
		},
		Roles: roles,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return token
}

func protectedHandler(t *testing.T) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, err := auth.GetPrincipal(r.Context())
		if err != nil {
			t.Errorf("principal missing after auth: %v", err)
		}
		_, _ = w.Write([]byte(p.GetID()))
	})
}

func TestMiddlewareAcceptsValidToken(t *testing.T) {
	mw := auth.NewMiddleware(auth.NewJWTValidator(testSecret))
	handler := mw(protectedHandler(t))

	req := httptest.NewRequest("GET", "/v1/deals/d1/evidence", nil)
	req.Header.Set("Authorization", "Bearer "+createTestToken(t, "u1", []string{"seller"}, time.Now().Add(time.Hour)))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if w.Body.String() != "u1" {
		t.Fatalf("expected principal u1, got %q", w.Body.String())
	}
}

func TestMiddlewareRejectsExpiredToken(t *testing.T) {
	mw := auth.NewMiddleware(auth.NewJWTValidator(testSecret))
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest("GET", "/v1/deals/d1/evidence", nil)
	req.Header.Set("Authorization", "Bearer "+createTestToken(t, "u1", nil, time.Now().Add(-time.Hour)))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestMiddlewareRejectsMissingHeader(t *testing.T) {
	mw := auth.NewMiddleware(auth.NewJWTValidator(testSecret))
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest("GET", "/v1/deals/d1/evidence", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestMiddlewareRejectsWrongSecret(t *testing.T) {
	mw := auth.NewMiddleware(auth.NewJWTValidator("other-secret"))
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest("GET", "/v1/deals/d1/evidence", nil)
	req.Header.Set("Authorization", "Bearer "+createTestToken(t, "u1", nil, time.Now().Add(time.Hour)))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestMiddlewareFailsClosedWithoutValidator(t *testing.T) {
	mw := auth.NewMiddleware(nil)
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest("GET", "/v1/deals/d1/evidence", nil)
	req.Header.Set("Authorization", "Bearer anything")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestMiddlewareAllowsPublicPaths(t *testing.T) {
	mw := auth.NewMiddleware(nil)
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/healthz", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 on public path, got %d", w.Code)
	}
}
