package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
)

const testSecret = "test-secret"

func signedToken(t *testing.T, secret string, expires time.Time) string {
	t.Helper()
	claims := &Claims{
		Email: "agent@wecall.local",
		Name:  "Agent",
		Role:  "admin",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return token
}

// protectedHandler records the claims it sees.
func protectedHandler(got **Claims) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if claims, ok := GetUserFromContext(r.Context()); ok {
			*got = claims
		}
		w.WriteHeader(http.StatusOK)
	})
}

func TestMiddlewareRejectsMissingToken(t *testing.T) {
	var claims *Claims
	handler := Middleware(testSecret, false, zerolog.Nop())(protectedHandler(&claims))

	req := httptest.NewRequest(http.MethodGet, "/api/forecast/daily", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}
	if claims != nil {
		t.Error("handler should not run without a token")
	}
}

func TestMiddlewareRejectsBadTokens(t *testing.T) {
	tests := []struct {
		name  string
		token string
	}{
		{"garbage", "not-a-jwt"},
		{"wrong secret", signedToken(t, "other-secret", time.Now().Add(time.Hour))},
		{"expired", signedToken(t, testSecret, time.Now().Add(-time.Hour))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var claims *Claims
			handler := Middleware(testSecret, false, zerolog.Nop())(protectedHandler(&claims))

			req := httptest.NewRequest(http.MethodGet, "/api/forecast/daily", nil)
			req.Header.Set("Authorization", "Bearer "+tt.token)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != http.StatusUnauthorized {
				t.Errorf("expected 401, got %d", rec.Code)
			}
		})
	}
}

func TestMiddlewareAcceptsValidToken(t *testing.T) {
	var claims *Claims
	handler := Middleware(testSecret, false, zerolog.Nop())(protectedHandler(&claims))

	req := httptest.NewRequest(http.MethodGet, "/api/forecast/daily", nil)
	req.Header.Set("Authorization", "Bearer "+signedToken(t, testSecret, time.Now().Add(time.Hour)))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if claims == nil || claims.Email != "agent@wecall.local" {
		t.Errorf("claims not propagated: %+v", claims)
	}
	if !HasRole(claims, "admin") {
		t.Error("expected admin role")
	}
	if HasRole(claims, "viewer") {
		t.Error("unexpected viewer role")
	}
}

func TestMiddlewareSkipAuthUsesDevUser(t *testing.T) {
	var claims *Claims
	handler := Middleware("", true, zerolog.Nop())(protectedHandler(&claims))

	req := httptest.NewRequest(http.MethodGet, "/api/forecast/daily", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if claims == nil || claims.Email != "dev@wecall.local" || claims.Role != "admin" {
		t.Errorf("expected dev admin claims, got %+v", claims)
	}
}

func TestMiddlewareHealthBypassesAuth(t *testing.T) {
	handler := Middleware(testSecret, false, zerolog.Nop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("health should bypass auth, got %d", rec.Code)
	}
}

func TestExtractToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if got := extractToken(req); got != "" {
		t.Errorf("no header should give empty token, got %q", got)
	}

	req.Header.Set("Authorization", "Basic abc123")
	if got := extractToken(req); got != "" {
		t.Errorf("non-bearer scheme should give empty token, got %q", got)
	}

	req.Header.Set("Authorization", "Bearer abc123")
	if got := extractToken(req); got != "abc123" {
		t.Errorf("extractToken = %q, want abc123", got)
	}
}
