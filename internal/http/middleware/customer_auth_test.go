package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func signToken(t *testing.T, secret, subject string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func TestCustomerJWTAcceptsValidToken(t *testing.T) {
	var gotOwner string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotOwner, _ = OwnerIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	mw := CustomerJWT("secret")
	req := httptest.NewRequest(http.MethodGet, "/flow/session", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, "secret", "acct-1"))
	rec := httptest.NewRecorder()

	mw(handler).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if gotOwner != "acct-1" {
		t.Fatalf("expected owner acct-1, got %q", gotOwner)
	}
}

func TestCustomerJWTRejectsMissingHeader(t *testing.T) {
	mw := CustomerJWT("secret")
	req := httptest.NewRequest(http.MethodGet, "/flow/session", nil)
	rec := httptest.NewRecorder()

	mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not run")
	})).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestCustomerJWTRejectsWrongSecret(t *testing.T) {
	mw := CustomerJWT("secret")
	req := httptest.NewRequest(http.MethodGet, "/flow/session", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, "other", "acct-1"))
	rec := httptest.NewRecorder()

	mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not run")
	})).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestCustomerJWTRejectsMissingSubject(t *testing.T) {
	mw := CustomerJWT("secret")
	req := httptest.NewRequest(http.MethodGet, "/flow/session", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, "secret", ""))
	rec := httptest.NewRecorder()

	mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not run")
	})).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestCustomerJWTDisabledWithoutSecret(t *testing.T) {
	mw := CustomerJWT("")
	req := httptest.NewRequest(http.MethodGet, "/flow/session", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, "secret", "acct-1"))
	rec := httptest.NewRecorder()

	mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not run")
	})).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}
