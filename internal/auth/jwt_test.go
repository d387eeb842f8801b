package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newTestAuth(t *testing.T) *Auth {
	t.Helper()
	a, err := New("test-secret", "admin", "hunter2", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	return a
}

func TestValidateCredentials(t *testing.T) {
	a := newTestAuth(t)

	if err := a.ValidateCredentials("admin", "hunter2"); err != nil {
		t.Errorf("valid credentials rejected: %v", err)
	}
	if err := a.ValidateCredentials("admin", "wrong"); err == nil {
		t.Error("wrong password accepted")
	}
	if err := a.ValidateCredentials("nobody", "hunter2"); err == nil {
		t.Error("unknown user accepted")
	}
}

func TestIssueAndValidateToken(t *testing.T) {
	a := newTestAuth(t)

	tokenStr, expiresAt, err := a.IssueToken("admin")
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	if time.Until(expiresAt) > time.Hour || time.Until(expiresAt) < 55*time.Minute {
		t.Errorf("expiry %v not within configured TTL", expiresAt)
	}

	claims, err := a.ValidateToken(tokenStr)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if claims.Username != "admin" {
		t.Errorf("Username = %q", claims.Username)
	}

	// Token signed with a different secret is rejected.
	other, _ := New("other-secret", "admin", "hunter2", time.Hour)
	otherToken, _, _ := other.IssueToken("admin")
	if _, err := a.ValidateToken(otherToken); err == nil {
		t.Error("token with wrong signature accepted")
	}
}

func TestExpiredToken(t *testing.T) {
	a, err := New("test-secret", "admin", "hunter2", -time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	tokenStr, _, err := a.IssueToken("admin")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := a.ValidateToken(tokenStr); err == nil {
		t.Error("expired token accepted")
	}
}

func TestMiddleware(t *testing.T) {
	a := newTestAuth(t)
	handler := a.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims := GetClaims(r.Context())
		if claims == nil || claims.Username != "admin" {
			t.Error("claims missing from context")
		}
		w.WriteHeader(http.StatusNoContent)
	}))

	// No token.
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("no token: status = %d", rec.Code)
	}

	// Valid bearer token.
	tokenStr, _, _ := a.IssueToken("admin")
	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer "+tokenStr)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Errorf("valid token: status = %d", rec.Code)
	}

	// Token as query parameter.
	req = httptest.NewRequest("GET", "/?token="+tokenStr, nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Errorf("query token: status = %d", rec.Code)
	}

	// Garbage token.
	req = httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer not.a.jwt")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("garbage token: status = %d", rec.Code)
	}
}

func TestHandleLogin(t *testing.T) {
	a := newTestAuth(t)

	body := strings.NewReader(`{"username":"admin","password":"hunter2"}`)
	rec := httptest.NewRecorder()
	a.HandleLogin(rec, httptest.NewRequest("POST", "/api/v1/auth/token", body))
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d", rec.Code)
	}

	var resp struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if _, err := a.ValidateToken(resp.Token); err != nil {
		t.Errorf("issued token invalid: %v", err)
	}

	// Bad password.
	body = strings.NewReader(`{"username":"admin","password":"nope"}`)
	rec = httptest.NewRecorder()
	a.HandleLogin(rec, httptest.NewRequest("POST", "/api/v1/auth/token", body))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("bad password status = %d", rec.Code)
	}
}
