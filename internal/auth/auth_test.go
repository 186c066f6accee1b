package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
)

var testSecret = []byte("test-secret")

func TestGenerateAndParseToken(t *testing.T) {
	userID := uuid.New()
	token, _, err := GenerateToken(testSecret, userID, true, time.Hour)
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}

	claims, err := ParseToken(testSecret, token)
	if err != nil {
		t.Fatalf("failed to parse token: %v", err)
	}
	if claims.UserID != userID {
		t.Errorf("expected user id %s, got %s", userID, claims.UserID)
	}
	if !claims.IsStaff {
		t.Errorf("expected staff claim")
	}
}

func TestParseToken_WrongSecret(t *testing.T) {
	token, _, err := GenerateToken(testSecret, uuid.New(), false, time.Hour)
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}
	if _, err := ParseToken([]byte("other-secret"), token); err == nil {
		t.Fatalf("expected error for wrong secret")
	}
}

func TestParseToken_Expired(t *testing.T) {
	token, _, err := GenerateToken(testSecret, uuid.New(), false, -time.Minute)
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}
	if _, err := ParseToken(testSecret, token); err == nil {
		t.Fatalf("expected error for expired token")
	}
}

func TestVisitorFromRequest_Guest(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "sid", Value: "abc"})

	v := VisitorFromRequest(req, testSecret, "sid")
	if v.Authenticated() {
		t.Errorf("expected guest visitor")
	}
	if v.SessionKey != "abc" {
		t.Errorf("expected session key abc, got %q", v.SessionKey)
	}
}

func TestVisitorFromRequest_Authenticated(t *testing.T) {
	userID := uuid.New()
	token, _, err := GenerateToken(testSecret, userID, false, time.Hour)
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	v := VisitorFromRequest(req, testSecret, "sid")
	if !v.Authenticated() {
		t.Fatalf("expected authenticated visitor")
	}
	if *v.UserID != userID {
		t.Errorf("expected user id %s, got %s", userID, *v.UserID)
	}
}

func TestVisitorFromRequest_InvalidToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer garbage")

	v := VisitorFromRequest(req, testSecret, "sid")
	if v.Authenticated() {
		t.Errorf("invalid token must leave visitor a guest")
	}
}

func TestEnsureSessionKey(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()

	key := EnsureSessionKey(rec, req, "sid")
	if key == "" {
		t.Fatalf("expected generated session key")
	}
	if _, err := uuid.Parse(key); err != nil {
		t.Errorf("expected uuid session key, got %q", key)
	}

	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Value != key {
		t.Fatalf("expected session cookie to be set")
	}

	// Повторный запрос с cookie не создает новый ключ
	req2 := httptest.NewRequest(http.MethodGet, "/", nil)
	req2.AddCookie(&http.Cookie{Name: "sid", Value: key})
	rec2 := httptest.NewRecorder()
	if got := EnsureSessionKey(rec2, req2, "sid"); got != key {
		t.Errorf("expected existing key %q, got %q", key, got)
	}
	if len(rec2.Result().Cookies()) != 0 {
		t.Errorf("expected no new cookie for existing session")
	}
}
