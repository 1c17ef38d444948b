package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func TestTokenRoundTrip(t *testing.T) {
	sessions := NewSessions("test-secret", testLogger())

	token, err := sessions.IssueToken("user-1")
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}

	userID, err := sessions.VerifyToken(token)
	if err != nil {
		t.Fatalf("VerifyToken: %v", err)
	}
	if userID != "user-1" {
		t.Errorf("user id = %q, want user-1", userID)
	}
}

func TestVerifyTokenRejectsGarbage(t *testing.T) {
	sessions := NewSessions("test-secret", testLogger())

	if _, err := sessions.VerifyToken("not.a.token"); err == nil {
		t.Error("garbage token should be rejected")
	}
}

func TestVerifyTokenRejectsWrongSecret(t *testing.T) {
	issuer := NewSessions("secret-a", testLogger())
	verifier := NewSessions("secret-b", testLogger())

	token, err := issuer.IssueToken("user-1")
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}

	if _, err := verifier.VerifyToken(token); err == nil {
		t.Error("token signed with a different secret should be rejected")
	}
}

func TestMiddleware(t *testing.T) {
	sessions := NewSessions("test-secret", testLogger())

	var gotUserID string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUserID, _ = UserID(r.Context())
	})
	protected := sessions.Middleware(next)

	token, err := sessions.IssueToken("user-1")
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantUserID string
	}{
		{"valid token", "Bearer " + token, http.StatusOK, "user-1"},
		{"missing header", "", http.StatusUnauthorized, ""},
		{"malformed header", token, http.StatusUnauthorized, ""},
		{"invalid token", "Bearer nope", http.StatusUnauthorized, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotUserID = ""

			req := httptest.NewRequest("GET", "/api/orders", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			protected.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if gotUserID != tt.wantUserID {
				t.Errorf("user id = %q, want %q", gotUserID, tt.wantUserID)
			}
		})
	}
}
