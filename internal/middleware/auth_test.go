package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"faceswap/internal/auth"
)

func serveAuth(t *testing.T, signer *auth.Signer, header string) (*httptest.ResponseRecorder, string, string) {
	t.Helper()
	var gotUser, gotLocale string
	h := RequestID(Auth(signer)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser = UserIDFromContext(r.Context())
		gotLocale = LocaleFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec, gotUser, gotLocale
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body ErrorBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body %q: %v", rec.Body.String(), err)
	}
	if body.RequestID == "" {
		t.Fatal("error envelope is missing request_id")
	}
	return body.Error.Code
}

func TestAuthAcceptsValidToken(t *testing.T) {
	signer := auth.NewSigner("secret", "faceswap", time.Hour)
	token, _, err := signer.Issue("user-1", "id")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	rec, user, locale := serveAuth(t, signer, "Bearer "+token)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d", rec.Code)
	}
	if user != "user-1" || locale != "id" {
		t.Fatalf("user = %q locale = %q", user, locale)
	}
}

func TestAuthRejects(t *testing.T) {
	signer := auth.NewSigner("secret", "faceswap", time.Hour)
	past := time.Now().Add(-2 * time.Hour)
	stale, err := jwt.NewWithClaims(jwt.SigningMethodHS256, auth.Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   "user-1",
		Issuer:    "faceswap",
		IssuedAt:  jwt.NewNumericDate(past),
		ExpiresAt: jwt.NewNumericDate(past.Add(time.Hour)),
	}}).SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	forged, _, _ := auth.NewSigner("other", "faceswap", time.Hour).Issue("user-1", "")

	tests := []struct {
		name   string
		header string
		code   string
	}{
		{"missing", "", "unauthorized"},
		{"wrong scheme", "Basic abc", "unauthorized"},
		{"forged", "Bearer " + forged, "unauthorized"},
		{"expired", "Bearer " + stale, CodeTokenExpired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, user, _ := serveAuth(t, signer, tt.header)
			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("status = %d, want 401", rec.Code)
			}
			if got := errorCode(t, rec); got != tt.code {
				t.Fatalf("code = %q, want %q", got, tt.code)
			}
			if user != "" {
				t.Fatal("handler must not run")
			}
		})
	}
}

func TestServiceKey(t *testing.T) {
	h := RequestID(ServiceKey("svc")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})))
	for key, want := range map[string]int{"svc": http.StatusNoContent, "nope": http.StatusUnauthorized, "": http.StatusUnauthorized} {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.Header.Set("X-Service-Key", key)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != want {
			t.Fatalf("key %q status = %d, want %d", key, rec.Code, want)
		}
	}
}

func TestRequestIDPropagates(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if seen != "abc-123" || rec.Header().Get("X-Request-ID") != "abc-123" {
		t.Fatalf("seen = %q header = %q", seen, rec.Header().Get("X-Request-ID"))
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if len(seen) != 36 {
		t.Fatalf("minted id = %q, want a uuid", seen)
	}
}
