package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"vdt-app/internal/models"
	"vdt-app/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

func decodeMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("response body %q is not a message: %v", rec.Body.String(), err)
	}
	return body.Message
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header  string
		want    string
		wantErr error
	}{
		{"", "", ErrMissingToken},
		{"Bearer", "", ErrMalformedHeader},
		{"Bearer ", "", ErrMalformedHeader},
		{"Basic abc", "", ErrMalformedHeader},
		{"Bearer abc.def.ghi", "abc.def.ghi", nil},
		{"bearer abc", "abc", nil},
	}
	for _, tt := range tests {
		got, err := BearerToken(tt.header)
		if !errors.Is(err, tt.wantErr) || got != tt.want {
			t.Errorf("BearerToken(%q) = %q, %v; want %q, %v", tt.header, got, err, tt.want, tt.wantErr)
		}
	}
}

type authFixture struct {
	router  *gin.Engine
	tokens  *service.TokenService
	now     time.Time
	lastErr *gin.Error
}

func newAuthFixture(t *testing.T, allowed ...models.Role) *authFixture {
	t.Helper()
	f := &authFixture{now: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)}
	f.tokens = service.NewTokenService("mw-secret", func() time.Time { return f.now })

	f.router = gin.New()
	f.router.GET("/resource",
		func(c *gin.Context) {
			c.Next()
			f.lastErr = c.Errors.Last()
		},
		Authenticate(f.tokens, zap.NewNop()),
		Authorize(allowed...),
		func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"username": c.GetString(ContextUsername),
				"role":     c.MustGet(ContextRole),
			})
		},
	)
	return f
}

func (f *authFixture) do(header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/resource", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func (f *authFixture) issue(t *testing.T, role models.Role) string {
	t.Helper()
	token, _, err := f.tokens.Issue("alice", role)
	if err != nil {
		t.Fatalf("Issue() error: %v", err)
	}
	return token
}

func TestAuthenticateRejections(t *testing.T) {
	f := newAuthFixture(t, models.RoleUser, models.RoleAdmin)

	tests := []struct {
		name    string
		header  string
		message string
		cause   error
	}{
		{"missing header", "", "No token provided", ErrMissingToken},
		{"no token after scheme", "Bearer", "Invalid token format", ErrMalformedHeader},
		{"bad token", "Bearer nonsense", "Failed to authenticate token", service.ErrInvalidToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(tt.header)
			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("status = %d, want 401", rec.Code)
			}
			if msg := decodeMessage(t, rec); msg != tt.message {
				t.Errorf("message = %q, want %q", msg, tt.message)
			}
			if f.lastErr == nil || !errors.Is(f.lastErr.Err, tt.cause) {
				t.Errorf("recorded error = %v, want %v", f.lastErr, tt.cause)
			}
		})
	}
}

func TestAuthenticateExpiredToken(t *testing.T) {
	f := newAuthFixture(t, models.RoleUser)
	token := f.issue(t, models.RoleUser)

	f.now = f.now.Add(service.TokenTTL + time.Second)
	rec := f.do("Bearer " + token)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if msg := decodeMessage(t, rec); msg != "Token expired" {
		t.Errorf("message = %q, want Token expired", msg)
	}
	if f.lastErr == nil || !errors.Is(f.lastErr.Err, service.ErrExpiredToken) {
		t.Errorf("recorded error = %v, want ErrExpiredToken", f.lastErr)
	}
}

func TestAuthorizeByRole(t *testing.T) {
	adminOnly := newAuthFixture(t, models.RoleAdmin)

	rec := adminOnly.do("Bearer " + adminOnly.issue(t, models.RoleUser))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("user on admin route: status = %d, want 403", rec.Code)
	}
	if msg := decodeMessage(t, rec); msg != "Forbidden" {
		t.Errorf("message = %q, want Forbidden", msg)
	}

	rec = adminOnly.do("Bearer " + adminOnly.issue(t, models.RoleAdmin))
	if rec.Code != http.StatusOK {
		t.Fatalf("admin on admin route: status = %d, want 200", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("Unmarshal() error: %v", err)
	}
	if body["username"] != "alice" || body["role"] != "admin" {
		t.Errorf("context identity = %v", body)
	}
}

func TestAuthorizeWithoutAuthenticate(t *testing.T) {
	router := gin.New()
	router.GET("/x", Authorize(models.RoleUser), func(c *gin.Context) { c.Status(http.StatusOK) })

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}
