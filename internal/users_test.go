package internal

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"project-tracker-api/internal/config"
	"project-tracker-api/internal/models"
	"project-tracker-api/internal/store"
)

func TestRegisterUser(t *testing.T) {
	st := store.NewMemory()
	ts := newTestServer(t, st)

	w := ts.do("POST", "/api/auth/register", map[string]string{
		"name": "  Ana Lima ", "email": "ana@example.com", "password": "s3cret-pass",
	}, "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	resp := decode[models.LoginResponse](t, w)
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, "Ana Lima", resp.User.Name)
	assert.NotContains(t, w.Body.String(), "password")

	claims, err := ts.JWTManager.ValidateToken(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, claims.Subject)
	assert.Equal(t, "ana@example.com", claims.Email)

	stored, err := st.UserByEmail(context.Background(), "ana@example.com")
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("s3cret-pass")))
}

func TestRegisterUser_Rejections(t *testing.T) {
	tests := []struct {
		name      string
		body      map[string]string
		wantField string
	}{
		{"missing name", map[string]string{"email": "a@example.com", "password": "long-enough"}, "name"},
		{"missing email", map[string]string{"name": "A", "password": "long-enough"}, "email"},
		{"bad email", map[string]string{"name": "A", "email": "not-an-email", "password": "long-enough"}, "email"},
		{"display-name email", map[string]string{"name": "A", "email": "A <a@example.com>", "password": "long-enough"}, "email"},
		{"short password", map[string]string{"name": "A", "email": "a@example.com", "password": "short"}, "password"},
		{"long password", map[string]string{"name": "A", "email": "a@example.com", "password": strings.Repeat("x", 73)}, "password"},
	}

	ts := newTestServer(t, nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := ts.do("POST", "/api/auth/register", tt.body, "")
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, decode[ErrorResponse](t, w).Fields, tt.wantField)
		})
	}
}

func TestRegisterUser_DuplicateEmail(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.login()

	w := ts.do("POST", "/api/auth/register", map[string]string{
		"name": "Other", "email": "ANA@example.com", "password": "another-pass",
	}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "is already registered", decode[ErrorResponse](t, w).Fields["email"])
}

func TestLoginUser(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.login()

	tests := []struct {
		name       string
		body       map[string]string
		wantStatus int
	}{
		{"valid", map[string]string{"email": "ana@example.com", "password": "s3cret-pass"}, http.StatusOK},
		{"email case-insensitive", map[string]string{"email": "Ana@Example.com", "password": "s3cret-pass"}, http.StatusOK},
		{"wrong password", map[string]string{"email": "ana@example.com", "password": "nope-nope"}, http.StatusUnauthorized},
		{"unknown email", map[string]string{"email": "bo@example.com", "password": "s3cret-pass"}, http.StatusUnauthorized},
		{"missing password", map[string]string{"email": "ana@example.com"}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := ts.do("POST", "/api/auth/login", tt.body, "")
			assert.Equal(t, tt.wantStatus, w.Code, w.Body.String())
			if tt.wantStatus == http.StatusUnauthorized {
				// unknown email and wrong password must look the same
				assert.Equal(t, "Invalid credentials", decode[ErrorResponse](t, w).Error)
			}
		})
	}
}

func TestMe(t *testing.T) {
	ts := newTestServer(t, nil)
	token := ts.login()

	w := ts.do("GET", "/api/auth/me", nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	u := decode[models.User](t, w)
	assert.Equal(t, "Ana Lima", u.Name)
	assert.Equal(t, "ana@example.com", u.Email)

	// a valid token for an account that no longer exists
	other := newTestServer(t, nil)
	w = other.do("GET", "/api/auth/me", nil, token)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAuthRateLimit(t *testing.T) {
	ts := newTestServer(t, nil, func(c *config.Config) { c.AuthRateLimit = 2 })
	body := map[string]string{"email": "x@example.com", "password": "whatever1"}

	assert.Equal(t, http.StatusUnauthorized, ts.do("POST", "/api/auth/login", body, "").Code)
	assert.Equal(t, http.StatusUnauthorized, ts.do("POST", "/api/auth/login", body, "").Code)
	w := ts.do("POST", "/api/auth/login", body, "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "RATE_LIMITED", decode[ErrorResponse](t, w).Code)
}
