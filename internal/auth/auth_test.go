package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/andymarkow/cybexchange/internal/domain/users"
	"github.com/go-chi/jwtauth/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func verify(t *testing.T, secret []byte, req *http.Request) (Principal, error) {
	t.Helper()

	var (
		principal Principal
		err       error
	)

	h := jwtauth.Verifier(jwtauth.New("HS256", secret, nil))(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		principal, err = PrincipalFromContext(r.Context())
	}))

	h.ServeHTTP(httptest.NewRecorder(), req)

	return principal, err
}

func TestSessionRoundTrip(t *testing.T) {
	secret := []byte("test-secret")
	a := NewJWTAuth(secret)

	token, err := a.CreateJWTString("user-1", users.RoleAdmin)
	require.NoError(t, err)

	t.Run("cookie", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(a.SessionCookie(token))

		p, err := verify(t, secret, req)
		require.NoError(t, err)
		assert.Equal(t, "user-1", p.UserID)
		assert.True(t, p.IsAdmin())
	})

	t.Run("bearer header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)

		p, err := verify(t, secret, req)
		require.NoError(t, err)
		assert.Equal(t, users.RoleAdmin, p.Role)
	})

	t.Run("wrong secret", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)

		_, err := verify(t, []byte("other"), req)
		require.Error(t, err)
	})
}

func TestExpiredToken(t *testing.T) {
	secret := []byte("test-secret")
	a := NewJWTAuth(secret, WithTokenTTL(-time.Minute))

	token, err := a.CreateJWTString("user-1", users.RoleClient)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	_, err = verify(t, secret, req)
	require.Error(t, err)
}

func TestSessionCookie(t *testing.T) {
	a := NewJWTAuth([]byte("s"))

	c := a.SessionCookie("token")
	assert.Equal(t, CookieName, c.Name)
	assert.True(t, c.HttpOnly)
	assert.Equal(t, 7*24*60*60, c.MaxAge)

	assert.Negative(t, ExpiredCookie().MaxAge)
}
