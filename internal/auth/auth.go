package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/andymarkow/cybexchange/internal/domain/users"
	"github.com/go-chi/jwtauth/v5"
	"github.com/golang-jwt/jwt/v4"
)

// CookieName is the session cookie read by jwtauth.TokenFromCookie.
const CookieName = "jwt"

var ErrPrincipalMissing = errors.New("session principal is missing")

type JWTAuth struct {
	secret   []byte
	issuer   string
	tokenTTL time.Duration
}

type Claims struct {
	Role users.Role `json:"role"`
	jwt.RegisteredClaims
}

func NewJWTAuth(secret []byte, opts ...Option) *JWTAuth {
	a := &JWTAuth{
		secret:   secret,
		tokenTTL: 7 * 24 * time.Hour,
		issuer:   "cybexchange",
	}

	for _, opt := range opts {
		opt(a)
	}

	return a
}

type Option func(a *JWTAuth)

func WithIssuer(issuer string) Option {
	return func(a *JWTAuth) {
		a.issuer = issuer
	}
}

func WithTokenTTL(ttl time.Duration) Option {
	return func(a *JWTAuth) {
		a.tokenTTL = ttl
	}
}

func (a *JWTAuth) TokenTTL() time.Duration {
	return a.tokenTTL
}

// CreateJWTString signs a session token for the user id and role.
func (a *JWTAuth) CreateJWTString(sub string, role users.Role) (string, error) {
	now := time.Now()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    a.issuer,
			Subject:   sub,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.tokenTTL)),
		},
	})

	tokenString, err := token.SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("token.SignedString: %w", err)
	}

	return tokenString, nil
}

// SessionCookie wraps a signed token into the session cookie.
func (a *JWTAuth) SessionCookie(token string) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(a.tokenTTL.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}

// ExpiredCookie clears the session cookie.
func ExpiredCookie() *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}

// Principal is the authenticated caller of a request.
type Principal struct {
	UserID string
	Role   users.Role
}

func (p Principal) IsAdmin() bool {
	return p.Role == users.RoleAdmin
}

// PrincipalFromContext reads the caller from the claims jwtauth.Verifier put into ctx.
func PrincipalFromContext(ctx context.Context) (Principal, error) {
	_, claims, err := jwtauth.FromContext(ctx)
	if err != nil {
		return Principal{}, fmt.Errorf("jwtauth.FromContext: %w", err)
	}

	sub, _ := claims["sub"].(string)
	if sub == "" {
		return Principal{}, ErrPrincipalMissing
	}

	role, _ := claims["role"].(string)

	parsed, err := users.ParseRole(role)
	if err != nil {
		return Principal{}, fmt.Errorf("users.ParseRole: %w", err)
	}

	return Principal{UserID: sub, Role: parsed}, nil
}
