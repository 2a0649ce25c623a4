package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

type authCtxKey int

const authKey authCtxKey = 7

const tokenIssuer = "silencie"

type Claims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// Identity is the authenticated caller.
type Identity struct {
	UserID string
	Email  string
	Role   string
}

func (id Identity) IsAdmin() bool { return id.Role == "admin" }

// RoleLookup returns the current role of a user, or "" when the user no
// longer exists.
type RoleLookup func(ctx context.Context, userID string) (string, error)

// Authenticator signs and verifies HS256 bearer tokens. Tokens from another
// issuer sharing the secret are accepted. With a RoleLookup the role is
// re-read on every request instead of trusted from the token.
type Authenticator struct {
	secret []byte
	lookup RoleLookup
	now    func() time.Time
}

func NewAuthenticator(secret string, lookup RoleLookup) *Authenticator {
	return &Authenticator{secret: []byte(secret), lookup: lookup, now: time.Now}
}

func (a *Authenticator) SignToken(userID, email, role string, ttl time.Duration) (string, error) {
	now := a.now()
	claims := Claims{
		Email: email,
		Role:  role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    tokenIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

func (a *Authenticator) parseToken(tok string) (*Claims, error) {
	t, err := jwt.ParseWithClaims(tok, &Claims{}, func(token *jwt.Token) (interface{}, error) { return a.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil {
		return nil, err
	}
	if c, ok := t.Claims.(*Claims); ok && t.Valid && c.Subject != "" {
		return c, nil
	}
	return nil, errors.New("invalid token")
}

// WithAuth attaches the caller's identity to the context when the request
// carries a valid bearer token. Requests without one pass through.
func (a *Authenticator) WithAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := r.Header.Get("Authorization")
		if !strings.HasPrefix(h, "Bearer ") {
			next.ServeHTTP(w, r)
			return
		}
		c, err := a.parseToken(strings.TrimSpace(strings.TrimPrefix(h, "Bearer ")))
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}
		id := Identity{UserID: c.Subject, Email: c.Email, Role: c.Role}
		if a.lookup != nil {
			role, err := a.lookup(r.Context(), id.UserID)
			if err != nil {
				writeError(w, r, http.StatusInternalServerError, "internal", "")
				return
			}
			if role == "" {
				next.ServeHTTP(w, r)
				return
			}
			id.Role = role
		}
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
	})
}

func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := IdentityFromContext(r.Context()); !ok {
			writeError(w, r, http.StatusUnauthorized, "unauthorized", "auth.unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := IdentityFromContext(r.Context())
		if !ok {
			writeError(w, r, http.StatusUnauthorized, "unauthorized", "auth.unauthorized")
			return
		}
		if !id.IsAdmin() {
			writeError(w, r, http.StatusForbidden, "forbidden", "auth.forbidden")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, authKey, id)
}

func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(authKey).(Identity)
	return id, ok && id.UserID != ""
}
