// Package auth resolves the caller identity for HTTP requests. Field
// clients send an HS256 bearer token; deployments without an identity
// provider can run with the demo principal enabled instead.
package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Principal is the authenticated caller attached to the request
// context.
type Principal struct {
	UserID string
	Name   string
}

type ctxKey struct{}

// DemoPrincipal stands in when no token is presented and the
// deployment allows anonymous field clients.
var DemoPrincipal = Principal{UserID: "demo-user", Name: "Demo User"}

// FromContext returns the principal set by Middleware. The boolean is
// false when the request never passed through it.
func FromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(ctxKey{}).(Principal)
	return p, ok
}

// WithPrincipal returns a context carrying the given principal. Tests
// use it to skip the HTTP middleware.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, ctxKey{}, p)
}

// Verifier checks bearer tokens and resolves principals.
type Verifier struct {
	secret    []byte
	allowDemo bool
}

// NewVerifier builds a verifier for HS256 tokens signed with secret.
// allowDemo controls whether unauthenticated requests fall back to the
// demo principal instead of being rejected.
func NewVerifier(secret string, allowDemo bool) *Verifier {
	return &Verifier{secret: []byte(secret), allowDemo: allowDemo}
}

// Middleware resolves the caller and stores it in the request context.
// A valid token always wins; without one the request either proceeds as
// the demo principal or is rejected with 401.
func (v *Verifier) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, err := v.resolve(r)
		if err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"success":false,"error":"authentication required"}`))
			return
		}
		next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
	})
}

func (v *Verifier) resolve(r *http.Request) (Principal, error) {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		if v.allowDemo {
			return DemoPrincipal, nil
		}
		return Principal{}, jwt.ErrTokenMalformed
	}

	tokenStr := strings.TrimPrefix(header, "Bearer ")
	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return v.secret, nil
	})
	if err != nil || !token.Valid {
		if v.allowDemo {
			return DemoPrincipal, nil
		}
		if err == nil {
			err = jwt.ErrTokenUnverifiable
		}
		return Principal{}, err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Principal{}, jwt.ErrTokenInvalidClaims
	}
	p := Principal{}
	if sub, err := claims.GetSubject(); err == nil {
		p.UserID = sub
	}
	if id, ok := claims["userId"].(string); ok && id != "" {
		p.UserID = id
	}
	if name, ok := claims["name"].(string); ok {
		p.Name = name
	}
	if p.UserID == "" {
		if v.allowDemo {
			return DemoPrincipal, nil
		}
		return Principal{}, jwt.ErrTokenInvalidClaims
	}
	if p.Name == "" {
		p.Name = p.UserID
	}
	return p, nil
}
