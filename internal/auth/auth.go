// Package auth authenticates clients from HS256-signed JWTs and turns the
// token claims into a domain.Identity. Tokens are minted by the host
// application; this service only verifies them.
package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/tbourn/go-chat-realtime/internal/domain"
)

var (
	// ErrMissingToken is returned when the request carries no token.
	ErrMissingToken = errors.New("missing token")
	// ErrInvalidToken is returned for tokens that fail verification or carry
	// unusable claims.
	ErrInvalidToken = errors.New("invalid or expired token")
)

// Claims is the token payload.
type Claims struct {
	UserID    uint   `json:"user_id"`
	Role      string `json:"role"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Identity converts validated claims into an identity.
func (c *Claims) Identity() domain.Identity {
	return domain.Identity{
		ID:        c.UserID,
		Role:      domain.Role(c.Role),
		FirstName: c.FirstName,
		LastName:  c.LastName,
		Email:     c.Email,
	}
}

// Authenticator verifies tokens signed with a shared secret.
type Authenticator struct {
	secret []byte
	issuer string

	// Now overrides the clock used for exp/nbf checks.
	Now func() time.Time
}

// NewAuthenticator returns an authenticator for secret. A non-empty issuer is
// required to match the token's iss claim.
func NewAuthenticator(secret, issuer string) *Authenticator {
	return &Authenticator{secret: []byte(secret), issuer: issuer}
}

// Parse verifies token and returns the identity it carries.
func (a *Authenticator) Parse(token string) (domain.Identity, error) {
	if token == "" {
		return domain.Identity{}, ErrMissingToken
	}
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}
	if a.Now != nil {
		opts = append(opts, jwt.WithTimeFunc(a.Now))
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return a.secret, nil
	}, opts...)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.UserID == 0 || !domain.Role(claims.Role).Valid() {
		return domain.Identity{}, fmt.Errorf("%w: bad user claims", ErrInvalidToken)
	}
	return claims.Identity(), nil
}

// Issue signs a token for id valid for ttl. The chat service never hands out
// tokens itself; this exists for tooling and tests.
func (a *Authenticator) Issue(id domain.Identity, ttl time.Duration) (string, error) {
	now := time.Now()
	if a.Now != nil {
		now = a.Now()
	}
	claims := Claims{
		UserID:    id.ID,
		Role:      string(id.Role),
		FirstName: id.FirstName,
		LastName:  id.LastName,
		Email:     id.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    a.issuer,
			Subject:   fmt.Sprint(id.ID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// TokenFromRequest returns the bearer token of r, falling back to the
// "token" query parameter used by browser websocket clients.
func TokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		parts := strings.SplitN(h, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}
	return r.URL.Query().Get("token")
}
