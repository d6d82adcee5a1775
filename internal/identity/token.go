// Package identity turns bearer tokens into user ids.
package identity

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/dkeye/songroom/internal/domain"
)

const issuer = "songroom"

var ErrNoToken = errors.New("no bearer token")

// Tokens issues and verifies HS256 tokens whose subject is the user id.
type Tokens struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokens(secret string, ttl time.Duration) (*Tokens, error) {
	if len(secret) < 16 {
		return nil, errors.New("jwt secret must be at least 16 bytes")
	}
	return &Tokens{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

func (t *Tokens) Issue(uid domain.UserID) (string, error) {
	if !domain.ValidUserID(uid) {
		return "", fmt.Errorf("issue token: invalid user id %q", uid)
	}
	now := t.now()
	claims := jwt.RegisteredClaims{
		Issuer:    issuer,
		Subject:   string(uid),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
}

func (t *Tokens) Verify(raw string) (domain.UserID, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	var claims jwt.RegisteredClaims
	if _, err := parser.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return t.secret, nil
	}); err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrUnauthenticated, err)
	}
	uid := domain.UserID(claims.Subject)
	if !domain.ValidUserID(uid) {
		return "", fmt.Errorf("%w: bad subject", domain.ErrUnauthenticated)
	}
	return uid, nil
}

// FromRequest reads the Authorization header, falling back to the token
// query parameter that browser WebSocket and EventSource clients must use.
func FromRequest(r *http.Request) (string, error) {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, tok, ok := strings.Cut(h, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || tok == "" {
			return "", ErrNoToken
		}
		return tok, nil
	}
	if tok := r.URL.Query().Get("token"); tok != "" {
		return tok, nil
	}
	return "", ErrNoToken
}

// Authenticate resolves the caller of r.
func (t *Tokens) Authenticate(r *http.Request) (domain.UserID, error) {
	raw, err := FromRequest(r)
	if err != nil {
		return "", domain.ErrUnauthenticated
	}
	return t.Verify(raw)
}
