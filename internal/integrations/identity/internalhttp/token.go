package internalhttp

import (
	"sort"
	"time"

	"github.com/BearBump/KickSync/internal/integrations/identity"
	jwt "github.com/dgrijalva/jwt-go"
	"github.com/pkg/errors"
)

// TokenSource mints short-lived HS256 tokens carrying only the requested permissions.
type TokenSource struct {
	secret   []byte
	issuer   string
	audience string
	ttl      time.Duration
	now      func() time.Time
}

func NewTokenSource(secret, issuer, audience string, ttl time.Duration) *TokenSource {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &TokenSource{
		secret:   []byte(secret),
		issuer:   issuer,
		audience: audience,
		ttl:      ttl,
		now:      time.Now,
	}
}

func (ts *TokenSource) Token(perms ...identity.Permission) (string, error) {
	if len(ts.secret) == 0 {
		return "", errors.New("identity token secret is empty")
	}
	names := make([]string, 0, len(perms))
	for _, p := range perms {
		names = append(names, string(p))
	}
	sort.Strings(names)

	now := ts.now().UTC()
	claims := jwt.MapClaims{
		"iss":         ts.issuer,
		"aud":         ts.audience,
		"sub":         "kickboard-sync",
		"iat":         now.Unix(),
		"exp":         now.Add(ts.ttl).Unix(),
		"permissions": names,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(ts.secret)
	if err != nil {
		return "", errors.Wrap(err, "sign identity token")
	}
	return signed, nil
}
