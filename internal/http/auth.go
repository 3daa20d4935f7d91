package http

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/example/lab-scheduler/internal/domain"
)

// ErrInvalidToken is returned when a bearer token fails verification or
// carries an incomplete actor.
var ErrInvalidToken = errors.New("http: invalid token")

// Claims is the JWT payload issued by the identity provider.
type Claims struct {
	Name string `json:"name"`
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Actor converts verified claims into the acting user.
func (c Claims) Actor() domain.Actor {
	return domain.Actor{UserID: c.Subject, DisplayName: c.Name, Role: domain.Role(c.Role)}
}

// JWTVerifier validates HS256 tokens signed with a shared secret.
type JWTVerifier struct {
	secret []byte
	now    func() time.Time
}

// NewJWTVerifier creates a verifier. now may be nil.
func NewJWTVerifier(secret string, now func() time.Time) *JWTVerifier {
	if now == nil {
		now = time.Now
	}
	return &JWTVerifier{secret: []byte(secret), now: now}
}

// Verify parses the token and returns the actor it carries.
func (v *JWTVerifier) Verify(token string) (domain.Actor, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(v.now))
	if err != nil {
		return domain.Actor{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return domain.Actor{}, ErrInvalidToken
	}
	actor := claims.Actor()
	if strings.TrimSpace(actor.UserID) == "" || !actor.Role.Valid() {
		return domain.Actor{}, fmt.Errorf("%w: incomplete actor", ErrInvalidToken)
	}
	return actor, nil
}

// IssueToken signs a token for the actor. The service itself never logs users
// in; this exists for the CLI and tests.
func (v *JWTVerifier) IssueToken(actor domain.Actor, ttl time.Duration) (string, error) {
	now := v.now()
	claims := Claims{
		Name: actor.DisplayName,
		Role: string(actor.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}
