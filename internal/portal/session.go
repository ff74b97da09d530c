package portal

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SessionCookieName carries the signed advisor session.
const SessionCookieName = "spike_session"

type sessionClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// IssueSession signs a session token for an authorised advisor email.
func IssueSession(secret []byte, email string, ttl time.Duration, now time.Time) (string, error) {
	claims := sessionClaims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// ParseSession validates a session token and returns the advisor email.
func ParseSession(secret []byte, token string) (string, error) {
	parsed, err := jwt.ParseWithClaims(token, &sessionClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return "", err
	}
	claims, ok := parsed.Claims.(*sessionClaims)
	if !ok || !parsed.Valid || claims.Email == "" {
		return "", fmt.Errorf("invalid session claims")
	}
	return claims.Email, nil
}
