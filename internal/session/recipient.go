package session

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/golang-jwt/jwt/v5"
)

// ErrNoRecipient is returned when neither the principal nor the credential
// identify the user notifications are addressed to.
var ErrNoRecipient = errors.New("session: no recipient identifier")

// RecipientID derives the identifier notifications are published under:
// the principal's ID, else the userId claim of the bearer token, else the
// username, else the email.
func (s *Store) RecipientID() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.user != nil && s.user.ID != "" {
		return s.user.ID, nil
	}
	if id := userIDClaim(s.token); id != "" {
		return id, nil
	}
	if s.user != nil && s.user.Username != "" {
		return s.user.Username, nil
	}
	if s.user != nil && s.user.Email != "" {
		return s.user.Email, nil
	}
	return "", ErrNoRecipient
}

// userIDClaim reads the userId claim without verifying the signature; the
// client has no key and only uses the value for addressing.
func userIDClaim(token string) string {
	if token == "" {
		return ""
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return ""
	}

	switch v := claims["userId"].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}
