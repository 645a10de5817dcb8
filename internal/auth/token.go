package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/usergate/usergate/internal/rbac"
)

// RoleClaim accepts either a single role string or an array of roles.
type RoleClaim []string

// UnmarshalJSON implements json.Unmarshaler.
func (r *RoleClaim) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*r = RoleClaim{single}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return errors.New("role claim must be a string or an array of strings")
	}
	*r = many
	return nil
}

// MarshalJSON emits a bare string for a single role.
func (r RoleClaim) MarshalJSON() ([]byte, error) {
	if len(r) == 1 {
		return json.Marshal(r[0])
	}
	return json.Marshal([]string(r))
}

// Claims holds the claims embedded in an access token. Subject carries the
// user uuid.
type Claims struct {
	jwt.RegisteredClaims
	Email string    `json:"email"`
	Role  RoleClaim `json:"role"`
}

// Caller converts the claims into a caller. Unknown roles are kept; they
// simply map to an empty permission set.
func (c *Claims) Caller() *rbac.Caller {
	caller := &rbac.Caller{ID: c.Subject}
	for _, raw := range c.Role {
		caller.Roles = append(caller.Roles, rbac.Role(raw))
	}
	return caller
}

// Tokens issues and verifies HS256 access tokens.
type Tokens struct {
	secret []byte
	ttl    time.Duration
	issuer string
	now    func() time.Time
}

// NewTokens builds a Tokens helper.
func NewTokens(secret string, ttl time.Duration, issuer string) *Tokens {
	return &Tokens{secret: []byte(secret), ttl: ttl, issuer: issuer, now: time.Now}
}

// Issue signs a token for the given identity.
func (t *Tokens) Issue(subject, email string, role rbac.Role) (string, error) {
	now := t.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    t.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
		Email: email,
		Role:  RoleClaim{string(role)},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("auth: sign token: %w", err)
	}
	return signed, nil
}

// Parse validates a token. Only HS256 is accepted and expiry is mandatory.
func (t *Tokens) Parse(raw string) (*Claims, error) {
	claims := &Claims{}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	}
	if t.issuer != "" {
		opts = append(opts, jwt.WithIssuer(t.issuer))
	}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return t.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("auth: parse token: %w", err)
	}
	if claims.Subject == "" {
		return nil, errors.New("auth: parse token: missing subject")
	}
	return claims, nil
}
