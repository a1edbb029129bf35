package authz

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/tidwall/gjson"
)

// ErrInvalidToken is returned when a bearer token fails verification.
var ErrInvalidToken = errors.New("invalid or expired token")

// FlexString decodes a JSON string or number into its string form. The
// identity service issues numeric user and role ids.
type FlexString string

func (f *FlexString) UnmarshalJSON(b []byte) error {
	*f = FlexString(gjson.ParseBytes(b).String())
	return nil
}

// Claims are the JWT claims issued by the identity service.
type Claims struct {
	UserID   FlexString `json:"user_id"`
	Username string     `json:"username,omitempty"`
	Email    string     `json:"email,omitempty"`
	RoleID   FlexString `json:"role_id"`
	jwt.RegisteredClaims
}

// Caller converts verified claims into a Caller.
func (c *Claims) Caller() Caller {
	return Caller{
		UserID:   string(c.UserID),
		Username: c.Username,
		RoleID:   string(c.RoleID),
		Verified: true,
	}
}

// Tokens signs and verifies HS256 bearer tokens.
type Tokens struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokens creates a token signer/verifier.
func NewTokens(secret string, ttl time.Duration) *Tokens {
	return &Tokens{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue mints a signed token for the given identity.
func (t *Tokens) Issue(userID, username, email, roleID string) (string, error) {
	if len(t.secret) == 0 {
		return "", fmt.Errorf("signing token: no secret configured")
	}
	now := t.now()
	claims := Claims{
		UserID:   FlexString(userID),
		Username: username,
		Email:    email,
		RoleID:   FlexString(roleID),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

// Parse verifies a token and returns its claims.
func (t *Tokens) Parse(tokenString string) (*Claims, error) {
	if len(t.secret) == 0 {
		return nil, fmt.Errorf("%w: no secret configured", ErrInvalidToken)
	}
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return t.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(t.now))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
