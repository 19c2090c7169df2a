// Package auth verifies the bearer credential presented at websocket
// connect time and exposes the role capability check applied before every
// privileged handler. Token issuance lives in the surrounding platform;
// this service only validates what clients present.
package auth

import (
	"strings"

	"github.com/golang-jwt/jwt/v4"

	"github.com/Krugou/Attenddotmetropoliadotfi-sub002/pkg/types"
)

// Claims is the identity extracted from a verified token.
type Claims struct {
	UserID        string
	Role          string
	StudentNumber string
}

// Verifier validates HMAC-signed bearer tokens.
type Verifier struct {
	secret []byte
}

// NewVerifier creates a verifier for the shared signing secret.
func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// Verify parses and validates a raw bearer token and extracts the caller
// identity. Any parse, signature or expiry failure comes back as
// ErrInvalidToken; missing identity fields as ErrMissingClaims.
func (v *Verifier) Verify(raw string) (*Claims, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrMissingToken
	}

	tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return v.secret, nil
	})
	if err != nil || !tok.Valid {
		return nil, ErrInvalidToken
	}

	mapClaims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}

	claims := &Claims{
		UserID:        strClaim(mapClaims, "userid"),
		Role:          strClaim(mapClaims, "role"),
		StudentNumber: strClaim(mapClaims, "studentnumber"),
	}
	if claims.UserID == "" {
		claims.UserID = strClaim(mapClaims, "sub")
	}
	if claims.UserID == "" || claims.Role == "" {
		return nil, ErrMissingClaims
	}
	return claims, nil
}

// BearerFromHeader strips the "Bearer " prefix from an Authorization
// header value; returns "" when the header is absent or malformed.
func BearerFromHeader(header string) string {
	header = strings.TrimSpace(header)
	if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}

// CanManageLecture reports whether the caller may open, edit, finalize or
// cancel an attendance session.
func (c *Claims) CanManageLecture() bool {
	return types.IsPrivilegedRole(c.Role)
}

func strClaim(claims jwt.MapClaims, key string) string {
	if s, ok := claims[key].(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}
