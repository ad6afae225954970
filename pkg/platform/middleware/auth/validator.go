package auth

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// JWTValidator validates HMAC-signed staff tokens from the auth provider.
// The shared signing key is provisioned out of band.
type JWTValidator struct {
	signingKey []byte
}

// NewJWTValidator constructs a validator with the provider's signing key.
func NewJWTValidator(signingKey string) *JWTValidator {
	return &JWTValidator{signingKey: []byte(signingKey)}
}

type staffClaims struct {
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// ValidateToken parses and verifies a token, returning the staff claims.
func (v *JWTValidator) ValidateToken(tokenString string) (*Claims, error) {
	var claims staffClaims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.signingKey, nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("token is not valid")
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("token has no subject")
	}
	return &Claims{
		StaffID: claims.Subject,
		Email:   claims.Email,
		Role:    claims.Role,
	}, nil
}
