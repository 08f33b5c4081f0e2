package auth

import (
	"github.com/golang-jwt/jwt/v5"
)

// JWTTokenManager requires the token to be a valid HS256 JWT signed with the
// configured secret.
type JWTTokenManager struct {
	secret []byte
}

// Validate checks signature and standard claims (exp and friends).
func (tm *JWTTokenManager) Validate(tokenString string) error {
	if tokenString == "" {
		return ErrTokenRequired
	}

	token, err := jwt.Parse(
		tokenString, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return tm.secret, nil
		},
	)
	if err != nil {
		return err
	}
	if !token.Valid {
		return jwt.ErrTokenMalformed
	}
	return nil
}
