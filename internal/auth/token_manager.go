package auth

import "errors"

var ErrTokenRequired = errors.New("authorization token required")

// TokenManager validates the bearer token presented on the WebSocket
// upgrade request.
type TokenManager interface {
	Validate(token string) error
}

// NewTokenManager returns the JWT-validating manager when a secret is
// configured, and the opaque passthrough manager otherwise.
func NewTokenManager(secret string) TokenManager {
	if secret == "" {
		return OpaqueTokenManager{}
	}
	return &JWTTokenManager{secret: []byte(secret)}
}

// OpaqueTokenManager treats the token as an opaque value: any non-empty
// token is accepted. This is the default mode; the relay trusts clients and
// only requires that a token was presented at all.
type OpaqueTokenManager struct{}

func (OpaqueTokenManager) Validate(token string) error {
	if token == "" {
		return ErrTokenRequired
	}
	return nil
}
