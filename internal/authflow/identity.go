package authflow

import (
	"github.com/golang-jwt/jwt/v5"
)

// identityFromToken extracts the account identifier and display name from
// the access token's claims without verifying the signature; the token was
// just issued to us over TLS and is only being read, not trusted for
// authorization.
func identityFromToken(accessToken string) (account, name string) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(accessToken, claims); err != nil {
		return "", ""
	}
	if v, ok := claims["preferred_username"].(string); ok {
		account = v
	}
	if account == "" {
		if v, ok := claims["upn"].(string); ok {
			account = v
		}
	}
	if v, ok := claims["name"].(string); ok {
		name = v
	}
	return account, name
}
