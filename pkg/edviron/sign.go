package edviron

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Sign produces the HS256 token the gateway expects in the `sign` field.
func Sign(secret string, claims map[string]any, issuedAt time.Time) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("signing secret is required")
	}
	mc := jwt.MapClaims{}
	for k, v := range claims {
		mc[k] = v
	}
	mc["iat"] = issuedAt.Unix()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, mc)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("sign gateway payload: %w", err)
	}
	return signed, nil
}

// Verify parses a gateway-signed token and returns its claims.
func Verify(secret, token string) (map[string]any, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("verify gateway token: %w", err)
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok || !parsed.Valid {
		return nil, fmt.Errorf("verify gateway token: invalid claims")
	}
	return claims, nil
}
