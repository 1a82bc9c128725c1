package crypto

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/mtzgroup/tcpb-go/internal/config"
	"github.com/mtzgroup/tcpb-go/internal/core/ports/primary"
)

var _ primary.JWTService = (*JWTServiceImpl)(nil)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrNoSecret     = errors.New("no HMAC secret configured")
)

// DefaultMethod is the signing method used for monitor tokens
const DefaultMethod = "HS256"

type JWTServiceImpl struct {
	HMACSecretKey string
	TTL           time.Duration
}

func NewJWTService(jwtConfig *config.JwtConfig) *JWTServiceImpl {
	return &JWTServiceImpl{
		HMACSecretKey: jwtConfig.Secret,
		TTL:           jwtConfig.TTL,
	}
}

func (J JWTServiceImpl) GenerateTokenHMAC(ctx context.Context, method string, claims map[string]interface{}) (string, error) {
	if J.HMACSecretKey == "" {
		return "", ErrNoSecret
	}
	signingMethod, err := hmacMethod(method)
	if err != nil {
		return "", err
	}

	if claims == nil {
		claims = map[string]interface{}{}
	}
	if _, exists := claims["iat"]; !exists {
		claims["iat"] = time.Now().Unix()
	}
	if _, exists := claims["exp"]; !exists && J.TTL > 0 {
		claims["exp"] = time.Now().Add(J.TTL).Unix()
	}

	tok := jwt.NewWithClaims(signingMethod, jwt.MapClaims(claims))
	return tok.SignedString([]byte(J.HMACSecretKey))
}

func (J JWTServiceImpl) VerifyTokenHMAC(ctx context.Context, token string, method string) (bool, error) {
	if J.HMACSecretKey == "" {
		return false, ErrNoSecret
	}
	signingMethod, err := hmacMethod(method)
	if err != nil {
		return false, err
	}

	parsedToken, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(J.HMACSecretKey), nil
	}, jwt.WithValidMethods([]string{signingMethod.Alg()}))
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	return parsedToken.Valid, nil
}

func hmacMethod(method string) (*jwt.SigningMethodHMAC, error) {
	if method == "" {
		method = DefaultMethod
	}
	m, ok := jwt.GetSigningMethod(method).(*jwt.SigningMethodHMAC)
	if !ok {
		return nil, fmt.Errorf("unsupported signing method: %s", method)
	}
	return m, nil
}
