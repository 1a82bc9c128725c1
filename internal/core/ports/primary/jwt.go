package primary

import "context"

// JWTService issues and checks the bearer tokens that guard the monitor
type JWTService interface {
	GenerateTokenHMAC(ctx context.Context, method string, claims map[string]interface{}) (string, error)
	VerifyTokenHMAC(ctx context.Context, token string, method string) (bool, error)
}
