package crypto

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mtzgroup/tcpb-go/internal/config"
)

func TestHMACRoundTrip(t *testing.T) {
	t.Parallel()
	svc := NewJWTService(&config.JwtConfig{Secret: "s3cret", TTL: time.Minute})
	ctx := context.Background()

	tok, err := svc.GenerateTokenHMAC(ctx, "", map[string]interface{}{"sub": "monitor"})
	if err != nil {
		t.Fatalf("GenerateTokenHMAC failed: %v", err)
	}
	ok, err := svc.VerifyTokenHMAC(ctx, tok, DefaultMethod)
	if err != nil || !ok {
		t.Fatalf("VerifyTokenHMAC = %v, %v", ok, err)
	}

	other := NewJWTService(&config.JwtConfig{Secret: "other"})
	if _, err := other.VerifyTokenHMAC(ctx, tok, DefaultMethod); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("verify with wrong secret = %v, want ErrInvalidToken", err)
	}
}

func TestExpiredToken(t *testing.T) {
	t.Parallel()
	svc := NewJWTService(&config.JwtConfig{Secret: "s3cret"})
	ctx := context.Background()

	tok, err := svc.GenerateTokenHMAC(ctx, "HS512", map[string]interface{}{"exp": time.Now().Add(-time.Minute).Unix()})
	if err != nil {
		t.Fatalf("GenerateTokenHMAC failed: %v", err)
	}
	if _, err := svc.VerifyTokenHMAC(ctx, tok, "HS512"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expired token = %v, want ErrInvalidToken", err)
	}
}

func TestMethodAndSecretErrors(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	if _, err := NewJWTService(&config.JwtConfig{}).GenerateTokenHMAC(ctx, "", nil); !errors.Is(err, ErrNoSecret) {
		t.Fatalf("no secret = %v, want ErrNoSecret", err)
	}
	if _, err := NewJWTService(&config.JwtConfig{Secret: "x"}).GenerateTokenHMAC(ctx, "RS256", nil); err == nil {
		t.Fatal("RS256 must be rejected")
	}
}
