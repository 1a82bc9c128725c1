package config

import (
	"time"

	"github.com/spf13/viper"
)

// JwtConfig holds the monitor's HMAC secret. An empty secret leaves the
// monitor open.
type JwtConfig struct {
	Secret string
	TTL    time.Duration
}

func setJwtDefaults(v *viper.Viper) {
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.ttl", time.Hour)
}

func NewJwtConfig(v *viper.Viper) *JwtConfig {
	return &JwtConfig{
		Secret: v.GetString("jwt.secret"),
		TTL:    v.GetDuration("jwt.ttl"),
	}
}
