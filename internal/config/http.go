package config

import "github.com/spf13/viper"

// HTTPConfig configures the monitor. An empty address disables it.
type HTTPConfig struct {
	Address string
}

func setHTTPDefaults(v *viper.Viper) {
	v.SetDefault("http.address", "127.0.0.1:8082")
}

func NewHTTPConfig(v *viper.Viper) *HTTPConfig {
	return &HTTPConfig{
		Address: v.GetString("http.address"),
	}
}
