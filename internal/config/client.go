package config

import (
	"time"

	"github.com/spf13/viper"

	"github.com/mtzgroup/tcpb-go/internal/tcp/defs"
)

type ClientConfig struct {
	Timeout    time.Duration
	RetryDelay time.Duration
	PollDelay  time.Duration
	TraceDir   string
}

func setClientDefaults(v *viper.Viper) {
	v.SetDefault("client.timeout", defs.ClientTimeout)
	v.SetDefault("client.retrydelay", defs.ClientRetryDelay)
	v.SetDefault("client.polldelay", defs.ClientPollDelay)
	v.SetDefault("client.tracedir", "")
}

func NewClientConfig(v *viper.Viper) *ClientConfig {
	return &ClientConfig{
		Timeout:    v.GetDuration("client.timeout"),
		RetryDelay: v.GetDuration("client.retrydelay"),
		PollDelay:  v.GetDuration("client.polldelay"),
		TraceDir:   v.GetString("client.tracedir"),
	}
}
