package config

import (
	"fmt"
	"math"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/viper"

	"github.com/mtzgroup/tcpb-go/internal/tcp/defs"
)

type ServerConfig struct {
	Host         string
	Port         int
	BaseDir      string
	MaxPayload   uint32
	ReactorTick  time.Duration
	WriteTimeout time.Duration
}

func setServerDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "")
	v.SetDefault("server.port", 0)
	v.SetDefault("server.basedir", ".")
	v.SetDefault("server.maxpayload", humanize.IBytes(defs.DefaultMaxPayload))
	v.SetDefault("server.tick", defs.ReactorTick)
	v.SetDefault("server.writetimeout", defs.ServerWriteTimeout)
}

func NewServerConfig(v *viper.Viper) (*ServerConfig, error) {
	maxPayload, err := ParseSize(v.GetString("server.maxpayload"))
	if err != nil {
		return nil, fmt.Errorf("invalid server.maxpayload: %w", err)
	}
	return &ServerConfig{
		Host:         v.GetString("server.host"),
		Port:         v.GetInt("server.port"),
		BaseDir:      v.GetString("server.basedir"),
		MaxPayload:   maxPayload,
		ReactorTick:  v.GetDuration("server.tick"),
		WriteTimeout: v.GetDuration("server.writetimeout"),
	}, nil
}

// Address is the listen address for the TCP server
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// ParseSize accepts sizes like "64MiB", "1 MB" or "4096"
func ParseSize(s string) (uint32, error) {
	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, err
	}
	if n == 0 || n > math.MaxUint32 {
		return 0, fmt.Errorf("size %s out of range", s)
	}
	return uint32(n), nil
}
