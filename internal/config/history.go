package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// History backends
const (
	HistoryMemory   = "memory"
	HistoryRedis    = "redis"
	HistoryPostgres = "postgres"
	HistoryNone     = "none"
)

type HistoryConfig struct {
	Backend       string
	QueueSize     int
	Capacity      int
	Retention     time.Duration
	PruneInterval time.Duration
}

func setHistoryDefaults(v *viper.Viper) {
	v.SetDefault("history.backend", HistoryMemory)
	v.SetDefault("history.queue", 256)
	v.SetDefault("history.capacity", 1000)
	v.SetDefault("history.retention", 7*24*time.Hour)
	v.SetDefault("history.pruneinterval", time.Hour)
}

func NewHistoryConfig(v *viper.Viper) (*HistoryConfig, error) {
	c := &HistoryConfig{
		Backend:       v.GetString("history.backend"),
		QueueSize:     v.GetInt("history.queue"),
		Capacity:      v.GetInt("history.capacity"),
		Retention:     v.GetDuration("history.retention"),
		PruneInterval: v.GetDuration("history.pruneinterval"),
	}
	switch c.Backend {
	case HistoryMemory, HistoryRedis, HistoryPostgres, HistoryNone:
	default:
		return nil, fmt.Errorf("unknown history backend %q", c.Backend)
	}
	return c, nil
}
