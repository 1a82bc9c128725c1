package config

import (
	"time"

	"github.com/spf13/viper"
)

type RedisConfig struct {
	DB         int
	Url        string
	Password   string
	KeyPrefix  string
	Expiration time.Duration
}

func setRedisDefaults(v *viper.Viper) {
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.url", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.keyprefix", "tcpb:job:")
	v.SetDefault("redis.expiration", time.Duration(0))
}

func NewRedisConfig(v *viper.Viper) *RedisConfig {
	return &RedisConfig{
		DB:         v.GetInt("redis.db"),
		Url:        v.GetString("redis.url"),
		Password:   v.GetString("redis.password"),
		KeyPrefix:  v.GetString("redis.keyprefix"),
		Expiration: v.GetDuration("redis.expiration"),
	}
}
