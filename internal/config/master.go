package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable read by NewViper
const EnvPrefix = "TCPB"

type AppConfig struct {
	LogLevel       string
	ServerConfig   *ServerConfig
	ClientConfig   *ClientConfig
	HTTPConfig     *HTTPConfig
	JwtConfig      *JwtConfig
	HistoryConfig  *HistoryConfig
	RedisConfig    *RedisConfig
	PostgresConfig *PostgresConfig
}

// NewViper returns a viper instance reading TCPB_* variables, with every
// default registered. Keys use dots; TCPB_SERVER_PORT sets server.port.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("log.level", "info")
	setServerDefaults(v)
	setClientDefaults(v)
	setHTTPDefaults(v)
	setJwtDefaults(v)
	setHistoryDefaults(v)
	setRedisDefaults(v)
	setPostgresDefaults(v)
	return v
}

// NewSystemConfig reads every section from v
func NewSystemConfig(v *viper.Viper) (*AppConfig, error) {
	server, err := NewServerConfig(v)
	if err != nil {
		return nil, err
	}
	history, err := NewHistoryConfig(v)
	if err != nil {
		return nil, err
	}
	return &AppConfig{
		LogLevel:       v.GetString("log.level"),
		ServerConfig:   server,
		ClientConfig:   NewClientConfig(v),
		HTTPConfig:     NewHTTPConfig(v),
		JwtConfig:      NewJwtConfig(v),
		HistoryConfig:  history,
		RedisConfig:    NewRedisConfig(v),
		PostgresConfig: NewPostgresConfig(v),
	}, nil
}

// InitReader loads <environment>.env into the process environment. An empty
// environment loads .env; a missing file is not an error. Variables already
// set win over the file.
func InitReader(environment string) error {
	path := ".env"
	if environment != "" {
		path = environment + ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}
