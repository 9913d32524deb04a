package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	LogLevel   string   `yaml:"log-level" env-default:"info"`
	HTTPPort   string   `yaml:"http-port" env-default:"9090"`
	SocketPort string   `yaml:"socket-port" env-default:"9091"`
	Redis      Redis    `yaml:"redis"`
	Presence   Presence `yaml:"presence"`
}

type Redis struct {
	Host string `yaml:"host" env-default:"localhost"`
	Port string `yaml:"port" env-default:"6379"`
}

// Presence holds the liveness timing knobs. StaleAfter must be at least
// twice HeartbeatInterval so a single missed heartbeat never evicts anyone.
type Presence struct {
	HeartbeatInterval time.Duration `yaml:"heartbeat-interval" env-default:"5s"`
	StaleAfter        time.Duration `yaml:"stale-after" env-default:"30s"`
	ReapInterval      time.Duration `yaml:"reap-interval" env-default:"5s"`
}

// MustLoad - load all configurations in config.yml file.
func MustLoad(path string) *Config {
	config := &Config{}

	if err := cleanenv.ReadConfig(path, config); err != nil {
		panic(fmt.Errorf("unable to load config file: %w", err))
	}

	return config
}

func (that *Redis) GetRedisAddr() string {
	return fmt.Sprintf("%s:%s", that.Host, that.Port)
}
