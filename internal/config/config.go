package config

import (
	"os"
	"time"

	"github.com/go-yaml/yaml"

	"github.com/neighbournet/neighbournet/internal/domain"
)

type Config struct {
	Service Service `yaml:"service"`
	Server  Server  `yaml:"server"`
}

type Service struct {
	FQDN                  string  `yaml:"fqdn"`
	JWTSecret             string  `yaml:"jwtSecret"`
	TokenDurationHours    int     `yaml:"tokenDurationHours"`
	DiscoveryRadiusMeters float64 `yaml:"discoveryRadiusMeters"`
}

type Server struct {
	Addr          string `yaml:"addr"`
	PostgresDsn   string `yaml:"postgresDsn"`
	RedisAddr     string `yaml:"redisAddr"`
	RedisPassword string `yaml:"redisPassword"`
	RedisDB       int    `yaml:"redisDB"`
	MemcachedAddr string `yaml:"memcachedAddr"`
	EnableTrace   bool   `yaml:"enableTrace"`
	TraceEndpoint string `yaml:"traceEndpoint"`
}

func Load(path string) (Config, error) {

	file, err := os.Open(path)
	if err != nil {
		return Config{}, err
	}
	defer file.Close()

	var config Config
	err = yaml.NewDecoder(file).Decode(&config)
	if err != nil {
		return Config{}, err
	}

	if config.Server.Addr == "" {
		config.Server.Addr = ":8000"
	}
	if config.Service.TokenDurationHours <= 0 {
		config.Service.TokenDurationHours = 7 * 24
	}
	if config.Service.DiscoveryRadiusMeters <= 0 {
		config.Service.DiscoveryRadiusMeters = domain.DefaultDiscoveryRadiusMeters
	}

	return config, nil
}

// Domain maps the service section onto the config handed to services and
// handlers.
func (c Config) Domain() domain.Config {
	return domain.Config{
		FQDN:                  c.Service.FQDN,
		JWTSecret:             c.Service.JWTSecret,
		TokenDuration:         time.Duration(c.Service.TokenDurationHours) * time.Hour,
		DiscoveryRadiusMeters: c.Service.DiscoveryRadiusMeters,
	}
}
