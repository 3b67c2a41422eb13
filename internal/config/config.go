package config

import (
	"os"
	"time"

	"github.com/go-yaml/yaml"
	"github.com/pkg/errors"

	"github.com/geneticconstructor/constructor-store/internal/domain"
)

type Config struct {
	NodeInfo NodeInfo `yaml:"nodeInfo"`
	Server   Server   `yaml:"server"`
}

type NodeInfo struct {
	FQDN string `yaml:"fqdn"`
}

type Server struct {
	PostgresDsn   string `yaml:"postgresDsn"`
	RedisAddr     string `yaml:"redisAddr"`
	RedisDB       int    `yaml:"redisDB"`
	MemcachedAddr string `yaml:"memcachedAddr"`
	EnableTrace   bool   `yaml:"enableTrace"`
	TraceEndpoint string `yaml:"traceEndpoint"`
	Listen        string `yaml:"listen"`
	OwnerCacheTTL string `yaml:"ownerCacheTTL"` // e.g. "10m"
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
		return Config{}, errors.Wrapf(err, "config.Load: failed to decode %s", path)
	}

	if config.Server.PostgresDsn == "" {
		return Config{}, errors.New("config.Load: server.postgresDsn is required")
	}
	if config.Server.Listen == "" {
		config.Server.Listen = ":8000"
	}

	return config, nil
}

// Domain returns the subset of the configuration the service layers see.
func (c Config) Domain() (domain.Config, error) {
	ttl := 10 * time.Minute
	if c.Server.OwnerCacheTTL != "" {
		parsed, err := time.ParseDuration(c.Server.OwnerCacheTTL)
		if err != nil {
			return domain.Config{}, errors.Wrap(err, "config: invalid server.ownerCacheTTL")
		}
		ttl = parsed
	}

	return domain.Config{
		FQDN:          c.NodeInfo.FQDN,
		Listen:        c.Server.Listen,
		OwnerCacheTTL: ttl,
	}, nil
}
