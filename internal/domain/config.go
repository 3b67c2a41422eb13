package domain

import "time"

type Config struct {
	FQDN          string        `yaml:"fqdn"`
	Listen        string        `yaml:"listen"`
	OwnerCacheTTL time.Duration `yaml:"ownerCacheTTL"`
}
