package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
nodeInfo:
  fqdn: constructor.example.com
server:
  postgresDsn: host=db user=postgres dbname=constructor
  redisAddr: redis:6379
  memcachedAddr: memcached:11211
  ownerCacheTTL: 30s
`)

	conf, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "constructor.example.com", conf.NodeInfo.FQDN)
	assert.Equal(t, "redis:6379", conf.Server.RedisAddr)
	assert.Equal(t, ":8000", conf.Server.Listen)

	dc, err := conf.Domain()
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, dc.OwnerCacheTTL)
	assert.Equal(t, ":8000", dc.Listen)
}

func TestLoadRequiresDsn(t *testing.T) {
	path := writeConfig(t, "server:\n  listen: :9000\n")

	_, err := Load(path)
	assert.Error(t, err)
}

func TestDomainRejectsBadTTL(t *testing.T) {
	conf := Config{Server: Server{PostgresDsn: "x", OwnerCacheTTL: "soon"}}

	_, err := conf.Domain()
	assert.Error(t, err)
}

func TestDomainDefaultTTL(t *testing.T) {
	dc, err := Config{}.Domain()
	require.NoError(t, err)
	assert.Equal(t, 10*time.Minute, dc.OwnerCacheTTL)
}
