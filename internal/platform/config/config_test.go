package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadAppliesDefaults(t *testing.T) {
	t.Setenv("FEDERATION_LOCAL_DOMAIN", " Local.Example ")
	t.Setenv("FEDERATION_IN_MEMORY", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "fedsync", cfg.ServiceName)
	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, "local.example", cfg.Federation.LocalDomain)
	assert.Equal(t, 5*time.Minute, cfg.Federation.SignatureTolerance)
	assert.Equal(t, 50, cfg.Federation.MessagesPerChannel)
	assert.False(t, cfg.Federation.AcceptStreamBaseline)
	assert.Equal(t, 15*time.Minute, cfg.Federation.ReconcileInterval)
	assert.Equal(t, 100, cfg.Federation.OutboxBatchSize)
	assert.Equal(t, 2*time.Second, cfg.Federation.PollInterval)
	assert.Equal(t, 15*time.Second, cfg.Federation.PeerTimeout)
	assert.Equal(t, float64(50), cfg.Federation.InboundRateLimit)
	assert.Equal(t, 100, cfg.Federation.InboundRateBurst)
}

func TestLoadReadsOverrides(t *testing.T) {
	t.Setenv("FEDERATION_LOCAL_DOMAIN", "local.example")
	t.Setenv("POSTGRES_DSN", "postgres://fedsync@localhost/fedsync")
	t.Setenv("FEDERATION_SIGNATURE_TOLERANCE", "90s")
	t.Setenv("FEDERATION_ACCEPT_STREAM_BASELINE", "true")
	t.Setenv("FEDERATION_SNAPSHOT_MESSAGES_PER_CHANNEL", "10")
	t.Setenv("FEDERATION_PEER_TIMEOUT", "3s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 90*time.Second, cfg.Federation.SignatureTolerance)
	assert.True(t, cfg.Federation.AcceptStreamBaseline)
	assert.Equal(t, 10, cfg.Federation.MessagesPerChannel)
	assert.Equal(t, 3*time.Second, cfg.Federation.PeerTimeout)
	assert.False(t, cfg.Federation.InMemory)
}

func TestLoadRequiresDomainAndStorage(t *testing.T) {
	t.Setenv("FEDERATION_LOCAL_DOMAIN", "")
	t.Setenv("POSTGRES_DSN", "")
	t.Setenv("FEDERATION_IN_MEMORY", "false")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "FEDERATION_LOCAL_DOMAIN")
	assert.Contains(t, err.Error(), "POSTGRES_DSN")
}

func TestLoadRejectsBadDuration(t *testing.T) {
	t.Setenv("FEDERATION_LOCAL_DOMAIN", "local.example")
	t.Setenv("FEDERATION_IN_MEMORY", "true")
	t.Setenv("FEDERATION_POLL_INTERVAL", "soon")

	_, err := Load()
	require.Error(t, err)
}

func TestValidateRejectsNonPositivePeerTimeout(t *testing.T) {
	t.Setenv("FEDERATION_LOCAL_DOMAIN", "local.example")
	t.Setenv("FEDERATION_IN_MEMORY", "true")
	t.Setenv("FEDERATION_PEER_TIMEOUT", "0s")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "FEDERATION_PEER_TIMEOUT")
}
