package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnv_Defaults(t *testing.T) {
	t.Setenv("REUNITE_HOSPITAL_ID", "H1")
	t.Setenv("KAFKA_BROKERS", " kafka-1:9092, kafka-2:9092,kafka-1:9092 ")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, DefaultAddr, cfg.Addr)
	assert.Equal(t, "H1", cfg.HospitalID.String())
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, DefaultSyncInterval, cfg.Sync.Interval)
	assert.Equal(t, DefaultPeerOfflineAfter, cfg.Sync.OfflineAfter)
	assert.InDelta(t, 0.6, cfg.Match.DistanceThreshold, 1e-9)
	assert.True(t, cfg.AutoTransferOnReidentify)
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("REUNITE_HOSPITAL_ID", "H2")
	t.Setenv("SYNC_INTERVAL", "5s")
	t.Setenv("SYNC_MAX_RETRIES", "3")
	t.Setenv("AUTO_TRANSFER_ON_REIDENTIFY", "false")
	t.Setenv("MATCH_DISTANCE_THRESHOLD", "0.5")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, 5*time.Second, cfg.Sync.Interval)
	assert.Equal(t, 3, cfg.Sync.MaxRetries)
	assert.False(t, cfg.AutoTransferOnReidentify)
	assert.InDelta(t, 0.5, cfg.Match.DistanceThreshold, 1e-9)
}

func TestFromEnv_Invalid(t *testing.T) {
	t.Run("missing hospital id", func(t *testing.T) {
		t.Setenv("REUNITE_HOSPITAL_ID", "")
		_, err := FromEnv()
		require.Error(t, err)
	})

	t.Run("bad duration", func(t *testing.T) {
		t.Setenv("REUNITE_HOSPITAL_ID", "H1")
		t.Setenv("SYNC_MAX_BACKOFF", "soon")
		_, err := FromEnv()
		require.Error(t, err)
	})
}
