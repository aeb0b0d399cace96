package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithWriter(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "warn", "H1")

	log.Info("dropped")
	log.Warn("hub unreachable", "attempt", 3)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "hub unreachable", line["msg"])
	assert.Equal(t, "H1", line["hospital_id"])
	assert.EqualValues(t, 3, line["attempt"])
}
