package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: WARN, Format: TextFormat, Output: &buf})

	log.Debug("drop me")
	log.Info("drop me too")
	log.Warn("keep me")

	out := buf.String()
	assert.NotContains(t, out, "drop me")
	assert.Contains(t, out, "keep me")
}

func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: INFO, Format: JSONFormat, Output: &buf, Component: "sync"})

	log.Info("merged records", Fields{"taxon_id": 48701, "new": 3})

	var entry LogEntry
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "INFO", entry.Level)
	assert.Equal(t, "merged records", entry.Message)
	assert.Equal(t, "sync", entry.Component)
	assert.EqualValues(t, 3, entry.Fields["new"])
}

func TestWithComponent(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: INFO, Format: TextFormat, Output: &buf})

	log.WithComponent("fetchers").Info("page loaded")

	assert.Contains(t, buf.String(), "[fetchers]")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, DEBUG, ParseLevel("debug"))
	assert.Equal(t, WARN, ParseLevel("WARNING"))
	assert.Equal(t, LogLevel(-1), ParseLevel("verbose"))
}
