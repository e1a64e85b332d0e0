package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "json", "debug")
	logger.WithField("conversation_index", 3).Debug("skipping")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "skipping", entry["msg"])
	assert.Equal(t, float64(3), entry["conversation_index"])
}

func TestNewTextWithUnknownLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "text", "chatty")

	assert.Equal(t, logrus.InfoLevel, logger.GetLevel())
	assert.True(t, strings.Contains(buf.String(), "unknown log level"))
}
