package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigure_JSON(t *testing.T) {
	logger := logrus.New()
	var buf bytes.Buffer

	require.NoError(t, configure(logger, &buf, "warn", false))
	assert.Equal(t, logrus.WarnLevel, logger.GetLevel())

	logger.Info("dropped")
	logger.WithField("account_id", 7).Warn("kept")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "kept", entry["msg"])
	assert.EqualValues(t, 7, entry["account_id"])
}

func TestConfigure_DebugForcesTextAndLevel(t *testing.T) {
	logger := logrus.New()
	var buf bytes.Buffer

	require.NoError(t, configure(logger, &buf, "error", true))
	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())
	assert.IsType(t, &logrus.TextFormatter{}, logger.Formatter)
	assert.Contains(t, buf.String(), "Logger initialized")
}

func TestConfigure_BadLevel(t *testing.T) {
	assert.Error(t, configure(logrus.New(), &bytes.Buffer{}, "chatty", false))
}
