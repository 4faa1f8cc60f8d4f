package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBaseLogger_PrefixBecomesComponent(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&buf, "[Bol.com]")
	require.NoError(t, l.Configure("info", "json"))

	l.WithPrefix("orders").Log("downloaded %d orders", 3)

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "[Bol.com] orders", line["component"])
	assert.Equal(t, "downloaded 3 orders", line["msg"])
	assert.Equal(t, "info", line["level"])
}

func TestBaseLogger_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&buf, "x")
	require.NoError(t, l.Configure("error", "text"))

	l.Log("hidden")
	l.Warn("hidden too")
	assert.Empty(t, buf.String())

	l.Error("visible")
	assert.Contains(t, buf.String(), "visible")
}

func TestBaseLogger_ConfigureRejectsUnknown(t *testing.T) {
	l := Discard()
	assert.Error(t, l.Configure("loud", ""))
	assert.Error(t, l.Configure("", "xml"))
}
