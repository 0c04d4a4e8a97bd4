package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNew_Levels(t *testing.T) {
	for _, lvl := range []string{"", "debug", "INFO", "warn", "error"} {
		t.Run(lvl, func(t *testing.T) {
			l, err := New(lvl, "console")
			require.NoError(t, err)
			require.NotNil(t, l)
		})
	}
}

func TestNew_InvalidLevel(t *testing.T) {
	_, err := New("loud", "console")
	require.Error(t, err)
}

func TestNew_InvalidFormat(t *testing.T) {
	_, err := New("info", "xml")
	require.Error(t, err)
}

func TestNewWithWriter_JSON(t *testing.T) {
	var buf bytes.Buffer
	l, err := NewWithWriter("info", "json", &buf)
	require.NoError(t, err)

	l.Info("persisted", zap.String("path", "/w/.codyarchitect/webresults/q.md"))
	l.Debug("hidden")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1, "debug line should be filtered at info level")

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "persisted", entry["msg"])
	assert.Equal(t, "/w/.codyarchitect/webresults/q.md", entry["path"])
}

func TestContext_RoundTrip(t *testing.T) {
	l := zap.NewExample()
	ctx := WithLogger(context.Background(), l)
	assert.Same(t, l, FromContext(ctx))
}

func TestFromContext_DefaultsToNop(t *testing.T) {
	l := FromContext(context.Background())
	require.NotNil(t, l)
	l.Info("goes nowhere")
}
