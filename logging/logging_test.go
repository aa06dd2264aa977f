package logging_test

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/goliatone/go-auth-session/activitymap"
	"github.com/goliatone/go-auth-session/logging"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		entry := map[string]any{}
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		out = append(out, entry)
	}
	return out
}

func TestParseLevel(t *testing.T) {
	tests := map[string]zerolog.Level{
		"trace":   zerolog.TraceLevel,
		"DEBUG":   zerolog.DebugLevel,
		" warn ":  zerolog.WarnLevel,
		"warning": zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"":        zerolog.InfoLevel,
		"verbose": zerolog.InfoLevel,
	}
	for in, want := range tests {
		assert.Equal(t, want, logging.ParseLevel(in), in)
	}
}

func TestAdapterWritesStructuredEntries(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.New(logging.Options{Level: "info", Output: &buf})
	adapter := logging.NewAdapter(logger, "manager")

	adapter.Debug("hidden %d", 1)
	adapter.Info("sign in %s", "u1")
	adapter.Warn("remote failed: %v", "timeout")
	adapter.Error("store: %s", "broken")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 3)

	assert.Equal(t, "info", lines[0]["level"])
	assert.Equal(t, "sign in u1", lines[0]["message"])
	assert.Equal(t, "manager", lines[0]["component"])
	assert.Contains(t, lines[0], "time")

	assert.Equal(t, "warn", lines[1]["level"])
	assert.Equal(t, "error", lines[2]["level"])
}

func TestPrettyOutputIsNotJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.New(logging.Options{Pretty: true, Output: &buf})
	logger.Info().Msg("hello")

	assert.Contains(t, buf.String(), "hello")
	assert.False(t, json.Valid(buf.Bytes()))
}

func TestActivityConsumer(t *testing.T) {
	var buf bytes.Buffer
	consume := logging.ActivityConsumer(logging.New(logging.Options{Output: &buf}))

	err := consume(context.Background(), activitymap.Normalized{
		ActorID:    "u1",
		Verb:       "auth.logout",
		ObjectType: "session",
		ObjectID:   "u1",
		Channel:    "auth",
		Metadata:   map[string]any{"to_status": "unauthenticated"},
		OccurredAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "activity", lines[0]["message"])
	assert.Equal(t, "auth.logout", lines[0]["verb"])
	assert.Equal(t, "unauthenticated", lines[0]["to_status"])
}
