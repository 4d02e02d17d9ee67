package logger

import (
	"bytes"
	"encoding/json"
	"log"
	"log/slog"
	"strings"
	"testing"

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

		rec := map[string]any{}
		require.NoError(t, json.Unmarshal([]byte(line), &rec))

		out = append(out, rec)
	}

	return out
}

func TestConfigureLoggingWithOptions(t *testing.T) { //nolint:paralleltest
	var buf bytes.Buffer

	ConfigureLoggingWithOptions(Options{
		Subsystem:   "validator-test",
		JSON:        true,
		MinLevel:    slog.LevelDebug,
		LegacyLevel: slog.LevelInfo,
		Output:      &buf,
	})

	Get().Debug("default subsystem")
	Get(WithSubsystem(t.Context(), "overridden")).Info("overridden subsystem")
	log.Println("legacy")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 3)

	assert.Equal(t, "validator-test", lines[0]["subsystem"])
	assert.Equal(t, "overridden", lines[1]["subsystem"])
	assert.Equal(t, "legacy", lines[2]["msg"])
}

func TestGet_Values(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	ctx := WithLogger(t.Context(), slog.New(slog.NewJSONHandler(&buf, nil)))
	ctx = With(ctx, "batch_id", "b1")
	ctx = With(ctx, "product_id", "p1")

	Get(ctx).Info("hello")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "b1", lines[0]["batch_id"])
	assert.Equal(t, "p1", lines[0]["product_id"])
	assert.NotEmpty(t, lines[0]["pod"])
}

func TestGet_Muted(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	ctx := WithLogger(t.Context(), slog.New(slog.NewJSONHandler(&buf, nil)))
	Get(WithMuted(ctx, true)).Error("should not appear")

	assert.Empty(t, buf.String())
}

func TestTeeHandler(t *testing.T) {
	t.Parallel()

	var debugBuf, errorBuf bytes.Buffer

	tee := &teeHandler{handlers: []slog.Handler{
		slog.NewJSONHandler(&debugBuf, &slog.HandlerOptions{Level: slog.LevelDebug}),
		slog.NewJSONHandler(&errorBuf, &slog.HandlerOptions{Level: slog.LevelError}),
	}}

	logger := slog.New(tee).With("k", "v")
	logger.Debug("only debug")
	logger.Error("both")

	assert.Len(t, decodeLines(t, &debugBuf), 2)

	errLines := decodeLines(t, &errorBuf)
	require.Len(t, errLines, 1)
	assert.Equal(t, "v", errLines[0]["k"])
}

func TestShutdown_NoProvider(t *testing.T) {
	t.Parallel()

	require.NoError(t, Shutdown(t.Context()))
}
