package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	testCases := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"Info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{" error ", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}

	for _, tc := range testCases {
		assert.Equal(t, tc.want, parseLevel(tc.in), tc.in)
	}
}

func TestSetup_InfoLevel_FiltersDebug(t *testing.T) {
	var buf bytes.Buffer
	logger := Setup(&buf, Options{Level: "info"})

	logger.Debug("debug msg")
	logger.Info("info msg")

	assert.NotContains(t, buf.String(), "debug msg")
	assert.Contains(t, buf.String(), "info msg")
}

func TestSetup_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := Setup(&buf, Options{Level: "debug", Format: "JSON"})

	logger.Debug("grid built", "rows", 11)

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "grid built", record["msg"])
	assert.Equal(t, 11.0, record["rows"])

	ts, ok := record["time"].(string)
	require.True(t, ok)
	parsed, err := time.Parse(time.RFC3339, ts)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(ts, "Z"))
	assert.WithinDuration(t, time.Now(), parsed, time.Minute)
}

func TestSetup_FileReceivesRecords(t *testing.T) {
	var console, file bytes.Buffer
	logger := Setup(&console, Options{Level: "info", Format: FormatJSON, File: &file})

	logger.Info("hello", "body", "mars")

	assert.Contains(t, console.String(), `"msg":"hello"`)
	assert.Contains(t, file.String(), "msg=hello")
	assert.Contains(t, file.String(), "body=mars")
}

func TestSetup_FileOnly(t *testing.T) {
	var file bytes.Buffer
	logger := Setup(nil, Options{File: &file})

	logger.Warn("careful")
	assert.Contains(t, file.String(), "careful")
}

type failingHandler struct{ slog.Handler }

func (failingHandler) Enabled(context.Context, slog.Level) bool { return true }

func (failingHandler) Handle(context.Context, slog.Record) error {
	return errors.New("disk full")
}

func TestTeeHandler_ContinuesAfterFailure(t *testing.T) {
	var buf bytes.Buffer
	h := teeHandler{console: failingHandler{}, file: slog.NewTextHandler(&buf, nil)}

	err := h.Handle(context.Background(), slog.NewRecord(time.Now(), slog.LevelInfo, "still logged", 0))

	assert.EqualError(t, err, "disk full")
	assert.Contains(t, buf.String(), "still logged")
}

func TestSetup_ConsoleAndFile(t *testing.T) {
	var console, file bytes.Buffer
	logger := Setup(&console, Options{Format: FormatJSON, File: &file})

	logger.With("component", "builder").WithGroup("grid").Info("done", "rows", 11)

	assert.Contains(t, console.String(), `"component":"builder"`)
	assert.Contains(t, console.String(), `"grid":{"rows":11}`)
	assert.Contains(t, file.String(), "component=builder")
	assert.Contains(t, file.String(), "grid.rows=11")

	h := teeHandler{console: slog.NewTextHandler(&console, nil), file: slog.NewTextHandler(&file, nil)}
	assert.Equal(t, h, h.WithGroup(""))
}
