package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	testCases := []struct {
		in       string
		expected LogLevel
		wantErr  bool
	}{
		{"debug", LevelDebug, false},
		{"INFO", LevelInfo, false},
		{"", LevelInfo, false},
		{"warning", LevelWarn, false},
		{"error", LevelError, false},
		{"loud", LevelInfo, true},
	}

	for _, tc := range testCases {
		t.Run(tc.in, func(t *testing.T) {
			level, err := ParseLevel(tc.in)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, level)
		})
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&LoggerConfig{Level: LevelWarn, Output: &buf})
	ctx := context.Background()

	logger.Debug(ctx, "debug message")
	logger.Info(ctx, "info message")
	assert.Empty(t, buf.String())

	logger.Warn(ctx, errors.New("boom"), "warn message")
	assert.Contains(t, buf.String(), "warn message")
	assert.Contains(t, buf.String(), "boom")
}

func TestJSONFormatWithComponentAndFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&LoggerConfig{Level: LevelDebug, Format: "json", Output: &buf})

	logger.WithComponent("classifier").With("request", "./++theme++x/a.png").
		Debug(context.Background(), "classified", "strategy", "plus-plus-resource")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(buf.String())), &entry))
	assert.Equal(t, "classified", entry["msg"])
	assert.Equal(t, "classifier", entry["component"])
	assert.Equal(t, "./++theme++x/a.png", entry["request"])
	assert.Equal(t, "plus-plus-resource", entry["strategy"])
}

func TestWithDoesNotMutateParent(t *testing.T) {
	var buf bytes.Buffer
	parent := NewLogger(&LoggerConfig{Level: LevelInfo, Output: &buf})
	_ = parent.With("child", true)

	parent.Info(context.Background(), "parent only")
	assert.NotContains(t, buf.String(), "child")
}

func TestNop(t *testing.T) {
	l := Nop()
	ctx := context.Background()
	l.Debug(ctx, "x")
	l.Info(ctx, "x")
	l.Warn(ctx, nil, "x")
	l.Error(ctx, nil, "x")
	assert.NotNil(t, l.With("a", 1).WithComponent("c"))
}

func TestPerfLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&LoggerConfig{Level: LevelInfo, Output: &buf})

	op := StartOperation(logger, "scan")
	op.End(context.Background(), "requests", 3)

	out := buf.String()
	assert.Contains(t, out, "Operation completed")
	assert.Contains(t, out, "operation=scan")
	assert.Contains(t, out, "requests=3")
	assert.Contains(t, out, "duration_ms=")
}
