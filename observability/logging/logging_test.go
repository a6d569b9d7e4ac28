package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoggerRemapsCoreKeys(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, Options{Service: "creditd", Env: "test", Level: "debug"})
	logger.Debug("borrow committed",
		slog.String("market", "weth"),
		MaskField("authorization", "Bearer abc"),
		slog.String("hmacSecret", "hunter2"))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "borrow committed", line["message"])
	require.Equal(t, "DEBUG", line["severity"])
	require.Equal(t, "creditd", line["service"])
	require.Equal(t, "test", line["env"])
	require.Equal(t, "weth", line["market"])
	require.Equal(t, RedactedValue, line["authorization"])
	require.Equal(t, RedactedValue, line["hmacSecret"])
	require.Contains(t, line, "timestamp")
}

func TestParseLevel(t *testing.T) {
	require.Equal(t, slog.LevelWarn, ParseLevel(" WARNING "))
	require.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestMaskFieldKeepsSafeKeys(t *testing.T) {
	require.Equal(t, "weth", MaskField("market", "weth").Value.String())
	require.Equal(t, "abc", MaskField("requestId", "abc").Value.String())
	require.Equal(t, RedactedValue, MaskField("borrower", "cg1xyz").Value.String())
	require.Equal(t, RedactedValue, MaskField("secret", "x").Value.String())
	require.Equal(t, " ", MaskField("secret", " ").Value.String())
}

func TestIsSensitive(t *testing.T) {
	require.True(t, IsSensitive("Authorization"))
	require.True(t, IsSensitive("bearer_token"))
	require.False(t, IsSensitive("market"))
}
