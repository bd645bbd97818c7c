package telemetry

import (
	"io"
	"log/slog"
)

// sensitiveKeys are attribute names scrubbed from every log record.
var sensitiveKeys = map[string]bool{
	"password": true, "access_key": true, "token": true,
	"secret": true, "api_key": true, "private_key": true, "auth_token": true,
	"refresh_token": true, "certificate": true, "signature": true,
	"credential": true, "ssh_key": true, "connection_string": true,
}

func redactSensitiveData(groups []string, a slog.Attr) slog.Attr {
	if sensitiveKeys[a.Key] {
		return slog.Attr{Key: a.Key, Value: slog.StringValue("[REDACTED]")}
	}
	return a
}

// NewLogger builds the JSON logger used across the engine, with
// credential-shaped attributes redacted before they reach the sink.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: redactSensitiveData,
	}))
}
