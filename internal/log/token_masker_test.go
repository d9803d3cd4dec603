package log

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestTokenMaskerHandler_Handle(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "mask telegram token in message",
			input:    `Post "https://api.telegram.org/bot8462697481:AAEJSXuTcb2F1Js2sWiK0TVWvxbHL9xX05Q/getUpdates": net/http: request canceled`,
			expected: `Post "https://api.telegram.org/bot***:***masked-token***/getUpdates": net/http: request canceled`,
		},
		{
			name:     "no token in message",
			input:    "This is a normal log message without tokens",
			expected: "This is a normal log message without tokens",
		},
		{
			name:     "multiple tokens in message",
			input:    "Token1: bot123456789:AAABCdEfGhIjKlMnOpQrStUvWxYz1234567, Token2: bot987654321:AAzZzYyXxWwVvUuTtSsRrQqPpOnNmLlKkJjI",
			expected: "Token1: bot***:***masked-token***, Token2: bot***:***masked-token***",
		},
		{
			name:     "short secret part is not a token",
			input:    "suspicious but short: bot123:abc",
			expected: "suspicious but short: bot123:abc",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			maskerHandler := NewTokenMaskerHandler(slog.NewJSONHandler(&buf, nil))
			logger := slog.New(maskerHandler)

			logger.Info(tt.input)

			output := buf.String()
			expectedEscaped := strings.ReplaceAll(tt.expected, "\"", "\\\"")
			if !strings.Contains(output, expectedEscaped) {
				t.Errorf("expected output to contain %q, got %q", expectedEscaped, output)
			}
		})
	}
}

func TestTokenMaskerHandler_StringAttr(t *testing.T) {
	var buf bytes.Buffer
	logger := NewMaskedLogger(slog.NewJSONHandler(&buf, nil))

	token := "bot8462697481:AAEJSXuTcb2F1Js2sWiK0TVWvxbHL9xX05Q"
	logger.Info("request failed", "url", "https://api.telegram.org/"+token+"/sendMessage")

	output := buf.String()
	if strings.Contains(output, token) {
		t.Errorf("token leaked into output: %q", output)
	}
	if !strings.Contains(output, "masked-token") {
		t.Errorf("expected mask in output, got %q", output)
	}
}

func TestTokenMaskerHandler_ErrorAttr(t *testing.T) {
	var buf bytes.Buffer
	logger := NewMaskedLogger(slog.NewJSONHandler(&buf, nil))

	token := "bot123456789:AAABCdEfGhIjKlMnOpQrStUvWxYz1234567"
	err := errors.New("request to " + token + " timed out")
	logger.Error("polling error", "error", err)

	output := buf.String()
	if strings.Contains(output, token) {
		t.Errorf("token leaked via error attribute: %q", output)
	}
}

func TestTokenMaskerHandler_WithAttrs(t *testing.T) {
	var buf bytes.Buffer
	maskerHandler := NewTokenMaskerHandler(slog.NewJSONHandler(&buf, nil))

	token := "bot8462697481:AAEJSXuTcb2F1Js2sWiK0TVWvxbHL9xX05Q"
	logger := slog.New(maskerHandler).With("endpoint", "https://api.telegram.org/"+token)

	logger.Info("started")

	output := buf.String()
	if strings.Contains(output, token) {
		t.Errorf("token leaked via WithAttrs: %q", output)
	}
}

func TestTokenMaskerHandler_GroupAttr(t *testing.T) {
	var buf bytes.Buffer
	logger := NewMaskedLogger(slog.NewJSONHandler(&buf, nil))

	token := "bot987654321:AAzZzYyXxWwVvUuTtSsRrQqPpOnNmLlKkJjI"
	logger.Info("grouped",
		slog.Group("http", slog.String("url", "https://api.telegram.org/"+token)),
	)

	output := buf.String()
	if strings.Contains(output, token) {
		t.Errorf("token leaked via group attribute: %q", output)
	}
}
