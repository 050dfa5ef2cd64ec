package logging

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	testCases := []struct {
		input    string
		expected zapcore.Level
		wantErr  bool
	}{
		{input: "", expected: zapcore.InfoLevel},
		{input: " DEBUG ", expected: zapcore.DebugLevel},
		{input: "warning", expected: zapcore.WarnLevel},
		{input: "error", expected: zapcore.ErrorLevel},
		{input: "verbose", expected: zapcore.InfoLevel, wantErr: true},
	}
	for _, testCase := range testCases {
		level, err := ParseLevel(testCase.input)
		if (err != nil) != testCase.wantErr {
			t.Fatalf("ParseLevel(%q) error = %v, wantErr %v", testCase.input, err, testCase.wantErr)
		}
		if level != testCase.expected {
			t.Fatalf("ParseLevel(%q) = %s, want %s", testCase.input, level, testCase.expected)
		}
	}
}

func TestNewLoggerHonorsLevel(t *testing.T) {
	logger, err := NewLogger("warn")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if logger.Core().Enabled(zapcore.InfoLevel) {
		t.Fatalf("expected info to be disabled at warn level")
	}
	if !logger.Core().Enabled(zapcore.WarnLevel) {
		t.Fatalf("expected warn to be enabled")
	}

	if _, err := NewLogger("chatty"); err == nil {
		t.Fatalf("expected unknown level to fail")
	}
}
