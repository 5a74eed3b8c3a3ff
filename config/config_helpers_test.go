package config

import (
	"testing"
	"time"
)

func TestExpandString(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		envVars  map[string]string
		expected string
	}{
		{
			name:     "empty string",
			input:    "",
			expected: "",
		},
		{
			name:     "string without placeholders",
			input:    "simple-string",
			expected: "simple-string",
		},
		{
			name:     "simple variable expansion",
			input:    "${TEST_API_KEY}",
			envVars:  map[string]string{"TEST_API_KEY": "AIza-12345"},
			expected: "AIza-12345",
		},
		{
			name:     "multiple variables",
			input:    "${TEST_SCHEME}://${TEST_HOST}:${TEST_PORT}",
			envVars:  map[string]string{"TEST_SCHEME": "https", "TEST_HOST": "api.example.com", "TEST_PORT": "8080"},
			expected: "https://api.example.com:8080",
		},
		{
			name:     "default value - env var exists",
			input:    "${TEST_API_KEY:-default-key}",
			envVars:  map[string]string{"TEST_API_KEY": "real-key"},
			expected: "real-key",
		},
		{
			name:     "default value - env var missing",
			input:    "${TEST_MISSING_KEY:-default-key}",
			expected: "default-key",
		},
		{
			name:     "default value - env var empty",
			input:    "${TEST_API_KEY:-default-key}",
			envVars:  map[string]string{"TEST_API_KEY": ""},
			expected: "default-key",
		},
		{
			name:     "unresolved variable without default",
			input:    "${TEST_MISSING_VAR}",
			expected: "${TEST_MISSING_VAR}",
		},
		{
			name:     "default value with colon in it",
			input:    "${TEST_MISSING_URL:-http://localhost:3000}",
			expected: "http://localhost:3000",
		},
		{
			name:     "empty default value",
			input:    "${TEST_OPTIONAL_VAR:-}",
			expected: "",
		},
		{
			name:     "mixed resolved and unresolved",
			input:    "${TEST_RESOLVED}:${TEST_UNRESOLVED:-fallback}:${TEST_MISSING_VAR}",
			envVars:  map[string]string{"TEST_RESOLVED": "value1"},
			expected: "value1:fallback:${TEST_MISSING_VAR}",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}

			result := expandString(tt.input)
			if result != tt.expected {
				t.Errorf("expandString(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestDurationHook(t *testing.T) {
	tests := []struct {
		name    string
		input   interface{}
		want    time.Duration
		wantErr bool
	}{
		{"duration string", "45s", 45 * time.Second, false},
		{"minutes", "1m30s", 90 * time.Second, false},
		{"bare seconds string", "30", 30 * time.Second, false},
		{"fractional seconds", "0.5", 500 * time.Millisecond, false},
		{"int", 20, 20 * time.Second, false},
		{"int64", int64(3), 3 * time.Second, false},
		{"garbage", "later", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := durationHook(nil, durationType, tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("durationHook(%v) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}
