package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func env(values map[string]string) func(string) string {
	return func(key string) string { return values[key] }
}

func TestLoadFromEnv_RequiresBaseURL(t *testing.T) {
	_, err := LoadFromEnv(env(nil), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BASE_URL")
}

func TestLoadFromEnv_Defaults(t *testing.T) {
	cfg, err := LoadFromEnv(env(map[string]string{EnvBaseURL: "https://api.example.com"}), nil)
	require.NoError(t, err)

	assert.Equal(t, "https://api.example.com", cfg.BaseURL)
	assert.Equal(t, DefaultHeaders, cfg.Headers)
}

func TestLoadFromEnv_MergesHeaders(t *testing.T) {
	cfg, err := LoadFromEnv(env(map[string]string{
		EnvBaseURL: "https://api.example.com",
		EnvHeaders: `{"Authorization":"Bearer abc","User-Agent":"custom"}`,
	}), nil)
	require.NoError(t, err)

	assert.Equal(t, map[string]string{
		"Content-Type":  "application/json",
		"User-Agent":    "custom",
		"Authorization": "Bearer abc",
	}, cfg.Headers)
}

func TestLoadFromEnv_InvalidHeadersKeepsDefaults(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)

	cfg, err := LoadFromEnv(env(map[string]string{
		EnvBaseURL: "https://api.example.com",
		EnvHeaders: `{not json`,
	}), zap.New(core))
	require.NoError(t, err)

	assert.Equal(t, DefaultHeaders, cfg.Headers)
	assert.Equal(t, 1, logs.FilterMessage("invalid HEADERS format, using defaults").Len())
}

func TestLoadFromEnv_DoesNotMutateDefaults(t *testing.T) {
	_, err := LoadFromEnv(env(map[string]string{
		EnvBaseURL: "https://api.example.com",
		EnvHeaders: `{"User-Agent":"other"}`,
	}), nil)
	require.NoError(t, err)
	assert.Equal(t, "openapi-mcp-server", DefaultHeaders["User-Agent"])
}

func TestValidate(t *testing.T) {
	tests := []struct {
		baseURL string
		wantErr bool
	}{
		{"https://api.example.com", false},
		{"http://localhost:8080/v1", false},
		{"ftp://example.com", true},
		{"/relative", true},
		{"https://", true},
	}

	for _, tt := range tests {
		t.Run(tt.baseURL, func(t *testing.T) {
			err := (&ServerConfig{BaseURL: tt.baseURL}).Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestMaskSensitive(t *testing.T) {
	assert.Equal(t, "***", maskSensitive("short"))
	assert.Equal(t, "Bear***7890", maskSensitive("Bearer abcdefgh1234567890"))
}
