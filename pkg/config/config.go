// Package config loads the backend configuration from the environment.
package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// Environment variables read by Load.
const (
	EnvBaseURL     = "BASE_URL"
	EnvHeaders     = "HEADERS"
	EnvDatabaseURL = "DATABASE_URL"
)

// DefaultHeaders are sent with every backend request unless HEADERS overrides them.
var DefaultHeaders = map[string]string{
	"Content-Type": "application/json",
	"User-Agent":   "openapi-mcp-server",
}

// ServerConfig is the backend the tools dispatch to. It is read-only once loaded.
type ServerConfig struct {
	BaseURL string
	Headers map[string]string
}

// Load reads BASE_URL and HEADERS from the process environment.
func Load(logger *zap.Logger) (*ServerConfig, error) {
	return LoadFromEnv(os.Getenv, logger)
}

// LoadFromEnv reads the configuration through getenv.
//
// BASE_URL is required. HEADERS, when set, must be a JSON object of strings;
// it is merged over DefaultHeaders. An invalid HEADERS value is logged and
// the defaults are used.
func LoadFromEnv(getenv func(string) string, logger *zap.Logger) (*ServerConfig, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	baseURL := strings.TrimSpace(getenv(EnvBaseURL))
	if baseURL == "" {
		return nil, fmt.Errorf("%s environment variable is required", EnvBaseURL)
	}

	headers := make(map[string]string, len(DefaultHeaders))
	for k, v := range DefaultHeaders {
		headers[k] = v
	}

	if raw := getenv(EnvHeaders); raw != "" {
		custom, err := parseHeaders(raw)
		if err != nil {
			logger.Error("invalid HEADERS format, using defaults", zap.Error(err))
		} else {
			for k, v := range custom {
				headers[k] = v
			}
		}
	}

	cfg := &ServerConfig{BaseURL: baseURL, Headers: headers}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func parseHeaders(raw string) (map[string]string, error) {
	var values map[string]any
	if err := json.Unmarshal([]byte(raw), &values); err != nil {
		return nil, err
	}
	out := make(map[string]string, len(values))
	for k, v := range values {
		switch val := v.(type) {
		case string:
			out[k] = val
		case float64, bool:
			out[k] = fmt.Sprint(val)
		default:
			return nil, fmt.Errorf("header %q must be a string", k)
		}
	}
	return out, nil
}

// Validate checks that BaseURL is an absolute http(s) URL.
func (c *ServerConfig) Validate() error {
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", EnvBaseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid %s %q: scheme must be http or https", EnvBaseURL, c.BaseURL)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid %s %q: missing host", EnvBaseURL, c.BaseURL)
	}
	return nil
}

// LogConfiguration logs the configuration with header values masked.
func (c *ServerConfig) LogConfiguration(logger *zap.Logger) {
	names := make([]string, 0, len(c.Headers))
	for k := range c.Headers {
		names = append(names, k)
	}
	sort.Strings(names)

	masked := make([]string, 0, len(names))
	for _, k := range names {
		masked = append(masked, k+"="+maskSensitive(c.Headers[k]))
	}
	logger.Info("backend configuration",
		zap.String("base_url", c.BaseURL),
		zap.Strings("headers", masked))
}

// maskSensitive hides all but the edges of long values.
func maskSensitive(value string) string {
	if len(value) > 20 {
		return value[:4] + "***" + value[len(value)-4:]
	}
	return "***"
}
