package config

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/juju/errors"
)

func TestDefaults(t *testing.T) {
	cfg := DefaultClientConfig()

	if cfg.Addr() != "127.0.0.1:9000" {
		t.Errorf("Expected 127.0.0.1:9000, got %s", cfg.Addr())
	}
	if cfg.Token != "TEST_TOKEN_123" {
		t.Errorf("Expected default token, got %s", cfg.Token)
	}
	if cfg.Timeout != 10*time.Second {
		t.Errorf("Expected 10s timeout, got %v", cfg.Timeout)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Expected defaults to be valid, got %v", err)
	}
}

func TestLoad_EnvThenFlags(t *testing.T) {
	t.Setenv(EnvHost, "10.0.0.5")
	t.Setenv(EnvPort, "9100")
	t.Setenv(EnvToken, "ENV_TOKEN")
	t.Setenv(EnvTimeout, "2.5")
	t.Setenv(EnvLogLevel, "debug")

	cfg := DefaultServerConfig()
	rest, err := Load("server", cfg, []string{"--port", "9200", "--http", "127.0.0.1:8080", "--mcp", "extra"})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if cfg.Host != "10.0.0.5" {
		t.Errorf("Expected host from env, got %s", cfg.Host)
	}
	if cfg.Port != 9200 {
		t.Errorf("Expected flag to override env port, got %d", cfg.Port)
	}
	if cfg.Token != "ENV_TOKEN" {
		t.Errorf("Expected token from env, got %s", cfg.Token)
	}
	if cfg.Timeout != 2500*time.Millisecond {
		t.Errorf("Expected 2.5s timeout, got %v", cfg.Timeout)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("Expected debug log level, got %s", cfg.LogLevel)
	}
	if cfg.HTTPAddr != "127.0.0.1:8080" || !cfg.MCP {
		t.Errorf("Expected server flags to be applied, got %+v", cfg)
	}
	if len(rest) != 1 || rest[0] != "extra" {
		t.Errorf("Expected positional args [extra], got %v", rest)
	}
}

func TestLoad_ClientInterspersedArgs(t *testing.T) {
	cfg := DefaultClientConfig()
	rest, err := Load("client", cfg, []string{"call", "--ws", "GetRobotState"})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if !cfg.WebSocket {
		t.Error("Expected --ws to be parsed")
	}
	if strings.Join(rest, " ") != "call GetRobotState" {
		t.Errorf("Expected positional args, got %v", rest)
	}
}

func TestLoad_InvalidEnv(t *testing.T) {
	t.Setenv(EnvPort, "not-a-port")
	if _, err := Load("client", DefaultClientConfig(), nil); err == nil {
		t.Error("Expected error for invalid DART_PORT")
	}

	t.Setenv(EnvPort, "")
	t.Setenv(EnvTimeout, "-3")
	if _, err := Load("client", DefaultClientConfig(), nil); err == nil {
		t.Error("Expected error for negative DART_TIMEOUT")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*ServerConfig)
	}{
		{"empty token", func(c *ServerConfig) { c.Token = "" }},
		{"port zero", func(c *ServerConfig) { c.Port = 0 }},
		{"port too large", func(c *ServerConfig) { c.Port = 70000 }},
		{"zero timeout", func(c *ServerConfig) { c.Timeout = 0 }},
		{"bad log level", func(c *ServerConfig) { c.LogLevel = "loud" }},
		{"bad log format", func(c *ServerConfig) { c.LogFormat = "xml" }},
		{"no clients", func(c *ServerConfig) { c.MaxClients = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultServerConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if !errors.Is(err, errors.NotValid) {
				t.Errorf("Expected NotValid error, got %v", err)
			}
		})
	}
}

func TestSetupLogger(t *testing.T) {
	defer slog.SetDefault(slog.Default())

	var buf bytes.Buffer
	if err := SetupLogger("warn", "text", &buf); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	slog.Info("hidden")
	slog.Warn("shown", "key", "value")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("Expected info message to be filtered")
	}
	if !strings.Contains(out, "key=value") {
		t.Errorf("Expected text handler output, got %q", out)
	}

	if err := SetupLogger("verbose", "json", &buf); err == nil {
		t.Error("Expected error for unknown level")
	}
}
