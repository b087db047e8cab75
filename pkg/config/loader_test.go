// Copyright (c) 2025, WSO2 LLC. (https://www.wso2.com).
//
// WSO2 LLC. licenses this file to you under the Apache License,
// Version 2.0 (the "License"); you may not use this file except
// in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing,
// software distributed under the License is distributed on an
// "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
// KIND, either express or implied. See the License for the
// specific language governing permissions and limitations
// under the License.

package config

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/wso2/api-platform/gateway/gateway-runtime/webhook-relay/pkg/core"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoad(t *testing.T) {
	content := `
listen: 0.0.0.0:8080
route:
  method: PUT
  path: /hooks/github
broker:
  type: kafka
  name: events
  config:
    brokers: "localhost:9092"
script:
  sandbox: /srv/lua
  pool_size: 4
  timeout: 250ms
metrics:
  listen: 0.0.0.0:9090
shutdown_timeout: 30s
`
	cfg, err := Load(writeFile(t, "config.yaml", content))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Listen != "0.0.0.0:8080" {
		t.Fatalf("expected listen 0.0.0.0:8080, got %s", cfg.Listen)
	}
	if cfg.Route.Method != "PUT" || cfg.Route.Path != "/hooks/github" {
		t.Fatalf("unexpected route %+v", cfg.Route)
	}
	if cfg.Broker.Type != "kafka" || cfg.BrokerName() != "events" {
		t.Fatalf("unexpected broker %+v", cfg.Broker)
	}
	if _, ok := cfg.Broker.Config["url"]; ok {
		t.Fatal("default amqp url leaked into kafka broker config")
	}
	if cfg.Script.PoolSize != 4 || cfg.Script.Timeout != 250*time.Millisecond {
		t.Fatalf("unexpected script config %+v", cfg.Script)
	}
	if cfg.Script.Config != DefaultScriptConfig {
		t.Fatalf("expected default script config path, got %s", cfg.Script.Config)
	}
	if cfg.ShutdownTimeout != 30*time.Second {
		t.Fatalf("expected shutdown timeout 30s, got %s", cfg.ShutdownTimeout)
	}
	if cfg.LogLevel != "info" {
		t.Fatalf("expected default log level, got %s", cfg.LogLevel)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected validation error: %v", err)
	}
}

func TestLoadKeepsDefaultAMQPURI(t *testing.T) {
	cfg, err := Load(writeFile(t, "config.yaml", "listen: 127.0.0.1:4000\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Broker.Config["url"] != DefaultAMQPURI {
		t.Fatalf("expected %s, got %q", DefaultAMQPURI, cfg.Broker.Config["url"])
	}
	if cfg.BrokerName() != DefaultBrokerType {
		t.Fatalf("expected broker name to fall back to type, got %s", cfg.BrokerName())
	}
}

func TestLoadFileNotFound(t *testing.T) {
	_, err := Load("/nonexistent/path")
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadMalformed(t *testing.T) {
	_, err := Load(writeFile(t, "config.yaml", "script: [unterminated"))
	if !errors.Is(err, core.ErrConfig) {
		t.Fatalf("expected ErrConfig, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty listen", func(c *Config) { c.Listen = "" }},
		{"empty method", func(c *Config) { c.Route.Method = "" }},
		{"relative path", func(c *Config) { c.Route.Path = "hooks" }},
		{"empty broker type", func(c *Config) { c.Broker.Type = "" }},
		{"empty sandbox", func(c *Config) { c.Script.Sandbox = "" }},
		{"empty script config", func(c *Config) { c.Script.Config = "" }},
		{"zero pool", func(c *Config) { c.Script.PoolSize = 0 }},
		{"negative timeout", func(c *Config) { c.Script.Timeout = -time.Second }},
		{"zero shutdown timeout", func(c *Config) { c.ShutdownTimeout = 0 }},
		{"shared listener", func(c *Config) { c.Metrics.Listen = c.Listen }},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }},
	}
	if err := Default().Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); !errors.Is(err, core.ErrConfig) {
				t.Errorf("Validate() = %v, want ErrConfig", err)
			}
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
	}
	for _, tt := range tests {
		got, err := ParseLogLevel(tt.input)
		if err != nil {
			t.Fatalf("ParseLogLevel(%q) error: %v", tt.input, err)
		}
		if got != tt.want {
			t.Errorf("ParseLogLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}
