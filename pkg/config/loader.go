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
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/wso2/api-platform/gateway/gateway-runtime/webhook-relay/pkg/core"
	"gopkg.in/yaml.v3"
)

const (
	DefaultListen          = "127.0.0.1:3000"
	DefaultAMQPURI         = "amqp://127.0.0.1:5672/%2f"
	DefaultSandbox         = "./lua"
	DefaultScriptConfig    = "./config.jsonc"
	DefaultBrokerType      = "rabbitmq"
	DefaultShutdownTimeout = 10 * time.Second
)

type Config struct {
	Listen          string        `yaml:"listen"`
	Route           RouteConfig   `yaml:"route"`
	Broker          BrokerConfig  `yaml:"broker"`
	Script          ScriptConfig  `yaml:"script"`
	Metrics         MetricsConfig `yaml:"metrics"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	LogLevel        string        `yaml:"log_level"`
}

type RouteConfig struct {
	Method string `yaml:"method"`
	Path   string `yaml:"path"`
}

type BrokerConfig struct {
	Type   string            `yaml:"type"`
	Name   string            `yaml:"name"`
	Config map[string]string `yaml:"config"`
}

type ScriptConfig struct {
	Sandbox  string        `yaml:"sandbox"`
	Config   string        `yaml:"config"`
	PoolSize int           `yaml:"pool_size"`
	Timeout  time.Duration `yaml:"timeout"`
}

type MetricsConfig struct {
	// Listen is the address of the metrics listener. Empty disables it.
	Listen string `yaml:"listen"`
}

// Default is the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Listen: DefaultListen,
		Route: RouteConfig{
			Method: http.MethodPost,
			Path:   "/",
		},
		Broker: BrokerConfig{
			Type:   DefaultBrokerType,
			Config: map[string]string{"url": DefaultAMQPURI},
		},
		Script: ScriptConfig{
			Sandbox:  DefaultSandbox,
			Config:   DefaultScriptConfig,
			PoolSize: 1,
		},
		ShutdownTimeout: DefaultShutdownTimeout,
		LogLevel:        "info",
	}
}

// Load reads a YAML file over the defaults. Keys missing from the file keep
// their default values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg := Default()
	cfg.Broker.Config = nil
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", core.ErrConfig, path, err)
	}
	if cfg.Broker.Config == nil {
		cfg.Broker.Config = map[string]string{}
	}
	if cfg.Broker.Type == DefaultBrokerType && cfg.Broker.Config["url"] == "" {
		cfg.Broker.Config["url"] = DefaultAMQPURI
	}
	return cfg, nil
}

// BrokerName is the configured broker name, falling back to its type.
func (c *Config) BrokerName() string {
	if c.Broker.Name != "" {
		return c.Broker.Name
	}
	return c.Broker.Type
}

func (c *Config) Validate() error {
	if c.Listen == "" {
		return fmt.Errorf("%w: listen address is empty", core.ErrConfig)
	}
	if c.Route.Method == "" || strings.ContainsAny(c.Route.Method, " \t/") {
		return fmt.Errorf("%w: invalid route method %q", core.ErrConfig, c.Route.Method)
	}
	if !strings.HasPrefix(c.Route.Path, "/") {
		return fmt.Errorf("%w: route path %q must start with /", core.ErrConfig, c.Route.Path)
	}
	if c.Broker.Type == "" {
		return fmt.Errorf("%w: broker type is empty", core.ErrConfig)
	}
	if c.Script.Sandbox == "" {
		return fmt.Errorf("%w: script sandbox is empty", core.ErrConfig)
	}
	if c.Script.Config == "" {
		return fmt.Errorf("%w: script config path is empty", core.ErrConfig)
	}
	if c.Script.PoolSize < 1 {
		return fmt.Errorf("%w: script pool_size must be at least 1, got %d", core.ErrConfig, c.Script.PoolSize)
	}
	if c.Script.Timeout < 0 {
		return fmt.Errorf("%w: script timeout must not be negative", core.ErrConfig)
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("%w: shutdown_timeout must be positive", core.ErrConfig)
	}
	if c.Metrics.Listen != "" && c.Metrics.Listen == c.Listen {
		return fmt.Errorf("%w: metrics listener must differ from the webhook listener %q", core.ErrConfig, c.Listen)
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// ParseLogLevel accepts debug, info, warn and error in any case.
func ParseLogLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return level, fmt.Errorf("%w: log level %q: %v", core.ErrConfig, s, err)
	}
	return level, nil
}
