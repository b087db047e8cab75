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
	"os"
	"strconv"
	"time"

	"github.com/spf13/pflag"
	"github.com/wso2/api-platform/gateway/gateway-runtime/webhook-relay/pkg/core"
)

const (
	EnvConfigPath    = "CONFIG_PATH"
	EnvListen        = "WEBHOOK_RELAY_HTTP_LISTEN_ADDR"
	EnvAMQPURI       = "WEBHOOK_RELAY_AMQP_URI"
	EnvSandbox       = "WEBHOOK_RELAY_LUA_SANDBOX"
	EnvScriptConfig  = "WEBHOOK_RELAY_LUA_CONFIG"
	EnvPoolSize      = "WEBHOOK_RELAY_LUA_POOL_SIZE"
	EnvScriptTimeout = "WEBHOOK_RELAY_LUA_TIMEOUT"
	EnvBrokerType    = "WEBHOOK_RELAY_BROKER_TYPE"
	EnvMetricsListen = "WEBHOOK_RELAY_METRICS_LISTEN_ADDR"
	EnvLogLevel      = "WEBHOOK_RELAY_LOG_LEVEL"
)

// Options contains the command-line configuration of the relay. Every flag
// has an environment variable counterpart. Values are layered as
// defaults, then the YAML file, then the environment, then explicit flags.
type Options struct {
	ConfigPath    string
	Listen        string
	AMQPURI       string
	Sandbox       string
	ScriptConfig  string
	PoolSize      int
	ScriptTimeout time.Duration
	BrokerType    string
	MetricsListen string
	LogLevel      string

	// Config is the resolved configuration, set by Complete.
	Config *Config

	fs        *pflag.FlagSet
	lookupEnv func(string) (string, bool)
}

func NewOptions() *Options {
	d := Default()
	return &Options{
		Listen:       d.Listen,
		AMQPURI:      DefaultAMQPURI,
		Sandbox:      d.Script.Sandbox,
		ScriptConfig: d.Script.Config,
		PoolSize:     d.Script.PoolSize,
		BrokerType:   d.Broker.Type,
		LogLevel:     d.LogLevel,
		lookupEnv:    os.LookupEnv,
	}
}

func (opts *Options) AddFlags(fs *pflag.FlagSet) {
	if fs == nil {
		fs = pflag.CommandLine
	}
	opts.fs = fs

	fs.StringVarP(&opts.ConfigPath, "config", "c", opts.ConfigPath,
		"Path to the YAML service config. Env "+EnvConfigPath+".")
	fs.StringVar(&opts.Listen, "http-listen-addr", opts.Listen,
		"Webhook listener address. Env "+EnvListen+".")
	fs.StringVar(&opts.AMQPURI, "amqp-uri", opts.AMQPURI,
		"Broker URI, stored as broker.config.url. Env "+EnvAMQPURI+".")
	fs.StringVar(&opts.Sandbox, "lua-sandbox", opts.Sandbox,
		"Directory holding the routing module mod.lua. Env "+EnvSandbox+".")
	fs.StringVar(&opts.ScriptConfig, "lua-config", opts.ScriptConfig,
		"JSONC file exposed to the routing script as CONFIG. Env "+EnvScriptConfig+".")
	fs.IntVar(&opts.PoolSize, "lua-pool-size", opts.PoolSize,
		"Number of independent Lua states. Env "+EnvPoolSize+".")
	fs.DurationVar(&opts.ScriptTimeout, "lua-timeout", opts.ScriptTimeout,
		"Upper bound for one handler run, 0 disables it. Env "+EnvScriptTimeout+".")
	fs.StringVar(&opts.BrokerType, "broker-type", opts.BrokerType,
		"Broker backend: rabbitmq, amqp10, kafka, mqtt5 or solace. Env "+EnvBrokerType+".")
	fs.StringVar(&opts.MetricsListen, "metrics-listen-addr", opts.MetricsListen,
		"Prometheus listener address, empty disables it. Env "+EnvMetricsListen+".")
	fs.StringVar(&opts.LogLevel, "log-level", opts.LogLevel,
		"One of debug, info, warn, error. Env "+EnvLogLevel+".")
}

type binding struct {
	flag  string
	env   string
	apply func(cfg *Config, v string) error
}

func (opts *Options) bindings() []binding {
	return []binding{
		{"http-listen-addr", EnvListen, func(c *Config, v string) error { c.Listen = v; return nil }},
		{"amqp-uri", EnvAMQPURI, func(c *Config, v string) error { c.Broker.Config["url"] = v; return nil }},
		{"lua-sandbox", EnvSandbox, func(c *Config, v string) error { c.Script.Sandbox = v; return nil }},
		{"lua-config", EnvScriptConfig, func(c *Config, v string) error { c.Script.Config = v; return nil }},
		{"lua-pool-size", EnvPoolSize, func(c *Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return err
			}
			c.Script.PoolSize = n
			return nil
		}},
		{"lua-timeout", EnvScriptTimeout, func(c *Config, v string) error {
			d, err := time.ParseDuration(v)
			if err != nil {
				return err
			}
			c.Script.Timeout = d
			return nil
		}},
		{"broker-type", EnvBrokerType, func(c *Config, v string) error { c.Broker.Type = v; return nil }},
		{"metrics-listen-addr", EnvMetricsListen, func(c *Config, v string) error { c.Metrics.Listen = v; return nil }},
		{"log-level", EnvLogLevel, func(c *Config, v string) error { c.LogLevel = v; return nil }},
	}
}

// Complete loads the config file, if any, and layers the environment and
// explicitly set flags over it.
func (opts *Options) Complete() error {
	if opts.fs == nil {
		return fmt.Errorf("%w: AddFlags was not called", core.ErrConfig)
	}
	if opts.lookupEnv == nil {
		opts.lookupEnv = os.LookupEnv
	}

	path := opts.ConfigPath
	if !opts.fs.Changed("config") {
		if v, ok := opts.lookupEnv(EnvConfigPath); ok {
			path = v
		}
	}

	cfg := Default()
	if path != "" {
		loaded, err := Load(path)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	for _, b := range opts.bindings() {
		if v, ok := opts.lookupEnv(b.env); ok {
			if err := b.apply(cfg, v); err != nil {
				return fmt.Errorf("%w: env %s=%q: %v", core.ErrConfig, b.env, v, err)
			}
		}
		if f := opts.fs.Lookup(b.flag); f != nil && f.Changed {
			if err := b.apply(cfg, f.Value.String()); err != nil {
				return fmt.Errorf("%w: flag --%s: %v", core.ErrConfig, b.flag, err)
			}
		}
	}

	opts.ConfigPath = path
	opts.Config = cfg
	return nil
}

func (opts *Options) Validate() error {
	if opts.Config == nil {
		return fmt.Errorf("%w: options are not complete", core.ErrConfig)
	}
	return opts.Config.Validate()
}
