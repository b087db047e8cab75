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

package mqtt5

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/paho"
	"github.com/google/uuid"
	"github.com/wso2/api-platform/gateway/gateway-runtime/webhook-relay/pkg/core"
)

const Type = "mqtt5"

const defaultKeepAlive = 30

// Config holds the broker.config keys understood by this backend.
type Config struct {
	URL         *url.URL
	ClientID    string
	TopicPrefix string
	KeepAlive   uint16
}

func ParseConfig(raw map[string]string) (Config, error) {
	cfg := Config{
		ClientID:    raw["client_id"],
		TopicPrefix: raw["topic_prefix"],
		KeepAlive:   defaultKeepAlive,
	}
	if raw["url"] == "" {
		return cfg, fmt.Errorf("%w: mqtt5: url is required", core.ErrConfig)
	}
	u, err := url.Parse(raw["url"])
	if err != nil {
		return cfg, fmt.Errorf("%w: mqtt5: invalid url: %v", core.ErrConfig, err)
	}
	cfg.URL = u
	if cfg.ClientID == "" {
		cfg.ClientID = "webhook-relay-" + uuid.New().String()[:8]
	}
	if v, ok := raw["keep_alive"]; ok {
		n, err := strconv.ParseUint(v, 10, 16)
		if err != nil {
			return cfg, fmt.Errorf("%w: mqtt5: keep_alive: %v", core.ErrConfig, err)
		}
		cfg.KeepAlive = uint16(n)
	}
	return cfg, nil
}

// Endpoint publishes every payload at QoS 1 on the topic named after its
// queue. Topics need no declaration.
type Endpoint struct {
	name   string
	cfg    Config
	cm     *autopaho.ConnectionManager
	logger *slog.Logger
}

func New(name string, cfg Config, logger *slog.Logger) *Endpoint {
	return &Endpoint{
		name:   name,
		cfg:    cfg,
		logger: logger,
	}
}

func Factory(name string, raw map[string]string, logger *slog.Logger) (core.Broker, error) {
	cfg, err := ParseConfig(raw)
	if err != nil {
		return nil, err
	}
	return New(name, cfg, logger), nil
}

func (e *Endpoint) Name() string { return e.name }
func (e *Endpoint) Type() string { return Type }

func (e *Endpoint) Connect(ctx context.Context) error {
	cfg := autopaho.ClientConfig{
		ServerUrls:                    []*url.URL{e.cfg.URL},
		KeepAlive:                     e.cfg.KeepAlive,
		CleanStartOnInitialConnection: true,
		SessionExpiryInterval:         60,
		OnConnectionUp: func(cm *autopaho.ConnectionManager, connAck *paho.Connack) {
			e.logger.Info("mqtt5 connection up", "name", e.name)
		},
		OnConnectError: func(err error) {
			e.logger.Warn("mqtt5 connect attempt failed", "name", e.name, "error", err)
		},
		ClientConfig: paho.ClientConfig{
			ClientID: e.cfg.ClientID,
		},
	}

	var err error
	e.cm, err = autopaho.NewConnection(context.Background(), cfg)
	if err != nil {
		return fmt.Errorf("mqtt5 connection: %w", err)
	}
	if err := e.cm.AwaitConnection(ctx); err != nil {
		return fmt.Errorf("mqtt5 await connection: %w", err)
	}

	e.logger.Info("mqtt5 endpoint connected", "name", e.name, "broker", e.cfg.URL.Redacted(), "client_id", e.cfg.ClientID)
	return nil
}

func (e *Endpoint) Declare(ctx context.Context, queue string) error {
	if strings.ContainsAny(e.Topic(queue), "+#") {
		return fmt.Errorf("mqtt5 topic %q contains wildcard characters", e.Topic(queue))
	}
	return nil
}

func (e *Endpoint) Publish(ctx context.Context, p core.Payload) error {
	if e.cm == nil {
		return fmt.Errorf("mqtt5 publish %s: not connected", p.Queue)
	}
	resp, err := e.cm.Publish(ctx, e.Message(p))
	if err != nil {
		return fmt.Errorf("mqtt5 publish %s: %w", p.Queue, err)
	}
	if resp != nil && resp.ReasonCode >= 0x80 {
		return fmt.Errorf("mqtt5 publish %s: reason code %d", p.Queue, resp.ReasonCode)
	}
	return nil
}

func (e *Endpoint) Disconnect(ctx context.Context) error {
	if e.cm != nil {
		return e.cm.Disconnect(ctx)
	}
	return nil
}

func (e *Endpoint) Topic(queue string) string { return e.cfg.TopicPrefix + queue }

// Message maps a payload to a QoS 1 publish. The request id travels as
// correlation data and as a message-id user property.
func (e *Endpoint) Message(p core.Payload) *paho.Publish {
	return &paho.Publish{
		Topic:   e.Topic(p.Queue),
		QoS:     1,
		Payload: p.Body,
		Properties: &paho.PublishProperties{
			ContentType:     p.MimeType,
			CorrelationData: []byte(p.RequestID),
			User: paho.UserProperties{
				{Key: "message-id", Value: p.RequestID},
			},
		},
	}
}
