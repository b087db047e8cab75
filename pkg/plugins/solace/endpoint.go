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

package solace

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/wso2/api-platform/gateway/gateway-runtime/webhook-relay/pkg/core"
	"solace.dev/go/messaging"
	"solace.dev/go/messaging/pkg/solace"
	"solace.dev/go/messaging/pkg/solace/config"
	"solace.dev/go/messaging/pkg/solace/message"
	"solace.dev/go/messaging/pkg/solace/resource"
)

const Type = "solace"

const (
	defaultAckTimeout = 10 * time.Second
	terminateTimeout  = 5 * time.Second
)

// Config holds the broker.config keys understood by this backend.
type Config struct {
	Host        string
	VPN         string
	Username    string
	Password    string
	TopicPrefix string
	AckTimeout  time.Duration
}

func ParseConfig(raw map[string]string) (Config, error) {
	cfg := Config{
		Host:        raw["host"],
		VPN:         raw["vpn"],
		Username:    raw["username"],
		Password:    raw["password"],
		TopicPrefix: raw["topic_prefix"],
		AckTimeout:  defaultAckTimeout,
	}
	if cfg.Host == "" {
		return cfg, fmt.Errorf("%w: solace: host is required", core.ErrConfig)
	}
	if cfg.VPN == "" {
		cfg.VPN = "default"
	}
	if v := raw["ack_timeout"]; v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return cfg, fmt.Errorf("%w: solace: ack_timeout must be a positive duration, got %q", core.ErrConfig, v)
		}
		cfg.AckTimeout = d
	}
	return cfg, nil
}

// Endpoint publishes guaranteed messages to topics named after queues and
// waits for the broker acknowledgement of each one.
type Endpoint struct {
	name      string
	cfg       Config
	service   solace.MessagingService
	publisher solace.PersistentMessagePublisher
	logger    *slog.Logger
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
	var err error
	e.service, err = messaging.NewMessagingServiceBuilder().
		FromConfigurationProvider(config.ServicePropertyMap{
			config.TransportLayerPropertyHost:                e.cfg.Host,
			config.ServicePropertyVPNName:                    e.cfg.VPN,
			config.AuthenticationPropertySchemeBasicUserName: e.cfg.Username,
			config.AuthenticationPropertySchemeBasicPassword: e.cfg.Password,
		}).Build()
	if err != nil {
		return fmt.Errorf("solace build: %w", err)
	}
	if err = e.service.Connect(); err != nil {
		return fmt.Errorf("solace connect: %w", err)
	}

	e.publisher, err = e.service.CreatePersistentMessagePublisherBuilder().Build()
	if err != nil {
		e.service.Disconnect()
		return fmt.Errorf("solace publisher build: %w", err)
	}
	if err = e.publisher.Start(); err != nil {
		e.service.Disconnect()
		return fmt.Errorf("solace publisher start: %w", err)
	}

	e.logger.Info("solace endpoint connected", "name", e.name, "host", e.cfg.Host, "vpn", e.cfg.VPN)
	return nil
}

// Declare only validates the topic; Solace topics are implicit.
func (e *Endpoint) Declare(ctx context.Context, queue string) error {
	topic := e.Topic(queue)
	if strings.ContainsAny(topic, "*>") {
		return fmt.Errorf("solace topic %q contains wildcard characters", topic)
	}
	return nil
}

func (e *Endpoint) Publish(ctx context.Context, p core.Payload) error {
	if e.service == nil || e.publisher == nil {
		return fmt.Errorf("solace publish %s: not connected", p.Queue)
	}
	msg, err := e.service.MessageBuilder().
		WithHTTPContentHeader(p.MimeType, "").
		WithApplicationMessageID(p.RequestID).
		WithCorrelationID(p.RequestID).
		BuildWithByteArrayPayload(p.Body)
	if err != nil {
		return fmt.Errorf("solace message build: %w", err)
	}
	return e.await(ctx, msg, resource.TopicOf(e.Topic(p.Queue)))
}

func (e *Endpoint) await(ctx context.Context, msg message.OutboundMessage, topic *resource.Topic) error {
	timeout := e.cfg.AckTimeout
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); left < timeout {
			timeout = left
		}
	}
	if err := e.publisher.PublishAwaitAcknowledgement(msg, topic, timeout, nil); err != nil {
		return fmt.Errorf("solace publish %s: %w", topic.GetName(), err)
	}
	return nil
}

func (e *Endpoint) Disconnect(ctx context.Context) error {
	if e.publisher != nil {
		if err := e.publisher.Terminate(terminateTimeout); err != nil {
			e.logger.Debug("solace publisher terminate failed", "error", err)
		}
	}
	if e.service != nil {
		return e.service.Disconnect()
	}
	return nil
}

func (e *Endpoint) Topic(queue string) string { return e.cfg.TopicPrefix + queue }
