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

package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/wso2/api-platform/gateway/gateway-runtime/webhook-relay/pkg/core"
)

const (
	Type = "rabbitmq"

	DefaultConnectionName = "webhook-relay"
	defaultHeartbeat      = 10 * time.Second
	defaultDialTimeout    = 30 * time.Second
)

var errNacked = errors.New("rabbitmq broker nacked the message")

// Config holds the broker.config keys understood by this backend.
type Config struct {
	URL            string
	Durable        bool
	ConnectionName string
}

func ParseConfig(raw map[string]string) (Config, error) {
	cfg := Config{
		URL:            raw["url"],
		ConnectionName: DefaultConnectionName,
	}
	if cfg.URL == "" {
		return cfg, fmt.Errorf("%w: rabbitmq: url is required", core.ErrConfig)
	}
	if v, ok := raw["durable"]; ok {
		durable, err := strconv.ParseBool(v)
		if err != nil {
			return cfg, fmt.Errorf("%w: rabbitmq: durable: %v", core.ErrConfig, err)
		}
		cfg.Durable = durable
	}
	if v := raw["connection_name"]; v != "" {
		cfg.ConnectionName = v
	}
	return cfg, nil
}

// Endpoint publishes to queues through the default exchange on a single
// channel in confirm mode.
type Endpoint struct {
	name   string
	cfg    Config
	conn   *amqp.Connection
	pubCh  *amqp.Channel
	logger *slog.Logger
}

func New(name string, cfg Config, logger *slog.Logger) *Endpoint {
	return &Endpoint{
		name:   name,
		cfg:    cfg,
		logger: logger,
	}
}

// Factory builds an Endpoint from raw broker.config values.
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
	props := amqp.NewConnectionProperties()
	props.SetClientConnectionName(e.cfg.ConnectionName)

	timeout, err := dialTimeout(ctx)
	if err != nil {
		return fmt.Errorf("rabbitmq dial: %w", err)
	}
	e.conn, err = amqp.DialConfig(e.cfg.URL, amqp.Config{
		Heartbeat:  defaultHeartbeat,
		Locale:     "en_US",
		Properties: props,
		Dial:       amqp.DefaultDial(timeout),
	})
	if err != nil {
		return fmt.Errorf("rabbitmq dial: %w", err)
	}

	e.pubCh, err = e.conn.Channel()
	if err != nil {
		e.conn.Close()
		return fmt.Errorf("rabbitmq publish channel: %w", err)
	}
	if err := e.pubCh.Confirm(false); err != nil {
		e.conn.Close()
		return fmt.Errorf("rabbitmq confirm mode: %w", err)
	}

	e.logger.Info("rabbitmq endpoint connected", "name", e.name, "connection_name", e.cfg.ConnectionName)
	return nil
}

// dialTimeout bounds the TCP dial and AMQP handshake by the deadline of ctx.
func dialTimeout(ctx context.Context) (time.Duration, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	deadline, ok := ctx.Deadline()
	if !ok {
		return defaultDialTimeout, nil
	}
	left := time.Until(deadline)
	if left <= 0 {
		return 0, context.DeadlineExceeded
	}
	return left, nil
}

func (e *Endpoint) Declare(ctx context.Context, queue string) error {
	if e.pubCh == nil {
		return fmt.Errorf("rabbitmq queue declare %s: not connected", queue)
	}
	q, err := e.pubCh.QueueDeclare(queue, e.cfg.Durable, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("rabbitmq queue declare %s: %w", queue, err)
	}
	e.logger.Debug("rabbitmq queue ready", "queue", q.Name, "messages", q.Messages, "consumers", q.Consumers)
	return nil
}

func (e *Endpoint) Publish(ctx context.Context, p core.Payload) error {
	if e.pubCh == nil {
		return fmt.Errorf("rabbitmq publish %s: not connected", p.Queue)
	}
	confirm, err := e.pubCh.PublishWithDeferredConfirmWithContext(ctx,
		"",
		p.Queue,
		false,
		false,
		Publishing(p, e.cfg.Durable),
	)
	if err != nil {
		return fmt.Errorf("rabbitmq publish %s: %w", p.Queue, err)
	}
	acked, err := confirm.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("rabbitmq confirm %s: %w", p.Queue, err)
	}
	if !acked {
		return errNacked
	}
	return nil
}

func (e *Endpoint) Disconnect(ctx context.Context) error {
	if e.pubCh != nil {
		e.pubCh.Close()
	}
	if e.conn != nil && !e.conn.IsClosed() {
		return e.conn.Close()
	}
	return nil
}

// Publishing maps a payload to message properties: content type from the
// request, request id as message and correlation id.
func Publishing(p core.Payload, persistent bool) amqp.Publishing {
	mode := amqp.Transient
	if persistent {
		mode = amqp.Persistent
	}
	return amqp.Publishing{
		ContentType:   p.MimeType,
		MessageId:     p.RequestID,
		CorrelationId: p.RequestID,
		Timestamp:     p.Accepted,
		DeliveryMode:  mode,
		Body:          p.Body,
	}
}
