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

package amqp10

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/Azure/go-amqp"
	"github.com/wso2/api-platform/gateway/gateway-runtime/webhook-relay/pkg/core"
)

const Type = "amqp10"

// Config holds the broker.config keys understood by this backend.
type Config struct {
	URL string
	// AddressPrefix is prepended to every queue name, e.g. "/queues/" or
	// "queue://" depending on the broker.
	AddressPrefix string
	ContainerID   string
	Durable       bool
}

func ParseConfig(raw map[string]string) (Config, error) {
	cfg := Config{
		URL:           raw["url"],
		AddressPrefix: raw["address_prefix"],
		ContainerID:   raw["container_id"],
	}
	if cfg.URL == "" {
		return cfg, fmt.Errorf("%w: amqp10: url is required", core.ErrConfig)
	}
	if cfg.ContainerID == "" {
		cfg.ContainerID = "webhook-relay"
	}
	if v, ok := raw["durable"]; ok {
		durable, err := strconv.ParseBool(v)
		if err != nil {
			return cfg, fmt.Errorf("%w: amqp10: durable: %v", core.ErrConfig, err)
		}
		cfg.Durable = durable
	}
	return cfg, nil
}

// Endpoint keeps one session and one sender link per declared queue.
// Sends are unsettled, so Send returns after the broker's disposition.
type Endpoint struct {
	name    string
	cfg     Config
	conn    *amqp.Conn
	session *amqp.Session
	senders map[string]*amqp.Sender
	logger  *slog.Logger
}

func New(name string, cfg Config, logger *slog.Logger) *Endpoint {
	return &Endpoint{
		name:    name,
		cfg:     cfg,
		senders: make(map[string]*amqp.Sender),
		logger:  logger,
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
	e.conn, err = amqp.Dial(ctx, e.cfg.URL, &amqp.ConnOptions{
		ContainerID: e.cfg.ContainerID,
	})
	if err != nil {
		return fmt.Errorf("amqp10 dial: %w", err)
	}

	e.session, err = e.conn.NewSession(ctx, nil)
	if err != nil {
		e.conn.Close()
		return fmt.Errorf("amqp10 session: %w", err)
	}

	e.logger.Info("amqp10 endpoint connected", "name", e.name, "container_id", e.cfg.ContainerID)
	return nil
}

// Declare attaches a sender link to the queue address. Brokers that
// auto-create queues do so on attach.
func (e *Endpoint) Declare(ctx context.Context, queue string) error {
	_, err := e.sender(ctx, queue)
	return err
}

func (e *Endpoint) sender(ctx context.Context, queue string) (*amqp.Sender, error) {
	if s, ok := e.senders[queue]; ok {
		return s, nil
	}
	if e.session == nil {
		return nil, fmt.Errorf("amqp10 sender %s: not connected", queue)
	}
	s, err := e.session.NewSender(ctx, e.Address(queue), &amqp.SenderOptions{
		SettlementMode: amqp.SenderSettleModeUnsettled.Ptr(),
	})
	if err != nil {
		return nil, fmt.Errorf("amqp10 sender %s: %w", queue, err)
	}
	e.senders[queue] = s
	return s, nil
}

func (e *Endpoint) Publish(ctx context.Context, p core.Payload) error {
	s, err := e.sender(ctx, p.Queue)
	if err != nil {
		return err
	}
	if err := s.Send(ctx, Message(p, e.cfg.Durable), nil); err != nil {
		return fmt.Errorf("amqp10 send %s: %w", p.Queue, err)
	}
	return nil
}

func (e *Endpoint) Disconnect(ctx context.Context) error {
	for queue, s := range e.senders {
		if err := s.Close(ctx); err != nil {
			e.logger.Debug("amqp10 sender close failed", "queue", queue, "error", err)
		}
	}
	clear(e.senders)
	if e.session != nil {
		e.session.Close(ctx)
	}
	if e.conn != nil {
		return e.conn.Close()
	}
	return nil
}

// Address is the link target for queue.
func (e *Endpoint) Address(queue string) string { return e.cfg.AddressPrefix + queue }

// Message maps a payload to an AMQP 1.0 message with a single data section.
func Message(p core.Payload, durable bool) *amqp.Message {
	mime := p.MimeType
	msg := &amqp.Message{
		Data: [][]byte{p.Body},
		Header: &amqp.MessageHeader{
			Durable: durable,
		},
		Properties: &amqp.MessageProperties{
			MessageID:     p.RequestID,
			CorrelationID: p.RequestID,
			ContentType:   &mime,
		},
	}
	if !p.Accepted.IsZero() {
		created := p.Accepted
		msg.Properties.CreationTime = &created
	}
	return msg
}
