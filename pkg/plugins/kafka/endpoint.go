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

package kafka

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"

	"github.com/segmentio/kafka-go"
	"github.com/wso2/api-platform/gateway/gateway-runtime/webhook-relay/pkg/core"
)

const Type = "kafka"

const (
	HeaderContentType = "content-type"
	HeaderMessageID   = "message-id"
)

// Config holds the broker.config keys understood by this backend.
type Config struct {
	Brokers           []string
	Partitions        int
	ReplicationFactor int
}

func ParseConfig(raw map[string]string) (Config, error) {
	cfg := Config{Partitions: 1, ReplicationFactor: 1}
	for _, b := range strings.Split(raw["brokers"], ",") {
		if b = strings.TrimSpace(b); b != "" {
			cfg.Brokers = append(cfg.Brokers, b)
		}
	}
	if len(cfg.Brokers) == 0 {
		return cfg, fmt.Errorf("%w: kafka: brokers is required", core.ErrConfig)
	}
	for key, dst := range map[string]*int{
		"partitions":         &cfg.Partitions,
		"replication_factor": &cfg.ReplicationFactor,
	} {
		v, ok := raw[key]
		if !ok {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return cfg, fmt.Errorf("%w: kafka: %s must be a positive integer, got %q", core.ErrConfig, key, v)
		}
		*dst = n
	}
	return cfg, nil
}

// Endpoint maps queues to topics. Writes wait for all in-sync replicas.
type Endpoint struct {
	name       string
	cfg        Config
	controller *kafka.Conn
	writer     *kafka.Writer
	logger     *slog.Logger
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

// Connect reaches the cluster controller, which is needed for topic
// creation, and prepares a synchronous writer.
func (e *Endpoint) Connect(ctx context.Context) error {
	conn, err := kafka.DialContext(ctx, "tcp", e.cfg.Brokers[0])
	if err != nil {
		return fmt.Errorf("kafka dial: %w", err)
	}
	controller, err := conn.Controller()
	conn.Close()
	if err != nil {
		return fmt.Errorf("kafka controller lookup: %w", err)
	}

	addr := net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port))
	e.controller, err = kafka.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("kafka controller dial %s: %w", addr, err)
	}

	e.writer = &kafka.Writer{
		Addr:                   kafka.TCP(e.cfg.Brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		BatchSize:              1,
		AllowAutoTopicCreation: false,
	}
	e.logger.Info("kafka endpoint connected",
		"name", e.name,
		"brokers", strings.Join(e.cfg.Brokers, ","),
		"controller", addr,
	)
	return nil
}

func (e *Endpoint) Declare(ctx context.Context, queue string) error {
	if e.controller == nil {
		return fmt.Errorf("kafka create topic %s: not connected", queue)
	}
	err := e.controller.CreateTopics(kafka.TopicConfig{
		Topic:             queue,
		NumPartitions:     e.cfg.Partitions,
		ReplicationFactor: e.cfg.ReplicationFactor,
	})
	if err != nil && !errors.Is(err, kafka.TopicAlreadyExists) {
		return fmt.Errorf("kafka create topic %s: %w", queue, err)
	}
	return nil
}

func (e *Endpoint) Publish(ctx context.Context, p core.Payload) error {
	if e.writer == nil {
		return fmt.Errorf("kafka write %s: not connected", p.Queue)
	}
	if err := e.writer.WriteMessages(ctx, Message(p)); err != nil {
		return fmt.Errorf("kafka write %s: %w", p.Queue, err)
	}
	return nil
}

func (e *Endpoint) Disconnect(ctx context.Context) error {
	var errs []error
	if e.writer != nil {
		errs = append(errs, e.writer.Close())
	}
	if e.controller != nil {
		errs = append(errs, e.controller.Close())
	}
	return errors.Join(errs...)
}

// Message maps a payload to a record on the topic named after the queue,
// keyed by request id.
func Message(p core.Payload) kafka.Message {
	return kafka.Message{
		Topic: p.Queue,
		Key:   []byte(p.RequestID),
		Value: p.Body,
		Headers: []kafka.Header{
			{Key: HeaderContentType, Value: []byte(p.MimeType)},
			{Key: HeaderMessageID, Value: []byte(p.RequestID)},
		},
		Time: p.Accepted,
	}
}
