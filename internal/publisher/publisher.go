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

package publisher

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.uber.org/multierr"

	"github.com/wso2/api-platform/gateway/gateway-runtime/webhook-relay/internal/delivery"
	"github.com/wso2/api-platform/gateway/gateway-runtime/webhook-relay/internal/logging"
	"github.com/wso2/api-platform/gateway/gateway-runtime/webhook-relay/internal/metrics"
	"github.com/wso2/api-platform/gateway/gateway-runtime/webhook-relay/internal/routing"
	"github.com/wso2/api-platform/gateway/gateway-runtime/webhook-relay/pkg/core"
)

const disconnectTimeout = 5 * time.Second

// Publisher is the single consumer of the delivery channel. It owns the
// broker connection exclusively.
type Publisher struct {
	broker     core.Broker
	ch         *delivery.Channel
	logger     *slog.Logger
	deliveries *logging.DeliveryLogger
	done       chan struct{}
	err        error
}

func New(broker core.Broker, ch *delivery.Channel, logger *slog.Logger) *Publisher {
	return &Publisher{
		broker:     broker,
		ch:         ch,
		logger:     logger,
		deliveries: logging.NewDeliveryLogger(logger),
		done:       make(chan struct{}),
	}
}

// Declare creates every manifest queue on the broker, in manifest order.
// It must complete before any webhook is admitted.
func (p *Publisher) Declare(ctx context.Context, manifest *routing.Manifest) error {
	for _, queue := range manifest.Names() {
		if err := p.broker.Declare(ctx, queue); err != nil {
			return fmt.Errorf("%w: queue %q on %s: %v", core.ErrQueueDeclare, queue, p.broker.Name(), err)
		}
		p.logger.Info("declared queue", "queue", queue, "broker", p.broker.Name())
	}
	return nil
}

// Run publishes payloads one at a time, waiting for each confirmation before
// taking the next. It returns nil once producers are done and the channel is
// drained, or the first publish error. Either way the channel is closed and
// the broker disconnected before Run returns.
func (p *Publisher) Run(ctx context.Context) (err error) {
	metrics.SetPublisherUp(true)
	defer func() {
		err = multierr.Append(err, p.shutdown())
		p.err = err
		close(p.done)
	}()

	p.logger.Info("publisher started", "broker", p.broker.Name(), "type", p.broker.Type())
	for {
		payload, ok := p.ch.Receive(ctx)
		if !ok {
			p.logger.Info("delivery channel drained, publisher stopping")
			return nil
		}

		start := time.Now()
		if err := p.broker.Publish(ctx, payload); err != nil {
			p.deliveries.Failed(payload, p.broker.Name(), err)
			metrics.RecordDelivery(metrics.ResultFailed)
			return fmt.Errorf("%w: request %s to queue %q: %v", core.ErrBrokerPublish, payload.RequestID, payload.Queue, err)
		}

		p.deliveries.Delivered(payload, p.broker.Name(), time.Since(start))
		metrics.RecordDelivery(metrics.ResultDelivered)
		if !payload.Accepted.IsZero() {
			metrics.RecordDeliveryLatency(time.Since(payload.Accepted))
		}
	}
}

func (p *Publisher) shutdown() error {
	metrics.SetPublisherUp(false)
	for _, dropped := range p.ch.Close() {
		p.deliveries.Dropped(dropped)
		metrics.RecordDelivery(metrics.ResultDropped)
	}

	ctx, cancel := context.WithTimeout(context.Background(), disconnectTimeout)
	defer cancel()
	if err := p.broker.Disconnect(ctx); err != nil {
		p.logger.Warn("broker disconnect failed", "broker", p.broker.Name(), "error", err)
		return fmt.Errorf("disconnect %s: %w", p.broker.Name(), err)
	}
	p.logger.Info("broker disconnected", "broker", p.broker.Name())
	return nil
}

// Done is closed when Run has returned.
func (p *Publisher) Done() <-chan struct{} { return p.done }

// Err is the error Run returned. Only valid after Done is closed.
func (p *Publisher) Err() error { return p.err }
