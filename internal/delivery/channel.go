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

package delivery

import (
	"context"
	"sync"

	"github.com/wso2/api-platform/gateway/gateway-runtime/webhook-relay/pkg/core"
)

// Channel is a single-slot conduit between many admission goroutines and
// one publisher. A Send blocks while the slot is occupied, which throttles
// accepted traffic to the publisher's publish-and-confirm rate.
type Channel struct {
	items chan core.Payload

	// mu is held shared by every Send so Close can wait them out before
	// it inspects the slot.
	mu sync.RWMutex

	// closed is closed when the consumer has gone away.
	closed    chan struct{}
	closeOnce sync.Once

	// draining is closed when no more producers will send.
	draining  chan struct{}
	drainOnce sync.Once
}

func NewChannel() *Channel {
	return &Channel{
		items:    make(chan core.Payload, 1),
		closed:   make(chan struct{}),
		draining: make(chan struct{}),
	}
}

// Send places p in the slot, waiting for the consumer to take the previous
// item. It fails with core.ErrChannelClosed once the channel is closed in
// either direction, and with ctx.Err() when ctx ends first.
func (c *Channel) Send(ctx context.Context, p core.Payload) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	select {
	case <-c.closed:
		return core.ErrChannelClosed
	case <-c.draining:
		return core.ErrChannelClosed
	default:
	}

	select {
	case c.items <- p:
		return nil
	case <-c.closed:
		return core.ErrChannelClosed
	case <-c.draining:
		return core.ErrChannelClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Receive takes the next payload. ok is false once the channel is closed,
// producers are done and the slot is empty, or ctx ends.
func (c *Channel) Receive(ctx context.Context) (p core.Payload, ok bool) {
	select {
	case <-c.closed:
		return p, false
	default:
	}

	select {
	case p = <-c.items:
		return p, true
	case <-c.closed:
		return p, false
	case <-ctx.Done():
		return p, false
	case <-c.draining:
		select {
		case p = <-c.items:
			return p, true
		default:
			return p, false
		}
	}
}

// CloseSend signals that producers are done. The consumer still receives an
// item already in the slot.
func (c *Channel) CloseSend() {
	c.drainOnce.Do(func() { close(c.draining) })
}

// Close is called by the consumer when it stops. Pending and future sends
// fail immediately. It returns payloads that were accepted but never taken.
func (c *Channel) Close() []core.Payload {
	c.closeOnce.Do(func() { close(c.closed) })

	c.mu.Lock()
	defer c.mu.Unlock()

	var dropped []core.Payload
	for {
		select {
		case p := <-c.items:
			dropped = append(dropped, p)
		default:
			return dropped
		}
	}
}

// Done is closed once the consumer has closed the channel.
func (c *Channel) Done() <-chan struct{} { return c.closed }

// Len reports the number of payloads waiting in the slot, 0 or 1.
func (c *Channel) Len() int { return len(c.items) }
