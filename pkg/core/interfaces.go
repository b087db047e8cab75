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

package core

import "context"

// Broker is a message broker backend able to declare queues and publish
// with confirmation. Implementations are owned by a single goroutine.
type Broker interface {
	Name() string
	Type() string
	Connect(ctx context.Context) error
	// Declare must be idempotent: declaring an existing queue is a no-op.
	Declare(ctx context.Context, queue string) error
	// Publish returns only after the broker confirmed the message.
	Publish(ctx context.Context, p Payload) error
	Disconnect(ctx context.Context) error
}

// Decider makes the routing decision for a normalized request.
type Decider interface {
	Decide(ctx context.Context, req *Request) Decision
}

// Sink accepts payloads for delivery.
type Sink interface {
	Send(ctx context.Context, p Payload) error
}
