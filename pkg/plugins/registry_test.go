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

package plugins

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wso2/api-platform/gateway/gateway-runtime/webhook-relay/pkg/core"
)

type stubBroker struct{ name string }

func (s *stubBroker) Name() string                                { return s.name }
func (s *stubBroker) Type() string                                { return "stub" }
func (s *stubBroker) Connect(context.Context) error               { return nil }
func (s *stubBroker) Declare(context.Context, string) error       { return nil }
func (s *stubBroker) Publish(context.Context, core.Payload) error { return nil }
func (s *stubBroker) Disconnect(context.Context) error            { return nil }

func testLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestBuiltinTypes(t *testing.T) {
	assert.Equal(t, []string{"amqp10", "kafka", "mqtt5", "rabbitmq", "solace"}, Builtin(testLogger()).Types())
}

func TestBuildUsesFactory(t *testing.T) {
	r := NewRegistry(testLogger())
	var seen map[string]string
	r.Register("stub", func(name string, cfg map[string]string, _ *slog.Logger) (core.Broker, error) {
		seen = cfg
		return &stubBroker{name: name}, nil
	})

	b, err := r.Build("stub", "primary", map[string]string{"k": "v"})
	require.NoError(t, err)
	assert.Equal(t, "primary", b.Name())
	assert.Equal(t, map[string]string{"k": "v"}, seen)
}

func TestBuildUnknownType(t *testing.T) {
	_, err := Builtin(testLogger()).Build("carrier-pigeon", "x", nil)
	assert.ErrorIs(t, err, core.ErrConfig)
}

func TestBuildBuiltinRabbitMQ(t *testing.T) {
	r := Builtin(testLogger())

	b, err := r.Build("rabbitmq", "primary", map[string]string{"url": "amqp://localhost"})
	require.NoError(t, err)
	assert.Equal(t, "rabbitmq", b.Type())

	_, err = r.Build("rabbitmq", "primary", map[string]string{})
	assert.ErrorIs(t, err, core.ErrConfig)
}
