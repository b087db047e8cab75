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
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wso2/api-platform/gateway/gateway-runtime/webhook-relay/pkg/core"
)

func TestParseConfig(t *testing.T) {
	cfg, err := ParseConfig(map[string]string{"url": "mqtt://localhost:1883"})
	require.NoError(t, err)
	assert.Equal(t, "localhost:1883", cfg.URL.Host)
	assert.True(t, strings.HasPrefix(cfg.ClientID, "webhook-relay-"))
	assert.EqualValues(t, defaultKeepAlive, cfg.KeepAlive)

	cfg, err = ParseConfig(map[string]string{"url": "mqtt://h:1883", "client_id": "relay-1", "keep_alive": "15", "topic_prefix": "hooks/"})
	require.NoError(t, err)
	assert.Equal(t, "relay-1", cfg.ClientID)
	assert.EqualValues(t, 15, cfg.KeepAlive)
	assert.Equal(t, "hooks/", cfg.TopicPrefix)

	_, err = ParseConfig(map[string]string{})
	assert.ErrorIs(t, err, core.ErrConfig)
	_, err = ParseConfig(map[string]string{"url": "mqtt://h", "keep_alive": "-1"})
	assert.ErrorIs(t, err, core.ErrConfig)
}

func TestMessageAndDeclare(t *testing.T) {
	e := New("m", Config{TopicPrefix: "hooks/"}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	pub := e.Message(core.Payload{RequestID: "req-5", Queue: "orders", MimeType: "application/json", Body: []byte("{}")})
	assert.Equal(t, "hooks/orders", pub.Topic)
	assert.EqualValues(t, 1, pub.QoS)
	assert.Equal(t, []byte("{}"), pub.Payload)
	assert.Equal(t, "application/json", pub.Properties.ContentType)
	assert.Equal(t, []byte("req-5"), pub.Properties.CorrelationData)
	assert.Equal(t, "req-5", pub.Properties.User.Get("message-id"))

	assert.NoError(t, e.Declare(context.Background(), "orders"))
	assert.Error(t, e.Declare(context.Background(), "orders/#"))
	assert.Error(t, e.Publish(context.Background(), core.Payload{Queue: "orders"}))
}
