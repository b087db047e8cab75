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

package logging

import (
	"log/slog"
	"time"

	"github.com/wso2/api-platform/gateway/gateway-runtime/webhook-relay/pkg/core"
)

// DeliveryLogger writes one record per payload leaving the publisher.
type DeliveryLogger struct {
	logger *slog.Logger
}

func NewDeliveryLogger(logger *slog.Logger) *DeliveryLogger {
	return &DeliveryLogger{logger: logger}
}

func (d *DeliveryLogger) Delivered(p core.Payload, broker string, confirmed time.Duration) {
	d.logger.Info("delivered message",
		"request_id", p.RequestID,
		"queue", p.Queue,
		"broker", broker,
		"mime_type", p.MimeType,
		"payload_size", len(p.Body),
		"confirm_latency", confirmed,
	)
}

func (d *DeliveryLogger) Failed(p core.Payload, broker string, err error) {
	d.logger.Error("delivery failed",
		"request_id", p.RequestID,
		"queue", p.Queue,
		"broker", broker,
		"payload_size", len(p.Body),
		"error", err,
	)
}

func (d *DeliveryLogger) Dropped(p core.Payload) {
	d.logger.Warn("payload dropped, publisher stopped",
		"request_id", p.RequestID,
		"queue", p.Queue,
		"payload_size", len(p.Body),
	)
}
