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
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/wso2/api-platform/gateway/gateway-runtime/webhook-relay/pkg/core"
	"github.com/wso2/api-platform/gateway/gateway-runtime/webhook-relay/pkg/plugins/amqp10"
	"github.com/wso2/api-platform/gateway/gateway-runtime/webhook-relay/pkg/plugins/kafka"
	"github.com/wso2/api-platform/gateway/gateway-runtime/webhook-relay/pkg/plugins/mqtt5"
	"github.com/wso2/api-platform/gateway/gateway-runtime/webhook-relay/pkg/plugins/rabbitmq"
	"github.com/wso2/api-platform/gateway/gateway-runtime/webhook-relay/pkg/plugins/solace"
)

// Factory builds a broker from its name and raw broker.config values.
type Factory func(name string, config map[string]string, logger *slog.Logger) (core.Broker, error)

type Registry struct {
	factories map[string]Factory
	logger    *slog.Logger
	mu        sync.RWMutex
}

func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		factories: make(map[string]Factory),
		logger:    logger,
	}
}

// Builtin returns a registry holding every broker backend shipped with the
// relay.
func Builtin(logger *slog.Logger) *Registry {
	r := NewRegistry(logger)
	r.Register(rabbitmq.Type, rabbitmq.Factory)
	r.Register(amqp10.Type, amqp10.Factory)
	r.Register(kafka.Type, kafka.Factory)
	r.Register(mqtt5.Type, mqtt5.Factory)
	r.Register(solace.Type, solace.Factory)
	return r
}

func (r *Registry) Register(brokerType string, f Factory) {
	r.mu.Lock()
	r.factories[brokerType] = f
	r.mu.Unlock()
	r.logger.Debug("registered broker type", "type", brokerType)
}

func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]string, 0, len(r.factories))
	for t := range r.factories {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Build creates an unconnected broker of the given type.
func (r *Registry) Build(brokerType, name string, config map[string]string) (core.Broker, error) {
	r.mu.RLock()
	f, ok := r.factories[brokerType]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: unknown broker type %q (known: %v)", core.ErrConfig, brokerType, r.Types())
	}

	b, err := f(name, config, r.logger.With("broker", name))
	if err != nil {
		return nil, err
	}
	r.logger.Info("registered broker", "name", b.Name(), "type", b.Type())
	return b, nil
}
