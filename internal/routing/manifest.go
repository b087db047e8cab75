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

package routing

import (
	"fmt"

	"github.com/wso2/api-platform/gateway/gateway-runtime/webhook-relay/pkg/core"
)

// Manifest is the ordered list of queue names a routing script exports.
// It is immutable once built.
type Manifest struct {
	names []string
	index map[string]int
}

// NewManifest keeps names exactly as exported, repeats included. Only an
// empty name is rejected.
func NewManifest(names []string) (*Manifest, error) {
	m := &Manifest{
		names: make([]string, 0, len(names)),
		index: make(map[string]int, len(names)),
	}
	for i, name := range names {
		if name == "" {
			return nil, fmt.Errorf("%w: queue_names[%d] is empty", core.ErrScriptLoad, i+1)
		}
		if _, ok := m.index[name]; !ok {
			m.index[name] = i
		}
		m.names = append(m.names, name)
	}
	return m, nil
}

// Names returns a copy of the queue names in declaration order.
func (m *Manifest) Names() []string {
	out := make([]string, len(m.names))
	copy(out, m.names)
	return out
}

func (m *Manifest) Len() int { return len(m.names) }

func (m *Manifest) Contains(queue string) bool {
	_, ok := m.index[queue]
	return ok
}

// Equal reports whether both manifests list the same queues in the same order.
func (m *Manifest) Equal(other *Manifest) bool {
	if other == nil || len(m.names) != len(other.names) {
		return false
	}
	for i := range m.names {
		if m.names[i] != other.names[i] {
			return false
		}
	}
	return true
}
