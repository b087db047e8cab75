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

package scripting

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wso2/api-platform/gateway/gateway-runtime/webhook-relay/pkg/core"
)

func writeSandbox(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return dir
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newRequest(body string) *core.Request {
	return &core.Request{
		ID:       core.NewRequestID(),
		Method:   http.MethodPost,
		URL:      "/hooks/github",
		Origin:   "10.0.0.7:51234",
		Headers:  http.Header{"X-Github-Event": {"push"}, "Content-Type": {"application/json"}},
		MimeType: "application/json",
		Body:     []byte(body),
	}
}

// messageRecorder is a slog.Handler that keeps record messages in order.
type messageRecorder struct {
	mu   *sync.Mutex
	msgs *[]string
}

func newMessageRecorder() messageRecorder {
	return messageRecorder{mu: &sync.Mutex{}, msgs: &[]string{}}
}

func (r messageRecorder) Enabled(context.Context, slog.Level) bool { return true }

func (r messageRecorder) Handle(_ context.Context, rec slog.Record) error {
	r.mu.Lock()
	*r.msgs = append(*r.msgs, rec.Message)
	r.mu.Unlock()
	return nil
}

func (r messageRecorder) WithAttrs([]slog.Attr) slog.Handler { return r }
func (r messageRecorder) WithGroup(string) slog.Handler      { return r }

func (r messageRecorder) withPrefix(prefixes ...string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, m := range *r.msgs {
		for _, p := range prefixes {
			if strings.HasPrefix(m, p) {
				out = append(out, m)
				break
			}
		}
	}
	return out
}

const acceptAllModule = `
local M = {}
M.queue_names = { "orders", "billing", "audit" }
function M.handler(req)
  return "orders"
end
return M
`
