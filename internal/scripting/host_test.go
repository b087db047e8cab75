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
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wso2/api-platform/gateway/gateway-runtime/webhook-relay/pkg/core"
)

func TestHostLoadsManifestInOrder(t *testing.T) {
	dir := writeSandbox(t, map[string]string{"mod.lua": acceptAllModule})

	h, err := NewHost(dir, nil, discardLogger())
	require.NoError(t, err)
	defer h.Close()

	assert.Equal(t, []string{"orders", "billing", "audit"}, h.Manifest().Names())
}

func TestHostManifestKeepsRepeatedQueueNames(t *testing.T) {
	dir := writeSandbox(t, map[string]string{"mod.lua": `
return {
  queue_names = { "a", "b", "a" },
  handler = function(req) return "a" end,
}`})

	h, err := NewHost(dir, nil, discardLogger())
	require.NoError(t, err)
	defer h.Close()

	assert.Equal(t, []string{"a", "b", "a"}, h.Manifest().Names())
}

func TestHostLoadErrors(t *testing.T) {
	tests := []struct {
		name   string
		module string
	}{
		{"module not a table", `return 42`},
		{"missing queue_names", `return { handler = function(req) return nil end }`},
		{"missing handler", `return { queue_names = { "a" } }`},
		{"handler not a function", `return { queue_names = { "a" }, handler = "a" }`},
		{"non string queue name", `return { queue_names = { "a", 7 }, handler = function(req) end }`},
		{"syntax error", `return {`},
		{"runtime error", `error("boom")`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := writeSandbox(t, map[string]string{"mod.lua": tt.module})
			_, err := NewHost(dir, nil, discardLogger())
			require.ErrorIs(t, err, core.ErrScriptLoad)
		})
	}
}

func TestHostMissingModule(t *testing.T) {
	dir := writeSandbox(t, map[string]string{"other.lua": acceptAllModule})
	_, err := NewHost(dir, nil, discardLogger())
	require.ErrorIs(t, err, core.ErrScriptLoad)
}

func TestHostMissingSandbox(t *testing.T) {
	_, err := NewHost(filepath.Join(t.TempDir(), "absent"), nil, discardLogger())
	require.ErrorIs(t, err, core.ErrScriptLoad)
}

func TestHostPackageLayouts(t *testing.T) {
	dir := writeSandbox(t, map[string]string{
		"mod.lua": `
local routes = require("routes")
local util = require("util")
return {
  queue_names = routes.queues,
  handler = function(req) return util.pick(req) end,
}`,
		"routes/init.lua": `return { queues = { "github", "stripe" } }`,
		"util.lua": `
local M = {}
function M.pick(req)
  return string.lower(req.headers["x-source"] or "GITHUB")
end
return M`,
	})

	h, err := NewHost(dir, nil, discardLogger())
	require.NoError(t, err)
	defer h.Close()

	assert.Equal(t, []string{"github", "stripe"}, h.Manifest().Names())
	req := newRequest("{}")
	req.Headers.Set("X-Source", "STRIPE")
	assert.Equal(t, core.Accept("stripe"), h.Decide(context.Background(), req))
}

func TestPackagePathPrepends(t *testing.T) {
	got := PackagePath("/srv/lua", "./?.lua")
	parts := strings.Split(got, ";")
	require.Len(t, parts, 3)
	assert.Equal(t, filepath.Join("/srv/lua", "?.lua"), parts[0])
	assert.Equal(t, filepath.Join("/srv/lua", "?", "init.lua"), parts[1])
	assert.Equal(t, "./?.lua", parts[2])
}

func TestHostConfigIsReadOnly(t *testing.T) {
	dir := writeSandbox(t, map[string]string{"mod.lua": `
return {
  queue_names = { "q" },
  handler = function(req)
    if req.url == "/write" then
      CONFIG.target = "other"
    end
    return CONFIG.target
  end,
}`})

	h, err := NewHost(dir, map[string]string{"target": "q"}, discardLogger())
	require.NoError(t, err)
	defer h.Close()

	req := newRequest("")
	assert.Equal(t, core.Accept("q"), h.Decide(context.Background(), req))

	req = newRequest("")
	req.URL = "/write"
	d := h.Decide(context.Background(), req)
	assert.Equal(t, core.VerdictError, d.Verdict)
	assert.ErrorIs(t, d.Err, core.ErrScriptFault)

	req = newRequest("")
	assert.Equal(t, core.Accept("q"), h.Decide(context.Background(), req))
}

func TestDecideOutcomes(t *testing.T) {
	dir := writeSandbox(t, map[string]string{"mod.lua": `
return {
  queue_names = { "q" },
  handler = function(req)
    local mode = req.headers["x-mode"]
    if mode == "accept" then return "q" end
    if mode == "reject" then return nil end
    if mode == "number" then return 12 end
    if mode == "empty" then return "" end
    error("unexpected mode")
  end,
}`})

	h, err := NewHost(dir, nil, discardLogger())
	require.NoError(t, err)
	defer h.Close()

	tests := []struct {
		mode    string
		verdict core.Verdict
	}{
		{"accept", core.VerdictAccept},
		{"reject", core.VerdictReject},
		{"number", core.VerdictError},
		{"empty", core.VerdictError},
		{"fault", core.VerdictError},
	}
	for _, tt := range tests {
		t.Run(tt.mode, func(t *testing.T) {
			req := newRequest("")
			req.Headers.Set("X-Mode", tt.mode)
			d := h.Decide(context.Background(), req)
			assert.Equal(t, tt.verdict, d.Verdict)
			if tt.verdict == core.VerdictError {
				assert.ErrorIs(t, d.Err, core.ErrScriptFault)
			}
		})
	}
}

func TestDecideExposesRequestFields(t *testing.T) {
	dir := writeSandbox(t, map[string]string{"mod.lua": `
return {
  queue_names = { "q" },
  handler = function(req)
    return table.concat({
      req.request_id, req.method, req.url, req.origin,
      req.headers["x-github-event"], tostring(req.mimetype), req.body,
    }, "|")
  end,
}`})

	h, err := NewHost(dir, nil, discardLogger())
	require.NoError(t, err)
	defer h.Close()

	req := newRequest(`{"ok":true}`)
	d := h.Decide(context.Background(), req)
	require.Equal(t, core.VerdictAccept, d.Verdict, "err: %v", d.Err)
	want := strings.Join([]string{
		req.ID, "POST", "/hooks/github", "10.0.0.7:51234", "push", "application/json", `{"ok":true}`,
	}, "|")
	assert.Equal(t, want, d.Queue)

	req.MimeType = ""
	d = h.Decide(context.Background(), req)
	assert.Contains(t, d.Queue, "|nil|")
}

func TestDecideBodyIsLazy(t *testing.T) {
	dir := writeSandbox(t, map[string]string{"mod.lua": `
return {
  queue_names = { "q" },
  handler = function(req)
    if req.headers["x-read-body"] then
      return #req.body > 0 and "q" or nil
    end
    return "q"
  end,
}`})

	h, err := NewHost(dir, nil, discardLogger())
	require.NoError(t, err)
	defer h.Close()

	binary := string([]byte{0xff, 0xfe, 0x00, 0x81})

	d := h.Decide(context.Background(), newRequest(binary))
	assert.Equal(t, core.Accept("q"), d)

	req := newRequest(binary)
	req.Headers.Set("X-Read-Body", "1")
	d = h.Decide(context.Background(), req)
	assert.Equal(t, core.VerdictError, d.Verdict)
	assert.ErrorIs(t, d.Err, core.ErrBodyNotUTF8)

	req = newRequest("plain text")
	req.Headers.Set("X-Read-Body", "1")
	assert.Equal(t, core.Accept("q"), h.Decide(context.Background(), req))
}

func TestDecideRequestIsReadOnly(t *testing.T) {
	dir := writeSandbox(t, map[string]string{"mod.lua": `
return {
  queue_names = { "q" },
  handler = function(req)
    req.url = "/elsewhere"
    return "q"
  end,
}`})

	h, err := NewHost(dir, nil, discardLogger())
	require.NoError(t, err)
	defer h.Close()

	d := h.Decide(context.Background(), newRequest(""))
	assert.Equal(t, core.VerdictError, d.Verdict)
}

func TestDecideRequestExpiresAfterCall(t *testing.T) {
	dir := writeSandbox(t, map[string]string{"mod.lua": `
local last
return {
  queue_names = { "q" },
  handler = function(req)
    if last then
      local _ = last.url
    end
    last = req
    return "q"
  end,
}`})

	h, err := NewHost(dir, nil, discardLogger())
	require.NoError(t, err)
	defer h.Close()

	assert.Equal(t, core.Accept("q"), h.Decide(context.Background(), newRequest("")))
	d := h.Decide(context.Background(), newRequest(""))
	assert.Equal(t, core.VerdictError, d.Verdict)
}
