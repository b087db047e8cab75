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
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	lua "github.com/yuin/gopher-lua"

	"github.com/wso2/api-platform/gateway/gateway-runtime/webhook-relay/internal/routing"
	"github.com/wso2/api-platform/gateway/gateway-runtime/webhook-relay/pkg/core"
)

// ModuleName is the routing module every sandbox must provide.
const ModuleName = "mod"

// Host owns a single Lua state. It is not safe for concurrent use; Pool
// confines each Host to one goroutine.
type Host struct {
	L        *lua.LState
	handler  *lua.LFunction
	manifest *routing.Manifest
	logger   *slog.Logger
}

// NewHost prepares a Lua state for sandboxDir, injects config as the
// read-only CONFIG global and loads the routing module.
func NewHost(sandboxDir string, config map[string]string, logger *slog.Logger) (*Host, error) {
	sandbox, err := filepath.Abs(sandboxDir)
	if err != nil {
		return nil, fmt.Errorf("%w: sandbox path %q: %v", core.ErrScriptLoad, sandboxDir, err)
	}
	info, err := os.Stat(sandbox)
	if err != nil {
		return nil, fmt.Errorf("%w: sandbox %q: %v", core.ErrScriptLoad, sandbox, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: sandbox %q is not a directory", core.ErrScriptLoad, sandbox)
	}

	h := &Host{
		L:      lua.NewState(),
		logger: logger,
	}
	if err := h.init(sandbox, config); err != nil {
		h.L.Close()
		return nil, err
	}
	return h, nil
}

func (h *Host) init(sandbox string, config map[string]string) error {
	L := h.L

	pkg, ok := L.GetGlobal("package").(*lua.LTable)
	if !ok {
		return fmt.Errorf("%w: package library unavailable", core.ErrScriptLoad)
	}
	L.SetField(pkg, "path", lua.LString(PackagePath(sandbox, lua.LVAsString(L.GetField(pkg, "path")))))

	L.SetGlobal("CONFIG", readOnlyTable(L, "CONFIG", config))
	L.SetGlobal("print", L.NewFunction(h.print))
	registerRequestType(L)

	if err := L.CallByParam(lua.P{
		Fn:      L.GetGlobal("require"),
		NRet:    1,
		Protect: true,
	}, lua.LString(ModuleName)); err != nil {
		return fmt.Errorf("%w: require(%q): %v", core.ErrScriptLoad, ModuleName, err)
	}
	mod, ok := L.Get(-1).(*lua.LTable)
	L.Pop(1)
	if !ok {
		return fmt.Errorf("%w: module %q must return a table", core.ErrScriptLoad, ModuleName)
	}

	names, err := queueNames(mod.RawGetString("queue_names"))
	if err != nil {
		return err
	}
	h.manifest, err = routing.NewManifest(names)
	if err != nil {
		return err
	}

	handler, ok := mod.RawGetString("handler").(*lua.LFunction)
	if !ok {
		return fmt.Errorf("%w: no 'handler' function in module table", core.ErrScriptLoad)
	}
	h.handler = handler
	return nil
}

func queueNames(v lua.LValue) ([]string, error) {
	tbl, ok := v.(*lua.LTable)
	if !ok {
		return nil, fmt.Errorf("%w: no 'queue_names' table in module table", core.ErrScriptLoad)
	}
	n := tbl.Len()
	names := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		s, ok := tbl.RawGetInt(i).(lua.LString)
		if !ok {
			return nil, fmt.Errorf("%w: queue_names[%d] is a %s, want string",
				core.ErrScriptLoad, i, tbl.RawGetInt(i).Type())
		}
		names = append(names, string(s))
	}
	return names, nil
}

// PackagePath puts the sandbox search entries in front of current so that
// sandbox modules shadow, but do not hide, the default locations.
func PackagePath(sandbox, current string) string {
	entries := []string{
		filepath.Join(sandbox, "?.lua"),
		filepath.Join(sandbox, "?", "init.lua"),
	}
	if current != "" {
		entries = append(entries, current)
	}
	return strings.Join(entries, ";")
}

func (h *Host) Manifest() *routing.Manifest { return h.manifest }

// Decide runs the handler for req. ctx bounds the Lua execution.
func (h *Host) Decide(ctx context.Context, req *core.Request) core.Decision {
	L := h.L
	view := &requestView{req: req}
	ud := L.NewUserData()
	ud.Value = view
	L.SetMetatable(ud, L.GetTypeMetatable(requestTypeName))

	L.SetContext(ctx)
	defer func() {
		L.RemoveContext()
		L.SetTop(0)
		view.release()
	}()

	if err := L.CallByParam(lua.P{Fn: h.handler, NRet: 1, Protect: true}, ud); err != nil {
		if view.bodyErr != nil {
			return core.Fault(fmt.Errorf("%w: %v", view.bodyErr, err))
		}
		return core.Fault(fmt.Errorf("%w: %v", core.ErrScriptFault, err))
	}

	switch ret := L.Get(-1).(type) {
	case lua.LString:
		if ret == "" {
			return core.Fault(fmt.Errorf("%w: handler returned an empty queue name", core.ErrScriptFault))
		}
		return core.Accept(string(ret))
	default:
		if ret.Type() == lua.LTNil {
			return core.Reject()
		}
		return core.Fault(fmt.Errorf("%w: handler returned a %s, want string or nil", core.ErrScriptFault, ret.Type()))
	}
}

func (h *Host) Close() {
	h.L.Close()
}

func readOnlyTable(L *lua.LState, name string, values map[string]string) *lua.LTable {
	data := L.CreateTable(0, len(values))
	for k, v := range values {
		data.RawSetString(k, lua.LString(v))
	}

	mt := L.NewTable()
	mt.RawSetString("__index", data)
	mt.RawSetString("__newindex", L.NewFunction(func(L *lua.LState) int {
		L.RaiseError("%s is read-only", name)
		return 0
	}))
	mt.RawSetString("__metatable", lua.LString("locked"))

	proxy := L.NewTable()
	L.SetMetatable(proxy, mt)
	return proxy
}
