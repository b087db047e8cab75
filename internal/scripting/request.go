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
	"strings"
	"unicode/utf8"

	lua "github.com/yuin/gopher-lua"

	"github.com/wso2/api-platform/gateway/gateway-runtime/webhook-relay/pkg/core"
)

const requestTypeName = "webhook.request"

// requestView is the read-only face of a core.Request handed to the handler.
// It is valid only for the duration of one Decide call.
type requestView struct {
	req     *core.Request
	bodyErr error
}

func (v *requestView) release() { v.req = nil }

func registerRequestType(L *lua.LState) {
	mt := L.NewTypeMetatable(requestTypeName)
	L.SetField(mt, "__index", L.NewFunction(requestIndex))
	L.SetField(mt, "__newindex", L.NewFunction(func(L *lua.LState) int {
		L.RaiseError("request is read-only")
		return 0
	}))
	L.SetField(mt, "__tostring", L.NewFunction(func(L *lua.LState) int {
		L.Push(lua.LString("(request)"))
		return 1
	}))
	L.SetField(mt, "__metatable", lua.LString("locked"))
}

func requestIndex(L *lua.LState) int {
	ud := L.CheckUserData(1)
	key := L.CheckString(2)
	view, ok := ud.Value.(*requestView)
	if !ok || view.req == nil {
		L.RaiseError("request is no longer available")
		return 0
	}
	req := view.req

	switch key {
	case "request_id":
		L.Push(lua.LString(req.ID))
	case "url":
		L.Push(lua.LString(req.URL))
	case "method":
		L.Push(lua.LString(req.Method))
	case "origin":
		L.Push(lua.LString(req.Origin))
	case "mimetype":
		if req.HasMimeType() {
			L.Push(lua.LString(req.MimeType))
		} else {
			L.Push(lua.LNil)
		}
	case "headers":
		headers := L.CreateTable(0, len(req.Headers))
		for name, values := range req.Headers {
			headers.RawSetString(strings.ToLower(name), lua.LString(strings.Join(values, ", ")))
		}
		L.Push(headers)
	case "body":
		if !utf8.Valid(req.Body) {
			view.bodyErr = core.ErrBodyNotUTF8
			L.RaiseError("%s", core.ErrBodyNotUTF8)
			return 0
		}
		L.Push(lua.LString(req.Body))
	default:
		L.Push(lua.LNil)
	}
	return 1
}
