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
	"fmt"
	"math"
	"strconv"
	"strings"

	lua "github.com/yuin/gopher-lua"
)

// print replaces the Lua builtin and routes output through the host logger.
func (h *Host) print(L *lua.LState) int {
	top := L.GetTop()
	parts := make([]string, 0, top)
	for i := 1; i <= top; i++ {
		parts = append(parts, Describe(L.Get(i)))
	}
	h.logger.Info(strings.Join(parts, " "))
	return 0
}

// Describe renders any Lua value on a single line.
func Describe(v lua.LValue) string {
	switch v := v.(type) {
	case lua.LBool:
		return strconv.FormatBool(bool(v))
	case lua.LNumber:
		return formatNumber(float64(v))
	case lua.LString:
		return strings.ToValidUTF8(string(v), "�")
	case *lua.LTable:
		return fmt.Sprintf("(table: %p)", v)
	case *lua.LFunction:
		if v.IsG || v.Proto == nil {
			return "(function: builtin)"
		}
		return fmt.Sprintf("(function: %s:%d)", v.Proto.SourceName, v.Proto.LineDefined)
	case *lua.LUserData:
		return "(UserData)"
	case *lua.LState:
		return "(Thread)"
	case lua.LChannel:
		return "(Channel)"
	}
	if v == nil || v.Type() == lua.LTNil {
		return "nil"
	}
	return "(" + v.Type().String() + ")"
}

func formatNumber(f float64) string {
	if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}
