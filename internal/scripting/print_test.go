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
	"log/slog"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	lua "github.com/yuin/gopher-lua"
)

func TestDescribe(t *testing.T) {
	L := lua.NewState()
	defer L.Close()

	require.NoError(t, L.DoString(`function named() end`))

	tests := []struct {
		name  string
		value lua.LValue
		want  string
	}{
		{"nil", lua.LNil, "nil"},
		{"true", lua.LTrue, "true"},
		{"false", lua.LFalse, "false"},
		{"integer", lua.LNumber(42), "42"},
		{"negative integer", lua.LNumber(-7), "-7"},
		{"float", lua.LNumber(1.5), "1.5"},
		{"string", lua.LString("hello world"), "hello world"},
		{"invalid utf8", lua.LString("a\xffb"), "a�b"},
		{"userdata", L.NewUserData(), "(UserData)"},
		{"thread", func() lua.LValue { co, _ := L.NewThread(); return co }(), "(Thread)"},
		{"channel", lua.LChannel(make(chan lua.LValue)), "(Channel)"},
		{"builtin function", L.GetGlobal("tostring"), "(function: builtin)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Describe(tt.value))
		})
	}

	assert.Regexp(t, regexp.MustCompile(`^\(table: 0x[0-9a-f]+\)$`), Describe(L.NewTable()))
	assert.Regexp(t, regexp.MustCompile(`^\(function: .+:1\)$`), Describe(L.GetGlobal("named")))
}

func TestPrintRoutesThroughLogger(t *testing.T) {
	dir := writeSandbox(t, map[string]string{"mod.lua": `
print("loading", 3, 2.5, nil, true)
return {
  queue_names = { "q" },
  handler = function(req)
    print("routing", req.request_id)
    return "q"
  end,
}`})

	rec := newMessageRecorder()
	h, err := NewHost(dir, nil, slog.New(rec))
	require.NoError(t, err)
	defer h.Close()

	req := newRequest("")
	h.Decide(context.Background(), req)

	assert.Equal(t, []string{
		"loading 3 2.5 nil true",
		"routing " + req.ID,
	}, rec.withPrefix("loading", "routing"))
}
