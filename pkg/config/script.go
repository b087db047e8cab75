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

package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/tailscale/hujson"
	"github.com/wso2/api-platform/gateway/gateway-runtime/webhook-relay/pkg/core"
)

// LoadScriptConfig reads the flat string map handed to the routing script.
// The file is JSON that may carry comments and trailing commas.
func LoadScriptConfig(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read script config: %v", core.ErrConfig, err)
	}
	return ParseScriptConfig(data)
}

func ParseScriptConfig(data []byte) (map[string]string, error) {
	std, err := hujson.Standardize(data)
	if err != nil {
		return nil, fmt.Errorf("%w: script config: %v", core.ErrConfig, err)
	}
	std = bytes.TrimSpace(std)
	if len(std) == 0 || bytes.Equal(std, []byte("null")) {
		return nil, fmt.Errorf("%w: script config: no value", core.ErrConfig)
	}

	var kv map[string]string
	if err := json.Unmarshal(std, &kv); err != nil {
		return nil, fmt.Errorf("%w: script config: %v", core.ErrConfig, err)
	}
	return kv, nil
}
