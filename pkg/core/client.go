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

package core

import (
	"net"
	"net/http"

	"github.com/google/uuid"
)

// NewRequestID returns a random identifier for an inbound request.
func NewRequestID() string {
	return uuid.New().String()
}

// Origin renders the peer address of r as host:port.
func Origin(r *http.Request) string {
	remoteAddr := r.RemoteAddr
	if remoteAddr == "" {
		return "unknown"
	}

	host, port, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}

	if ip := net.ParseIP(host); ip != nil {
		host = ip.String()
	}
	return net.JoinHostPort(host, port)
}
