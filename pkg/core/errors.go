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

import "errors"

// Startup errors. All of them abort the process before traffic is served.
var (
	ErrConfig        = errors.New("invalid configuration")
	ErrScriptLoad    = errors.New("routing script load failed")
	ErrBrokerConnect = errors.New("broker connect failed")
	ErrQueueDeclare  = errors.New("queue declare failed")
)

// Per-request errors, mapped to an HTTP status by the admission service.
var (
	ErrBodyTooLarge  = errors.New("body too large")
	ErrMimeParse     = errors.New("invalid content type")
	ErrBodyNotUTF8   = errors.New("body is not utf8")
	ErrScriptFault   = errors.New("routing script fault")
	ErrChannelClosed = errors.New("delivery channel closed")
)

// ErrBrokerPublish ends the publisher for the rest of the process lifetime.
var ErrBrokerPublish = errors.New("broker publish failed")
