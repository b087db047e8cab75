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
	"net/http"
	"time"
)

// MaxBodySize is the ceiling for a webhook body: 128 MiB.
const MaxBodySize int64 = 1 << 27

// DefaultMimeType marks a body whose type the sender did not declare.
const DefaultMimeType = "application/octet-stream"

// Request is the normalized, immutable snapshot of one inbound webhook.
type Request struct {
	ID       string
	Method   string
	URL      string
	Origin   string
	Headers  http.Header
	MimeType string // empty when unset
	Body     []byte
	Received time.Time
}

// HasMimeType reports whether a MIME type was declared or defaulted.
func (r *Request) HasMimeType() bool {
	return r.MimeType != ""
}

// Payload is the minimal data the publisher needs to deliver one message.
type Payload struct {
	RequestID string
	Queue     string
	MimeType  string
	Body      []byte
	Accepted  time.Time
}

type Verdict int

const (
	VerdictAccept Verdict = iota
	VerdictReject
	VerdictError
)

func (v Verdict) String() string {
	switch v {
	case VerdictAccept:
		return "accept"
	case VerdictReject:
		return "reject"
	default:
		return "error"
	}
}

// Decision is the outcome of one routing script invocation.
type Decision struct {
	Verdict Verdict
	Queue   string
	Err     error
}

func Accept(queue string) Decision { return Decision{Verdict: VerdictAccept, Queue: queue} }
func Reject() Decision             { return Decision{Verdict: VerdictReject} }
func Fault(err error) Decision     { return Decision{Verdict: VerdictError, Err: err} }

// PayloadFor builds the delivery payload for an accepted request.
func PayloadFor(req *Request, queue string) Payload {
	mimeType := req.MimeType
	if mimeType == "" {
		mimeType = DefaultMimeType
	}
	return Payload{
		RequestID: req.ID,
		Queue:     queue,
		MimeType:  mimeType,
		Body:      req.Body,
		Accepted:  time.Now(),
	}
}
