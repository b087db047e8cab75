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

package admission

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/wso2/api-platform/gateway/gateway-runtime/webhook-relay/internal/metrics"
	"github.com/wso2/api-platform/gateway/gateway-runtime/webhook-relay/internal/routing"
	"github.com/wso2/api-platform/gateway/gateway-runtime/webhook-relay/pkg/core"
)

const (
	HeaderRequestID = "X-Request-Id"

	bodyOK    = "OK"
	bodyFail  = "FAIL"
	bodyError = "ERROR"

	// initial buffer for bodies of unknown or large declared size
	maxPrealloc = 1 << 20
)

// Route is the single method and path webhooks are accepted on.
type Route struct {
	Method string
	Path   string
}

// Service turns webhook requests into routing decisions and deliveries.
type Service struct {
	decider  core.Decider
	sink     core.Sink
	manifest *routing.Manifest
	logger   *slog.Logger
	maxBody  int64
}

type Option func(*Service)

// WithMaxBodySize overrides core.MaxBodySize.
func WithMaxBodySize(n int64) Option {
	return func(s *Service) { s.maxBody = n }
}

// WithManifest makes the service warn when a script routes to a queue that
// was never declared.
func WithManifest(m *routing.Manifest) Option {
	return func(s *Service) { s.manifest = m }
}

func NewService(decider core.Decider, sink core.Sink, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		decider: decider,
		sink:    sink,
		logger:  logger,
		maxBody: core.MaxBodySize,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler serves route and answers 404 to everything else.
func (s *Service) Handler(route Route) http.Handler {
	method := strings.ToUpper(route.Method)
	chi.RegisterMethod(method)

	r := chi.NewRouter()
	r.MethodFunc(method, route.Path, s.ServeWebhook)
	r.NotFound(s.notFound)
	r.MethodNotAllowed(s.notFound)
	return r
}

func (s *Service) ServeWebhook(w http.ResponseWriter, r *http.Request) {
	id := core.NewRequestID()
	w.Header().Set(HeaderRequestID, id)

	req, err := s.newRequest(w, r, id)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, core.ErrBodyTooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		s.logger.Warn("webhook rejected before routing", "request_id", id, "status", status, "error", err)
		s.reply(w, status, bodyFail)
		return
	}

	s.logger.Debug("webhook received",
		"request_id", req.ID,
		"method", req.Method,
		"url", req.URL,
		"mime_type", req.MimeType,
		"origin", req.Origin,
		"payload_size", len(req.Body),
	)

	start := time.Now()
	decision := s.decider.Decide(r.Context(), req)
	metrics.RecordDecision(decision.Verdict.String(), time.Since(start))

	switch decision.Verdict {
	case core.VerdictAccept:
		if s.manifest != nil && !s.manifest.Contains(decision.Queue) {
			s.logger.Warn("routing to a queue missing from queue_names", "request_id", req.ID, "queue", decision.Queue)
		}
		s.logger.Debug("routing webhook message", "request_id", req.ID, "queue", decision.Queue)
		if err := s.sink.Send(r.Context(), core.PayloadFor(req, decision.Queue)); err != nil {
			s.logger.Error("delivery channel closed", "request_id", req.ID, "queue", decision.Queue, "error", err)
			s.reply(w, http.StatusServiceUnavailable, bodyFail)
			return
		}
		s.reply(w, http.StatusOK, bodyOK)
	case core.VerdictReject:
		s.reply(w, http.StatusBadRequest, bodyFail)
	default:
		s.logger.Error("routing script failed", "request_id", req.ID, "error", decision.Err)
		s.reply(w, http.StatusInternalServerError, bodyError)
	}
}

func (s *Service) newRequest(w http.ResponseWriter, r *http.Request, id string) (*core.Request, error) {
	method := strings.ToUpper(r.Method)
	headers := r.Header.Clone()

	mimeType, err := MimeType(method, headers)
	if err != nil {
		return nil, err
	}

	body, err := s.readBody(w, r)
	if err != nil {
		return nil, err
	}

	return &core.Request{
		ID:       id,
		Method:   method,
		URL:      r.URL.Path,
		Origin:   core.Origin(r),
		Headers:  headers,
		MimeType: mimeType,
		Body:     body,
		Received: time.Now(),
	}, nil
}

// MimeType returns the normalized Content-Type, the octet-stream default for
// methods that carry a body, or "" for GET and HEAD without one.
func MimeType(method string, headers http.Header) (string, error) {
	if len(headers.Values("Content-Type")) == 0 {
		if method == http.MethodGet || method == http.MethodHead {
			return "", nil
		}
		return core.DefaultMimeType, nil
	}

	raw := headers.Get("Content-Type")
	mediaType, params, err := mime.ParseMediaType(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %q: %v", core.ErrMimeParse, raw, err)
	}
	if formatted := mime.FormatMediaType(mediaType, params); formatted != "" {
		return formatted, nil
	}
	return mediaType, nil
}

func (s *Service) readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	if r.ContentLength > s.maxBody {
		return nil, fmt.Errorf("%w: declared %d bytes, limit %d", core.ErrBodyTooLarge, r.ContentLength, s.maxBody)
	}

	hint := r.ContentLength
	if hint < 0 || hint > maxPrealloc {
		hint = 0
	}
	buf := bytes.NewBuffer(make([]byte, 0, hint))

	body := http.MaxBytesReader(w, r.Body, s.maxBody)
	defer body.Close()

	if _, err := io.Copy(buf, body); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, fmt.Errorf("%w: limit %d", core.ErrBodyTooLarge, maxErr.Limit)
		}
		return nil, fmt.Errorf("read body: %w", err)
	}
	return buf.Bytes(), nil
}

func (s *Service) reply(w http.ResponseWriter, status int, token string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, token)
	metrics.RecordRequest(status)
}

func (s *Service) notFound(w http.ResponseWriter, r *http.Request) {
	w.Header().Set(HeaderRequestID, core.NewRequestID())
	w.WriteHeader(http.StatusNotFound)
	metrics.RecordRequest(http.StatusNotFound)
}
