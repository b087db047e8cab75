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
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"
)

// Entrypoint owns the HTTP listener for a handler.
type Entrypoint struct {
	name   string
	addr   string
	server *http.Server
	logger *slog.Logger
	ready  chan struct{}
	bound  net.Addr
}

func NewEntrypoint(name, addr string, handler http.Handler, logger *slog.Logger) *Entrypoint {
	return &Entrypoint{
		name: name,
		addr: addr,
		server: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 30 * time.Second,
		},
		logger: logger,
		ready:  make(chan struct{}),
	}
}

func (e *Entrypoint) Name() string { return e.name }

// Start listens and serves until Stop is called.
func (e *Entrypoint) Start(ctx context.Context) error {
	ln, err := (&net.ListenConfig{}).Listen(ctx, "tcp", e.addr)
	if err != nil {
		return err
	}
	e.bound = ln.Addr()
	close(e.ready)

	e.logger.Info("http listener starting", "name", e.name, "addr", e.bound.String())
	if err := e.server.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Ready is closed once the listener is bound.
func (e *Entrypoint) Ready() <-chan struct{} { return e.ready }

// Addr is the bound address. Only valid after Ready is closed.
func (e *Entrypoint) Addr() net.Addr { return e.bound }

// Stop stops accepting connections and waits for in-flight responses until
// ctx ends.
func (e *Entrypoint) Stop(ctx context.Context) error {
	e.logger.Info("http listener stopping", "name", e.name)
	return e.server.Shutdown(ctx)
}
