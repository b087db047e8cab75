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
	"sync"
	"time"

	"github.com/wso2/api-platform/gateway/gateway-runtime/webhook-relay/internal/routing"
	"github.com/wso2/api-platform/gateway/gateway-runtime/webhook-relay/pkg/core"
)

type Options struct {
	SandboxDir string
	Config     map[string]string
	// Size is the number of independent Lua states. Values below 1 mean 1.
	Size int
	// Timeout bounds a single handler run. Zero disables it.
	Timeout time.Duration
}

type job struct {
	ctx   context.Context
	req   *core.Request
	reply chan core.Decision
}

type initResult struct {
	manifest *routing.Manifest
	err      error
}

// Pool serves routing decisions from a fixed set of Lua states. Every state
// lives on its own goroutine and is reached only through the jobs channel,
// so a state never runs two handlers at once.
type Pool struct {
	jobs      chan job
	quit      chan struct{}
	manifest  *routing.Manifest
	timeout   time.Duration
	logger    *slog.Logger
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewPool starts opts.Size workers and waits until each has loaded the
// routing module. All workers must export the same manifest.
func NewPool(opts Options, logger *slog.Logger) (*Pool, error) {
	size := opts.Size
	if size < 1 {
		size = 1
	}

	p := &Pool{
		jobs:    make(chan job),
		quit:    make(chan struct{}),
		timeout: opts.Timeout,
		logger:  logger,
	}

	for i := 0; i < size; i++ {
		ready := make(chan initResult, 1)
		p.wg.Add(1)
		go p.worker(i, opts, ready)

		res := <-ready
		if res.err != nil {
			p.Close()
			return nil, res.err
		}
		if p.manifest == nil {
			p.manifest = res.manifest
			continue
		}
		if !p.manifest.Equal(res.manifest) {
			p.Close()
			return nil, fmt.Errorf("%w: worker %d exported queue_names %v, worker 0 exported %v",
				core.ErrScriptLoad, i, res.manifest.Names(), p.manifest.Names())
		}
	}

	logger.Info("routing script loaded",
		"sandbox", opts.SandboxDir,
		"workers", size,
		"queues", p.manifest.Names(),
	)
	return p, nil
}

func (p *Pool) worker(id int, opts Options, ready chan<- initResult) {
	defer p.wg.Done()

	host, err := NewHost(opts.SandboxDir, opts.Config, p.logger.With("component", "lua", "worker", id))
	if err != nil {
		ready <- initResult{err: err}
		return
	}
	defer host.Close()
	ready <- initResult{manifest: host.Manifest()}

	for {
		select {
		case <-p.quit:
			return
		case j := <-p.jobs:
			j.reply <- p.run(host, j)
		}
	}
}

func (p *Pool) run(host *Host, j job) core.Decision {
	ctx := j.ctx
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}
	if err := ctx.Err(); err != nil {
		return core.Fault(fmt.Errorf("%w: %v", core.ErrScriptFault, err))
	}
	return host.Decide(ctx, j.req)
}

// Manifest returns the queue names exported by the routing module.
func (p *Pool) Manifest() *routing.Manifest { return p.manifest }

// Decide hands req to the next free worker and waits for its decision.
func (p *Pool) Decide(ctx context.Context, req *core.Request) core.Decision {
	reply := make(chan core.Decision, 1)
	select {
	case p.jobs <- job{ctx: ctx, req: req, reply: reply}:
	case <-ctx.Done():
		return core.Fault(fmt.Errorf("%w: %v", core.ErrScriptFault, ctx.Err()))
	case <-p.quit:
		return core.Fault(fmt.Errorf("%w: scripting pool closed", core.ErrScriptFault))
	}
	return <-reply
}

// Close stops the workers after their current decision and releases the
// Lua states.
func (p *Pool) Close() {
	p.closeOnce.Do(func() {
		close(p.quit)
	})
	p.wg.Wait()
}
