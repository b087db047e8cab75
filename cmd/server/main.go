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

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/spf13/pflag"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/wso2/api-platform/gateway/gateway-runtime/webhook-relay/internal/admission"
	"github.com/wso2/api-platform/gateway/gateway-runtime/webhook-relay/internal/delivery"
	"github.com/wso2/api-platform/gateway/gateway-runtime/webhook-relay/internal/metrics"
	"github.com/wso2/api-platform/gateway/gateway-runtime/webhook-relay/internal/publisher"
	"github.com/wso2/api-platform/gateway/gateway-runtime/webhook-relay/internal/scripting"
	"github.com/wso2/api-platform/gateway/gateway-runtime/webhook-relay/pkg/config"
	"github.com/wso2/api-platform/gateway/gateway-runtime/webhook-relay/pkg/core"
	"github.com/wso2/api-platform/gateway/gateway-runtime/webhook-relay/pkg/plugins"
)

const connectTimeout = 30 * time.Second

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	opts := config.NewOptions()
	opts.AddFlags(pflag.CommandLine)
	pflag.Parse()

	if err := opts.Complete(); err != nil {
		logger.Error("failed to load config", "path", opts.ConfigPath, "error", err)
		os.Exit(1)
	}
	if err := opts.Validate(); err != nil {
		logger.Error("invalid config", "error", err)
		os.Exit(1)
	}
	cfg := opts.Config

	level, err := config.ParseLogLevel(cfg.LogLevel)
	if err != nil {
		logger.Error("invalid log level", "error", err)
		os.Exit(1)
	}
	logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("webhook relay failed", "error", err)
		os.Exit(1)
	}
	logger.Info("bye")
}

func run(cfg *config.Config, logger *slog.Logger) (err error) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scriptConfig, err := config.LoadScriptConfig(cfg.Script.Config)
	if err != nil {
		return err
	}

	pool, err := scripting.NewPool(scripting.Options{
		SandboxDir: cfg.Script.Sandbox,
		Config:     scriptConfig,
		Size:       cfg.Script.PoolSize,
		Timeout:    cfg.Script.Timeout,
	}, logger.With("component", "lua"))
	if err != nil {
		return err
	}
	defer pool.Close()

	broker, err := plugins.Builtin(logger).Build(cfg.Broker.Type, cfg.BrokerName(), cfg.Broker.Config)
	if err != nil {
		return err
	}

	logger.Info("connecting to broker", "name", broker.Name(), "type", broker.Type())
	connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	err = broker.Connect(connectCtx)
	cancel()
	if err != nil {
		return fmt.Errorf("%w: %s: %v", core.ErrBrokerConnect, broker.Name(), err)
	}

	ch := delivery.NewChannel()
	pub := publisher.New(broker, ch, logger.With("component", "publisher"))
	if err := pub.Declare(ctx, pool.Manifest()); err != nil {
		return multierr.Append(err, broker.Disconnect(context.Background()))
	}

	metrics.Register()
	go pub.Run(context.Background())
	go func() {
		<-pub.Done()
		if err := pub.Err(); err != nil {
			logger.Error("publisher stopped, accepted webhooks will get 503", "error", err)
		}
	}()

	svc := admission.NewService(pool, ch, logger.With("component", "admission"),
		admission.WithManifest(pool.Manifest()))
	entrypoints := []*admission.Entrypoint{
		admission.NewEntrypoint("webhook", cfg.Listen,
			svc.Handler(admission.Route{Method: cfg.Route.Method, Path: cfg.Route.Path}), logger),
	}
	if cfg.Metrics.Listen != "" {
		r := chi.NewRouter()
		r.Method(http.MethodGet, "/metrics", metrics.Handler())
		entrypoints = append(entrypoints, admission.NewEntrypoint("metrics", cfg.Metrics.Listen, r, logger))
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, ep := range entrypoints {
		g.Go(func() error { return ep.Start(gctx) })
	}
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down webhook relay")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		var err error
		for _, ep := range entrypoints {
			err = multierr.Append(err, ep.Stop(shutdownCtx))
		}
		return err
	})

	logger.Info("webhook relay started",
		"listen", cfg.Listen,
		"route", cfg.Route.Method+" "+cfg.Route.Path,
		"broker", broker.Name(),
	)
	err = g.Wait()

	ch.CloseSend()
	select {
	case <-pub.Done():
	case <-time.After(cfg.ShutdownTimeout):
		logger.Warn("publisher did not finish in time", "timeout", cfg.ShutdownTimeout)
	}
	return err
}
