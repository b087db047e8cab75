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

package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "webhook_relay"

// Registry holds every collector of the service.
var Registry = prometheus.NewRegistry()

var (
	requestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Count of webhook requests by HTTP status code.",
		},
		[]string{"code"},
	)
	decisionLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "decision_duration_seconds",
			Help:      "Routing script run time by verdict, including the wait for a free Lua state.",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"verdict"},
	)
	deliveryCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deliveries_total",
			Help:      "Count of payloads handled by the publisher by result.",
		},
		[]string{"result"},
	)
	deliveryLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "delivery_duration_seconds",
			Help:      "Time from acceptance of a webhook to the broker confirmation.",
			Buckets:   prometheus.DefBuckets,
		},
	)
	publisherUp = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "publisher_up",
			Help:      "1 while the publisher is consuming the delivery channel.",
		},
	)
)

const (
	ResultDelivered = "delivered"
	ResultFailed    = "failed"
	ResultDropped   = "dropped"
)

var registerMetrics sync.Once

// Register all metrics.
func Register() {
	registerMetrics.Do(func() {
		Registry.MustRegister(
			requestCounter,
			decisionLatency,
			deliveryCounter,
			deliveryLatency,
			publisherUp,
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	})
}

// Handler serves the registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{Registry: Registry})
}

func RecordRequest(code int) {
	requestCounter.WithLabelValues(strconv.Itoa(code)).Inc()
}

func RecordDecision(verdict string, d time.Duration) {
	decisionLatency.WithLabelValues(verdict).Observe(d.Seconds())
}

func RecordDelivery(result string) {
	deliveryCounter.WithLabelValues(result).Inc()
}

func RecordDeliveryLatency(d time.Duration) {
	deliveryLatency.Observe(d.Seconds())
}

func SetPublisherUp(up bool) {
	if up {
		publisherUp.Set(1)
		return
	}
	publisherUp.Set(0)
}
