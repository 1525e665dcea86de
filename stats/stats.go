/*
Copyright (c) European XFEL GmbH and the karabo-bridge-go contributors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package stats is the operational metrics surface used by the server's
// driver loops and open to client-side callers: a small counter set
// backed by a dedicated prometheus.Registry, exported over HTTP the way the
// teacher's sptp PrometheusExporter is.
package stats

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"
	log "github.com/sirupsen/logrus"
)

// Stats records counters for both sides of the bridge: the server's
// drivers increment Sent/Dropped/EncodeError and report the queue depth;
// Received/DecodeError are for client-side callers (package client itself
// does not record them).
type Stats interface {
	IncSent()
	IncReceived()
	IncDropped()
	IncEncodeError()
	IncDecodeError()
	SetQueueDepth(n int)
	Snapshot() Snapshot
}

// Snapshot is a point-in-time copy of a Stats implementation's counters.
type Snapshot struct {
	Sent         uint64
	Received     uint64
	Dropped      uint64
	EncodeErrors uint64
	DecodeErrors uint64
	QueueDepth   int
}

// Prometheus is a Stats backed by its own prometheus.Registry.
type Prometheus struct {
	registry *prometheus.Registry

	sent     prometheus.Counter
	received prometheus.Counter
	dropped  prometheus.Counter
	encErrs  prometheus.Counter
	decErrs  prometheus.Counter
	qdepth   prometheus.Gauge
}

// NewPrometheus registers a fresh set of collectors under namespace, e.g.
// "karabo_bridge".
func NewPrometheus(namespace string) *Prometheus {
	reg := prometheus.NewRegistry()
	p := &Prometheus{
		registry: reg,
		sent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "trains_sent_total", Help: "Trains successfully transmitted.",
		}),
		received: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "trains_received_total", Help: "Trains successfully decoded by a client.",
		}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "trains_dropped_total", Help: "Trains acknowledged but not emitted (partitioning mismatch).",
		}),
		encErrs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "encode_errors_total", Help: "Trains that failed to serialize or send.",
		}),
		decErrs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "decode_errors_total", Help: "Replies that failed to decode into a train.",
		}),
		qdepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "feed_queue_depth", Help: "Current feed queue occupancy.",
		}),
	}
	reg.MustRegister(p.sent, p.received, p.dropped, p.encErrs, p.decErrs, p.qdepth)
	return p
}

func (p *Prometheus) IncSent()            { p.sent.Inc() }
func (p *Prometheus) IncReceived()        { p.received.Inc() }
func (p *Prometheus) IncDropped()         { p.dropped.Inc() }
func (p *Prometheus) IncEncodeError()     { p.encErrs.Inc() }
func (p *Prometheus) IncDecodeError()     { p.decErrs.Inc() }
func (p *Prometheus) SetQueueDepth(n int) { p.qdepth.Set(float64(n)) }

func (p *Prometheus) Snapshot() Snapshot {
	return Snapshot{
		Sent:         counterValue(p.sent),
		Received:     counterValue(p.received),
		Dropped:      counterValue(p.dropped),
		EncodeErrors: counterValue(p.encErrs),
		DecodeErrors: counterValue(p.decErrs),
		QueueDepth:   int(gaugeValue(p.qdepth)),
	}
}

func counterValue(c prometheus.Counter) uint64 {
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		return 0
	}
	return uint64(m.GetCounter().GetValue())
}

func gaugeValue(g prometheus.Gauge) float64 {
	var m dto.Metric
	if err := g.Write(&m); err != nil {
		return 0
	}
	return m.GetGauge().GetValue()
}

// ServeHTTP registers the /metrics endpoint on mux.
func (p *Prometheus) ServeHTTP(mux *http.ServeMux) {
	mux.Handle("/metrics", promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{EnableOpenMetrics: true}))
}

// ListenAndServe blocks serving /metrics on port, for cmd/kb-simulate and
// similar standalone collaborators.
func (p *Prometheus) ListenAndServe(port int) error {
	mux := http.NewServeMux()
	p.ServeHTTP(mux)
	log.WithField("port", port).Info("karabo bridge: serving metrics")
	return http.ListenAndServe(fmt.Sprintf(":%d", port), mux)
}
