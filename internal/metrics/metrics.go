// Package metrics exposes engine and transport counters to Prometheus.
package metrics

import (
	"context"
	"net/http"

	"github.com/JonathanLopez0327/chat-demo/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "incidentbot"

// Metrics owns a registry and the collectors fed by the engine and transport.
type Metrics struct {
	registry *prometheus.Registry

	NodeVisits *prometheus.CounterVec
	Suspends   *prometheus.CounterVec
	Finishes   *prometheus.CounterVec
	Steps      prometheus.Histogram
	Inbound    *prometheus.CounterVec
	Replies    *prometheus.CounterVec
}

// New creates the collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		NodeVisits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "node_visits_total",
			Help:      "Total number of node executions.",
		}, []string{"node"}),
		Suspends: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "suspends_total",
			Help:      "Runs that stopped to wait for input, by waiting node.",
		}, []string{"node"}),
		Finishes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "conversations_finished_total",
			Help:      "Conversations that reached a terminal, by terminal.",
		}, []string{"terminal"}),
		Steps: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_steps",
			Help:      "Nodes executed per Start or Resume call.",
			Buckets:   []float64{1, 2, 3, 5, 8, 13, 21},
		}),
		Inbound: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "inbound_messages_total",
			Help:      "Inbound messages accepted from a transport, by type.",
		}, []string{"type"}),
		Replies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "replies_total",
			Help:      "Outbound replies, by result.",
		}, []string{"result"}),
	}
	m.registry.MustRegister(m.NodeVisits, m.Suspends, m.Finishes, m.Steps, m.Inbound, m.Replies)
	return m
}

// Registry exposes the registry, for tests and extra collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Hooks returns lifecycle hooks that record engine activity.
// next, when set, is called after recording so hooks can be chained.
func (m *Metrics) Hooks(next domain.LifecycleHooks) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnNodeEnter: func(ctx context.Context, e *domain.NodeEvent) {
			m.NodeVisits.WithLabelValues(e.Node).Inc()
			if next.OnNodeEnter != nil {
				next.OnNodeEnter(ctx, e)
			}
		},
		OnNodeLeave: next.OnNodeLeave,
		OnSuspend: func(ctx context.Context, e *domain.StepEvent) {
			m.Suspends.WithLabelValues(e.Node).Inc()
			m.Steps.Observe(float64(e.Steps))
			if next.OnSuspend != nil {
				next.OnSuspend(ctx, e)
			}
		},
		OnFinish: func(ctx context.Context, e *domain.StepEvent) {
			m.Finishes.WithLabelValues(e.Terminal).Inc()
			m.Steps.Observe(float64(e.Steps))
			if next.OnFinish != nil {
				next.OnFinish(ctx, e)
			}
		},
	}
}

// ObserveInbound counts one accepted inbound message.
func (m *Metrics) ObserveInbound(kind string) {
	m.Inbound.WithLabelValues(kind).Inc()
}

// ObserveReply counts one outbound reply attempt.
func (m *Metrics) ObserveReply(err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.Replies.WithLabelValues(result).Inc()
}
