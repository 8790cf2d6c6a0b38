package metrics

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/JonathanLopez0327/chat-demo/pkg/domain"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHooks(t *testing.T) {
	m := New()
	var finished []string
	hooks := m.Hooks(domain.LifecycleHooks{
		OnFinish: func(_ context.Context, e *domain.StepEvent) {
			finished = append(finished, e.Terminal)
		},
	})
	ctx := context.Background()

	hooks.OnNodeEnter(ctx, &domain.NodeEvent{Node: "greeting"})
	hooks.OnNodeEnter(ctx, &domain.NodeEvent{Node: "classify"})
	hooks.OnNodeEnter(ctx, &domain.NodeEvent{Node: "classify"})
	hooks.OnSuspend(ctx, &domain.StepEvent{Node: "collect_description", Steps: 2})
	hooks.OnFinish(ctx, &domain.StepEvent{Terminal: "saved", Steps: 3})
	assert.Nil(t, hooks.OnNodeLeave)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.NodeVisits.WithLabelValues("greeting")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.NodeVisits.WithLabelValues("classify")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Suspends.WithLabelValues("collect_description")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Finishes.WithLabelValues("saved")))
	assert.Equal(t, uint64(2), stepSamples(t, m))
	assert.Equal(t, []string{"saved"}, finished)
}

func stepSamples(t *testing.T, m *Metrics) uint64 {
	t.Helper()
	families, err := m.Registry().Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() == "incidentbot_run_steps" {
			return mf.GetMetric()[0].GetHistogram().GetSampleCount()
		}
	}
	t.Fatal("run_steps not registered")
	return 0
}

func TestTransportCounters(t *testing.T) {
	m := New()
	m.ObserveInbound("text")
	m.ObserveInbound("audio")
	m.ObserveInbound("text")
	m.ObserveReply(nil)
	m.ObserveReply(errors.New("send failed"))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Inbound.WithLabelValues("text")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Replies.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Replies.WithLabelValues("error")))
}

func TestHandler(t *testing.T) {
	m := New()
	m.ObserveInbound("text")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `incidentbot_inbound_messages_total{type="text"} 1`))
}
