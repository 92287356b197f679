package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Record(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveFetch("url", nil, 10*time.Millisecond)
	m.ObserveFetch("url", errors.New("boom"), time.Millisecond)
	m.ObserveFetch("file", nil, time.Millisecond)
	m.ObserveResolution("ok", time.Second)
	m.AddEntries(3)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.FetchesTotal.WithLabelValues("url", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FetchesTotal.WithLabelValues("url", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FetchesTotal.WithLabelValues("file", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ResolutionsTotal.WithLabelValues("ok")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.EntriesTotal))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveFetch("url", nil, time.Millisecond)
		m.ObserveResolution("error", time.Millisecond)
		m.AddEntries(1)
	})
}
