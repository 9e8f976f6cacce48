package metrics

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCronJobMetricsObserveRun(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCronJobMetrics(reg)
	end := time.Unix(1_772_000_000, 0)

	m.ObserveRun("reservation_sweep", 120*time.Millisecond, end, nil)
	m.ObserveRun("reservation_sweep", 80*time.Millisecond, end, errors.New("db down"))
	m.ObserveRun("", time.Millisecond, end, nil)

	expected := `
# HELP kitstock_cron_job_runs_total Cron job executions by outcome.
# TYPE kitstock_cron_job_runs_total counter
kitstock_cron_job_runs_total{job="reservation_sweep",outcome="failure"} 1
kitstock_cron_job_runs_total{job="reservation_sweep",outcome="success"} 1
kitstock_cron_job_runs_total{job="unknown",outcome="success"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "kitstock_cron_job_runs_total"))

	mfs, err := reg.Gather()
	require.NoError(t, err)
	gauge := findMetric(t, mfs, "kitstock_cron_job_last_success_timestamp_seconds", "reservation_sweep")
	assert.Equal(t, float64(end.Unix()), gauge.GetGauge().GetValue())
	hist := findMetric(t, mfs, "kitstock_cron_job_duration_seconds", "reservation_sweep")
	assert.Equal(t, uint64(2), hist.GetHistogram().GetSampleCount())
}

func TestCronJobMetricsNilSafe(t *testing.T) {
	var m *CronJobMetrics
	m.ObserveRun("x", time.Second, time.Now(), nil)
	m.IncSkipped()
	NewCronJobMetrics(nil).IncSkipped()
}

func findMetric(t *testing.T, mfs []*dto.MetricFamily, name, job string) *dto.Metric {
	t.Helper()
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
		for _, metric := range mf.GetMetric() {
			for _, label := range metric.GetLabel() {
				if label.GetName() == "job" && label.GetValue() == job {
					return metric
				}
			}
		}
	}
	t.Fatalf("metric %s{job=%q} not found", name, job)
	return nil
}
