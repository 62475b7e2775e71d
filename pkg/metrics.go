package pkg

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Metrics collects one run's gauges for a Prometheus Pushgateway.
type Metrics struct {
	gatewayURL string
	job        string
	reg        *prometheus.Registry

	phaseDuration *prometheus.GaugeVec
	rows          *prometheus.GaugeVec
	outcome       *prometheus.GaugeVec
	lastSuccess   prometheus.Gauge
}

// NewMetrics builds the registry. An empty gatewayURL disables Push.
func NewMetrics(job, gatewayURL string) *Metrics {
	if job == "" {
		job = "covid_etl"
	}
	m := &Metrics{
		gatewayURL: gatewayURL,
		job:        job,
		reg:        prometheus.NewRegistry(),
		phaseDuration: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "covid_etl_phase_duration_seconds",
				Help: "Duration of the last run's phases in seconds.",
			},
			[]string{"phase"},
		),
		rows: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "covid_etl_rows",
				Help: "Records fetched and rows loaded by the last run.",
			},
			[]string{"kind"},
		),
		outcome: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "covid_etl_last_run_outcome",
				Help: "1 for the outcome of the last run, 0 for the others.",
			},
			[]string{"outcome"},
		),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "covid_etl_last_success_timestamp_seconds",
			Help: "Unix time of the last run that completed without error.",
		}),
	}
	m.reg.MustRegister(m.phaseDuration, m.rows, m.outcome, m.lastSuccess)
	return m
}

func (m *Metrics) ObservePhase(phase Stage, d time.Duration) {
	m.phaseDuration.WithLabelValues(string(phase)).Set(d.Seconds())
}

// Record stores the report's counts and outcome.
func (m *Metrics) Record(report *Report) {
	m.rows.WithLabelValues("fetched").Set(float64(report.Fetched))
	m.rows.WithLabelValues("loaded").Set(float64(report.Loaded))
	for _, o := range Outcomes {
		v := 0.0
		if o == report.Outcome {
			v = 1
		}
		m.outcome.WithLabelValues(string(o)).Set(v)
	}
	if report.Err == nil {
		m.lastSuccess.Set(float64(report.Finished.Unix()))
	}
}

func (m *Metrics) Enabled() bool { return m.gatewayURL != "" }

// Push replaces the job's group on the Pushgateway. It is a no-op when no
// gateway is configured.
func (m *Metrics) Push(ctx context.Context) error {
	if !m.Enabled() {
		return nil
	}
	return push.New(m.gatewayURL, m.job).Gatherer(m.reg).PushContext(ctx)
}
