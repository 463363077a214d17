// Package telemetry exports benchmark results as Prometheus metrics in the
// node_exporter textfile format, so scheduled runs can be scraped and
// graphed.
package telemetry

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"triagebench/internal/bench"
	"triagebench/internal/corpus"
)

const namespace = "triagebench"

// Metrics holds the collectors for one benchmark process.
type Metrics struct {
	Registry *prometheus.Registry

	Issues    *prometheus.GaugeVec
	Score     *prometheus.GaugeVec
	ScoreSD   *prometheus.GaugeVec
	JobTime   *prometheus.GaugeVec
	Trials    *prometheus.CounterVec
	LastRun   prometheus.Gauge
	JobsTotal prometheus.Counter
}

// NewMetrics registers every collector on a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		Issues: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "issues",
			Help:      "Issues in the corpus by kind (total, assigned).",
		}, []string{"dataset", "kind"}),
		Score: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "score",
			Help:      "Mean ranking score over trials.",
		}, []string{"dataset", "job", "metric"}),
		ScoreSD: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "score_stddev",
			Help:      "Sample standard deviation of the ranking score over trials.",
		}, []string{"dataset", "job", "metric"}),
		JobTime: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      "Wall time spent on all trials of a job.",
		}, []string{"dataset", "job"}),
		Trials: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trials_total",
			Help:      "Trials evaluated.",
		}, []string{"dataset", "job"}),
		LastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last benchmark run finished.",
		}),
		JobsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_completed_total",
			Help:      "Jobs completed.",
		}),
	}
	m.Registry.MustRegister(m.Issues, m.Score, m.ScoreSD, m.JobTime, m.Trials, m.LastRun, m.JobsTotal)
	return m
}

// Textfile is a bench.Sink that records results in Metrics and writes them
// to Path when the benchmark ends.
type Textfile struct {
	Path    string
	Metrics *Metrics

	dataset string
}

// NewTextfile returns a sink writing to path with fresh metrics.
func NewTextfile(path string) *Textfile {
	return &Textfile{Path: path, Metrics: NewMetrics()}
}

func (t *Textfile) Begin(ds corpus.Dataset) error {
	t.dataset = ds.Label
	t.Metrics.Issues.WithLabelValues(ds.Label, "total").Set(float64(ds.Total))
	t.Metrics.Issues.WithLabelValues(ds.Label, "assigned").Set(float64(ds.Len()))
	return nil
}

func (t *Textfile) JobDone(res *bench.Result) error {
	m := t.Metrics
	for metric, v := range map[string][2]float64{
		"mrr":  {res.Mean.MRR, res.StdDev.MRR},
		"top1": {res.Mean.Top1, res.StdDev.Top1},
		"top5": {res.Mean.Top5, res.StdDev.Top5},
	} {
		m.Score.WithLabelValues(t.dataset, res.Job, metric).Set(v[0])
		m.ScoreSD.WithLabelValues(t.dataset, res.Job, metric).Set(v[1])
	}
	m.JobTime.WithLabelValues(t.dataset, res.Job).Set(res.Elapsed.Seconds())
	m.Trials.WithLabelValues(t.dataset, res.Job).Add(float64(len(res.Trials)))
	m.JobsTotal.Inc()
	return nil
}

// End writes the textfile atomically. Partial runs are written too.
func (t *Textfile) End(error) error {
	t.Metrics.LastRun.SetToCurrentTime()
	if err := prometheus.WriteToTextfile(t.Path, t.Metrics.Registry); err != nil {
		return fmt.Errorf("write metrics %s: %w", t.Path, err)
	}
	return nil
}
