package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const MetricsPrefix = "dpsim_api_"

// OutcomeAccepted labels submissions that made it through every stage.
// Failed submissions are labelled with the stage they failed in.
const OutcomeAccepted = "accepted"

var submissionsCounter = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: MetricsPrefix + "submissions_total",
		Help: "Number of simulation submissions grouped by outcome",
	},
	[]string{"outcome"},
)

var submissionDurationHist = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    MetricsPrefix + "submission_duration_seconds",
		Help:    "Time taken to process a submission, from receipt to publish or failure",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	},
	[]string{"outcome"},
)

var publishCounter = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: MetricsPrefix + "jobs_published_total",
		Help: "Number of job descriptors handed to the execution layer grouped by result",
	},
	[]string{"result"},
)

var profileFilesHist = promauto.NewHistogram(
	prometheus.HistogramOpts{
		Name:    MetricsPrefix + "profile_files",
		Help:    "Number of profile files ingested per submission",
		Buckets: prometheus.ExponentialBuckets(1, 2, 10),
	},
)

var allocatedIdsGauge = promauto.NewGauge(
	prometheus.GaugeOpts{
		Name: MetricsPrefix + "simulation_ids_allocated",
		Help: "Value of the simulation id counter, i.e., the number of ids handed out so far",
	},
)

type Metrics struct{}

var m = &Metrics{}

func Get() *Metrics {
	return m
}

func (m *Metrics) RecordSubmission(outcome string, duration time.Duration) {
	submissionsCounter.WithLabelValues(outcome).Inc()
	submissionDurationHist.WithLabelValues(outcome).Observe(duration.Seconds())
}

func (m *Metrics) RecordPublish(err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	publishCounter.WithLabelValues(result).Inc()
}

func (m *Metrics) RecordProfileFiles(n int) {
	profileFilesHist.Observe(float64(n))
}

func (m *Metrics) RecordAllocatedIds(n uint64) {
	allocatedIdsGauge.Set(float64(n))
}
