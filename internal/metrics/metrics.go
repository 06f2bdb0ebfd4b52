// Package metrics exposes Prometheus counters for the ledger and the vision
// classifier. A nil *Collector is valid and records nothing.
package metrics

import (
	"errors"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	labelRecyclable = "recyclable"
	labelKind       = "kind"
	labelOutcome    = "outcome"
	labelProvider   = "provider"
)

// Classifier call outcomes
const (
	OutcomeSuccess     = "success"
	OutcomeError       = "error"
	OutcomeUnavailable = "unavailable"
)

type Collector struct {
	scansRecorded    *prometheus.CounterVec
	pointsAwarded    prometheus.Counter
	ledgerFailures   *prometheus.CounterVec
	classifierCalls  *prometheus.CounterVec
	classifyDuration *prometheus.HistogramVec
}

func NewCollector(prom prometheus.Registerer) (*Collector, error) {
	scansRecorded := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rescan_scans_recorded_total",
		Help: "Scans committed to the ledger.",
	}, []string{labelRecyclable})

	pointsAwarded := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rescan_points_awarded_total",
		Help: "Points credited to addresses.",
	})

	ledgerFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rescan_ledger_failures_total",
		Help: "RecordScan calls that did not commit, by error kind.",
	}, []string{labelKind})

	classifierCalls := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rescan_classifier_calls_total",
		Help: "Material identification calls by provider and outcome.",
	}, []string{labelProvider, labelOutcome})

	classifyDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "rescan_classifier_duration_seconds",
		Help:    "Latency of material identification calls.",
		Buckets: prometheus.DefBuckets,
	}, []string{labelProvider})

	var err error
	if scansRecorded, err = registerCollector(prom, scansRecorded); err != nil {
		return nil, err
	}
	if pointsAwarded, err = registerCollector(prom, pointsAwarded); err != nil {
		return nil, err
	}
	if ledgerFailures, err = registerCollector(prom, ledgerFailures); err != nil {
		return nil, err
	}
	if classifierCalls, err = registerCollector(prom, classifierCalls); err != nil {
		return nil, err
	}
	if classifyDuration, err = registerCollector(prom, classifyDuration); err != nil {
		return nil, err
	}

	return &Collector{
		scansRecorded:    scansRecorded,
		pointsAwarded:    pointsAwarded,
		ledgerFailures:   ledgerFailures,
		classifierCalls:  classifierCalls,
		classifyDuration: classifyDuration,
	}, nil
}

// ObserveScan records a committed scan and the points it awarded
func (c *Collector) ObserveScan(recyclable bool, points int64) {
	if c == nil {
		return
	}
	c.scansRecorded.With(prometheus.Labels{labelRecyclable: strconv.FormatBool(recyclable)}).Inc()
	c.pointsAwarded.Add(float64(points))
}

// IncLedgerFailure counts a RecordScan that rolled back
func (c *Collector) IncLedgerFailure(kind string) {
	if c == nil {
		return
	}
	c.ledgerFailures.With(prometheus.Labels{labelKind: kind}).Inc()
}

// ObserveClassify records one classifier call
func (c *Collector) ObserveClassify(provider, outcome string, startTime time.Time) {
	if c == nil {
		return
	}
	c.classifierCalls.With(prometheus.Labels{labelProvider: provider, labelOutcome: outcome}).Inc()
	c.classifyDuration.With(prometheus.Labels{labelProvider: provider}).Observe(time.Since(startTime).Seconds())
}

var (
	ErrWrongMetricType = errors.New("collector already registered with different type")
)

// registerCollector registers a Prometheus collector and returns the registered collector or an error
func registerCollector[T prometheus.Collector](prom prometheus.Registerer, c T) (T, error) {
	err := prom.Register(c)
	if err == nil {
		return c, nil
	}

	var are prometheus.AlreadyRegisteredError
	if !errors.As(err, &are) {
		return c, err
	}

	existing, ok := are.ExistingCollector.(T)
	if !ok {
		return c, ErrWrongMetricType
	}

	return existing, nil
}
