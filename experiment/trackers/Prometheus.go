package trackers

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/samuelfneumann/gosac/experiment/tracker"
)

// Prometheus exports the most recent row of the log stream as
// Prometheus gauges. Each statistic is exported as one labelled series
// of the gauge <namespace>_stat and the number of environment steps as
// the gauge <namespace>_time_steps.
type Prometheus struct {
	timeSteps prometheus.Gauge
	stats     *prometheus.GaugeVec
}

// NewPrometheus returns a new Prometheus tracker whose gauges are
// registered with reg
func NewPrometheus(reg prometheus.Registerer,
	namespace string) (*Prometheus, error) {
	p := &Prometheus{
		timeSteps: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "time_steps",
			Help:      "Number of environment steps taken by the agent.",
		}),
		stats: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stat",
			Help:      "Most recent value of a training statistic.",
		}, []string{"name"}),
	}

	for _, c := range []prometheus.Collector{p.timeSteps, p.stats} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("newPrometheus: %w", err)
		}
	}
	return p, nil
}

// Header resets the exported statistics
func (p *Prometheus) Header([]string) error {
	p.stats.Reset()
	p.timeSteps.Set(0)
	return nil
}

// Track sets the gauges to the values in row
func (p *Prometheus) Track(row tracker.Row) error {
	p.timeSteps.Set(float64(row.TimeSteps))
	for i, name := range row.Names {
		p.stats.WithLabelValues(name).Set(row.Values[i])
	}
	return nil
}
