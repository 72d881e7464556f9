package report

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"particles/internal/sim"
)

// Metrics exposes generation records as Prometheus metrics on its own
// registry.
type Metrics struct {
	registry    *prometheus.Registry
	generations prometheus.Counter
	goals       prometheus.Counter
	generation  prometheus.Gauge
	successRate prometheus.Gauge
	fitness     *prometheus.GaugeVec
	duration    prometheus.Histogram
	ticks       prometheus.Gauge
}

func NewMetrics(runID string) *Metrics {
	labels := prometheus.Labels{"run_id": runID}
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		generations: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "particles_generations_total",
			Help:        "Finished generations.",
			ConstLabels: labels,
		}),
		goals: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "particles_goal_reached_total",
			Help:        "Agents that reached the goal edge.",
			ConstLabels: labels,
		}),
		generation: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "particles_generation",
			Help:        "Index of the last finished generation.",
			ConstLabels: labels,
		}),
		successRate: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "particles_success_rate",
			Help:        "Share of the last generation that reached the goal.",
			ConstLabels: labels,
		}),
		fitness: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name:        "particles_fitness",
			Help:        "Fitness statistics of the last generation.",
			ConstLabels: labels,
		}, []string{"stat"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:        "particles_generation_duration_seconds",
			Help:        "Simulated duration of each generation.",
			ConstLabels: labels,
			Buckets:     prometheus.ExponentialBuckets(0.25, 2, 10),
		}),
		ticks: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "particles_generation_ticks",
			Help:        "Ticks run by the last generation.",
			ConstLabels: labels,
		}),
	}
	m.registry.MustRegister(m.generations, m.goals, m.generation, m.successRate, m.fitness, m.duration, m.ticks)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Report(_ context.Context, r sim.Record) error {
	m.generations.Inc()
	m.goals.Add(float64(r.GoalReachedCount))
	m.generation.Set(float64(r.Index))
	m.successRate.Set(r.SuccessRate())
	m.fitness.WithLabelValues("best").Set(r.BestFitness)
	m.fitness.WithLabelValues("mean").Set(r.MeanFitness)
	m.fitness.WithLabelValues("stddev").Set(r.StdDevFitness)
	m.duration.Observe(r.Duration.Seconds())
	m.ticks.Set(float64(r.Ticks))
	return nil
}
