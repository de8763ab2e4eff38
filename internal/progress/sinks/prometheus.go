package sinks

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ndtworks/tubescan/internal/progress"
)

// PrometheusSink exports inspection progress via Prometheus. It owns all
// collectors for hole verdicts, batch dispatch, and per-sector completion.
type PrometheusSink struct {
	holesResolved    *prometheus.CounterVec
	batchesCreated   prometheus.Counter
	unitsDispatched  prometheus.Counter
	pathUnits        prometheus.Gauge
	sectorCompletion *prometheus.GaugeVec
	runsCompleted    prometheus.Counter
}

// NewPrometheusSink registers the collectors against the provided registry.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		holesResolved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tubescan_holes_resolved_total",
			Help: "Holes resolved to a terminal status, partitioned by verdict.",
		}, []string{"status"}),
		batchesCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tubescan_batches_created_total",
			Help: "Scheduler batches dispatched.",
		}),
		unitsDispatched: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tubescan_units_dispatched_total",
			Help: "Detection units marked processing.",
		}),
		pathUnits: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tubescan_path_units",
			Help: "Detection units in the most recently built path.",
		}),
		sectorCompletion: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "tubescan_sector_completion_percent",
			Help: "Completion percentage per sector.",
		}, []string{"sector"}),
		runsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tubescan_simulations_completed_total",
			Help: "Simulation runs that reached the end of their path.",
		}),
	}
	for _, collector := range []prometheus.Collector{
		s.holesResolved,
		s.batchesCreated,
		s.unitsDispatched,
		s.pathUnits,
		s.sectorCompletion,
		s.runsCompleted,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register progress collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the collectors from the batch. Safe for concurrent use.
func (s *PrometheusSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		switch evt.Kind {
		case progress.KindPathBuilt:
			s.pathUnits.Set(float64(evt.Units))
		case progress.KindBatchCreated:
			s.batchesCreated.Inc()
			s.unitsDispatched.Add(float64(evt.Units))
		case progress.KindHoleResolved:
			s.holesResolved.WithLabelValues(string(evt.Status)).Inc()
		case progress.KindSectorProgress, progress.KindSectorAssigned:
			s.sectorCompletion.WithLabelValues(evt.Sector.String()).Set(evt.Stats.CompletionRate)
		case progress.KindSimulationCompleted:
			s.runsCompleted.Inc()
		}
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}
