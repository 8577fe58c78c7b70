package securestore

import (
	"github.com/prometheus/client_golang/prometheus"
)

// RegisterMetrics registers size and GC metrics. Values are read on scrape.
func (s *Store) RegisterMetrics(reg prometheus.Registerer) error {
	if reg == nil {
		return nil
	}

	collectors := []prometheus.Collector{
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "rosiels",
			Subsystem: "securestore",
			Name:      "lsm_size_bytes",
			Help:      "Secure store LSM tree size in bytes.",
		}, func() float64 {
			lsm, _ := s.Size()
			return float64(lsm)
		}),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "rosiels",
			Subsystem: "securestore",
			Name:      "value_log_size_bytes",
			Help:      "Secure store value log size in bytes.",
		}, func() float64 {
			_, vlog := s.Size()
			return float64(vlog)
		}),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: "rosiels",
			Subsystem: "securestore",
			Name:      "gc_runs_total",
			Help:      "Completed value log GC passes.",
		}, func() float64 {
			return float64(s.gcRuns.Load())
		}),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "rosiels",
			Subsystem: "securestore",
			Name:      "last_gc_timestamp_seconds",
			Help:      "Unix timestamp of the last value log GC pass.",
		}, func() float64 {
			return float64(s.lastGC.Load()) / 1000.0
		}),
	}

	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}
