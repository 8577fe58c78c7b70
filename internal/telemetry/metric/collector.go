package metric

import "github.com/prometheus/client_golang/prometheus"

// HostStats is a point-in-time view of the host, read at scrape time.
type HostStats struct {
	ProjectsOpen    int
	InstancesActive int
}

// HostCollector reports host state gauges without the host having to push
// updates on every project or instance change.
type HostCollector struct {
	stats func() HostStats

	projects  *prometheus.Desc
	instances *prometheus.Desc
}

// NewHostCollector creates a collector backed by the stats function.
func NewHostCollector(stats func() HostStats) *HostCollector {
	return &HostCollector{
		stats: stats,
		projects: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "host", "projects_open"),
			"Project contexts currently accessible.",
			nil, nil,
		),
		instances: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "host", "instances_active"),
			"Live worker instances across all projects.",
			nil, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *HostCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.projects
	ch <- c.instances
}

// Collect implements prometheus.Collector.
func (c *HostCollector) Collect(ch chan<- prometheus.Metric) {
	s := c.stats()
	ch <- prometheus.MustNewConstMetric(c.projects, prometheus.GaugeValue, float64(s.ProjectsOpen))
	ch <- prometheus.MustNewConstMetric(c.instances, prometheus.GaugeValue, float64(s.InstancesActive))
}

// RegisterHost registers a HostCollector for stats.
func (r *Registry) RegisterHost(stats func() HostStats) error {
	if r == nil {
		return nil
	}
	return r.reg.Register(NewHostCollector(stats))
}
