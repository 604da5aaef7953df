package iterator

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricsNamespace = "iterator"

	claimResultClaimed  = "claimed"
	claimResultConflict = "conflict"
	claimResultDeferred = "deferred"
	claimResultRejected = "rejected"
)

// Metrics holds all iterator metrics, labelled by iterator name.
type Metrics struct {
	ExecutionSeconds  *prometheus.HistogramVec
	ExecutionBreaches *prometheus.CounterVec
	DelaySeconds      *prometheus.HistogramVec
	DelayBreaches     *prometheus.CounterVec
	HandlerErrors     *prometheus.CounterVec
	Claims            *prometheus.CounterVec
	Reschedules       *prometheus.CounterVec
	Pools             *PoolCollector
}

// NewMetrics creates the iterator metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		ExecutionSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "handler",
			Name:      "execution_seconds",
			Help:      "Duration of handler executions in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 10),
		}, []string{"iterator"}),
		ExecutionBreaches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "handler",
			Name:      "execution_breaches_total",
			Help:      "Handler executions that exceeded the acceptable execution time",
		}, []string{"iterator"}),
		DelaySeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "schedule",
			Name:      "delay_seconds",
			Help:      "Time between an entity becoming due and its processing start",
			Buckets:   prometheus.ExponentialBuckets(0.1, 4, 10),
		}, []string{"iterator"}),
		DelayBreaches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "schedule",
			Name:      "delay_breaches_total",
			Help:      "Entities picked up later than the acceptable no-alert delay",
		}, []string{"iterator"}),
		HandlerErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "handler",
			Name:      "errors_total",
			Help:      "Handler failures, panics included",
		}, []string{"iterator"}),
		Claims: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "store",
			Name:      "claims_total",
			Help:      "Claim attempts by result",
		}, []string{"iterator", "result"}),
		Reschedules: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "store",
			Name:      "reschedules_total",
			Help:      "List schedule writes by result",
		}, []string{"iterator", "result"}),
		Pools: NewPoolCollector(),
	}

	for _, c := range []prometheus.Collector{
		m.ExecutionSeconds,
		m.ExecutionBreaches,
		m.DelaySeconds,
		m.DelayBreaches,
		m.HandlerErrors,
		m.Claims,
		m.Reschedules,
		m.Pools,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// GetMetrics returns the metrics registered with the default Prometheus registry,
// initializing them on first use.
func GetMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		m, err := NewMetrics(prometheus.DefaultRegisterer)
		if err != nil {
			panic(err)
		}
		defaultMetrics = m
	})
	return defaultMetrics
}

func (m *Metrics) observeExecution(iterator string, d, acceptable time.Duration) bool {
	m.ExecutionSeconds.WithLabelValues(iterator).Observe(d.Seconds())
	if acceptable > 0 && d > acceptable {
		m.ExecutionBreaches.WithLabelValues(iterator).Inc()
		return true
	}
	return false
}

func (m *Metrics) observeDelay(iterator string, d, acceptable time.Duration) bool {
	if d < 0 {
		d = 0
	}
	m.DelaySeconds.WithLabelValues(iterator).Observe(d.Seconds())
	if acceptable > 0 && d > acceptable {
		m.DelayBreaches.WithLabelValues(iterator).Inc()
		return true
	}
	return false
}

func (m *Metrics) claim(iterator, result string) {
	m.Claims.WithLabelValues(iterator, result).Inc()
}

func (m *Metrics) reschedule(iterator, result string) {
	m.Reschedules.WithLabelValues(iterator, result).Inc()
}

// PoolCollector reports utilization and queue depth of dedicated pools at scrape time.
type PoolCollector struct {
	mu    sync.RWMutex
	pools map[string]*Pool

	running  *prometheus.Desc
	waiting  *prometheus.Desc
	capacity *prometheus.Desc
	util     *prometheus.Desc
}

func NewPoolCollector() *PoolCollector {
	labels := []string{"pool"}
	return &PoolCollector{
		pools:    make(map[string]*Pool),
		running:  prometheus.NewDesc("iterator_pool_running", "Busy workers in the pool", labels, nil),
		waiting:  prometheus.NewDesc("iterator_pool_waiting", "Submissions queued for a free worker", labels, nil),
		capacity: prometheus.NewDesc("iterator_pool_capacity", "Configured pool size", labels, nil),
		util:     prometheus.NewDesc("iterator_pool_utilization", "Busy workers divided by pool size", labels, nil),
	}
}

// Add starts reporting p, replacing a pool with the same name.
func (c *PoolCollector) Add(p *Pool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pools[p.Name()] = p
}

// Remove stops reporting the pool if it is still the one registered under its name.
func (c *PoolCollector) Remove(p *Pool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pools[p.Name()] == p {
		delete(c.pools, p.Name())
	}
}

func (c *PoolCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.running
	ch <- c.waiting
	ch <- c.capacity
	ch <- c.util
}

func (c *PoolCollector) Collect(ch chan<- prometheus.Metric) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for name, p := range c.pools {
		running, capacity := float64(p.Running()), float64(p.Cap())
		ch <- prometheus.MustNewConstMetric(c.running, prometheus.GaugeValue, running, name)
		ch <- prometheus.MustNewConstMetric(c.waiting, prometheus.GaugeValue, float64(p.Waiting()), name)
		ch <- prometheus.MustNewConstMetric(c.capacity, prometheus.GaugeValue, capacity, name)
		util := 0.0
		if capacity > 0 {
			util = running / capacity
		}
		ch <- prometheus.MustNewConstMetric(c.util, prometheus.GaugeValue, util, name)
	}
}
