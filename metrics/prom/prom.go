// Package prom adapts the memory and disk tiers' Metrics interfaces onto
// Prometheus collectors: one adapter per tier, since each has its own
// reason enum and the disk tier needs extra error counters.
package prom

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hybridcache/hybridcache/disk"
	"github.com/hybridcache/hybridcache/memory"
)

// MemoryAdapter implements memory.Metrics and exports Prometheus
// counters/gauges for the memory tier. Safe for concurrent use.
type MemoryAdapter struct {
	hits     prometheus.Counter
	misses   prometheus.Counter
	evicts   *prometheus.CounterVec
	sizeEnt  prometheus.Gauge
	sizeCost prometheus.Gauge
}

// NewMemoryAdapter constructs a Prometheus adapter for the memory tier.
//   - reg:         registry to register metrics with (nil => prometheus.DefaultRegisterer)
//   - ns, sub:      Prometheus namespace and subsystem
//   - constLabels: static labels applied to all metrics (may be nil)
func NewMemoryAdapter(reg prometheus.Registerer, ns, sub string, constLabels prometheus.Labels) *MemoryAdapter {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	a := &MemoryAdapter{
		hits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Subsystem: sub, Name: "hits_total",
			Help: "Memory tier hits", ConstLabels: constLabels,
		}),
		misses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Subsystem: sub, Name: "misses_total",
			Help: "Memory tier misses", ConstLabels: constLabels,
		}),
		evicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Subsystem: sub, Name: "evictions_total",
			Help: "Memory tier evictions by reason", ConstLabels: constLabels,
		}, []string{"reason"}),
		sizeEnt: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: ns, Subsystem: sub, Name: "resident_entries",
			Help: "Number of resident entries", ConstLabels: constLabels,
		}),
		sizeCost: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: ns, Subsystem: sub, Name: "resident_cost",
			Help: "Total resident cost", ConstLabels: constLabels,
		}),
	}
	reg.MustRegister(a.hits, a.misses, a.evicts, a.sizeEnt, a.sizeCost)
	return a
}

func (a *MemoryAdapter) Hit()  { a.hits.Inc() }
func (a *MemoryAdapter) Miss() { a.misses.Inc() }

func (a *MemoryAdapter) Evict(reason memory.EvictReason) {
	a.evicts.WithLabelValues(memoryReason(reason)).Inc()
}

func (a *MemoryAdapter) Size(count, cost uint64) {
	a.sizeEnt.Set(float64(count))
	a.sizeCost.Set(float64(cost))
}

func memoryReason(r memory.EvictReason) string {
	switch r {
	case memory.EvictCount:
		return "count"
	case memory.EvictCost:
		return "cost"
	case memory.EvictAge:
		return "age"
	case memory.EvictExplicit:
		return "explicit"
	default:
		return "unknown"
	}
}

var _ memory.Metrics = (*MemoryAdapter)(nil)

// DiskAdapter implements disk.Metrics, extending MemoryAdapter's shape
// with the disk tier's IOError/IndexError/TrimError counters. The disk
// tier's own trim passes report their failures through IOError and
// IndexError; nothing in the disk package calls TrimError.
type DiskAdapter struct {
	hits       prometheus.Counter
	misses     prometheus.Counter
	evicts     *prometheus.CounterVec
	sizeEnt    prometheus.Gauge
	sizeCost   prometheus.Gauge
	ioErrors   prometheus.Counter
	idxErrors  prometheus.Counter
	trimErrors prometheus.Counter
}

// NewDiskAdapter constructs a Prometheus adapter for the disk tier.
func NewDiskAdapter(reg prometheus.Registerer, ns, sub string, constLabels prometheus.Labels) *DiskAdapter {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	a := &DiskAdapter{
		hits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Subsystem: sub, Name: "hits_total",
			Help: "Disk tier hits", ConstLabels: constLabels,
		}),
		misses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Subsystem: sub, Name: "misses_total",
			Help: "Disk tier misses", ConstLabels: constLabels,
		}),
		evicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Subsystem: sub, Name: "evictions_total",
			Help: "Disk tier evictions by reason", ConstLabels: constLabels,
		}, []string{"reason"}),
		sizeEnt: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: ns, Subsystem: sub, Name: "item_count",
			Help: "Number of rows in the metadata index", ConstLabels: constLabels,
		}),
		sizeCost: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: ns, Subsystem: sub, Name: "item_size_bytes",
			Help: "Sum of item sizes", ConstLabels: constLabels,
		}),
		ioErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Subsystem: sub, Name: "io_errors_total",
			Help: "Filesystem read/write/rename failures", ConstLabels: constLabels,
		}),
		idxErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Subsystem: sub, Name: "index_errors_total",
			Help: "Metadata index failures", ConstLabels: constLabels,
		}),
		trimErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Subsystem: sub, Name: "trim_errors_total",
			Help: "Background trim pass failures", ConstLabels: constLabels,
		}),
	}
	reg.MustRegister(a.hits, a.misses, a.evicts, a.sizeEnt, a.sizeCost,
		a.ioErrors, a.idxErrors, a.trimErrors)
	return a
}

func (a *DiskAdapter) Hit()  { a.hits.Inc() }
func (a *DiskAdapter) Miss() { a.misses.Inc() }

func (a *DiskAdapter) Evict(reason disk.EvictReason) {
	a.evicts.WithLabelValues(diskReason(reason)).Inc()
}

func (a *DiskAdapter) Size(count, costBytes uint64) {
	a.sizeEnt.Set(float64(count))
	a.sizeCost.Set(float64(costBytes))
}

func (a *DiskAdapter) IOError()    { a.ioErrors.Inc() }
func (a *DiskAdapter) IndexError() { a.idxErrors.Inc() }
func (a *DiskAdapter) TrimError()  { a.trimErrors.Inc() }

func diskReason(r disk.EvictReason) string {
	switch r {
	case disk.EvictCount:
		return "count"
	case disk.EvictSize:
		return "size"
	case disk.EvictAge:
		return "age"
	case disk.EvictExplicit:
		return "explicit"
	default:
		return "unknown"
	}
}

var _ disk.Metrics = (*DiskAdapter)(nil)
