// Package metrics exports allocator statistics to Prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/joshuapare/kheap/heap/alloc"
)

const namespace = "kheap"

// StatsSource is anything that can snapshot allocator statistics, such as
// *alloc.FreeListAllocator or *global.Heap.
type StatsSource interface {
	Stats() alloc.Stats
}

type gaugeDesc struct {
	desc  *prometheus.Desc
	value func(alloc.Stats) float64
}

type heapCollector struct {
	src     StatsSource
	gauges  []gaugeDesc
	counter []gaugeDesc
}

func newDesc(name, help string, labels prometheus.Labels) *prometheus.Desc {
	return prometheus.NewDesc(prometheus.BuildFQName(namespace, "", name), help, nil, labels)
}

// NewCollector creates a Prometheus collector reading src on every scrape.
// heapName is attached to every series as the "heap" label.
func NewCollector(src StatsSource, heapName string) prometheus.Collector {
	labels := prometheus.Labels{"heap": heapName}
	return &heapCollector{
		src: src,
		gauges: []gaugeDesc{
			{newDesc("total_bytes", "Bytes managed by the heap, regions plus pool storage.", labels),
				func(s alloc.Stats) float64 { return float64(s.TotalBytes) }},
			{newDesc("used_bytes", "Bytes used by live blocks and touched pools.", labels),
				func(s alloc.Stats) float64 { return float64(s.UsedBytes) }},
			{newDesc("available_bytes", "Bytes not in use.", labels),
				func(s alloc.Stats) float64 { return float64(s.AvailableBytes) }},
			{newDesc("live_allocations", "Live free-list allocations.", labels),
				func(s alloc.Stats) float64 { return float64(s.AllocationCount) }},
			{newDesc("regions", "Donated regions.", labels),
				func(s alloc.Stats) float64 { return float64(s.Regions) }},
			{newDesc("pools_in_use", "Size-class pools that have been consumed.", labels),
				func(s alloc.Stats) float64 { return float64(s.PoolsInUse) }},
			{newDesc("free_blocks", "Blocks on the free list.", labels),
				func(s alloc.Stats) float64 { return float64(s.FreeBlocks) }},
			{newDesc("largest_free_bytes", "Payload bytes of the largest free block.", labels),
				func(s alloc.Stats) float64 { return float64(s.LargestFree) }},
			{newDesc("fragmentation_ratio", "One minus largest free block over total free bytes.", labels),
				func(s alloc.Stats) float64 { return s.Fragmentation }},
		},
		counter: []gaugeDesc{
			{newDesc("alloc_calls_total", "Alloc calls.", labels),
				func(s alloc.Stats) float64 { return float64(s.AllocCalls) }},
			{newDesc("dealloc_calls_total", "Dealloc calls.", labels),
				func(s alloc.Stats) float64 { return float64(s.DeallocCalls) }},
			{newDesc("alloc_failures_total", "Alloc calls that found no memory.", labels),
				func(s alloc.Stats) float64 { return float64(s.Failures) }},
			{newDesc("pool_hits_total", "Allocations served by a pool.", labels),
				func(s alloc.Stats) float64 { return float64(s.PoolHits) }},
			{newDesc("pool_declines_total", "Pool probes that found their class used.", labels),
				func(s alloc.Stats) float64 { return float64(s.PoolDeclines) }},
			{newDesc("splits_total", "Free blocks split to serve a request.", labels),
				func(s alloc.Stats) float64 { return float64(s.Splits + s.LeadSplits) }},
			{newDesc("coalesces_total", "Pairwise merges of adjacent free blocks.", labels),
				func(s alloc.Stats) float64 { return float64(s.Coalesces) }},
		},
	}
}

func (c *heapCollector) Describe(ch chan<- *prometheus.Desc) {
	for _, g := range c.gauges {
		ch <- g.desc
	}
	for _, g := range c.counter {
		ch <- g.desc
	}
}

func (c *heapCollector) Collect(ch chan<- prometheus.Metric) {
	stats := c.src.Stats()
	for _, g := range c.gauges {
		ch <- prometheus.MustNewConstMetric(g.desc, prometheus.GaugeValue, g.value(stats))
	}
	for _, g := range c.counter {
		ch <- prometheus.MustNewConstMetric(g.desc, prometheus.CounterValue, g.value(stats))
	}
}

var _ prometheus.Collector = new(heapCollector)
