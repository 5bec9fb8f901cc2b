package monitor

import (
	"math"
	rtmetrics "runtime/metrics"
	"sync"
	"time"

	"github.com/vietddude/sentinel/internal/core/domain"
)

const (
	cpuTotalMetric   = "/cpu/classes/total:cpu-seconds"
	cpuIdleMetric    = "/cpu/classes/idle:cpu-seconds"
	memTotalMetric   = "/memory/classes/total:bytes"
	memObjectsMetric = "/memory/classes/heap/objects:bytes"
	memLimitMetric   = "/gc/gomemlimit:bytes"
)

// RuntimeSampler reports utilization of the current process. It is used when
// nodes do not report their own usage with their results.
type RuntimeSampler struct {
	mu        sync.Mutex
	minPeriod time.Duration
	lastAt    time.Time
	lastTotal float64
	lastIdle  float64
	last      domain.ResourceUsage
	samples   []rtmetrics.Sample
}

// NewRuntimeSampler creates a sampler that refreshes at most once per second.
func NewRuntimeSampler() *RuntimeSampler {
	return &RuntimeSampler{
		minPeriod: time.Second,
		samples: []rtmetrics.Sample{
			{Name: cpuTotalMetric},
			{Name: cpuIdleMetric},
			{Name: memTotalMetric},
			{Name: memObjectsMetric},
			{Name: memLimitMetric},
		},
	}
}

// Sample returns the process utilization; the node name is ignored.
func (s *RuntimeSampler) Sample(string) domain.ResourceUsage {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if !s.lastAt.IsZero() && now.Sub(s.lastAt) < s.minPeriod {
		return s.last
	}

	rtmetrics.Read(s.samples)
	total := float64Value(s.samples[0])
	idle := float64Value(s.samples[1])

	usage := domain.ResourceUsage{CPU: s.last.CPU}
	if !s.lastAt.IsZero() {
		if dTotal := total - s.lastTotal; dTotal > 0 {
			usage.CPU = clampPercent((1 - (idle-s.lastIdle)/dTotal) * 100)
		}
	}

	memTotal := uint64Value(s.samples[2])
	memObjects := uint64Value(s.samples[3])
	memLimit := uint64Value(s.samples[4])
	switch {
	case memLimit > 0 && memLimit < math.MaxInt64:
		usage.Memory = clampPercent(float64(memTotal) / float64(memLimit) * 100)
	case memTotal > 0:
		usage.Memory = clampPercent(float64(memObjects) / float64(memTotal) * 100)
	}

	s.lastAt = now
	s.lastTotal = total
	s.lastIdle = idle
	s.last = usage
	return usage
}

// StaticSampler always reports the same usage.
type StaticSampler domain.ResourceUsage

// Sample implements ResourceSampler.
func (s StaticSampler) Sample(string) domain.ResourceUsage {
	return domain.ResourceUsage(s)
}

func float64Value(s rtmetrics.Sample) float64 {
	if s.Value.Kind() == rtmetrics.KindFloat64 {
		return s.Value.Float64()
	}
	return 0
}

func uint64Value(s rtmetrics.Sample) uint64 {
	if s.Value.Kind() == rtmetrics.KindUint64 {
		return s.Value.Uint64()
	}
	return 0
}

func clampPercent(v float64) float64 {
	return math.Max(0, math.Min(100, v))
}
