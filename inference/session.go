package inference

import (
	"context"
	"sync"
	"time"
)

// Metrics is a snapshot of gate statistics.
type Metrics struct {
	InferenceCount int64   `json:"inference_count"`
	FailureCount   int64   `json:"failure_count"`
	TotalTimeMs    float64 `json:"total_time_ms"`
	AverageTimeMs  float64 `json:"average_time_ms"`
	ThroughputFPS  float64 `json:"throughput_fps"`
	Capacity       int     `json:"capacity"`
}

// Gate bounds the number of concurrent model executions and profiles them.
type Gate struct {
	slots chan struct{}

	mu             sync.RWMutex
	inferenceCount int64
	failureCount   int64
	totalTime      float64
}

// NewGate creates a gate admitting n concurrent runs. Values below 1 are
// treated as 1.
func NewGate(n int) *Gate {
	if n < 1 {
		n = 1
	}
	return &Gate{slots: make(chan struct{}, n)}
}

// Run executes fn once a slot is available.
//
// Arguments:
//   - ctx: Cancels the wait for a slot. fn itself is not interrupted.
//   - fn: The work to run while holding a slot.
//
// Returns:
//   - error: The context error if no slot was acquired, otherwise fn's error.
func (g *Gate) Run(ctx context.Context, fn func() error) error {
	select {
	case g.slots <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-g.slots }()

	start := time.Now()
	err := fn()
	duration := float64(time.Since(start).Nanoseconds()) / 1e6 // Convert to milliseconds

	g.mu.Lock()
	g.inferenceCount++
	g.totalTime += duration
	if err != nil {
		g.failureCount++
	}
	g.mu.Unlock()

	return err
}

// Capacity returns the maximum number of concurrent runs.
func (g *Gate) Capacity() int { return cap(g.slots) }

// Metrics returns the current statistics.
func (g *Gate) Metrics() Metrics {
	g.mu.RLock()
	defer g.mu.RUnlock()

	m := Metrics{
		InferenceCount: g.inferenceCount,
		FailureCount:   g.failureCount,
		TotalTimeMs:    g.totalTime,
		Capacity:       cap(g.slots),
	}
	if g.inferenceCount > 0 {
		m.AverageTimeMs = g.totalTime / float64(g.inferenceCount)
		if m.AverageTimeMs > 0 {
			m.ThroughputFPS = 1000.0 / m.AverageTimeMs
		}
	}
	return m
}
