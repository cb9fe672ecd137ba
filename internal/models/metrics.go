package models

import "time"

// SystemMetrics is a JSON summary of the process instrumentation.
type SystemMetrics struct {
	CacheHitRatio             float64   `json:"cache_hit_ratio"`
	CacheHits                 uint64    `json:"cache_hits"`
	CacheMisses               uint64    `json:"cache_misses"`
	RequestsTotal             uint64    `json:"requests_total"`
	AverageRequestDurationMs  float64   `json:"average_request_duration_ms"`
	RemoteCallCount           uint64    `json:"remote_call_count"`
	AverageRemoteCallDuration float64   `json:"average_remote_call_duration_ms"`
	Goroutines                int       `json:"goroutines"`
	GeneratedAt               time.Time `json:"generated_at"`
}
