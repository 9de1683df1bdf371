package models

import "time"

// SystemMetrics is an aggregated snapshot for the admin analytics endpoint.
type SystemMetrics struct {
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	CacheHitRatio            float64   `json:"cache_hit_ratio"`
	CacheHits                uint64    `json:"cache_hits"`
	CacheMisses              uint64    `json:"cache_misses"`
	VotesCast                uint64    `json:"votes_cast"`
	TransitionsApplied       uint64    `json:"transitions_applied"`
	CertificatesIssued       uint64    `json:"certificates_issued"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}
