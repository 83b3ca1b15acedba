package models

import "time"

// SystemMetrics is a point-in-time snapshot of process and HTTP counters.
type SystemMetrics struct {
	UptimeSeconds            int64             `json:"uptime_seconds"`
	RequestsTotal            uint64            `json:"requests_total"`
	ServerErrorsTotal        uint64            `json:"server_errors_total"`
	AverageRequestDurationMs float64           `json:"average_request_duration_ms"`
	CacheHitRatio            float64           `json:"cache_hit_ratio"`
	CacheHits                uint64            `json:"cache_hits"`
	CacheMisses              uint64            `json:"cache_misses"`
	LifecycleEvents          map[string]uint64 `json:"lifecycle_events"`
	NotificationsFailed      uint64            `json:"notifications_failed"`
	Goroutines               int               `json:"goroutines"`
	GeneratedAt              time.Time         `json:"generated_at"`
}

// AdminStats aggregates request counts with the process snapshot.
type AdminStats struct {
	Requests RequestStats   `json:"requests"`
	Mentors  map[string]int `json:"mentors"`
	System   SystemMetrics  `json:"system"`
}
