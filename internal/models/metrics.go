package models

import "time"

// SystemMetrics is a JSON friendly summary of the process counters.
type SystemMetrics struct {
	RequestsTotal            uint64    `json:"requestsTotal"`
	AverageRequestDurationMs float64   `json:"averageRequestDurationMs"`
	CacheHitRatio            float64   `json:"cacheHitRatio"`
	CacheHits                uint64    `json:"cacheHits"`
	CacheMisses              uint64    `json:"cacheMisses"`
	DocumentsUploaded        uint64    `json:"documentsUploaded"`
	DocumentsPurged          uint64    `json:"documentsPurged"`
	PermissionDenials        uint64    `json:"permissionDenials"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generatedAt"`
}
