package cache

import "time"

// Stats is the export shape used by debug and operational surfaces.
type Stats struct {
	Size         int                  `json:"size"`
	MaxSize      int                  `json:"maxSize"`
	TotalHits    int64                `json:"totalHits"`
	AverageHits  float64              `json:"averageHits"`
	HitCount     map[string]int64     `json:"hitCount"`
	LastAccessed map[string]time.Time `json:"lastAccessed"`
}
