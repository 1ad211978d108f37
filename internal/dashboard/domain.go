// Package dashboard serves indent status counts and recent activity,
// cached in redis with singleflight deduplication on misses.
package dashboard

import "time"

// StatusCount is one row of the indent status breakdown.
type StatusCount struct {
	Status string `json:"status"`
	Count  int    `json:"count"`
}

// RecentIndent is one row of the recent activity feed.
type RecentIndent struct {
	ID            int64     `json:"id"`
	IndentNumber  string    `json:"indent_number"`
	Status        string    `json:"status"`
	UpdatedAt     time.Time `json:"updated_at"`
	SiteName      string    `json:"site_name"`
	CreatedByName string    `json:"created_by_name"`
}

// Stats is the dashboard payload.
type Stats struct {
	IndentStats      []StatusCount  `json:"indent_stats"`
	RecentActivities []RecentIndent `json:"recent_activities"`
}
