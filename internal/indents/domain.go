// Package indents implements material indent creation and the two-tier
// approval state machine.
package indents

import "time"

// Indent is the request header. Display names come from joined site and
// user rows on reads; pointer fields are null until the matching tier acts.
type Indent struct {
	ID                 int64      `json:"id"`
	IndentNumber       string     `json:"indent_number"`
	SiteID             int64      `json:"site_id"`
	CreatedBy          int64      `json:"created_by"`
	Status             Status     `json:"status"`
	TotalEstimatedCost float64    `json:"total_estimated_cost"`
	PurchaseApprovedBy *int64     `json:"purchase_approved_by,omitempty"`
	PurchaseApprovedAt *time.Time `json:"purchase_approved_at,omitempty"`
	DirectorApprovedBy *int64     `json:"director_approved_by,omitempty"`
	DirectorApprovedAt *time.Time `json:"director_approved_at,omitempty"`
	RejectionReason    *string    `json:"rejection_reason,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`

	SiteName               string  `json:"site_name,omitempty"`
	SiteCode               string  `json:"site_code,omitempty"`
	CreatedByName          string  `json:"created_by_name,omitempty"`
	PurchaseApprovedByName *string `json:"purchase_approved_by_name,omitempty"`
	DirectorApprovedByName *string `json:"director_approved_by_name,omitempty"`
}

// Item is one requested material line.
type Item struct {
	ID                 int64          `json:"id"`
	IndentID           int64          `json:"indent_id"`
	MaterialID         int64          `json:"material_id"`
	Quantity           float64        `json:"quantity"`
	Specifications     map[string]any `json:"specifications"`
	EstimatedUnitCost  *float64       `json:"estimated_unit_cost,omitempty"`
	EstimatedTotalCost *float64       `json:"estimated_total_cost,omitempty"`

	MaterialName string `json:"material_name,omitempty"`
	MaterialCode string `json:"material_code,omitempty"`
	Unit         string `json:"unit,omitempty"`
	Category     string `json:"category,omitempty"`
}

// ListFilter narrows an indent listing.
type ListFilter struct {
	SiteID *int64
	Status Status
	Limit  int
	Offset int
}
