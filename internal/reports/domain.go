// Package reports builds the monthly procurement projection, as JSON data
// and as a downloadable Excel workbook.
package reports

import "time"

// Period is the requested report month.
type Period struct {
	Year  int `json:"year"`
	Month int `json:"month"`
}

// Window returns the half-open [from, to) interval covering the month.
func (p Period) Window() (time.Time, time.Time) {
	from := time.Date(p.Year, time.Month(p.Month), 1, 0, 0, 0, 0, time.UTC)
	return from, from.AddDate(0, 1, 0)
}

// IndentRow is one indent joined with its order, if any.
type IndentRow struct {
	IndentNumber  string    `json:"indent_number"`
	Status        string    `json:"status"`
	EstimatedCost float64   `json:"total_estimated_cost"`
	CreatedAt     time.Time `json:"created_at"`
	SiteName      string    `json:"site_name"`
	SiteCode      string    `json:"site_code"`
	CreatedByName string    `json:"created_by_name"`
	OrderNumber   *string   `json:"order_number,omitempty"`
	ActualCost    *float64  `json:"actual_cost,omitempty"`
	VendorName    *string   `json:"vendor_name,omitempty"`
}

// MaterialRollup is the per-material quantity/cost aggregation.
type MaterialRollup struct {
	MaterialName  string  `json:"material_name"`
	Category      string  `json:"category"`
	TotalQuantity float64 `json:"total_quantity"`
	Unit          string  `json:"unit"`
	AvgUnitPrice  float64 `json:"avg_unit_price"`
	TotalCost     float64 `json:"total_cost"`
}

// StatusRow is one entry of the status breakdown.
type StatusRow struct {
	Status    string  `json:"status"`
	Count     int     `json:"count"`
	TotalCost float64 `json:"total_cost"`
}

// Stats are the month's summary figures. CompletionRate is a formatted
// percentage string, "0" when the month has no indents.
type Stats struct {
	TotalIndents       int     `json:"total_indents"`
	CompletedIndents   int     `json:"completed_indents"`
	PendingIndents     int     `json:"pending_indents"`
	ApprovedIndents    int     `json:"approved_indents"`
	TotalEstimatedCost float64 `json:"total_estimated_cost"`
	TotalActualCost    float64 `json:"total_actual_cost"`
	CompletionRate     string  `json:"completion_rate"`
}

// Data is the JSON report payload.
type Data struct {
	Period          Period           `json:"period"`
	Stats           Stats            `json:"stats"`
	StatusBreakdown []StatusRow      `json:"status_breakdown"`
	TopMaterials    []MaterialRollup `json:"top_materials"`
}

// Monthly carries everything the workbook needs.
type Monthly struct {
	Period    Period
	Indents   []IndentRow
	Materials []MaterialRollup
	Stats     Stats
}
