// Package orders implements purchase order creation and maintenance against
// director-approved indents.
package orders

import "time"

// Status is the order lifecycle state, derived from receipts after creation.
type Status string

const (
	StatusOrdered           Status = "Ordered"
	StatusPartiallyReceived Status = "Partially Received"
	StatusCompleted         Status = "Completed"
)

// Order is a purchase commitment against exactly one indent. Pricing fields
// are pointers so they can be dropped from responses to Site Engineers.
type Order struct {
	ID                   int64      `json:"id"`
	IndentID             int64      `json:"indent_id"`
	OrderNumber          string     `json:"order_number"`
	VendorName           string     `json:"vendor_name"`
	VendorContact        string     `json:"vendor_contact"`
	VendorAddress        *string    `json:"vendor_address,omitempty"`
	OrderDate            time.Time  `json:"order_date"`
	ExpectedDeliveryDate *time.Time `json:"expected_delivery_date,omitempty"`
	TotalAmount          *float64   `json:"total_amount,omitempty"`
	Status               Status     `json:"status"`
	CreatedBy            int64      `json:"created_by"`
	Version              int        `json:"version"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`

	IndentNumber  string `json:"indent_number,omitempty"`
	SiteID        int64  `json:"site_id,omitempty"`
	SiteName      string `json:"site_name,omitempty"`
	SiteCode      string `json:"site_code,omitempty"`
	CreatedByName string `json:"created_by_name,omitempty"`
}

// Redact removes pricing before the order is returned to a Site Engineer.
func (o *Order) Redact() {
	o.TotalAmount = nil
}

// Item is one ordered material line. TotalPrice is always quantity times
// unit price, recomputed server side.
type Item struct {
	ID             int64          `json:"id"`
	OrderID        int64          `json:"order_id"`
	MaterialID     int64          `json:"material_id"`
	Quantity       float64        `json:"quantity"`
	UnitPrice      *float64       `json:"unit_price,omitempty"`
	TotalPrice     *float64       `json:"total_price,omitempty"`
	Specifications map[string]any `json:"specifications"`

	MaterialName string `json:"material_name,omitempty"`
	MaterialCode string `json:"material_code,omitempty"`
	Unit         string `json:"unit,omitempty"`
	Category     string `json:"category,omitempty"`
}

// Redact removes line pricing before the item is returned to a Site Engineer.
func (i *Item) Redact() {
	i.UnitPrice = nil
	i.TotalPrice = nil
}

// ListFilter narrows an order listing.
type ListFilter struct {
	SiteID *int64
	Status Status
	Limit  int
	Offset int
}

// IndentRef is the parent indent fact checked before order creation.
type IndentRef struct {
	ID     int64
	Status string
	SiteID int64
}
