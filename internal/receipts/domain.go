// Package receipts records goods received against orders and derives order
// and indent fulfillment status from the reported quantities.
package receipts

import "time"

// Receipt is a goods-received record for one order.
type Receipt struct {
	ID                    int64     `json:"id"`
	OrderID               int64     `json:"order_id"`
	ReceiptNumber         string    `json:"receipt_number"`
	ReceivedBy            int64     `json:"received_by"`
	ReceivedDate          time.Time `json:"received_date"`
	DeliveryChallanNumber *string   `json:"delivery_challan_number,omitempty"`
	IsPartial             bool      `json:"is_partial"`
	Notes                 *string   `json:"notes,omitempty"`
	CreatedAt             time.Time `json:"created_at"`

	OrderNumber    string `json:"order_number,omitempty"`
	IndentNumber   string `json:"indent_number,omitempty"`
	SiteID         int64  `json:"site_id,omitempty"`
	SiteName       string `json:"site_name,omitempty"`
	SiteCode       string `json:"site_code,omitempty"`
	ReceivedByName string `json:"received_by_name,omitempty"`
}

// Item is one received line against an order item. Pricing comes from the
// joined order item and is dropped for Site Engineers.
type Item struct {
	ID                int64    `json:"id"`
	ReceiptID         int64    `json:"receipt_id"`
	OrderItemID       int64    `json:"order_item_id"`
	ReceivedQuantity  float64  `json:"received_quantity"`
	DamagedQuantity   float64  `json:"damaged_quantity"`
	ReturnedQuantity  float64  `json:"returned_quantity"`
	DamageDescription *string  `json:"damage_description,omitempty"`
	ReturnReason      *string  `json:"return_reason,omitempty"`
	ConditionNotes    *string  `json:"condition_notes,omitempty"`
	OrderedQuantity   float64  `json:"ordered_quantity"`
	UnitPrice         *float64 `json:"unit_price,omitempty"`
	TotalPrice        *float64 `json:"total_price,omitempty"`

	MaterialName string `json:"material_name,omitempty"`
	MaterialCode string `json:"material_code,omitempty"`
	Unit         string `json:"unit,omitempty"`
	Category     string `json:"category,omitempty"`
}

// Redact removes order pricing before the item is returned to a Site
// Engineer.
func (i *Item) Redact() {
	i.UnitPrice = nil
	i.TotalPrice = nil
}

// Image is one uploaded evidence photo. ImagePath is the object store key.
type Image struct {
	ID          int64     `json:"id"`
	ReceiptID   int64     `json:"receipt_id"`
	ImagePath   string    `json:"image_path"`
	ImageType   string    `json:"image_type"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

// OrderRef is the parent order fact needed for authorization and status
// derivation.
type OrderRef struct {
	ID       int64
	IndentID int64
	SiteID   int64
	Status   string
}

// OrderLine is an order item's id and ordered quantity.
type OrderLine struct {
	OrderItemID int64
	Ordered     float64
}

// ListFilter narrows a receipt listing.
type ListFilter struct {
	SiteID  *int64
	OrderID int64
	Limit   int
	Offset  int
}
