package orders

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/thebenmerlin/material-management-api/internal/shared"
)

// Service orchestrates order creation and maintenance.
type Service struct {
	repo RepositoryPort
	now  func() time.Time
}

// NewService constructs the order service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo, now: time.Now}
}

// ItemInput is one line of an order payload. The line total is never taken
// from the client.
type ItemInput struct {
	MaterialID     int64          `json:"material_id"`
	Quantity       float64        `json:"quantity"`
	UnitPrice      float64        `json:"unit_price"`
	Specifications map[string]any `json:"specifications"`
}

// CreateInput is the order creation payload.
type CreateInput struct {
	IndentID             int64
	VendorName           string
	VendorContact        string
	VendorAddress        string
	ExpectedDeliveryDate *time.Time
	Items                []ItemInput
}

// UpdateInput is the full-replacement update payload. Version, when set,
// must match the stored row or the update is refused.
type UpdateInput struct {
	VendorName           string
	VendorContact        string
	VendorAddress        string
	ExpectedDeliveryDate *time.Time
	Items                []ItemInput
	Version              *int
}

// Create converts a director-approved indent into an order. Preconditions
// are re-checked inside the transaction; the unique index on indent_id
// closes the remaining race.
func (s *Service) Create(ctx context.Context, actor shared.Identity, input CreateInput) (*Order, error) {
	if !actor.HasRole(shared.RolePurchaseTeam) {
		return nil, fmt.Errorf("%w: only Purchase Team can create orders", shared.ErrForbidden)
	}
	if err := validateOrderInput(input.VendorName, input.VendorContact, input.Items); err != nil {
		return nil, err
	}
	if input.IndentID <= 0 {
		return nil, shared.NewValidationError("indent_id is required")
	}

	total := orderTotal(input.Items)
	order := Order{
		IndentID:             input.IndentID,
		OrderNumber:          fmt.Sprintf("ORD-%d-%d", input.IndentID, s.now().UnixMilli()),
		VendorName:           strings.TrimSpace(input.VendorName),
		VendorContact:        strings.TrimSpace(input.VendorContact),
		ExpectedDeliveryDate: input.ExpectedDeliveryDate,
		TotalAmount:          &total,
		Status:               StatusOrdered,
		CreatedBy:            actor.UserID,
	}
	if addr := strings.TrimSpace(input.VendorAddress); addr != "" {
		order.VendorAddress = &addr
	}

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		indent, err := tx.GetIndentForOrder(ctx, input.IndentID)
		if err != nil {
			return err
		}
		if indent.Status != "Director Approved" {
			return fmt.Errorf("%w: indent is %s, not Director Approved", shared.ErrStateConflict, indent.Status)
		}
		exists, err := tx.OrderExistsForIndent(ctx, input.IndentID)
		if err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("%w: order already exists for this indent", shared.ErrStateConflict)
		}

		id, err := tx.CreateOrder(ctx, order)
		if err != nil {
			return err
		}
		order.ID = id
		return insertItems(ctx, tx, id, input.Items)
	})
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// Update replaces the order's vendor fields and full item set, recomputing
// totals atomically. The stored row is locked for the duration.
func (s *Service) Update(ctx context.Context, actor shared.Identity, orderID int64, input UpdateInput) error {
	if !actor.HasRole(shared.RolePurchaseTeam) {
		return fmt.Errorf("%w: only Purchase Team can update orders", shared.ErrForbidden)
	}
	if err := validateOrderInput(input.VendorName, input.VendorContact, input.Items); err != nil {
		return err
	}

	total := orderTotal(input.Items)
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetOrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if input.Version != nil && *input.Version != current.Version {
			return fmt.Errorf("%w: order was modified by another request", shared.ErrStateConflict)
		}

		updated := Order{
			ID:                   orderID,
			VendorName:           strings.TrimSpace(input.VendorName),
			VendorContact:        strings.TrimSpace(input.VendorContact),
			ExpectedDeliveryDate: input.ExpectedDeliveryDate,
			TotalAmount:          &total,
		}
		if addr := strings.TrimSpace(input.VendorAddress); addr != "" {
			updated.VendorAddress = &addr
		}
		if err := tx.UpdateOrder(ctx, updated); err != nil {
			return err
		}
		if err := tx.DeleteItems(ctx, orderID); err != nil {
			return err
		}
		return insertItems(ctx, tx, orderID, input.Items)
	})
}

// List returns orders visible to the actor, newest first, with pricing
// removed for Site Engineers.
func (s *Service) List(ctx context.Context, actor shared.Identity, status string, page shared.PageParams) ([]Order, error) {
	orders, err := s.repo.ListOrders(ctx, ListFilter{
		SiteID: actor.SiteFilter(),
		Status: Status(status),
		Limit:  page.Limit,
		Offset: page.Offset,
	})
	if err != nil {
		return nil, err
	}
	if actor.Role == shared.RoleSiteEngineer {
		for i := range orders {
			orders[i].Redact()
		}
	}
	return orders, nil
}

// Get returns one order with items, enforcing site isolation through the
// parent indent and redacting pricing for Site Engineers.
func (s *Service) Get(ctx context.Context, actor shared.Identity, id int64) (*Order, []Item, error) {
	order, err := s.repo.GetOrder(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if !actor.CanAccessSite(order.SiteID) {
		return nil, nil, fmt.Errorf("%w: order belongs to another site", shared.ErrForbidden)
	}
	items, err := s.repo.GetItems(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if actor.Role == shared.RoleSiteEngineer {
		order.Redact()
		for i := range items {
			items[i].Redact()
		}
	}
	return order, items, nil
}

func insertItems(ctx context.Context, tx TxRepository, orderID int64, items []ItemInput) error {
	for _, item := range items {
		unitPrice := item.UnitPrice
		totalPrice := item.Quantity * item.UnitPrice
		if err := tx.InsertItem(ctx, Item{
			OrderID:        orderID,
			MaterialID:     item.MaterialID,
			Quantity:       item.Quantity,
			UnitPrice:      &unitPrice,
			TotalPrice:     &totalPrice,
			Specifications: item.Specifications,
		}); err != nil {
			return err
		}
	}
	return nil
}

func orderTotal(items []ItemInput) float64 {
	var total float64
	for _, item := range items {
		total += item.Quantity * item.UnitPrice
	}
	return total
}

func validateOrderInput(vendorName, vendorContact string, items []ItemInput) error {
	vErr := &shared.ValidationError{}
	if strings.TrimSpace(vendorName) == "" {
		vErr.Addf("vendor_name is required")
	}
	if strings.TrimSpace(vendorContact) == "" {
		vErr.Addf("vendor_contact is required")
	}
	if len(items) == 0 {
		vErr.Addf("at least one item is required")
	}
	for i, item := range items {
		if item.MaterialID <= 0 {
			vErr.Addf("items[%d]: material_id is required", i)
		}
		if item.Quantity <= 0 {
			vErr.Addf("items[%d]: quantity must be positive", i)
		}
		if item.UnitPrice < 0 {
			vErr.Addf("items[%d]: unit_price cannot be negative", i)
		}
	}
	if !vErr.Empty() {
		return vErr
	}
	return nil
}
