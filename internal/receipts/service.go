package receipts

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/thebenmerlin/material-management-api/internal/orders"
	"github.com/thebenmerlin/material-management-api/internal/shared"
)

// ImageStore is the object storage used for evidence photos.
type ImageStore interface {
	Put(ctx context.Context, filename, contentType string, size int64, body io.Reader) (string, error)
	Remove(ctx context.Context, key string) error
}

// Service orchestrates receipt creation and the fulfillment derivation.
type Service struct {
	repo   RepositoryPort
	images ImageStore
	now    func() time.Time
}

// NewService constructs the receipt service.
func NewService(repo RepositoryPort, images ImageStore) *Service {
	return &Service{repo: repo, images: images, now: time.Now}
}

// ItemInput is one received line. Damaged and returned default to zero.
type ItemInput struct {
	OrderItemID       int64   `json:"order_item_id"`
	ReceivedQuantity  float64 `json:"received_quantity"`
	DamagedQuantity   float64 `json:"damaged_quantity"`
	ReturnedQuantity  float64 `json:"returned_quantity"`
	DamageDescription string  `json:"damage_description"`
	ReturnReason      string  `json:"return_reason"`
	ConditionNotes    string  `json:"condition_notes"`
}

// ImageInput is one uploaded evidence photo, already size and MIME checked
// by the handler.
type ImageInput struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
	Type        string
	Description string
}

// CreateInput is the receipt creation payload.
type CreateInput struct {
	OrderID               int64
	ReceivedDate          time.Time
	DeliveryChallanNumber string
	IsPartial             bool
	Notes                 string
	Items                 []ItemInput
	Images                []ImageInput
}

// CreateResult reports the persisted receipt and the statuses derived from
// it.
type CreateResult struct {
	Receipt         Receipt
	OrderStatus     orders.Status
	IndentCompleted bool
}

// Create persists a receipt with its items and images, then derives the
// order status from the cumulative accounted quantities across all receipts
// for the order. Completing the order completes its parent indent. Images go
// to object storage before the transaction; keys of an aborted transaction
// are removed best effort.
func (s *Service) Create(ctx context.Context, actor shared.Identity, input CreateInput) (*CreateResult, error) {
	if !actor.HasRole(shared.RoleSiteEngineer) {
		return nil, fmt.Errorf("%w: only Site Engineers can create receipts", shared.ErrForbidden)
	}

	ref, err := s.repo.GetOrderRef(ctx, input.OrderID)
	if err != nil {
		return nil, err
	}
	if !actor.CanAccessSite(ref.SiteID) {
		return nil, fmt.Errorf("%w: order belongs to another site", shared.ErrForbidden)
	}
	if err := validateItems(input.Items); err != nil {
		return nil, err
	}

	now := s.now()
	receivedDate := input.ReceivedDate
	if receivedDate.IsZero() {
		receivedDate = now
	}
	rec := Receipt{
		OrderID:       input.OrderID,
		ReceiptNumber: fmt.Sprintf("REC-%d-%d", input.OrderID, now.UnixMilli()),
		ReceivedBy:    actor.UserID,
		ReceivedDate:  receivedDate,
		IsPartial:     input.IsPartial,
	}
	if v := strings.TrimSpace(input.DeliveryChallanNumber); v != "" {
		rec.DeliveryChallanNumber = &v
	}
	if v := strings.TrimSpace(input.Notes); v != "" {
		rec.Notes = &v
	}

	keys, images, err := s.uploadImages(ctx, input.Images)
	if err != nil {
		return nil, err
	}

	result := CreateResult{}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		lines, err := tx.GetOrderLines(ctx, input.OrderID)
		if err != nil {
			return err
		}
		valid := make(map[int64]bool, len(lines))
		for _, line := range lines {
			valid[line.OrderItemID] = true
		}
		for i, item := range input.Items {
			if !valid[item.OrderItemID] {
				return shared.NewValidationError(fmt.Sprintf("items[%d]: order_item_id %d does not belong to order %d", i, item.OrderItemID, input.OrderID))
			}
		}

		id, err := tx.CreateReceipt(ctx, rec)
		if err != nil {
			return err
		}
		rec.ID = id
		for _, item := range input.Items {
			if err := tx.InsertItem(ctx, toItem(id, item)); err != nil {
				return err
			}
		}
		for _, img := range images {
			img.ReceiptID = id
			if err := tx.InsertImage(ctx, img); err != nil {
				return err
			}
		}

		accounted, err := tx.SumAccounted(ctx, input.OrderID)
		if err != nil {
			return err
		}
		status := orders.StatusPartiallyReceived
		if OrderFulfilled(lines, accounted) {
			status = orders.StatusCompleted
		}
		if err := tx.SetOrderStatus(ctx, input.OrderID, string(status)); err != nil {
			return err
		}
		result.OrderStatus = status
		if status == orders.StatusCompleted {
			if err := tx.CompleteIndent(ctx, ref.IndentID); err != nil {
				return err
			}
			result.IndentCompleted = true
		}
		return nil
	})
	if err != nil {
		s.removeImages(ctx, keys)
		return nil, err
	}
	result.Receipt = rec
	return &result, nil
}

// List returns receipts visible to the actor, newest first, optionally
// narrowed to one order.
func (s *Service) List(ctx context.Context, actor shared.Identity, orderID int64, page shared.PageParams) ([]Receipt, error) {
	return s.repo.ListReceipts(ctx, ListFilter{
		SiteID:  actor.SiteFilter(),
		OrderID: orderID,
		Limit:   page.Limit,
		Offset:  page.Offset,
	})
}

// Get returns one receipt with items and images, enforcing site isolation
// and redacting order pricing for Site Engineers.
func (s *Service) Get(ctx context.Context, actor shared.Identity, id int64) (*Receipt, []Item, []Image, error) {
	rec, err := s.repo.GetReceipt(ctx, id)
	if err != nil {
		return nil, nil, nil, err
	}
	if !actor.CanAccessSite(rec.SiteID) {
		return nil, nil, nil, fmt.Errorf("%w: receipt belongs to another site", shared.ErrForbidden)
	}
	items, err := s.repo.GetItems(ctx, id)
	if err != nil {
		return nil, nil, nil, err
	}
	images, err := s.repo.GetImages(ctx, id)
	if err != nil {
		return nil, nil, nil, err
	}
	if actor.Role == shared.RoleSiteEngineer {
		for i := range items {
			items[i].Redact()
		}
	}
	return rec, items, images, nil
}

func (s *Service) uploadImages(ctx context.Context, inputs []ImageInput) ([]string, []Image, error) {
	var keys []string
	var images []Image
	for _, in := range inputs {
		key, err := s.images.Put(ctx, in.Filename, in.ContentType, in.Size, in.Body)
		if err != nil {
			s.removeImages(ctx, keys)
			return nil, nil, fmt.Errorf("receipts: store image %s: %w", in.Filename, err)
		}
		keys = append(keys, key)
		imageType := in.Type
		if imageType == "" {
			imageType = "general"
		}
		images = append(images, Image{ImagePath: key, ImageType: imageType, Description: in.Description})
	}
	return keys, images, nil
}

func (s *Service) removeImages(ctx context.Context, keys []string) {
	for _, key := range keys {
		_ = s.images.Remove(ctx, key)
	}
}

func toItem(receiptID int64, in ItemInput) Item {
	item := Item{
		ReceiptID:        receiptID,
		OrderItemID:      in.OrderItemID,
		ReceivedQuantity: in.ReceivedQuantity,
		DamagedQuantity:  in.DamagedQuantity,
		ReturnedQuantity: in.ReturnedQuantity,
	}
	if v := strings.TrimSpace(in.DamageDescription); v != "" {
		item.DamageDescription = &v
	}
	if v := strings.TrimSpace(in.ReturnReason); v != "" {
		item.ReturnReason = &v
	}
	if v := strings.TrimSpace(in.ConditionNotes); v != "" {
		item.ConditionNotes = &v
	}
	return item
}

func validateItems(items []ItemInput) error {
	if len(items) == 0 {
		return shared.NewValidationError("at least one item is required")
	}
	vErr := &shared.ValidationError{}
	for i, item := range items {
		if item.OrderItemID <= 0 {
			vErr.Addf("items[%d]: order_item_id is required", i)
		}
		if item.ReceivedQuantity < 0 {
			vErr.Addf("items[%d]: received_quantity cannot be negative", i)
		}
		if item.DamagedQuantity < 0 {
			vErr.Addf("items[%d]: damaged_quantity cannot be negative", i)
		}
		if item.ReturnedQuantity < 0 {
			vErr.Addf("items[%d]: returned_quantity cannot be negative", i)
		}
	}
	if !vErr.Empty() {
		return vErr
	}
	return nil
}
