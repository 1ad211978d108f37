package indents

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/thebenmerlin/material-management-api/internal/shared"
)

// CatalogPort is the materials lookup needed to validate indent lines.
type CatalogPort interface {
	Exists(ctx context.Context, ids []int64) (missing int64, ok bool, err error)
}

// Service orchestrates indent creation and approvals.
type Service struct {
	repo    RepositoryPort
	catalog CatalogPort
	now     func() time.Time
}

// NewService constructs the indent service.
func NewService(repo RepositoryPort, catalog CatalogPort) *Service {
	return &Service{repo: repo, catalog: catalog, now: time.Now}
}

// CreateInput is the creation payload.
type CreateInput struct {
	Items []ItemInput
}

// ItemInput is one requested line.
type ItemInput struct {
	MaterialID        int64          `json:"material_id"`
	Quantity          float64        `json:"quantity"`
	Specifications    map[string]any `json:"specifications"`
	EstimatedUnitCost *float64       `json:"estimated_unit_cost"`
}

// Create persists a new indent for the acting Site Engineer's site. The
// header total is the sum of quantity times estimated unit cost over lines
// that carry an estimate.
func (s *Service) Create(ctx context.Context, actor shared.Identity, input CreateInput) (*Indent, error) {
	if !actor.HasRole(shared.RoleSiteEngineer) {
		return nil, fmt.Errorf("%w: only Site Engineers can create indents", shared.ErrForbidden)
	}
	if actor.SiteID == nil {
		return nil, shared.NewValidationError("site engineer has no assigned site")
	}
	if err := validateItems(input.Items); err != nil {
		return nil, err
	}

	ids := make([]int64, 0, len(input.Items))
	for _, item := range input.Items {
		ids = append(ids, item.MaterialID)
	}
	missing, ok, err := s.catalog.Exists(ctx, ids)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, shared.NewValidationError(fmt.Sprintf("material %d does not exist", missing))
	}

	now := s.now()
	indent := Indent{
		IndentNumber: fmt.Sprintf("IND-%d-%d", *actor.SiteID, now.UnixMilli()),
		SiteID:       *actor.SiteID,
		CreatedBy:    actor.UserID,
		Status:       StatusPending,
	}
	for _, item := range input.Items {
		if item.EstimatedUnitCost != nil {
			indent.TotalEstimatedCost += item.Quantity * *item.EstimatedUnitCost
		}
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		id, err := tx.CreateIndent(ctx, indent)
		if err != nil {
			return err
		}
		indent.ID = id
		for _, item := range input.Items {
			line := Item{
				IndentID:          id,
				MaterialID:        item.MaterialID,
				Quantity:          item.Quantity,
				Specifications:    item.Specifications,
				EstimatedUnitCost: item.EstimatedUnitCost,
			}
			if item.EstimatedUnitCost != nil {
				total := item.Quantity * *item.EstimatedUnitCost
				line.EstimatedTotalCost = &total
			}
			if err := tx.InsertItem(ctx, line); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &indent, nil
}

// List returns indent headers visible to the actor, newest first. Site
// Engineers are implicitly filtered to their own site.
func (s *Service) List(ctx context.Context, actor shared.Identity, status string, page shared.PageParams) ([]Indent, error) {
	filter := ListFilter{
		SiteID: actor.SiteFilter(),
		Status: Status(status),
		Limit:  page.Limit,
		Offset: page.Offset,
	}
	return s.repo.ListIndents(ctx, filter)
}

// Get returns one indent with its items, enforcing site isolation.
func (s *Service) Get(ctx context.Context, actor shared.Identity, id int64) (*Indent, []Item, error) {
	indent, err := s.repo.GetIndent(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if !actor.CanAccessSite(indent.SiteID) {
		return nil, nil, fmt.Errorf("%w: indent belongs to another site", shared.ErrForbidden)
	}
	items, err := s.repo.GetItems(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return indent, items, nil
}

// Approve applies one approval decision and returns the new status. The
// transition itself is computed by the pure Transition function; this method
// adds the stamps and the rejection reason requirement. The current status is
// read under a row lock inside the transaction, so a decision can never be
// written over a status that changed after it was made.
func (s *Service) Approve(ctx context.Context, actor shared.Identity, id int64, action Action, rejectionReason string) (Status, error) {
	now := s.now()
	var next Status
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetStatusForUpdate(ctx, id)
		if err != nil {
			return err
		}
		next, err = Transition(actor.Role, current, action)
		if err != nil {
			return err
		}
		if next == StatusRejected && strings.TrimSpace(rejectionReason) == "" {
			return shared.NewValidationError("rejection_reason is required when rejecting")
		}

		switch next {
		case StatusPurchaseApproved:
			return tx.SetPurchaseApproval(ctx, id, actor.UserID, now)
		case StatusDirectorApproved:
			return tx.SetDirectorApproval(ctx, id, actor.UserID, now)
		case StatusRejected:
			return tx.SetRejected(ctx, id, strings.TrimSpace(rejectionReason))
		default:
			return fmt.Errorf("indents: unexpected transition target %s", next)
		}
	})
	if err != nil {
		return "", err
	}
	return next, nil
}

func validateItems(items []ItemInput) error {
	if len(items) == 0 {
		return shared.NewValidationError("at least one item is required")
	}
	vErr := &shared.ValidationError{}
	for i, item := range items {
		if item.MaterialID <= 0 {
			vErr.Addf("items[%d]: material_id is required", i)
		}
		if item.Quantity <= 0 {
			vErr.Addf("items[%d]: quantity must be positive", i)
		}
		if item.EstimatedUnitCost != nil && *item.EstimatedUnitCost < 0 {
			vErr.Addf("items[%d]: estimated_unit_cost cannot be negative", i)
		}
	}
	if !vErr.Empty() {
		return vErr
	}
	return nil
}
