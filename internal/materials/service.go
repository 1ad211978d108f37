package materials

import (
	"context"
	"strings"

	"github.com/thebenmerlin/material-management-api/internal/shared"
)

// Service exposes catalog queries to handlers and the workflow engine.
type Service struct {
	repo Repository
}

// NewService constructs a Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// ListResult is one page of catalog entries.
type ListResult struct {
	Materials  []Material
	Pagination shared.PageParams
	Total      int
}

// List searches active materials.
func (s *Service) List(ctx context.Context, search, category string, page shared.PageParams) (*ListResult, error) {
	items, total, err := s.repo.Search(ctx, SearchFilter{
		Search:   strings.TrimSpace(search),
		Category: strings.TrimSpace(category),
		Limit:    page.Limit,
		Offset:   page.Offset,
	})
	if err != nil {
		return nil, err
	}
	return &ListResult{Materials: items, Pagination: page, Total: total}, nil
}

// Get fetches one active material by id.
func (s *Service) Get(ctx context.Context, id int64) (*Material, error) {
	return s.repo.GetByID(ctx, id)
}

// Categories lists the distinct catalog categories.
func (s *Service) Categories(ctx context.Context) ([]string, error) {
	return s.repo.Categories(ctx)
}

// Exists reports whether every id refers to an active material. Used by
// indent validation; returns the first missing id.
func (s *Service) Exists(ctx context.Context, ids []int64) (int64, bool, error) {
	if len(ids) == 0 {
		return 0, true, nil
	}
	active, err := s.repo.ActiveIDs(ctx, ids)
	if err != nil {
		return 0, false, err
	}
	for _, id := range ids {
		if !active[id] {
			return id, false, nil
		}
	}
	return 0, true, nil
}
