package reports

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/thebenmerlin/material-management-api/internal/shared"
)

const topMaterialsLimit = 10

// Service assembles monthly reports. Reports expose pricing so they are
// restricted to Purchase Team and Director.
type Service struct {
	repo   Repository
	logger *slog.Logger
	now    func() time.Time
}

// NewService constructs a Service.
func NewService(repo Repository, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger, now: time.Now}
}

// Data returns the JSON report payload for the month.
func (s *Service) Data(ctx context.Context, actor shared.Identity, period Period, siteID *int64) (*Data, error) {
	if err := s.authorize(actor, period); err != nil {
		return nil, err
	}
	from, to := period.Window()

	var (
		rows      []IndentRow
		breakdown []StatusRow
		top       []MaterialRollup
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		rows, err = s.repo.IndentRows(gctx, from, to, siteID)
		return err
	})
	g.Go(func() error {
		var err error
		breakdown, err = s.repo.StatusBreakdown(gctx, from, to, siteID)
		return err
	})
	g.Go(func() error {
		var err error
		top, err = s.repo.TopMaterials(gctx, from, to, siteID, topMaterialsLimit)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &Data{
		Period:          period,
		Stats:           computeStats(rows),
		StatusBreakdown: breakdown,
		TopMaterials:    top,
	}, nil
}

// Monthly builds the three-sheet Excel workbook for the month and returns
// the serialized file with its download name.
func (s *Service) Monthly(ctx context.Context, actor shared.Identity, period Period, siteID *int64) ([]byte, string, error) {
	if err := s.authorize(actor, period); err != nil {
		return nil, "", err
	}
	from, to := period.Window()

	var (
		rows      []IndentRow
		materials []MaterialRollup
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		rows, err = s.repo.IndentRows(gctx, from, to, siteID)
		return err
	})
	g.Go(func() error {
		var err error
		materials, err = s.repo.MaterialRollups(gctx, from, to, siteID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, "", err
	}

	monthly := Monthly{
		Period:    period,
		Indents:   rows,
		Materials: materials,
		Stats:     computeStats(rows),
	}
	file, err := BuildWorkbook(monthly, actor.FullName, s.now())
	if err != nil {
		return nil, "", err
	}
	buf, err := file.WriteToBuffer()
	if err != nil {
		return nil, "", fmt.Errorf("reports: serialize workbook: %w", err)
	}
	name := fmt.Sprintf("Monthly_Report_%d_%02d.xlsx", period.Year, period.Month)

	s.logger.InfoContext(ctx, "monthly report generated",
		slog.Int("year", period.Year),
		slog.Int("month", period.Month),
		slog.Int("indents", len(rows)),
		slog.String("generated_by", actor.Username),
	)
	return buf.Bytes(), name, nil
}

func (s *Service) authorize(actor shared.Identity, period Period) error {
	if !actor.HasRole(shared.RolePurchaseTeam, shared.RoleDirector) {
		return fmt.Errorf("%w: reports require Purchase Team or Director", shared.ErrForbidden)
	}
	verr := shared.NewValidationError()
	if period.Year < 2000 || period.Year > 2100 {
		verr.Addf("year must be between 2000 and 2100")
	}
	if period.Month < 1 || period.Month > 12 {
		verr.Addf("month must be between 1 and 12")
	}
	if !verr.Empty() {
		return verr
	}
	return nil
}

// computeStats derives the summary figures from the month's indent rows.
// Estimated cost sums every indent; actual cost only those with an order.
func computeStats(rows []IndentRow) Stats {
	stats := Stats{TotalIndents: len(rows), CompletionRate: "0"}
	for _, row := range rows {
		switch {
		case row.Status == "Completed":
			stats.CompletedIndents++
		case row.Status == "Pending":
			stats.PendingIndents++
		}
		if strings.Contains(row.Status, "Approved") {
			stats.ApprovedIndents++
		}
		stats.TotalEstimatedCost += row.EstimatedCost
		if row.ActualCost != nil {
			stats.TotalActualCost += *row.ActualCost
		}
	}
	if stats.TotalIndents > 0 {
		rate := float64(stats.CompletedIndents) / float64(stats.TotalIndents) * 100
		stats.CompletionRate = fmt.Sprintf("%.1f", rate)
	}
	return stats
}
