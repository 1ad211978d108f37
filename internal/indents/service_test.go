package indents

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/thebenmerlin/material-management-api/internal/shared"
)

// memoryRepo implements RepositoryPort and TxRepository for service tests.
type memoryRepo struct {
	nextID  int64
	indents map[int64]*Indent
	items   map[int64][]Item

	// beforeTx runs at transaction start, standing in for writes another
	// caller commits first.
	beforeTx func()
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{nextID: 1, indents: map[int64]*Indent{}, items: map[int64][]Item{}}
}

func (m *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if m.beforeTx != nil {
		m.beforeTx()
	}
	return fn(ctx, m)
}

func (m *memoryRepo) GetStatusForUpdate(_ context.Context, id int64) (Status, error) {
	in, ok := m.indents[id]
	if !ok {
		return "", shared.ErrNotFound
	}
	return in.Status, nil
}

func (m *memoryRepo) GetIndent(_ context.Context, id int64) (*Indent, error) {
	in, ok := m.indents[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	copied := *in
	return &copied, nil
}

func (m *memoryRepo) GetItems(_ context.Context, indentID int64) ([]Item, error) {
	return m.items[indentID], nil
}

func (m *memoryRepo) ListIndents(_ context.Context, filter ListFilter) ([]Indent, error) {
	var out []Indent
	for _, in := range m.indents {
		if filter.SiteID != nil && in.SiteID != *filter.SiteID {
			continue
		}
		if filter.Status != "" && in.Status != filter.Status {
			continue
		}
		out = append(out, *in)
	}
	return out, nil
}

func (m *memoryRepo) CreateIndent(_ context.Context, in Indent) (int64, error) {
	id := m.nextID
	m.nextID++
	in.ID = id
	m.indents[id] = &in
	return id, nil
}

func (m *memoryRepo) InsertItem(_ context.Context, item Item) error {
	m.items[item.IndentID] = append(m.items[item.IndentID], item)
	return nil
}

func (m *memoryRepo) SetPurchaseApproval(_ context.Context, id int64, approvedBy int64, approvedAt time.Time) error {
	in, ok := m.indents[id]
	if !ok {
		return shared.ErrNotFound
	}
	in.Status = StatusPurchaseApproved
	in.PurchaseApprovedBy = &approvedBy
	in.PurchaseApprovedAt = &approvedAt
	return nil
}

func (m *memoryRepo) SetDirectorApproval(_ context.Context, id int64, approvedBy int64, approvedAt time.Time) error {
	in, ok := m.indents[id]
	if !ok {
		return shared.ErrNotFound
	}
	in.Status = StatusDirectorApproved
	in.DirectorApprovedBy = &approvedBy
	in.DirectorApprovedAt = &approvedAt
	return nil
}

func (m *memoryRepo) SetRejected(_ context.Context, id int64, reason string) error {
	in, ok := m.indents[id]
	if !ok {
		return shared.ErrNotFound
	}
	in.Status = StatusRejected
	in.RejectionReason = &reason
	return nil
}

type stubCatalog struct {
	known map[int64]bool
}

func (s *stubCatalog) Exists(_ context.Context, ids []int64) (int64, bool, error) {
	for _, id := range ids {
		if !s.known[id] {
			return id, false, nil
		}
	}
	return 0, true, nil
}

func engineerAt(site int64) shared.Identity {
	return shared.Identity{UserID: 10, Role: shared.RoleSiteEngineer, SiteID: &site}
}

func purchaseTeam() shared.Identity {
	return shared.Identity{UserID: 20, Role: shared.RolePurchaseTeam}
}

func director() shared.Identity {
	return shared.Identity{UserID: 30, Role: shared.RoleDirector}
}

func newTestService(repo *memoryRepo) *Service {
	svc := NewService(repo, &stubCatalog{known: map[int64]bool{1: true, 2: true, 3: true}})
	svc.now = func() time.Time { return time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC) }
	return svc
}

func ptr(f float64) *float64 { return &f }

func TestCreateIndentComputesTotal(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)

	indent, err := svc.Create(context.Background(), engineerAt(1), CreateInput{Items: []ItemInput{
		{MaterialID: 1, Quantity: 100, EstimatedUnitCost: ptr(350)},
		{MaterialID: 2, Quantity: 500, EstimatedUnitCost: ptr(62.5)},
		{MaterialID: 3, Quantity: 10}, // no estimate, contributes 0
	}})
	require.NoError(t, err)
	require.Equal(t, StatusPending, indent.Status)
	require.Equal(t, 100*350+500*62.5, indent.TotalEstimatedCost)
	require.Contains(t, indent.IndentNumber, "IND-1-")

	items := repo.items[indent.ID]
	require.Len(t, items, 3)
	require.NotNil(t, items[0].EstimatedTotalCost)
	require.Equal(t, float64(35000), *items[0].EstimatedTotalCost)
	require.Nil(t, items[2].EstimatedTotalCost)
}

func TestCreateIndentRejectsNonEngineer(t *testing.T) {
	svc := newTestService(newMemoryRepo())

	_, err := svc.Create(context.Background(), purchaseTeam(), CreateInput{Items: []ItemInput{
		{MaterialID: 1, Quantity: 5},
	}})
	require.ErrorIs(t, err, shared.ErrForbidden)
}

func TestCreateIndentValidation(t *testing.T) {
	svc := newTestService(newMemoryRepo())
	actor := engineerAt(1)

	_, err := svc.Create(context.Background(), actor, CreateInput{})
	var vErr *shared.ValidationError
	require.ErrorAs(t, err, &vErr)

	_, err = svc.Create(context.Background(), actor, CreateInput{Items: []ItemInput{
		{MaterialID: 1, Quantity: -1},
	}})
	require.ErrorAs(t, err, &vErr)

	// unknown material
	_, err = svc.Create(context.Background(), actor, CreateInput{Items: []ItemInput{
		{MaterialID: 99, Quantity: 5},
	}})
	require.ErrorAs(t, err, &vErr)
	require.Contains(t, vErr.Error(), "99")
}

func TestTransitionLadder(t *testing.T) {
	cases := []struct {
		name    string
		role    shared.Role
		current Status
		action  Action
		want    Status
		wantErr error
	}{
		{"purchase approves pending", shared.RolePurchaseTeam, StatusPending, ActionApprove, StatusPurchaseApproved, nil},
		{"director approves purchase approved", shared.RoleDirector, StatusPurchaseApproved, ActionApprove, StatusDirectorApproved, nil},
		{"director cannot skip purchase tier", shared.RoleDirector, StatusPending, ActionApprove, "", shared.ErrStateConflict},
		{"purchase cannot approve twice", shared.RolePurchaseTeam, StatusPurchaseApproved, ActionApprove, "", shared.ErrStateConflict},
		{"no approval past director tier", shared.RoleDirector, StatusDirectorApproved, ActionApprove, "", shared.ErrStateConflict},
		{"purchase rejects pending", shared.RolePurchaseTeam, StatusPending, ActionReject, StatusRejected, nil},
		{"director rejects purchase approved", shared.RoleDirector, StatusPurchaseApproved, ActionReject, StatusRejected, nil},
		{"cannot reject completed", shared.RoleDirector, StatusCompleted, ActionReject, "", shared.ErrStateConflict},
		{"cannot reject rejected", shared.RolePurchaseTeam, StatusRejected, ActionReject, "", shared.ErrStateConflict},
		{"engineer cannot approve", shared.RoleSiteEngineer, StatusPending, ActionApprove, "", shared.ErrForbidden},
		{"engineer cannot reject", shared.RoleSiteEngineer, StatusPending, ActionReject, "", shared.ErrForbidden},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Transition(tc.role, tc.current, tc.action)
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestTransitionUnknownAction(t *testing.T) {
	_, err := Transition(shared.RolePurchaseTeam, StatusPending, Action("escalate"))
	var vErr *shared.ValidationError
	require.ErrorAs(t, err, &vErr)
}

func TestApproveStampsApprovers(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)

	indent, err := svc.Create(context.Background(), engineerAt(1), CreateInput{Items: []ItemInput{
		{MaterialID: 1, Quantity: 10, EstimatedUnitCost: ptr(100)},
	}})
	require.NoError(t, err)

	status, err := svc.Approve(context.Background(), purchaseTeam(), indent.ID, ActionApprove, "")
	require.NoError(t, err)
	require.Equal(t, StatusPurchaseApproved, status)

	stored := repo.indents[indent.ID]
	require.NotNil(t, stored.PurchaseApprovedBy)
	require.Equal(t, int64(20), *stored.PurchaseApprovedBy)
	require.NotNil(t, stored.PurchaseApprovedAt)

	status, err = svc.Approve(context.Background(), director(), indent.ID, ActionApprove, "")
	require.NoError(t, err)
	require.Equal(t, StatusDirectorApproved, status)
	require.NotNil(t, stored.DirectorApprovedBy)
	require.Equal(t, int64(30), *stored.DirectorApprovedBy)
}

func TestApproveRereadsStatusAtWrite(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)

	indent, err := svc.Create(context.Background(), engineerAt(1), CreateInput{Items: []ItemInput{
		{MaterialID: 1, Quantity: 10},
	}})
	require.NoError(t, err)

	// A rejection commits after the approver loaded the indent but before
	// their approval transaction begins. The transition must be decided on
	// the status as of the write, so the approve loses.
	reason := "budget withdrawn"
	repo.beforeTx = func() {
		repo.indents[indent.ID].Status = StatusRejected
		repo.indents[indent.ID].RejectionReason = &reason
	}

	_, err = svc.Approve(context.Background(), purchaseTeam(), indent.ID, ActionApprove, "")
	require.ErrorIs(t, err, shared.ErrStateConflict)
	require.Equal(t, StatusRejected, repo.indents[indent.ID].Status)
	require.Nil(t, repo.indents[indent.ID].PurchaseApprovedBy)
}

func TestRejectRequiresReason(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)

	indent, err := svc.Create(context.Background(), engineerAt(1), CreateInput{Items: []ItemInput{
		{MaterialID: 1, Quantity: 10},
	}})
	require.NoError(t, err)

	_, err = svc.Approve(context.Background(), director(), indent.ID, ActionReject, "  ")
	var vErr *shared.ValidationError
	require.ErrorAs(t, err, &vErr)
	require.Equal(t, StatusPending, repo.indents[indent.ID].Status)

	status, err := svc.Approve(context.Background(), director(), indent.ID, ActionReject, "duplicate request")
	require.NoError(t, err)
	require.Equal(t, StatusRejected, status)
	require.NotNil(t, repo.indents[indent.ID].RejectionReason)
	require.Equal(t, "duplicate request", *repo.indents[indent.ID].RejectionReason)
}

func TestListAppliesSiteFilter(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)

	_, err := svc.Create(context.Background(), engineerAt(1), CreateInput{Items: []ItemInput{{MaterialID: 1, Quantity: 1}}})
	require.NoError(t, err)
	_, err = svc.Create(context.Background(), engineerAt(2), CreateInput{Items: []ItemInput{{MaterialID: 2, Quantity: 2}}})
	require.NoError(t, err)

	mine, err := svc.List(context.Background(), engineerAt(1), "", shared.PageParams{Limit: 50})
	require.NoError(t, err)
	require.Len(t, mine, 1)
	require.Equal(t, int64(1), mine[0].SiteID)

	all, err := svc.List(context.Background(), purchaseTeam(), "", shared.PageParams{Limit: 50})
	require.NoError(t, err)
	require.Len(t, all, 2)
}

func TestGetEnforcesSiteIsolation(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)

	indent, err := svc.Create(context.Background(), engineerAt(2), CreateInput{Items: []ItemInput{{MaterialID: 1, Quantity: 1}}})
	require.NoError(t, err)

	_, _, err = svc.Get(context.Background(), engineerAt(1), indent.ID)
	require.ErrorIs(t, err, shared.ErrForbidden)

	got, items, err := svc.Get(context.Background(), director(), indent.ID)
	require.NoError(t, err)
	require.Equal(t, indent.ID, got.ID)
	require.Len(t, items, 1)
}
