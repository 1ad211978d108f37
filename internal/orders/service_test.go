package orders

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/thebenmerlin/material-management-api/internal/shared"
)

// memoryRepo implements RepositoryPort and TxRepository for service tests.
type memoryRepo struct {
	nextID  int64
	indents map[int64]*IndentRef
	orders  map[int64]*Order
	items   map[int64][]Item
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{nextID: 1, indents: map[int64]*IndentRef{}, orders: map[int64]*Order{}, items: map[int64][]Item{}}
}

func (m *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, m)
}

func (m *memoryRepo) GetOrder(_ context.Context, id int64) (*Order, error) {
	o, ok := m.orders[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	copied := *o
	if ref, ok := m.indents[o.IndentID]; ok {
		copied.SiteID = ref.SiteID
	}
	if copied.TotalAmount != nil {
		amount := *copied.TotalAmount
		copied.TotalAmount = &amount
	}
	return &copied, nil
}

func (m *memoryRepo) GetItems(_ context.Context, orderID int64) ([]Item, error) {
	stored := m.items[orderID]
	out := make([]Item, len(stored))
	for i, item := range stored {
		out[i] = item
		if item.UnitPrice != nil {
			up := *item.UnitPrice
			out[i].UnitPrice = &up
		}
		if item.TotalPrice != nil {
			tp := *item.TotalPrice
			out[i].TotalPrice = &tp
		}
	}
	return out, nil
}

func (m *memoryRepo) ListOrders(_ context.Context, filter ListFilter) ([]Order, error) {
	var out []Order
	for id := range m.orders {
		o, _ := m.GetOrder(context.Background(), id)
		if filter.SiteID != nil && o.SiteID != *filter.SiteID {
			continue
		}
		if filter.Status != "" && o.Status != filter.Status {
			continue
		}
		out = append(out, *o)
	}
	return out, nil
}

func (m *memoryRepo) GetIndentForOrder(_ context.Context, indentID int64) (*IndentRef, error) {
	ref, ok := m.indents[indentID]
	if !ok {
		return nil, shared.ErrNotFound
	}
	copied := *ref
	return &copied, nil
}

func (m *memoryRepo) OrderExistsForIndent(_ context.Context, indentID int64) (bool, error) {
	for _, o := range m.orders {
		if o.IndentID == indentID {
			return true, nil
		}
	}
	return false, nil
}

func (m *memoryRepo) CreateOrder(_ context.Context, o Order) (int64, error) {
	for _, existing := range m.orders {
		if existing.IndentID == o.IndentID {
			return 0, fmt.Errorf("%w: order already exists for this indent", shared.ErrStateConflict)
		}
	}
	id := m.nextID
	m.nextID++
	o.ID = id
	o.Version = 1
	m.orders[id] = &o
	return id, nil
}

func (m *memoryRepo) InsertItem(_ context.Context, item Item) error {
	m.items[item.OrderID] = append(m.items[item.OrderID], item)
	return nil
}

func (m *memoryRepo) GetOrderForUpdate(_ context.Context, id int64) (*Order, error) {
	o, ok := m.orders[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	copied := *o
	return &copied, nil
}

func (m *memoryRepo) UpdateOrder(_ context.Context, o Order) error {
	stored, ok := m.orders[o.ID]
	if !ok {
		return shared.ErrNotFound
	}
	stored.VendorName = o.VendorName
	stored.VendorContact = o.VendorContact
	stored.VendorAddress = o.VendorAddress
	stored.ExpectedDeliveryDate = o.ExpectedDeliveryDate
	stored.TotalAmount = o.TotalAmount
	stored.Version++
	return nil
}

func (m *memoryRepo) DeleteItems(_ context.Context, orderID int64) error {
	delete(m.items, orderID)
	return nil
}

func purchaseTeam() shared.Identity {
	return shared.Identity{UserID: 20, Role: shared.RolePurchaseTeam}
}

func engineerAt(site int64) shared.Identity {
	return shared.Identity{UserID: 10, Role: shared.RoleSiteEngineer, SiteID: &site}
}

func newTestService(repo *memoryRepo) *Service {
	svc := NewService(repo)
	svc.now = func() time.Time { return time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC) }
	return svc
}

func approvedIndent(repo *memoryRepo, id, siteID int64) {
	repo.indents[id] = &IndentRef{ID: id, Status: "Director Approved", SiteID: siteID}
}

func validInput(indentID int64) CreateInput {
	return CreateInput{
		IndentID:      indentID,
		VendorName:    "Acme Suppliers",
		VendorContact: "9876543210",
		Items: []ItemInput{
			{MaterialID: 1, Quantity: 100, UnitPrice: 350},
			{MaterialID: 2, Quantity: 40, UnitPrice: 12.5},
		},
	}
}

func TestCreateOrderComputesTotals(t *testing.T) {
	repo := newMemoryRepo()
	approvedIndent(repo, 5, 1)
	svc := newTestService(repo)

	order, err := svc.Create(context.Background(), purchaseTeam(), validInput(5))
	require.NoError(t, err)
	require.Equal(t, StatusOrdered, order.Status)
	require.Contains(t, order.OrderNumber, "ORD-5-")
	require.NotNil(t, order.TotalAmount)
	require.Equal(t, 100*350+40*12.5, *order.TotalAmount)

	items := repo.items[order.ID]
	require.Len(t, items, 2)
	require.Equal(t, float64(35000), *items[0].TotalPrice)
	require.Equal(t, float64(500), *items[1].TotalPrice)
}

func TestCreateOrderRequiresDirectorApproval(t *testing.T) {
	repo := newMemoryRepo()
	repo.indents[5] = &IndentRef{ID: 5, Status: "Purchase Approved", SiteID: 1}
	svc := newTestService(repo)

	_, err := svc.Create(context.Background(), purchaseTeam(), validInput(5))
	require.ErrorIs(t, err, shared.ErrStateConflict)
}

func TestCreateOrderMissingIndent(t *testing.T) {
	svc := newTestService(newMemoryRepo())

	_, err := svc.Create(context.Background(), purchaseTeam(), validInput(99))
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestCreateOrderRejectsDuplicate(t *testing.T) {
	repo := newMemoryRepo()
	approvedIndent(repo, 5, 1)
	svc := newTestService(repo)

	_, err := svc.Create(context.Background(), purchaseTeam(), validInput(5))
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), purchaseTeam(), validInput(5))
	require.ErrorIs(t, err, shared.ErrStateConflict)
}

func TestCreateOrderRoleGate(t *testing.T) {
	repo := newMemoryRepo()
	approvedIndent(repo, 5, 1)
	svc := newTestService(repo)

	_, err := svc.Create(context.Background(), engineerAt(1), validInput(5))
	require.ErrorIs(t, err, shared.ErrForbidden)
	require.Empty(t, repo.orders)
}

func TestUpdateOrderReplacesItemsAndRecomputes(t *testing.T) {
	repo := newMemoryRepo()
	approvedIndent(repo, 5, 1)
	svc := newTestService(repo)

	order, err := svc.Create(context.Background(), purchaseTeam(), validInput(5))
	require.NoError(t, err)

	err = svc.Update(context.Background(), purchaseTeam(), order.ID, UpdateInput{
		VendorName:    "Acme Suppliers",
		VendorContact: "9876543210",
		Items: []ItemInput{
			{MaterialID: 3, Quantity: 10, UnitPrice: 90},
		},
	})
	require.NoError(t, err)

	stored := repo.orders[order.ID]
	require.Equal(t, float64(900), *stored.TotalAmount)
	require.Equal(t, 2, stored.Version)

	items := repo.items[order.ID]
	require.Len(t, items, 1)
	require.Equal(t, int64(3), items[0].MaterialID)
}

func TestUpdateOrderVersionConflict(t *testing.T) {
	repo := newMemoryRepo()
	approvedIndent(repo, 5, 1)
	svc := newTestService(repo)

	order, err := svc.Create(context.Background(), purchaseTeam(), validInput(5))
	require.NoError(t, err)

	stale := 0
	err = svc.Update(context.Background(), purchaseTeam(), order.ID, UpdateInput{
		VendorName:    "Acme Suppliers",
		VendorContact: "9876543210",
		Items:         []ItemInput{{MaterialID: 1, Quantity: 1, UnitPrice: 1}},
		Version:       &stale,
	})
	require.ErrorIs(t, err, shared.ErrStateConflict)
}

func TestGetOrderSiteIsolationAndRedaction(t *testing.T) {
	repo := newMemoryRepo()
	approvedIndent(repo, 5, 2)
	svc := newTestService(repo)

	order, err := svc.Create(context.Background(), purchaseTeam(), validInput(5))
	require.NoError(t, err)

	// Engineer on another site is refused outright.
	_, _, err = svc.Get(context.Background(), engineerAt(1), order.ID)
	require.ErrorIs(t, err, shared.ErrForbidden)

	// Engineer on the order's site sees it with pricing stripped.
	got, items, err := svc.Get(context.Background(), engineerAt(2), order.ID)
	require.NoError(t, err)
	require.Nil(t, got.TotalAmount)
	for _, item := range items {
		require.Nil(t, item.UnitPrice)
		require.Nil(t, item.TotalPrice)
	}

	// Purchase Team sees full pricing.
	got, items, err = svc.Get(context.Background(), purchaseTeam(), order.ID)
	require.NoError(t, err)
	require.NotNil(t, got.TotalAmount)
	require.NotNil(t, items[0].UnitPrice)
}

func TestListOrdersSiteFilterAndRedaction(t *testing.T) {
	repo := newMemoryRepo()
	approvedIndent(repo, 5, 1)
	approvedIndent(repo, 6, 2)
	svc := newTestService(repo)

	_, err := svc.Create(context.Background(), purchaseTeam(), validInput(5))
	require.NoError(t, err)
	_, err = svc.Create(context.Background(), purchaseTeam(), validInput(6))
	require.NoError(t, err)

	mine, err := svc.List(context.Background(), engineerAt(1), "", shared.PageParams{Limit: 50})
	require.NoError(t, err)
	require.Len(t, mine, 1)
	require.Nil(t, mine[0].TotalAmount)

	all, err := svc.List(context.Background(), purchaseTeam(), "", shared.PageParams{Limit: 50})
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.NotNil(t, all[0].TotalAmount)
}
