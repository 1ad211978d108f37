package receipts

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/thebenmerlin/material-management-api/internal/orders"
	"github.com/thebenmerlin/material-management-api/internal/shared"
)

// memoryRepo implements RepositoryPort and TxRepository for service tests.
type memoryRepo struct {
	nextID       int64
	orderRefs    map[int64]*OrderRef
	orderLines   map[int64][]OrderLine
	receipts     map[int64]*Receipt
	items        map[int64][]Item
	images       map[int64][]Image
	orderStatus  map[int64]string
	indentStatus map[int64]string
	failOnInsert bool
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		nextID:       1,
		orderRefs:    map[int64]*OrderRef{},
		orderLines:   map[int64][]OrderLine{},
		receipts:     map[int64]*Receipt{},
		items:        map[int64][]Item{},
		images:       map[int64][]Image{},
		orderStatus:  map[int64]string{},
		indentStatus: map[int64]string{},
	}
}

func (m *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	snapshot := m.clone()
	if err := fn(ctx, m); err != nil {
		// Roll back by restoring the snapshot.
		*m = *snapshot
		return err
	}
	return nil
}

func (m *memoryRepo) clone() *memoryRepo {
	c := newMemoryRepo()
	c.nextID = m.nextID
	for k, v := range m.orderRefs {
		ref := *v
		c.orderRefs[k] = &ref
	}
	for k, v := range m.orderLines {
		c.orderLines[k] = append([]OrderLine(nil), v...)
	}
	for k, v := range m.receipts {
		rec := *v
		c.receipts[k] = &rec
	}
	for k, v := range m.items {
		c.items[k] = append([]Item(nil), v...)
	}
	for k, v := range m.images {
		c.images[k] = append([]Image(nil), v...)
	}
	for k, v := range m.orderStatus {
		c.orderStatus[k] = v
	}
	for k, v := range m.indentStatus {
		c.indentStatus[k] = v
	}
	return c
}

func (m *memoryRepo) GetReceipt(_ context.Context, id int64) (*Receipt, error) {
	rec, ok := m.receipts[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	copied := *rec
	if ref, ok := m.orderRefs[rec.OrderID]; ok {
		copied.SiteID = ref.SiteID
	}
	return &copied, nil
}

func (m *memoryRepo) GetItems(_ context.Context, receiptID int64) ([]Item, error) {
	stored := m.items[receiptID]
	out := make([]Item, len(stored))
	for i, item := range stored {
		out[i] = item
		up, tp := 100.0, 100.0*item.ReceivedQuantity
		out[i].UnitPrice = &up
		out[i].TotalPrice = &tp
	}
	return out, nil
}

func (m *memoryRepo) GetImages(_ context.Context, receiptID int64) ([]Image, error) {
	return m.images[receiptID], nil
}

func (m *memoryRepo) ListReceipts(_ context.Context, filter ListFilter) ([]Receipt, error) {
	var out []Receipt
	for id, rec := range m.receipts {
		ref := m.orderRefs[rec.OrderID]
		if filter.SiteID != nil && ref.SiteID != *filter.SiteID {
			continue
		}
		if filter.OrderID > 0 && rec.OrderID != filter.OrderID {
			continue
		}
		copied, _ := m.GetReceipt(context.Background(), id)
		out = append(out, *copied)
	}
	return out, nil
}

func (m *memoryRepo) GetOrderRef(_ context.Context, orderID int64) (*OrderRef, error) {
	ref, ok := m.orderRefs[orderID]
	if !ok {
		return nil, shared.ErrNotFound
	}
	copied := *ref
	return &copied, nil
}

func (m *memoryRepo) CreateReceipt(_ context.Context, rec Receipt) (int64, error) {
	id := m.nextID
	m.nextID++
	rec.ID = id
	m.receipts[id] = &rec
	return id, nil
}

func (m *memoryRepo) InsertItem(_ context.Context, item Item) error {
	if m.failOnInsert {
		return errors.New("storage failure")
	}
	m.items[item.ReceiptID] = append(m.items[item.ReceiptID], item)
	return nil
}

func (m *memoryRepo) InsertImage(_ context.Context, img Image) error {
	m.images[img.ReceiptID] = append(m.images[img.ReceiptID], img)
	return nil
}

func (m *memoryRepo) GetOrderLines(_ context.Context, orderID int64) ([]OrderLine, error) {
	return m.orderLines[orderID], nil
}

func (m *memoryRepo) SumAccounted(_ context.Context, orderID int64) (map[int64]float64, error) {
	lineOwner := map[int64]bool{}
	for _, line := range m.orderLines[orderID] {
		lineOwner[line.OrderItemID] = true
	}
	accounted := map[int64]float64{}
	for _, items := range m.items {
		for _, item := range items {
			if lineOwner[item.OrderItemID] {
				accounted[item.OrderItemID] += item.ReceivedQuantity + item.DamagedQuantity + item.ReturnedQuantity
			}
		}
	}
	return accounted, nil
}

func (m *memoryRepo) SetOrderStatus(_ context.Context, orderID int64, status string) error {
	m.orderStatus[orderID] = status
	return nil
}

func (m *memoryRepo) CompleteIndent(_ context.Context, indentID int64) error {
	m.indentStatus[indentID] = "Completed"
	return nil
}

// memoryStore is an in-memory ImageStore.
type memoryStore struct {
	nextKey int
	stored  map[string][]byte
	removed []string
}

func newMemoryStore() *memoryStore {
	return &memoryStore{stored: map[string][]byte{}}
}

func (m *memoryStore) Put(_ context.Context, filename, _ string, _ int64, body io.Reader) (string, error) {
	m.nextKey++
	key := fmt.Sprintf("receipts/%d-%s", m.nextKey, filename)
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	m.stored[key] = data
	return key, nil
}

func (m *memoryStore) Remove(_ context.Context, key string) error {
	delete(m.stored, key)
	m.removed = append(m.removed, key)
	return nil
}

func engineerAt(site int64) shared.Identity {
	return shared.Identity{UserID: 10, Role: shared.RoleSiteEngineer, SiteID: &site}
}

func director() shared.Identity {
	return shared.Identity{UserID: 30, Role: shared.RoleDirector}
}

func newTestService(repo *memoryRepo, store *memoryStore) *Service {
	svc := NewService(repo, store)
	svc.now = func() time.Time { return time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC) }
	return svc
}

// seedOrder registers an order with two lines: item 1 ordered 100, item 2
// ordered 50.
func seedOrder(repo *memoryRepo, orderID, indentID, siteID int64) {
	repo.orderRefs[orderID] = &OrderRef{ID: orderID, IndentID: indentID, SiteID: siteID, Status: "Ordered"}
	repo.orderLines[orderID] = []OrderLine{
		{OrderItemID: 1, Ordered: 100},
		{OrderItemID: 2, Ordered: 50},
	}
	repo.orderStatus[orderID] = "Ordered"
	repo.indentStatus[indentID] = "Director Approved"
}

func TestCreateReceiptFullDeliveryCompletesOrderAndIndent(t *testing.T) {
	repo := newMemoryRepo()
	seedOrder(repo, 7, 5, 1)
	svc := newTestService(repo, newMemoryStore())

	result, err := svc.Create(context.Background(), engineerAt(1), CreateInput{
		OrderID: 7,
		Items: []ItemInput{
			{OrderItemID: 1, ReceivedQuantity: 100},
			{OrderItemID: 2, ReceivedQuantity: 45, DamagedQuantity: 3, ReturnedQuantity: 2},
		},
	})
	require.NoError(t, err)
	require.Equal(t, orders.StatusCompleted, result.OrderStatus)
	require.True(t, result.IndentCompleted)
	require.Contains(t, result.Receipt.ReceiptNumber, "REC-7-")
	require.Equal(t, "Completed", repo.orderStatus[7])
	require.Equal(t, "Completed", repo.indentStatus[5])
}

func TestCreateReceiptShortDeliveryStaysPartial(t *testing.T) {
	repo := newMemoryRepo()
	seedOrder(repo, 7, 5, 1)
	svc := newTestService(repo, newMemoryStore())

	result, err := svc.Create(context.Background(), engineerAt(1), CreateInput{
		OrderID: 7,
		Items: []ItemInput{
			{OrderItemID: 1, ReceivedQuantity: 60},
			{OrderItemID: 2, ReceivedQuantity: 50},
		},
	})
	require.NoError(t, err)
	require.Equal(t, orders.StatusPartiallyReceived, result.OrderStatus)
	require.False(t, result.IndentCompleted)
	require.Equal(t, "Partially Received", repo.orderStatus[7])
	require.Equal(t, "Director Approved", repo.indentStatus[5])
}

func TestCreateReceiptAccumulatesAcrossReceipts(t *testing.T) {
	repo := newMemoryRepo()
	seedOrder(repo, 7, 5, 1)
	svc := newTestService(repo, newMemoryStore())

	// First partial delivery.
	result, err := svc.Create(context.Background(), engineerAt(1), CreateInput{
		OrderID:   7,
		IsPartial: true,
		Items: []ItemInput{
			{OrderItemID: 1, ReceivedQuantity: 40},
			{OrderItemID: 2, ReceivedQuantity: 20},
		},
	})
	require.NoError(t, err)
	require.Equal(t, orders.StatusPartiallyReceived, result.OrderStatus)

	// Second delivery tops both lines up; the order completes even though
	// neither receipt alone covers the ordered quantities.
	result, err = svc.Create(context.Background(), engineerAt(1), CreateInput{
		OrderID: 7,
		Items: []ItemInput{
			{OrderItemID: 1, ReceivedQuantity: 55, DamagedQuantity: 5},
			{OrderItemID: 2, ReceivedQuantity: 30},
		},
	})
	require.NoError(t, err)
	require.Equal(t, orders.StatusCompleted, result.OrderStatus)
	require.Equal(t, "Completed", repo.indentStatus[5])
}

func TestCreateReceiptRoleAndSiteGates(t *testing.T) {
	repo := newMemoryRepo()
	seedOrder(repo, 7, 5, 2)
	svc := newTestService(repo, newMemoryStore())

	input := CreateInput{OrderID: 7, Items: []ItemInput{{OrderItemID: 1, ReceivedQuantity: 10}}}

	_, err := svc.Create(context.Background(), director(), input)
	require.ErrorIs(t, err, shared.ErrForbidden)

	_, err = svc.Create(context.Background(), engineerAt(1), input)
	require.ErrorIs(t, err, shared.ErrForbidden)

	_, err = svc.Create(context.Background(), engineerAt(2), input)
	require.NoError(t, err)
}

func TestCreateReceiptRejectsForeignOrderItem(t *testing.T) {
	repo := newMemoryRepo()
	seedOrder(repo, 7, 5, 1)
	svc := newTestService(repo, newMemoryStore())

	_, err := svc.Create(context.Background(), engineerAt(1), CreateInput{
		OrderID: 7,
		Items:   []ItemInput{{OrderItemID: 99, ReceivedQuantity: 10}},
	})
	var vErr *shared.ValidationError
	require.ErrorAs(t, err, &vErr)
	require.Empty(t, repo.receipts)
}

func TestCreateReceiptMissingOrder(t *testing.T) {
	svc := newTestService(newMemoryRepo(), newMemoryStore())

	_, err := svc.Create(context.Background(), engineerAt(1), CreateInput{
		OrderID: 99,
		Items:   []ItemInput{{OrderItemID: 1, ReceivedQuantity: 10}},
	})
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestCreateReceiptCleansUpImagesOnFailure(t *testing.T) {
	repo := newMemoryRepo()
	seedOrder(repo, 7, 5, 1)
	repo.failOnInsert = true
	store := newMemoryStore()
	svc := newTestService(repo, store)

	_, err := svc.Create(context.Background(), engineerAt(1), CreateInput{
		OrderID: 7,
		Items:   []ItemInput{{OrderItemID: 1, ReceivedQuantity: 10}},
		Images: []ImageInput{
			{Filename: "damage.jpg", ContentType: "image/jpeg", Size: 4, Body: bytes.NewReader([]byte("abcd")), Type: "damage"},
		},
	})
	require.Error(t, err)
	require.Empty(t, store.stored)
	require.Len(t, store.removed, 1)
	require.Empty(t, repo.receipts)
	require.Equal(t, "Ordered", repo.orderStatus[7])
}

func TestCreateReceiptStoresImagesWithMetadata(t *testing.T) {
	repo := newMemoryRepo()
	seedOrder(repo, 7, 5, 1)
	store := newMemoryStore()
	svc := newTestService(repo, store)

	result, err := svc.Create(context.Background(), engineerAt(1), CreateInput{
		OrderID: 7,
		Items:   []ItemInput{{OrderItemID: 1, ReceivedQuantity: 10}},
		Images: []ImageInput{
			{Filename: "challan.jpg", ContentType: "image/jpeg", Size: 4, Body: bytes.NewReader([]byte("abcd")), Type: "delivery_challan", Description: "challan photo"},
			{Filename: "pile.png", ContentType: "image/png", Size: 4, Body: bytes.NewReader([]byte("wxyz"))},
		},
	})
	require.NoError(t, err)

	images := repo.images[result.Receipt.ID]
	require.Len(t, images, 2)
	require.Equal(t, "delivery_challan", images[0].ImageType)
	require.Equal(t, "challan photo", images[0].Description)
	// Untyped uploads default to general.
	require.Equal(t, "general", images[1].ImageType)
	require.Len(t, store.stored, 2)
}

func TestGetReceiptRedactsPricingForEngineer(t *testing.T) {
	repo := newMemoryRepo()
	seedOrder(repo, 7, 5, 1)
	svc := newTestService(repo, newMemoryStore())

	result, err := svc.Create(context.Background(), engineerAt(1), CreateInput{
		OrderID: 7,
		Items:   []ItemInput{{OrderItemID: 1, ReceivedQuantity: 10}},
	})
	require.NoError(t, err)

	_, items, _, err := svc.Get(context.Background(), engineerAt(1), result.Receipt.ID)
	require.NoError(t, err)
	require.Nil(t, items[0].UnitPrice)
	require.Nil(t, items[0].TotalPrice)

	_, items, _, err = svc.Get(context.Background(), director(), result.Receipt.ID)
	require.NoError(t, err)
	require.NotNil(t, items[0].UnitPrice)

	_, _, _, err = svc.Get(context.Background(), engineerAt(2), result.Receipt.ID)
	require.ErrorIs(t, err, shared.ErrForbidden)
}

func TestOrderFulfilled(t *testing.T) {
	lines := []OrderLine{{OrderItemID: 1, Ordered: 100}, {OrderItemID: 2, Ordered: 50}}

	require.True(t, OrderFulfilled(lines, map[int64]float64{1: 100, 2: 50}))
	require.True(t, OrderFulfilled(lines, map[int64]float64{1: 120, 2: 50}))
	require.False(t, OrderFulfilled(lines, map[int64]float64{1: 100, 2: 49}))
	require.False(t, OrderFulfilled(lines, map[int64]float64{1: 100}))
	require.False(t, OrderFulfilled(nil, map[int64]float64{}))
}
