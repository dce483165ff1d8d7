package redemption

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tradewind-oms/tradewind-oms/internal/purchaseorders"
)

type memoryOrderRepo struct {
	orders   map[int64]Order
	history  map[int64][]StatusChange
	comments map[int64][]Comment
	nextID   int64
}

func newMemoryOrderRepo() *memoryOrderRepo {
	return &memoryOrderRepo{
		orders:   make(map[int64]Order),
		history:  make(map[int64][]StatusChange),
		comments: make(map[int64][]Comment),
	}
}

func (r *memoryOrderRepo) List(ctx context.Context, filters ListFilters) ([]Order, int, error) {
	var out []Order
	for _, o := range r.orders {
		if filters.Channel != "" && o.Channel != filters.Channel {
			continue
		}
		if filters.Status != "" && o.Status != filters.Status {
			continue
		}
		out = append(out, o)
	}
	return out, len(out), nil
}

func (r *memoryOrderRepo) Get(ctx context.Context, id int64) (Order, error) {
	o, ok := r.orders[id]
	if !ok {
		return Order{}, ErrNotFound
	}
	return o, nil
}

func (r *memoryOrderRepo) Create(ctx context.Context, order Order) (Order, error) {
	r.nextID++
	order.ID = r.nextID
	r.orders[order.ID] = order
	return order, nil
}

func (r *memoryOrderRepo) CreateBatch(ctx context.Context, orders []Order) ([]Order, error) {
	var inserted []Order
	for _, order := range orders {
		dup := false
		for _, existing := range r.orders {
			if existing.Channel == order.Channel && existing.OrderNumber == order.OrderNumber {
				dup = true
				break
			}
		}
		if dup {
			continue
		}
		created, _ := r.Create(ctx, order)
		inserted = append(inserted, created)
	}
	return inserted, nil
}

func (r *memoryOrderRepo) Update(ctx context.Context, id int64, order Order) error {
	existing, ok := r.orders[id]
	if !ok {
		return ErrNotFound
	}
	existing.CustomerName = order.CustomerName
	existing.Quantity = order.Quantity
	r.orders[id] = existing
	return nil
}

func (r *memoryOrderRepo) SetStatus(ctx context.Context, id int64, change StatusChange, poNumber string) error {
	o, ok := r.orders[id]
	if !ok {
		return ErrNotFound
	}
	o.Status = change.To
	if poNumber != "" {
		o.PONumber = poNumber
	}
	r.orders[id] = o
	change.ChangedAt = time.Now()
	r.history[id] = append(r.history[id], change)
	return nil
}

func (r *memoryOrderRepo) SoftDelete(ctx context.Context, id int64) error {
	if _, ok := r.orders[id]; !ok {
		return ErrNotFound
	}
	delete(r.orders, id)
	return nil
}

func (r *memoryOrderRepo) ListInvoiceable(ctx context.Context, channel Channel, from, to time.Time) ([]Order, error) {
	var out []Order
	for _, o := range r.orders {
		if o.Channel != channel {
			continue
		}
		switch o.Status {
		case StatusPurchased, StatusDispatched, StatusDelivered:
		default:
			continue
		}
		if o.OrderDate.Before(from) || o.OrderDate.After(to) {
			continue
		}
		out = append(out, o)
	}
	return out, nil
}

func (r *memoryOrderRepo) History(ctx context.Context, orderID int64) ([]StatusChange, error) {
	return r.history[orderID], nil
}

func (r *memoryOrderRepo) AddComment(ctx context.Context, comment Comment) (Comment, error) {
	r.nextID++
	comment.ID = r.nextID
	r.comments[comment.OrderID] = append(r.comments[comment.OrderID], comment)
	return comment, nil
}

func (r *memoryOrderRepo) Comments(ctx context.Context, orderID int64) ([]Comment, error) {
	return r.comments[orderID], nil
}

func pendingOrder(number string, channel Channel) Order {
	return Order{
		Channel:      channel,
		OrderNumber:  number,
		CustomerName: "Asha Rao",
		ProductID:    7,
		ProductName:  "Mixer",
		GiftCode:     "GC-7",
		Quantity:     1,
	}
}

func TestBulkImportSkipsDuplicates(t *testing.T) {
	svc := NewService(newMemoryOrderRepo())
	ctx := context.Background()

	first, err := svc.BulkImport(ctx, ChannelBank, []Order{
		pendingOrder("BO-1", ChannelBank),
		pendingOrder("BO-2", ChannelBank),
	})
	require.NoError(t, err)
	require.Len(t, first, 2)

	again, err := svc.BulkImport(ctx, ChannelBank, []Order{
		pendingOrder("BO-2", ChannelBank),
		pendingOrder("BO-3", ChannelBank),
	})
	require.NoError(t, err)
	require.Len(t, again, 1)
	require.Equal(t, "BO-3", again[0].OrderNumber)
}

func TestBulkImportValidatesRows(t *testing.T) {
	svc := NewService(newMemoryOrderRepo())
	bad := pendingOrder("BO-1", ChannelBank)
	bad.Quantity = 0
	_, err := svc.BulkImport(context.Background(), ChannelBank, []Order{bad})
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.BulkImport(context.Background(), Channel("fax"), []Order{pendingOrder("BO-1", "fax")})
	require.ErrorIs(t, err, ErrValidation)
}

func TestSetStatusRecordsHistory(t *testing.T) {
	svc := NewService(newMemoryOrderRepo())
	ctx := context.Background()

	created, err := svc.Create(ctx, pendingOrder("BO-1", ChannelBank))
	require.NoError(t, err)

	require.NoError(t, svc.SetStatus(ctx, created.ID, StatusDispatched, "courier booked"))
	// Setting the same status again is a no-op, not an extra history row.
	require.NoError(t, svc.SetStatus(ctx, created.ID, StatusDispatched, ""))

	history, err := svc.History(ctx, created.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Equal(t, StatusPending, history[0].From)
	require.Equal(t, StatusDispatched, history[0].To)
	require.Equal(t, "courier booked", history[0].Note)
}

func TestPOAdapterFlow(t *testing.T) {
	svc := NewService(newMemoryOrderRepo())
	adapter := NewPOAdapter(svc)
	ctx := context.Background()

	created, err := svc.Create(ctx, pendingOrder("BO-1", ChannelBank))
	require.NoError(t, err)

	line, err := adapter.GetOrderLine(ctx, purchaseorders.ChannelBank, created.ID)
	require.NoError(t, err)
	require.Equal(t, created.ID, line.OrderID)
	require.Equal(t, "GC-7", line.GiftCode)

	// Wrong channel is refused.
	_, err = adapter.GetOrderLine(ctx, purchaseorders.ChannelBIP, created.ID)
	require.ErrorIs(t, err, ErrValidation)

	require.NoError(t, adapter.MarkPurchased(ctx, purchaseorders.ChannelBank, created.ID, "PO-99"))
	got, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, StatusPurchased, got.Status)
	require.Equal(t, "PO-99", got.PONumber)

	// Purchased orders are no longer eligible for PO creation.
	_, err = adapter.GetOrderLine(ctx, purchaseorders.ChannelBank, created.ID)
	require.ErrorIs(t, err, ErrValidation)
}

func TestDeleteGuardsFulfilledOrders(t *testing.T) {
	svc := NewService(newMemoryOrderRepo())
	adapter := NewPOAdapter(svc)
	ctx := context.Background()

	covered, err := svc.Create(ctx, pendingOrder("BO-1", ChannelBank))
	require.NoError(t, err)
	require.NoError(t, adapter.MarkPurchased(ctx, purchaseorders.ChannelBank, covered.ID, "PO-42"))

	// Once covered by a purchase order, the record stays.
	require.ErrorIs(t, svc.Delete(ctx, covered.ID), ErrValidation)

	open, err := svc.Create(ctx, pendingOrder("BO-2", ChannelBank))
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, open.ID))
	_, err = svc.Get(ctx, open.ID)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSortOrderWhitelist(t *testing.T) {
	require.Equal(t, "customer_name ASC, id DESC", sortOrder("customer_name", "asc"))
	require.Equal(t, "created_at DESC, id DESC", sortOrder("created_at", "desc"))
	// Unknown columns fall back to order date, newest first.
	require.Equal(t, "order_date DESC, id DESC", sortOrder("phone; DROP TABLE", ""))
}

func TestListForInvoiceWindow(t *testing.T) {
	repo := newMemoryOrderRepo()
	svc := NewService(repo)
	adapter := NewPOAdapter(svc)
	ctx := context.Background()

	inside := pendingOrder("BO-1", ChannelBank)
	inside.OrderDate = time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	created, err := svc.Create(ctx, inside)
	require.NoError(t, err)
	require.NoError(t, adapter.MarkPurchased(ctx, purchaseorders.ChannelBank, created.ID, "PO-1"))

	outside := pendingOrder("BO-2", ChannelBank)
	outside.OrderDate = time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	createdOutside, err := svc.Create(ctx, outside)
	require.NoError(t, err)
	require.NoError(t, adapter.MarkPurchased(ctx, purchaseorders.ChannelBank, createdOutside.ID, "PO-2"))

	// Still pending, so not invoiceable even inside the window.
	notPurchased := pendingOrder("BO-3", ChannelBank)
	notPurchased.OrderDate = time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	_, err = svc.Create(ctx, notPurchased)
	require.NoError(t, err)

	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC)
	orders, err := svc.ListForInvoice(ctx, ChannelBank, from, to)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	require.Equal(t, "BO-1", orders[0].OrderNumber)

	_, err = svc.ListForInvoice(ctx, ChannelBank, to, from)
	require.ErrorIs(t, err, ErrValidation)
}

func TestComments(t *testing.T) {
	svc := NewService(newMemoryOrderRepo())
	ctx := context.Background()

	created, err := svc.Create(ctx, pendingOrder("BO-1", ChannelBank))
	require.NoError(t, err)

	_, err = svc.AddComment(ctx, created.ID, "")
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.AddComment(ctx, created.ID, "customer asked for delivery after the 5th")
	require.NoError(t, err)

	comments, err := svc.Comments(ctx, created.ID)
	require.NoError(t, err)
	require.Len(t, comments, 1)
}
