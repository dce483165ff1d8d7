package challans

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tradewind-oms/tradewind-oms/internal/events"
)

type memoryChallanRepo struct {
	challans  map[int64]Challan
	shipments map[int64]Shipment
	nextID    int64
}

func newMemoryChallanRepo() *memoryChallanRepo {
	return &memoryChallanRepo{
		challans:  make(map[int64]Challan),
		shipments: make(map[int64]Shipment),
	}
}

func (r *memoryChallanRepo) List(ctx context.Context, filters ListFilters) ([]Challan, int, error) {
	var out []Challan
	for _, c := range r.challans {
		if filters.Status != "" && c.Status != filters.Status {
			continue
		}
		out = append(out, c)
	}
	return out, len(out), nil
}

func (r *memoryChallanRepo) Get(ctx context.Context, id int64) (Challan, error) {
	c, ok := r.challans[id]
	if !ok {
		return Challan{}, ErrNotFound
	}
	return c, nil
}

func (r *memoryChallanRepo) GetMany(ctx context.Context, ids []int64) ([]Challan, error) {
	var out []Challan
	for _, id := range ids {
		if c, ok := r.challans[id]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *memoryChallanRepo) Create(ctx context.Context, challan Challan) (Challan, error) {
	r.nextID++
	challan.ID = r.nextID
	r.challans[challan.ID] = challan
	return challan, nil
}

func (r *memoryChallanRepo) SetStatus(ctx context.Context, id int64, status Status) error {
	c, ok := r.challans[id]
	if !ok {
		return ErrNotFound
	}
	c.Status = status
	r.challans[id] = c
	return nil
}

func (r *memoryChallanRepo) SetPDFPath(ctx context.Context, id int64, path string) error {
	c, ok := r.challans[id]
	if !ok {
		return ErrNotFound
	}
	c.PDFPath = path
	r.challans[id] = c
	return nil
}

func (r *memoryChallanRepo) CreateShipment(ctx context.Context, shipment Shipment) (Shipment, error) {
	r.nextID++
	shipment.ID = r.nextID
	r.shipments[shipment.ChallanID] = shipment
	return shipment, nil
}

func (r *memoryChallanRepo) ShipmentForChallan(ctx context.Context, challanID int64) (Shipment, error) {
	s, ok := r.shipments[challanID]
	if !ok {
		return Shipment{}, ErrNotFound
	}
	return s, nil
}

type stubOrders struct {
	orders     map[int64]OrderInfo
	dispatched map[int64]string
	delivered  map[int64]bool
}

func (s *stubOrders) GetOrder(ctx context.Context, id int64) (OrderInfo, error) {
	o, ok := s.orders[id]
	if !ok {
		return OrderInfo{}, ErrNotFound
	}
	return o, nil
}

func (s *stubOrders) MarkDispatched(ctx context.Context, id int64, trackingNumber string) error {
	s.dispatched[id] = trackingNumber
	return nil
}

func (s *stubOrders) MarkDelivered(ctx context.Context, id int64) error {
	s.delivered[id] = true
	return nil
}

type stubCourier struct {
	fail bool
}

func (c stubCourier) Book(ctx context.Context, challan Challan) (Booking, error) {
	if c.fail {
		return Booking{}, errors.New("courier unavailable")
	}
	return Booking{Courier: "bluedart", TrackingNumber: "TRK-" + challan.Number}, nil
}

type stubJobs struct {
	pdfEnqueued     []int64
	archiveEnqueued [][]int64
}

func (j *stubJobs) EnqueueChallanPDF(ctx context.Context, challanID int64) (string, error) {
	j.pdfEnqueued = append(j.pdfEnqueued, challanID)
	return "task-pdf", nil
}

func (j *stubJobs) EnqueueChallanArchive(ctx context.Context, challanIDs []int64) (string, error) {
	j.archiveEnqueued = append(j.archiveEnqueued, challanIDs)
	return "task-archive", nil
}

type capturingPublisher struct{ published []events.Event }

func (p *capturingPublisher) Publish(ctx context.Context, evt events.Event) error {
	p.published = append(p.published, evt)
	return nil
}

func (p *capturingPublisher) Close() error { return nil }

type challanFixture struct {
	repo      *memoryChallanRepo
	orders    *stubOrders
	courier   *stubCourier
	jobs      *stubJobs
	publisher *capturingPublisher
	service   *Service
}

func newChallanFixture(t *testing.T) *challanFixture {
	t.Helper()
	f := &challanFixture{
		repo: newMemoryChallanRepo(),
		orders: &stubOrders{
			orders:     make(map[int64]OrderInfo),
			dispatched: make(map[int64]string),
			delivered:  make(map[int64]bool),
		},
		courier:   &stubCourier{},
		jobs:      &stubJobs{},
		publisher: &capturingPublisher{},
	}
	f.orders.orders[1] = OrderInfo{
		ID:           1,
		OrderNumber:  "BO-1",
		CustomerName: "Asha Rao",
		Address:      "14 MG Road",
		City:         "Pune",
		ProductID:    7,
		ProductName:  "Mixer",
		Quantity:     1,
		Status:       "purchased",
	}
	f.service = NewService(f.repo, f.orders, f.courier, f.jobs, f.publisher, slog.Default())
	f.service.now = func() time.Time { return time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC) }
	return f
}

func TestIssueRequiresPurchasedOrder(t *testing.T) {
	f := newChallanFixture(t)
	ctx := context.Background()

	f.orders.orders[2] = OrderInfo{ID: 2, Status: "pending"}
	_, err := f.service.Issue(ctx, 2, nil)
	require.ErrorIs(t, err, ErrValidation)

	challan, err := f.service.Issue(ctx, 1, []string{"SN-001"})
	require.NoError(t, err)
	require.Equal(t, StatusIssued, challan.Status)
	require.Equal(t, "Asha Rao", challan.RecipientName)
	require.Len(t, challan.Items, 1)
	require.Equal(t, "SN-001", challan.Items[0].SerialNumber)
	require.Equal(t, []int64{challan.ID}, f.jobs.pdfEnqueued)
}

func TestDispatchBooksCourierAndPublishes(t *testing.T) {
	f := newChallanFixture(t)
	ctx := context.Background()

	challan, err := f.service.Issue(ctx, 1, nil)
	require.NoError(t, err)

	shipment, err := f.service.Dispatch(ctx, challan.ID)
	require.NoError(t, err)
	require.Equal(t, "bluedart", shipment.Courier)
	require.Equal(t, "TRK-"+challan.Number, shipment.TrackingNumber)

	got, err := f.service.Get(ctx, challan.ID)
	require.NoError(t, err)
	require.Equal(t, StatusDispatched, got.Status)
	require.Equal(t, shipment.TrackingNumber, f.orders.dispatched[1])

	require.Len(t, f.publisher.published, 1)
	require.Equal(t, events.TypeOrderDispatched, f.publisher.published[0].Type)

	// Dispatching twice is refused.
	_, err = f.service.Dispatch(ctx, challan.ID)
	require.ErrorIs(t, err, ErrValidation)
}

func TestDispatchCourierFailureLeavesChallanIssued(t *testing.T) {
	f := newChallanFixture(t)
	ctx := context.Background()

	challan, err := f.service.Issue(ctx, 1, nil)
	require.NoError(t, err)
	f.courier.fail = true

	_, err = f.service.Dispatch(ctx, challan.ID)
	require.Error(t, err)

	got, err := f.service.Get(ctx, challan.ID)
	require.NoError(t, err)
	require.Equal(t, StatusIssued, got.Status)
	require.Empty(t, f.publisher.published)
}

func TestMarkDelivered(t *testing.T) {
	f := newChallanFixture(t)
	ctx := context.Background()

	challan, err := f.service.Issue(ctx, 1, nil)
	require.NoError(t, err)

	// Delivery before dispatch is refused.
	require.ErrorIs(t, f.service.MarkDelivered(ctx, challan.ID), ErrValidation)

	_, err = f.service.Dispatch(ctx, challan.ID)
	require.NoError(t, err)
	require.NoError(t, f.service.MarkDelivered(ctx, challan.ID))
	require.True(t, f.orders.delivered[1])
}

func TestBulkDownload(t *testing.T) {
	f := newChallanFixture(t)
	ctx := context.Background()

	challan, err := f.service.Issue(ctx, 1, nil)
	require.NoError(t, err)

	_, err = f.service.BulkDownload(ctx, nil)
	require.ErrorIs(t, err, ErrValidation)

	_, err = f.service.BulkDownload(ctx, []int64{challan.ID, 999})
	require.ErrorIs(t, err, ErrNotFound)

	taskID, err := f.service.BulkDownload(ctx, []int64{challan.ID})
	require.NoError(t, err)
	require.Equal(t, "task-archive", taskID)
	require.Equal(t, [][]int64{{challan.ID}}, f.jobs.archiveEnqueued)
}
