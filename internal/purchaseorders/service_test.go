package purchaseorders

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tradewind-oms/tradewind-oms/internal/events"
	"github.com/tradewind-oms/tradewind-oms/internal/shared"
)

type memoryPORepo struct {
	pos    map[int64]PurchaseOrder
	nextID int64

	// failMarkMerged simulates an infrastructure failure after writes began.
	failMarkMerged bool
}

type memoryPOTx struct {
	repo *memoryPORepo
}

func newMemoryPORepo() *memoryPORepo {
	return &memoryPORepo{pos: make(map[int64]PurchaseOrder)}
}

func (r *memoryPORepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	snapshot := make(map[int64]PurchaseOrder, len(r.pos))
	for id, po := range r.pos {
		snapshot[id] = po
	}
	if err := fn(ctx, &memoryPOTx{repo: r}); err != nil {
		r.pos = snapshot // rollback
		return err
	}
	return nil
}

func (r *memoryPORepo) GetPO(ctx context.Context, id int64) (PurchaseOrder, error) {
	po, ok := r.pos[id]
	if !ok {
		return PurchaseOrder{}, ErrNotFound
	}
	return po, nil
}

func (r *memoryPORepo) GetPOs(ctx context.Context, ids []int64) (map[int64]PurchaseOrder, error) {
	result := make(map[int64]PurchaseOrder)
	for _, id := range ids {
		if po, ok := r.pos[id]; ok {
			result[id] = po
		}
	}
	return result, nil
}

func (r *memoryPORepo) List(ctx context.Context, limit, offset int, filters ListFilters) ([]PurchaseOrder, int, error) {
	var pos []PurchaseOrder
	for _, po := range r.pos {
		if filters.Status != "" && po.Status != filters.Status {
			continue
		}
		if filters.VendorID > 0 && po.VendorID != filters.VendorID {
			continue
		}
		pos = append(pos, po)
	}
	sort.Slice(pos, func(i, j int) bool { return pos[i].ID < pos[j].ID })
	return pos, len(pos), nil
}

func (r *memoryPORepo) ListCombinable(ctx context.Context, vendorID int64, from, to time.Time) ([]PurchaseOrder, error) {
	var pos []PurchaseOrder
	for _, po := range r.pos {
		if po.VendorID == vendorID && po.Status.Mergeable() {
			pos = append(pos, po)
		}
	}
	sort.Slice(pos, func(i, j int) bool { return pos[i].ID < pos[j].ID })
	return pos, nil
}

func (tx *memoryPOTx) GetPOsForUpdate(ctx context.Context, ids []int64) (map[int64]PurchaseOrder, error) {
	return tx.repo.GetPOs(ctx, ids)
}

func (tx *memoryPOTx) CreatePO(ctx context.Context, po PurchaseOrder) (int64, error) {
	tx.repo.nextID++
	po.ID = tx.repo.nextID
	tx.repo.pos[po.ID] = po
	return po.ID, nil
}

func (tx *memoryPOTx) UpdateDetails(ctx context.Context, po PurchaseOrder) error {
	if _, ok := tx.repo.pos[po.ID]; !ok {
		return ErrNotFound
	}
	tx.repo.pos[po.ID] = po
	return nil
}

func (tx *memoryPOTx) UpdateStatus(ctx context.Context, id int64, status Status, reason string) error {
	po, ok := tx.repo.pos[id]
	if !ok {
		return ErrNotFound
	}
	po.Status = status
	po.CancellationReason = reason
	tx.repo.pos[id] = po
	return nil
}

func (tx *memoryPOTx) MarkMerged(ctx context.Context, id, mergedPOID int64) error {
	if tx.repo.failMarkMerged {
		return errors.New("connection reset")
	}
	po, ok := tx.repo.pos[id]
	if !ok {
		return ErrNotFound
	}
	po.Status = StatusMerged
	po.MergedPOID = mergedPOID
	tx.repo.pos[id] = po
	return nil
}

func (tx *memoryPOTx) SetSerialNumbers(ctx context.Context, poID int64, serials map[int64]string) error {
	po, ok := tx.repo.pos[poID]
	if !ok {
		return ErrNotFound
	}
	for i := range po.Lines {
		if serial, ok := serials[po.Lines[i].ProductID]; ok {
			po.Lines[i].SerialNumber = serial
		}
	}
	tx.repo.pos[poID] = po
	return nil
}

func (tx *memoryPOTx) SoftDelete(ctx context.Context, id int64) error {
	if _, ok := tx.repo.pos[id]; !ok {
		return ErrNotFound
	}
	delete(tx.repo.pos, id)
	return nil
}

type stubVendors struct{ vendors map[int64]VendorInfo }

func (s stubVendors) GetVendor(ctx context.Context, id int64) (VendorInfo, error) {
	v, ok := s.vendors[id]
	if !ok {
		return VendorInfo{}, ErrNotFound
	}
	return v, nil
}

type stubRedemption struct {
	lines     map[int64]RedemptionLine
	purchased map[int64]string
}

func (s *stubRedemption) GetOrderLine(ctx context.Context, channel Channel, orderID int64) (RedemptionLine, error) {
	line, ok := s.lines[orderID]
	if !ok {
		return RedemptionLine{}, ErrNotFound
	}
	return line, nil
}

func (s *stubRedemption) MarkPurchased(ctx context.Context, channel Channel, orderID int64, poNumber string) error {
	s.purchased[orderID] = poNumber
	return nil
}

type capturingAudit struct{ logs []shared.AuditLog }

func (a *capturingAudit) Record(ctx context.Context, log shared.AuditLog) error {
	a.logs = append(a.logs, log)
	return nil
}

type capturingPublisher struct{ published []events.Event }

func (p *capturingPublisher) Publish(ctx context.Context, evt events.Event) error {
	p.published = append(p.published, evt)
	return nil
}

func (p *capturingPublisher) Close() error { return nil }

type serviceFixture struct {
	repo       *memoryPORepo
	redemption *stubRedemption
	audit      *capturingAudit
	publisher  *capturingPublisher
	service    *Service
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	repo := newMemoryPORepo()
	redemption := &stubRedemption{lines: make(map[int64]RedemptionLine), purchased: make(map[int64]string)}
	audit := &capturingAudit{}
	publisher := &capturingPublisher{}
	vendors := stubVendors{vendors: map[int64]VendorInfo{
		10: {ID: 10, VendorName: "Acme Supplies"},
		20: {ID: 20, VendorName: "Globex"},
	}}
	svc := NewService(repo, vendors, redemption, audit, publisher, slog.Default())
	return &serviceFixture{repo: repo, redemption: redemption, audit: audit, publisher: publisher, service: svc}
}

func (f *serviceFixture) seedPO(t *testing.T, vendorID int64, status Status, lines ...LineItem) PurchaseOrder {
	t.Helper()
	po := PurchaseOrder{
		Number:   generateNumber("PO"),
		VendorID: vendorID,
		Status:   status,
		Lines:    lines,
	}
	po.TotalAmount = po.RecomputedTotal()
	err := f.repo.WithTx(context.Background(), func(ctx context.Context, tx TxRepository) error {
		id, err := tx.CreatePO(ctx, po)
		po.ID = id
		return err
	})
	require.NoError(t, err)
	return po
}

func TestServiceCreateAndLifecycle(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	po, err := f.service.Create(ctx, CreateInput{
		VendorID: 10,
		Lines:    []LineInput{{ProductID: 1, ProductName: "Widget", Quantity: 2, UnitPrice: 100}},
	})
	require.NoError(t, err)
	require.Equal(t, StatusDraft, po.Status)
	require.Equal(t, 200.0, po.TotalAmount)
	require.NotEmpty(t, po.Number)

	require.NoError(t, f.service.Submit(ctx, po.ID))
	require.NoError(t, f.service.Approve(ctx, po.ID))
	require.NoError(t, f.service.MarkDelivered(ctx, po.ID))

	got, err := f.service.Get(ctx, po.ID)
	require.NoError(t, err)
	require.Equal(t, StatusDelivered, got.Status)

	// No transitions out of a terminal state.
	require.ErrorIs(t, f.service.Approve(ctx, po.ID), ErrInvalidTransition)
}

func TestServiceCreateRejectsUnknownVendor(t *testing.T) {
	f := newServiceFixture(t)
	_, err := f.service.Create(context.Background(), CreateInput{
		VendorID: 99,
		Lines:    []LineInput{{ProductID: 1, Quantity: 1, UnitPrice: 10}},
	})
	require.ErrorIs(t, err, ErrValidation)
}

func TestServiceCancelRequiresReason(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	po := f.seedPO(t, 10, StatusPending, LineItem{ProductID: 1, Quantity: 1, UnitPrice: 10})

	require.ErrorIs(t, f.service.Cancel(ctx, po.ID, ""), ErrValidation)

	require.NoError(t, f.service.Cancel(ctx, po.ID, "vendor out of stock"))
	got, err := f.service.Get(ctx, po.ID)
	require.NoError(t, err)
	require.Equal(t, StatusCancelled, got.Status)
	require.Equal(t, "vendor out of stock", got.CancellationReason)

	require.Len(t, f.publisher.published, 1)
	require.Equal(t, events.TypePOCancelled, f.publisher.published[0].Type)
}

func TestServiceMergeCommitsAtomically(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	a := f.seedPO(t, 10, StatusPending, LineItem{ProductID: 7, ProductName: "Widget", Quantity: 2, UnitPrice: 100})
	b := f.seedPO(t, 10, StatusApproved, LineItem{ProductID: 7, ProductName: "Widget", Quantity: 3, UnitPrice: 100})

	merged, err := f.service.Merge(ctx, []int64{a.ID, b.ID})
	require.NoError(t, err)

	require.Equal(t, StatusPending, merged.Status)
	require.ElementsMatch(t, []int64{a.ID, b.ID}, merged.OriginalPOIDs)
	require.Len(t, merged.Lines, 1)
	require.Equal(t, int64(5), merged.Lines[0].Quantity)
	require.Equal(t, 500.0, merged.TotalAmount)
	require.Equal(t, a.TotalAmount+b.TotalAmount, merged.TotalAmount)

	// Originals survive with status merged and the provenance link set.
	for _, id := range []int64{a.ID, b.ID} {
		original, err := f.service.Get(ctx, id)
		require.NoError(t, err)
		require.Equal(t, StatusMerged, original.Status)
		require.Equal(t, merged.ID, original.MergedPOID)
	}

	require.Len(t, f.publisher.published, 1)
	require.Equal(t, events.TypePOMerged, f.publisher.published[0].Type)
	payload, ok := f.publisher.published[0].Payload.(POMergedEvent)
	require.True(t, ok)
	require.Equal(t, merged.ID, payload.POID)

	require.NotEmpty(t, f.audit.logs)
	entry := f.audit.logs[len(f.audit.logs)-1]
	require.Equal(t, "PO_MERGE", entry.Action)
	require.False(t, entry.At.IsZero())
}

func TestServiceMergeIsNotRepeatable(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	a := f.seedPO(t, 10, StatusPending, LineItem{ProductID: 1, Quantity: 1, UnitPrice: 10})
	b := f.seedPO(t, 10, StatusPending, LineItem{ProductID: 1, Quantity: 1, UnitPrice: 10})

	_, err := f.service.Merge(ctx, []int64{a.ID, b.ID})
	require.NoError(t, err)

	// The originals are consumed; a second merge over them is rejected.
	_, err = f.service.Merge(ctx, []int64{a.ID, b.ID})
	var rejected *CommitRejectedError
	require.ErrorAs(t, err, &rejected)
	var sel *SelectionError
	require.ErrorAs(t, err, &sel)
	require.Equal(t, KindNotMergeable, sel.Kind)
}

func TestServiceMergeRejectedLeavesNoWrites(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	a := f.seedPO(t, 10, StatusPending, LineItem{ProductID: 1, Quantity: 1, UnitPrice: 10})
	b := f.seedPO(t, 20, StatusPending, LineItem{ProductID: 1, Quantity: 1, UnitPrice: 10})

	_, err := f.service.Merge(ctx, []int64{a.ID, b.ID})
	var rejected *CommitRejectedError
	require.ErrorAs(t, err, &rejected)

	_, total, err := f.service.List(ctx, 10, 0, ListFilters{})
	require.NoError(t, err)
	require.Equal(t, 2, total)
	require.Empty(t, f.publisher.published)
}

func TestServiceMergePartialFailureRollsBack(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	a := f.seedPO(t, 10, StatusPending, LineItem{ProductID: 1, Quantity: 1, UnitPrice: 10})
	b := f.seedPO(t, 10, StatusPending, LineItem{ProductID: 1, Quantity: 1, UnitPrice: 10})
	f.repo.failMarkMerged = true

	_, err := f.service.Merge(ctx, []int64{a.ID, b.ID})
	var partial *CommitPartialError
	require.ErrorAs(t, err, &partial)

	// Rollback restored the originals untouched and no merge result exists.
	for _, id := range []int64{a.ID, b.ID} {
		po, err := f.service.Get(ctx, id)
		require.NoError(t, err)
		require.Equal(t, StatusPending, po.Status)
		require.Zero(t, po.MergedPOID)
	}
	_, total, err := f.service.List(ctx, 10, 0, ListFilters{})
	require.NoError(t, err)
	require.Equal(t, 2, total)
	require.Empty(t, f.publisher.published)
}

func TestServicePreviewDoesNotMutate(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	a := f.seedPO(t, 10, StatusPending, LineItem{ProductID: 1, ProductName: "Widget", Quantity: 2, UnitPrice: 100})
	b := f.seedPO(t, 10, StatusPending, LineItem{ProductID: 1, ProductName: "Widget", Quantity: 3, UnitPrice: 100})
	f.service.SetClock(func() time.Time { return time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC) })

	preview, err := f.service.PreviewCombine(ctx, []int64{a.ID, b.ID})
	require.NoError(t, err)
	require.Equal(t, "Acme Supplies", preview.Vendor.VendorName)
	require.Equal(t, 500.0, preview.TotalAmount)

	for _, id := range []int64{a.ID, b.ID} {
		po, err := f.service.Get(ctx, id)
		require.NoError(t, err)
		require.Equal(t, StatusPending, po.Status)
	}
	require.Empty(t, f.publisher.published)
}

func TestServiceSoftDeleteProtectsMergeHistory(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	a := f.seedPO(t, 10, StatusPending, LineItem{ProductID: 1, Quantity: 1, UnitPrice: 10})
	b := f.seedPO(t, 10, StatusPending, LineItem{ProductID: 1, Quantity: 1, UnitPrice: 10})
	merged, err := f.service.Merge(ctx, []int64{a.ID, b.ID})
	require.NoError(t, err)

	require.ErrorIs(t, f.service.SoftDelete(ctx, a.ID), ErrValidation)
	require.ErrorIs(t, f.service.SoftDelete(ctx, merged.ID), ErrValidation)

	loose := f.seedPO(t, 10, StatusDraft, LineItem{ProductID: 1, Quantity: 1, UnitPrice: 10})
	require.NoError(t, f.service.SoftDelete(ctx, loose.ID))
}

func TestServiceBulkCreateFromOrders(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	f.redemption.lines[501] = RedemptionLine{OrderID: 501, Channel: ChannelBank, ProductID: 3, ProductName: "Voucher", GiftCode: "GC-3", Quantity: 2}
	f.redemption.lines[601] = RedemptionLine{OrderID: 601, Channel: ChannelBIP, ProductID: 4, ProductName: "Card", GiftCode: "GC-4", Quantity: 1}

	pos, err := f.service.BulkCreateFromOrders(ctx, BulkCreateInput{
		VendorID:     10,
		UnitPrice:    50,
		BankOrderIDs: []int64{501},
		BIPOrderIDs:  []int64{601},
	})
	require.NoError(t, err)
	require.Len(t, pos, 2)

	require.Equal(t, int64(501), pos[0].BankOrderID)
	require.Equal(t, StatusPending, pos[0].Status)
	require.Equal(t, 100.0, pos[0].TotalAmount)
	require.Equal(t, int64(601), pos[1].BIPOrderID)
	require.Equal(t, 50.0, pos[1].TotalAmount)

	require.Equal(t, pos[0].Number, f.redemption.purchased[501])
	require.Equal(t, pos[1].Number, f.redemption.purchased[601])
}

func TestServiceBulkUpdateSerials(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	po := f.seedPO(t, 10, StatusDelivered, LineItem{ProductID: 3, Quantity: 1, UnitPrice: 10})

	err := f.service.BulkUpdateSerials(ctx, []SerialUpdate{
		{POID: po.ID, Items: []SerialItem{{ProductID: 3, SerialNumber: "SN-001"}}},
	})
	require.NoError(t, err)

	got, err := f.service.Get(ctx, po.ID)
	require.NoError(t, err)
	require.Equal(t, "SN-001", got.Lines[0].SerialNumber)

	require.ErrorIs(t, f.service.BulkUpdateSerials(ctx, nil), ErrValidation)
}
