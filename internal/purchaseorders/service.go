package purchaseorders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/tradewind-oms/tradewind-oms/internal/events"
	"github.com/tradewind-oms/tradewind-oms/internal/shared"
)

// ListFilters narrows paginated PO listings.
type ListFilters struct {
	Status   Status
	VendorID int64
	Search   string
	From     time.Time
	To       time.Time
	SortBy   string
	SortDir  string
}

// RepositoryPort describes store operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetPO(ctx context.Context, id int64) (PurchaseOrder, error)
	GetPOs(ctx context.Context, ids []int64) (map[int64]PurchaseOrder, error)
	List(ctx context.Context, limit, offset int, filters ListFilters) ([]PurchaseOrder, int, error)
	ListCombinable(ctx context.Context, vendorID int64, from, to time.Time) ([]PurchaseOrder, error)
}

// TxRepository exposes transactional operations. GetPOsForUpdate must take
// row locks so two committers cannot consume the same original.
type TxRepository interface {
	GetPOsForUpdate(ctx context.Context, ids []int64) (map[int64]PurchaseOrder, error)
	CreatePO(ctx context.Context, po PurchaseOrder) (int64, error)
	UpdateDetails(ctx context.Context, po PurchaseOrder) error
	UpdateStatus(ctx context.Context, id int64, status Status, reason string) error
	MarkMerged(ctx context.Context, id, mergedPOID int64) error
	SetSerialNumbers(ctx context.Context, poID int64, serials map[int64]string) error
	SoftDelete(ctx context.Context, id int64) error
}

// VendorPort exposes the read-only vendor lookup.
type VendorPort interface {
	GetVendor(ctx context.Context, id int64) (VendorInfo, error)
}

// Channel names an intake channel for redemption orders.
type Channel string

const (
	ChannelBank Channel = "bank"
	ChannelBIP  Channel = "bip"
)

// RedemptionLine is the projection of a redemption order needed to build a PO.
type RedemptionLine struct {
	OrderID     int64
	Channel     Channel
	ProductID   int64
	ProductName string
	GiftCode    string
	Quantity    int64
}

// RedemptionPort exposes the intake-channel integration.
type RedemptionPort interface {
	GetOrderLine(ctx context.Context, channel Channel, orderID int64) (RedemptionLine, error)
	MarkPurchased(ctx context.Context, channel Channel, orderID int64, poNumber string) error
}

// AuditPort reused from shared.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// CommitRejectedError indicates merge validation failed before any write.
type CommitRejectedError struct {
	Cause error
}

func (e *CommitRejectedError) Error() string {
	return fmt.Sprintf("merge rejected: %v", e.Cause)
}

func (e *CommitRejectedError) Unwrap() error { return e.Cause }

// CommitPartialError indicates an infrastructure failure after writes began.
// The transaction rolls back, but the condition is surfaced distinctly since
// the atomicity guarantee was at risk.
type CommitPartialError struct {
	Cause error
}

func (e *CommitPartialError) Error() string {
	return fmt.Sprintf("merge aborted mid-commit: %v", e.Cause)
}

func (e *CommitPartialError) Unwrap() error { return e.Cause }

// Service orchestrates the purchase order lifecycle and the merge workflow.
type Service struct {
	repo       RepositoryPort
	vendors    VendorPort
	redemption RedemptionPort
	audit      AuditPort
	publisher  events.Publisher
	logger     *slog.Logger
	now        func() time.Time
}

// NewService constructs the purchase order service.
func NewService(repo RepositoryPort, vendors VendorPort, redemption RedemptionPort, audit AuditPort, publisher events.Publisher, logger *slog.Logger) *Service {
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	return &Service{
		repo:       repo,
		vendors:    vendors,
		redemption: redemption,
		audit:      audit,
		publisher:  publisher,
		logger:     logger,
		now:        time.Now,
	}
}

// SetClock overrides the time source, used by deterministic preview tests.
func (s *Service) SetClock(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// LineInput describes one requested line item.
type LineInput struct {
	ProductID         int64
	ProductName       string
	BankProductNumber string
	Quantity          int64
	UnitPrice         float64
}

// CreateInput describes a direct PO creation.
type CreateInput struct {
	VendorID    int64
	BankOrderID int64
	BIPOrderID  int64
	Notes       string
	Lines       []LineInput
}

// Create persists a new draft purchase order.
func (s *Service) Create(ctx context.Context, input CreateInput) (PurchaseOrder, error) {
	if len(input.Lines) == 0 {
		return PurchaseOrder{}, fmt.Errorf("%w: minimal 1 line", ErrValidation)
	}
	if input.BankOrderID != 0 && input.BIPOrderID != 0 {
		return PurchaseOrder{}, fmt.Errorf("%w: bank and BIP references are mutually exclusive", ErrValidation)
	}
	if _, err := s.vendors.GetVendor(ctx, input.VendorID); err != nil {
		return PurchaseOrder{}, fmt.Errorf("%w: vendor %d", ErrValidation, input.VendorID)
	}
	po := PurchaseOrder{
		Number:      generateNumber("PO"),
		VendorID:    input.VendorID,
		BankOrderID: input.BankOrderID,
		BIPOrderID:  input.BIPOrderID,
		Status:      StatusDraft,
		Notes:       input.Notes,
	}
	for _, line := range input.Lines {
		if line.ProductID == 0 || line.Quantity <= 0 || line.UnitPrice < 0 {
			return PurchaseOrder{}, ErrValidation
		}
		po.Lines = append(po.Lines, LineItem{
			ProductID:         line.ProductID,
			ProductName:       line.ProductName,
			BankProductNumber: line.BankProductNumber,
			Quantity:          line.Quantity,
			UnitPrice:         line.UnitPrice,
		})
	}
	po.TotalAmount = po.RecomputedTotal()

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		id, err := tx.CreatePO(ctx, po)
		if err != nil {
			return err
		}
		po.ID = id
		return nil
	})
	if err != nil {
		return PurchaseOrder{}, err
	}
	s.recordAudit(ctx, "PO_CREATE", po.ID, map[string]any{"number": po.Number})
	return po, nil
}

// Get fetches one purchase order.
func (s *Service) Get(ctx context.Context, id int64) (PurchaseOrder, error) {
	return s.repo.GetPO(ctx, id)
}

// List returns a filtered page of purchase orders plus the total count.
func (s *Service) List(ctx context.Context, limit, offset int, filters ListFilters) ([]PurchaseOrder, int, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.repo.List(ctx, limit, offset, filters)
}

// ListCombinable returns a vendor's mergeable POs within the date window.
func (s *Service) ListCombinable(ctx context.Context, vendorID int64, from, to time.Time) ([]PurchaseOrder, error) {
	if vendorID == 0 {
		return nil, fmt.Errorf("%w: vendor required", ErrValidation)
	}
	return s.repo.ListCombinable(ctx, vendorID, from, to)
}

// UpdateInput carries editable PO fields. Lines, when present, replace the
// existing line items.
type UpdateInput struct {
	Notes *string
	Lines []LineInput
}

// Update edits a draft or pending purchase order. Merged, delivered and
// cancelled POs are immutable.
func (s *Service) Update(ctx context.Context, id int64, input UpdateInput) (PurchaseOrder, error) {
	po, err := s.repo.GetPO(ctx, id)
	if err != nil {
		return PurchaseOrder{}, err
	}
	if po.Status != StatusDraft && po.Status != StatusPending {
		return PurchaseOrder{}, fmt.Errorf("%w: PO %d is %s", ErrInvalidTransition, id, po.Status)
	}
	if input.Notes != nil {
		po.Notes = *input.Notes
	}
	if len(input.Lines) > 0 {
		po.Lines = po.Lines[:0]
		for _, line := range input.Lines {
			if line.ProductID == 0 || line.Quantity <= 0 || line.UnitPrice < 0 {
				return PurchaseOrder{}, ErrValidation
			}
			po.Lines = append(po.Lines, LineItem{
				ProductID:         line.ProductID,
				ProductName:       line.ProductName,
				BankProductNumber: line.BankProductNumber,
				Quantity:          line.Quantity,
				UnitPrice:         line.UnitPrice,
			})
		}
	}
	po.TotalAmount = po.RecomputedTotal()
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.UpdateDetails(ctx, po)
	})
	if err != nil {
		return PurchaseOrder{}, err
	}
	s.recordAudit(ctx, "PO_UPDATE", po.ID, map[string]any{"number": po.Number})
	return po, nil
}

// Submit moves a draft PO into the approval pipeline.
func (s *Service) Submit(ctx context.Context, id int64) error {
	return s.transition(ctx, id, StatusPending, "", "PO_SUBMIT")
}

// Approve marks a pending PO as approved.
func (s *Service) Approve(ctx context.Context, id int64) error {
	return s.transition(ctx, id, StatusApproved, "", "PO_APPROVE")
}

// MarkDelivered records fulfilment of an approved PO.
func (s *Service) MarkDelivered(ctx context.Context, id int64) error {
	return s.transition(ctx, id, StatusDelivered, "", "PO_DELIVER")
}

// Cancel cancels a PO with a mandatory reason.
func (s *Service) Cancel(ctx context.Context, id int64, reason string) error {
	if reason == "" {
		return fmt.Errorf("%w: cancellation reason required", ErrValidation)
	}
	if err := s.transition(ctx, id, StatusCancelled, reason, "PO_CANCEL"); err != nil {
		return err
	}
	po, err := s.repo.GetPO(ctx, id)
	if err == nil {
		s.publish(ctx, events.Event{
			Type:    events.TypePOCancelled,
			Key:     po.Number,
			Payload: POCancelledEvent{POID: po.ID, Number: po.Number, Reason: reason, ActorID: shared.ActorFromContext(ctx)},
		})
	}
	return nil
}

func (s *Service) transition(ctx context.Context, id int64, to Status, reason, auditAction string) error {
	po, err := s.repo.GetPO(ctx, id)
	if err != nil {
		return err
	}
	if err := CanTransition(po.Status, to); err != nil {
		return err
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.UpdateStatus(ctx, id, to, reason)
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, auditAction, id, map[string]any{"number": po.Number, "from": string(po.Status), "to": string(to)})
	return nil
}

// SoftDelete hides a PO from listings. Merge participants stay queryable for
// audit history and cannot be deleted.
func (s *Service) SoftDelete(ctx context.Context, id int64) error {
	po, err := s.repo.GetPO(ctx, id)
	if err != nil {
		return err
	}
	if po.Status == StatusMerged || po.IsMergeResult() {
		return fmt.Errorf("%w: merge history is immutable", ErrValidation)
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.SoftDelete(ctx, id)
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, "PO_DELETE", id, map[string]any{"number": po.Number})
	return nil
}

// PreviewCombine validates the selection and returns its read-only combined
// projection. It never mutates state.
func (s *Service) PreviewCombine(ctx context.Context, ids []int64) (CombinedPreview, error) {
	resolved, err := s.repo.GetPOs(ctx, ids)
	if err != nil {
		return CombinedPreview{}, err
	}
	sel, err := ValidateSelection(ids, resolved)
	if err != nil {
		return CombinedPreview{}, err
	}
	vendor, err := s.vendors.GetVendor(ctx, sel.VendorID)
	if err != nil {
		return CombinedPreview{}, err
	}
	return BuildPreview(sel, vendor, s.now())
}

// Merge commits the selection: one new pending PO aggregating all lines, the
// originals marked merged and linked to it, all inside one transaction. The
// selection is revalidated under row locks, so racing commits over
// overlapping selections cannot both succeed.
func (s *Service) Merge(ctx context.Context, ids []int64) (PurchaseOrder, error) {
	var (
		created       PurchaseOrder
		writesStarted bool
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		resolved, err := tx.GetPOsForUpdate(ctx, ids)
		if err != nil {
			return err
		}
		sel, err := ValidateSelection(ids, resolved)
		if err != nil {
			return &CommitRejectedError{Cause: err}
		}
		lines, err := BuildMergedLines(sel)
		if err != nil {
			return &CommitRejectedError{Cause: err}
		}

		merged := PurchaseOrder{
			Number:        generateNumber("PO"),
			VendorID:      sel.VendorID,
			Lines:         lines,
			Status:        StatusPending,
			OriginalPOIDs: make([]int64, 0, len(sel.Orders)),
		}
		for _, po := range sel.Orders {
			merged.OriginalPOIDs = append(merged.OriginalPOIDs, po.ID)
		}
		merged.TotalAmount = merged.RecomputedTotal()

		writesStarted = true
		newID, err := tx.CreatePO(ctx, merged)
		if err != nil {
			return err
		}
		merged.ID = newID
		for _, po := range sel.Orders {
			if err := tx.MarkMerged(ctx, po.ID, newID); err != nil {
				return err
			}
		}
		created = merged
		return nil
	})
	if err != nil {
		var rejected *CommitRejectedError
		if errors.As(err, &rejected) {
			return PurchaseOrder{}, rejected
		}
		if writesStarted {
			partial := &CommitPartialError{Cause: err}
			if s.logger != nil {
				s.logger.Error("merge commit rolled back mid-write", slog.Any("error", err), slog.Any("po_ids", ids))
			}
			return PurchaseOrder{}, partial
		}
		return PurchaseOrder{}, &CommitRejectedError{Cause: err}
	}

	s.recordAudit(ctx, "PO_MERGE", created.ID, map[string]any{
		"number":    created.Number,
		"originals": created.OriginalPOIDs,
		"total":     created.TotalAmount,
	})
	s.publish(ctx, events.Event{
		Type: events.TypePOMerged,
		Key:  created.Number,
		Payload: POMergedEvent{
			POID:          created.ID,
			Number:        created.Number,
			VendorID:      created.VendorID,
			OriginalPOIDs: created.OriginalPOIDs,
			TotalAmount:   created.TotalAmount,
			ActorID:       shared.ActorFromContext(ctx),
		},
	})
	return created, nil
}

// SerialItem assigns a serial number to a product on a PO.
type SerialItem struct {
	ProductID    int64
	SerialNumber string
}

// SerialUpdate targets one PO in a bulk serial assignment.
type SerialUpdate struct {
	POID  int64
	Items []SerialItem
}

// BulkUpdateSerials records post-delivery serial numbers across POs.
func (s *Service) BulkUpdateSerials(ctx context.Context, updates []SerialUpdate) error {
	if len(updates) == 0 {
		return ErrValidation
	}
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		for _, update := range updates {
			serials := make(map[int64]string, len(update.Items))
			for _, item := range update.Items {
				if item.ProductID == 0 || item.SerialNumber == "" {
					return ErrValidation
				}
				serials[item.ProductID] = item.SerialNumber
			}
			if err := tx.SetSerialNumbers(ctx, update.POID, serials); err != nil {
				return err
			}
		}
		return nil
	})
}

// BulkCreateInput converts redemption orders into purchase orders, one PO per
// order, all priced at the vendor's quoted unit price.
type BulkCreateInput struct {
	VendorID     int64
	UnitPrice    float64
	BankOrderIDs []int64
	BIPOrderIDs  []int64
}

// BulkCreateFromOrders builds pending POs from bank and BIP redemption orders
// and marks the source orders as purchased.
func (s *Service) BulkCreateFromOrders(ctx context.Context, input BulkCreateInput) ([]PurchaseOrder, error) {
	if len(input.BankOrderIDs)+len(input.BIPOrderIDs) == 0 {
		return nil, fmt.Errorf("%w: no orders selected", ErrValidation)
	}
	if input.UnitPrice < 0 {
		return nil, fmt.Errorf("%w: negative unit price", ErrValidation)
	}
	if _, err := s.vendors.GetVendor(ctx, input.VendorID); err != nil {
		return nil, fmt.Errorf("%w: vendor %d", ErrValidation, input.VendorID)
	}

	type source struct {
		channel Channel
		orderID int64
	}
	sources := make([]source, 0, len(input.BankOrderIDs)+len(input.BIPOrderIDs))
	for _, id := range input.BankOrderIDs {
		sources = append(sources, source{channel: ChannelBank, orderID: id})
	}
	for _, id := range input.BIPOrderIDs {
		sources = append(sources, source{channel: ChannelBIP, orderID: id})
	}

	pos := make([]PurchaseOrder, 0, len(sources))
	for _, src := range sources {
		line, err := s.redemption.GetOrderLine(ctx, src.channel, src.orderID)
		if err != nil {
			return nil, fmt.Errorf("order %d (%s): %w", src.orderID, src.channel, err)
		}
		po := PurchaseOrder{
			Number:   generateNumber("PO"),
			VendorID: input.VendorID,
			Status:   StatusPending,
			Lines: []LineItem{{
				ProductID:         line.ProductID,
				ProductName:       line.ProductName,
				BankProductNumber: line.GiftCode,
				Quantity:          line.Quantity,
				UnitPrice:         input.UnitPrice,
			}},
		}
		if src.channel == ChannelBank {
			po.BankOrderID = src.orderID
		} else {
			po.BIPOrderID = src.orderID
		}
		po.TotalAmount = po.RecomputedTotal()
		pos = append(pos, po)
	}

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		for i := range pos {
			id, err := tx.CreatePO(ctx, pos[i])
			if err != nil {
				return err
			}
			pos[i].ID = id
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, po := range pos {
		channel := ChannelBank
		orderID := po.BankOrderID
		if po.BIPOrderID != 0 {
			channel = ChannelBIP
			orderID = po.BIPOrderID
		}
		if err := s.redemption.MarkPurchased(ctx, channel, orderID, po.Number); err != nil && s.logger != nil {
			s.logger.Warn("mark order purchased", slog.Any("error", err), slog.Int64("order_id", orderID))
		}
	}
	s.recordAudit(ctx, "PO_BULK_CREATE", input.VendorID, map[string]any{"count": len(pos)})
	return pos, nil
}

func (s *Service) recordAudit(ctx context.Context, action string, entityID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  shared.ActorFromContext(ctx),
		Action:   action,
		Entity:   "purchase_order",
		EntityID: fmt.Sprintf("%d", entityID),
		Meta:     meta,
		At:       s.now(),
	})
}

func (s *Service) publish(ctx context.Context, evt events.Event) {
	if err := s.publisher.Publish(ctx, evt); err != nil && s.logger != nil {
		s.logger.Warn("publish event", slog.Any("error", err), slog.String("type", evt.Type))
	}
}

func generateNumber(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
}
