package purchaseorders

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// Purchase order lifecycle statuses.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusDelivered Status = "delivered"
	StatusCancelled Status = "cancelled"
	StatusMerged    Status = "merged"
)

// IsValid checks the status is a known lifecycle tag.
func (s Status) IsValid() bool {
	switch s {
	case StatusDraft, StatusPending, StatusApproved, StatusDelivered, StatusCancelled, StatusMerged:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether the status has no outgoing transitions.
func (s Status) IsTerminal() bool {
	return s == StatusDelivered || s == StatusCancelled || s == StatusMerged
}

// Mergeable reports whether a PO in this status may join a merge selection.
// Drafts are excluded: they are not yet confirmed vendor commitments.
func (s Status) Mergeable() bool {
	return s == StatusPending || s == StatusApproved
}

// ErrInvalidTransition occurs when an action violates the status workflow.
var ErrInvalidTransition = errors.New("purchaseorders: invalid state transition")

// CanTransition validates a status change against the workflow. The merged
// status is reachable only through a merge commit, never a direct update.
func CanTransition(from, to Status) error {
	allowed := false
	switch to {
	case StatusPending:
		allowed = from == StatusDraft
	case StatusApproved:
		allowed = from == StatusPending
	case StatusDelivered:
		allowed = from == StatusApproved
	case StatusCancelled:
		allowed = from == StatusDraft || from == StatusPending || from == StatusApproved
	case StatusMerged:
		allowed = from.Mergeable()
	}
	if !allowed {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}

// LineItem is one product row on a purchase order. SerialNumber is filled in
// after delivery via the bulk serial update.
type LineItem struct {
	ProductID         int64   `json:"productId"`
	ProductName       string  `json:"productName"`
	BankProductNumber string  `json:"bankProductNumber"`
	Quantity          int64   `json:"quantity"`
	UnitPrice         float64 `json:"unitPrice"`
	SerialNumber      string  `json:"serialNumber,omitempty"`
}

// PurchaseOrder is the central entity. TotalAmount is stored redundantly and
// must always equal the recomputed sum of its lines.
//
// Provenance: OriginalPOIDs is set only on a merge result; MergedPOID only on
// an original consumed by a merge. The edge is immutable once written.
type PurchaseOrder struct {
	ID                 int64      `json:"id"`
	Number             string     `json:"poNumber"`
	VendorID           int64      `json:"vendorId"`
	BankOrderID        int64      `json:"bankOrderId,omitempty"`
	BIPOrderID         int64      `json:"bipOrderId,omitempty"`
	Lines              []LineItem `json:"products"`
	TotalAmount        float64    `json:"totalAmount"`
	Status             Status     `json:"status"`
	Notes              string     `json:"notes,omitempty"`
	CancellationReason string     `json:"cancellationReason,omitempty"`
	OriginalPOIDs      []int64    `json:"originalPOIds,omitempty"`
	MergedPOID         int64      `json:"mergedPOId,omitempty"`
	CreatedAt          time.Time  `json:"createdAt"`
	UpdatedAt          time.Time  `json:"updatedAt"`
}

// IsMergeResult reports whether this PO was produced by a merge commit.
func (po PurchaseOrder) IsMergeResult() bool {
	return len(po.OriginalPOIDs) > 0
}

// RecomputedTotal derives the total from the line items, rounded to cents.
func (po PurchaseOrder) RecomputedTotal() float64 {
	var total float64
	for _, line := range po.Lines {
		total += float64(line.Quantity) * line.UnitPrice
	}
	return math.Round(total*100) / 100
}

// CheckInvariants verifies structural consistency of the record: provenance
// fields must match the status and the stored total must match the lines.
func (po PurchaseOrder) CheckInvariants() error {
	if !po.Status.IsValid() {
		return fmt.Errorf("purchaseorders: unknown status %q", po.Status)
	}
	if po.MergedPOID != 0 && po.Status != StatusMerged {
		return fmt.Errorf("purchaseorders: PO %d has mergedPOId but status %s", po.ID, po.Status)
	}
	if po.Status == StatusCancelled && po.CancellationReason == "" {
		return fmt.Errorf("purchaseorders: PO %d cancelled without reason", po.ID)
	}
	if po.BankOrderID != 0 && po.BIPOrderID != 0 {
		return fmt.Errorf("purchaseorders: PO %d references both intake channels", po.ID)
	}
	if math.Abs(po.TotalAmount-po.RecomputedTotal()) >= 0.01 {
		return fmt.Errorf("purchaseorders: PO %d stored total %.2f != recomputed %.2f", po.ID, po.TotalAmount, po.RecomputedTotal())
	}
	return nil
}

// VendorInfo is the read-only vendor projection consumed by previews.
type VendorInfo struct {
	ID         int64  `json:"-"`
	VendorName string `json:"vendorName"`
	Email      string `json:"email,omitempty"`
	Phone      string `json:"phone,omitempty"`
	Address    string `json:"address,omitempty"`
	City       string `json:"city,omitempty"`
}

// PreviewRow is one aggregated line of a combined preview. SourcePO lists the
// contributing PO numbers, comma-joined when several originals collapse into
// one row.
type PreviewRow struct {
	Name              string  `json:"name"`
	Quantity          int64   `json:"quantity"`
	UnitPrice         float64 `json:"unitPrice"`
	TotalPrice        float64 `json:"totalPrice"`
	SourcePO          string  `json:"sourcePO"`
	BankProductNumber string  `json:"bankProductNumber,omitempty"`
}

// CombinedPreview is the read-only projection of a merge selection. It is a
// snapshot: it carries no reference back to mutable store state.
type CombinedPreview struct {
	PONumbers        []string     `json:"poNumbers"`
	Vendor           VendorInfo   `json:"vendor"`
	Products         []PreviewRow `json:"products"`
	TotalAmount      float64      `json:"totalAmount"`
	OriginalPOsCount int          `json:"originalPOsCount"`
	CombinedDate     time.Time    `json:"combinedDate"`
}

var (
	// ErrNotFound indicates the record does not exist.
	ErrNotFound = errors.New("purchaseorders: not found")
	// ErrValidation indicates invalid caller input.
	ErrValidation = errors.New("purchaseorders: invalid input")
)
