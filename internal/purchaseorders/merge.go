package purchaseorders

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
)

// Selection error kinds returned by the merge validator. They are stable
// machine-readable tags carried on API problem responses.
const (
	KindTooFewSelected = "too_few_selected"
	KindVendorMismatch = "vendor_mismatch"
	KindNotMergeable   = "not_mergeable"
	KindNotFound       = "po_not_found"
	KindStalePreview   = "stale_preview"
)

// SelectionError describes why a merge selection is invalid. POID is zero for
// selection-wide failures.
type SelectionError struct {
	Kind   string
	POID   int64
	Status Status
}

func (e *SelectionError) Error() string {
	switch e.Kind {
	case KindTooFewSelected:
		return "at least two purchase orders must be selected"
	case KindVendorMismatch:
		return fmt.Sprintf("purchase order %d belongs to a different vendor", e.POID)
	case KindNotMergeable:
		return fmt.Sprintf("purchase order %d cannot be merged in status %s", e.POID, e.Status)
	case KindNotFound:
		return fmt.Sprintf("purchase order %d not found", e.POID)
	case KindStalePreview:
		return fmt.Sprintf("purchase order %d has a stale stored total", e.POID)
	default:
		return "invalid merge selection"
	}
}

// ValidSelection carries the resolved purchase orders of a validated
// selection, in the caller-supplied order, so the committer does not need a
// second fetch.
type ValidSelection struct {
	VendorID int64
	Orders   []PurchaseOrder
}

// ValidateSelection enforces the merge selection rules over already-resolved
// purchase orders. resolved must hold the POs for ids that exist; order of
// ids is the caller's selection order and fixes which vendor is the
// reference for mismatch reporting. The function is pure and safe to call
// repeatedly: it is used by preview and re-used by commit.
func ValidateSelection(ids []int64, resolved map[int64]PurchaseOrder) (ValidSelection, error) {
	if len(ids) < 2 {
		return ValidSelection{}, &SelectionError{Kind: KindTooFewSelected}
	}
	orders := make([]PurchaseOrder, 0, len(ids))
	seen := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		po, ok := resolved[id]
		if !ok {
			return ValidSelection{}, &SelectionError{Kind: KindNotFound, POID: id}
		}
		orders = append(orders, po)
	}
	if len(orders) < 2 {
		return ValidSelection{}, &SelectionError{Kind: KindTooFewSelected}
	}
	vendorID := orders[0].VendorID
	for _, po := range orders[1:] {
		if po.VendorID != vendorID {
			return ValidSelection{}, &SelectionError{Kind: KindVendorMismatch, POID: po.ID}
		}
	}
	for _, po := range orders {
		if !po.Status.Mergeable() {
			return ValidSelection{}, &SelectionError{Kind: KindNotMergeable, POID: po.ID, Status: po.Status}
		}
	}
	return ValidSelection{VendorID: vendorID, Orders: orders}, nil
}

// groupKey identifies an aggregation bucket. Lines from different originals
// collapse into one row when both product and unit price match; differing
// prices for the same product stay separate rows.
type groupKey struct {
	productID int64
	unitPrice float64
}

type lineGroup struct {
	line    LineItem
	sources []string
}

// aggregateLines groups the selection's line items by (product, unit price).
// Insertion order of first occurrence determines output order, which keeps
// previews deterministic.
func aggregateLines(sel ValidSelection) ([]lineGroup, error) {
	var order []groupKey
	groups := make(map[groupKey]*lineGroup)
	for _, po := range sel.Orders {
		if math.Abs(po.TotalAmount-po.RecomputedTotal()) >= 0.01 {
			// The stored total drifted from the lines; refuse to aggregate
			// rather than silently trust either number.
			return nil, &SelectionError{Kind: KindStalePreview, POID: po.ID, Status: po.Status}
		}
		for _, line := range po.Lines {
			key := groupKey{productID: line.ProductID, unitPrice: line.UnitPrice}
			group, ok := groups[key]
			if !ok {
				group = &lineGroup{line: LineItem{
					ProductID:         line.ProductID,
					ProductName:       line.ProductName,
					BankProductNumber: line.BankProductNumber,
					UnitPrice:         line.UnitPrice,
				}}
				groups[key] = group
				order = append(order, key)
			}
			group.line.Quantity += line.Quantity
			if !containsString(group.sources, po.Number) {
				group.sources = append(group.sources, po.Number)
			}
		}
	}
	result := make([]lineGroup, 0, len(order))
	for _, key := range order {
		result = append(result, *groups[key])
	}
	return result, nil
}

// BuildPreview computes the read-only combined projection for a validated
// selection. Calling it twice on the same selection and clock yields
// identical output.
func BuildPreview(sel ValidSelection, vendor VendorInfo, now time.Time) (CombinedPreview, error) {
	groups, err := aggregateLines(sel)
	if err != nil {
		return CombinedPreview{}, err
	}
	preview := CombinedPreview{
		PONumbers:        make([]string, 0, len(sel.Orders)),
		Vendor:           vendor,
		Products:         make([]PreviewRow, 0, len(groups)),
		OriginalPOsCount: len(sel.Orders),
		CombinedDate:     now,
	}
	for _, po := range sel.Orders {
		preview.PONumbers = append(preview.PONumbers, po.Number)
	}
	var total float64
	for _, g := range groups {
		rowTotal := math.Round(float64(g.line.Quantity)*g.line.UnitPrice*100) / 100
		preview.Products = append(preview.Products, PreviewRow{
			Name:              g.line.ProductName,
			Quantity:          g.line.Quantity,
			UnitPrice:         g.line.UnitPrice,
			TotalPrice:        rowTotal,
			SourcePO:          strings.Join(g.sources, ", "),
			BankProductNumber: g.line.BankProductNumber,
		})
		total += rowTotal
	}
	preview.TotalAmount = math.Round(total*100) / 100

	// Cross-check: the grand total must equal the originals' stored totals.
	var originalsTotal float64
	for _, po := range sel.Orders {
		originalsTotal += po.TotalAmount
	}
	originalsTotal = math.Round(originalsTotal*100) / 100
	if math.Abs(preview.TotalAmount-originalsTotal) >= 0.01 {
		ids := make([]int64, 0, len(sel.Orders))
		for _, po := range sel.Orders {
			ids = append(ids, po.ID)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		return CombinedPreview{}, &SelectionError{Kind: KindStalePreview, POID: ids[0]}
	}
	return preview, nil
}

// BuildMergedLines produces the line items of the merge result using the same
// aggregation as BuildPreview, so the committed totals match what the
// operator approved.
func BuildMergedLines(sel ValidSelection) ([]LineItem, error) {
	groups, err := aggregateLines(sel)
	if err != nil {
		return nil, err
	}
	lines := make([]LineItem, 0, len(groups))
	for _, g := range groups {
		lines = append(lines, g.line)
	}
	return lines, nil
}

func containsString(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
