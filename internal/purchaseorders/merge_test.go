package purchaseorders

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func mergeablePO(id int64, number string, vendorID int64, lines ...LineItem) PurchaseOrder {
	po := PurchaseOrder{
		ID:       id,
		Number:   number,
		VendorID: vendorID,
		Status:   StatusPending,
		Lines:    lines,
	}
	po.TotalAmount = po.RecomputedTotal()
	return po
}

func asMap(pos ...PurchaseOrder) map[int64]PurchaseOrder {
	m := make(map[int64]PurchaseOrder, len(pos))
	for _, po := range pos {
		m[po.ID] = po
	}
	return m
}

func TestValidateSelectionTooFew(t *testing.T) {
	po := mergeablePO(1, "PO-1", 10, LineItem{ProductID: 1, Quantity: 1, UnitPrice: 5})

	_, err := ValidateSelection([]int64{1}, asMap(po))
	var sel *SelectionError
	require.ErrorAs(t, err, &sel)
	require.Equal(t, KindTooFewSelected, sel.Kind)

	// Duplicated IDs collapse to one PO and fail the same way.
	_, err = ValidateSelection([]int64{1, 1}, asMap(po))
	require.ErrorAs(t, err, &sel)
	require.Equal(t, KindTooFewSelected, sel.Kind)
}

func TestValidateSelectionNotFound(t *testing.T) {
	a := mergeablePO(1, "PO-1", 10, LineItem{ProductID: 1, Quantity: 1, UnitPrice: 5})

	_, err := ValidateSelection([]int64{1, 99}, asMap(a))
	var sel *SelectionError
	require.ErrorAs(t, err, &sel)
	require.Equal(t, KindNotFound, sel.Kind)
	require.Equal(t, int64(99), sel.POID)
}

func TestValidateSelectionVendorMismatch(t *testing.T) {
	a := mergeablePO(1, "PO-1", 10, LineItem{ProductID: 1, Quantity: 1, UnitPrice: 5})
	b := mergeablePO(2, "PO-2", 20, LineItem{ProductID: 1, Quantity: 1, UnitPrice: 5})

	_, err := ValidateSelection([]int64{1, 2}, asMap(a, b))
	var sel *SelectionError
	require.ErrorAs(t, err, &sel)
	require.Equal(t, KindVendorMismatch, sel.Kind)
	require.Equal(t, int64(2), sel.POID)
}

func TestValidateSelectionNotMergeable(t *testing.T) {
	a := mergeablePO(1, "PO-1", 10, LineItem{ProductID: 1, Quantity: 1, UnitPrice: 5})
	for _, status := range []Status{StatusDraft, StatusDelivered, StatusCancelled, StatusMerged} {
		b := mergeablePO(2, "PO-2", 10, LineItem{ProductID: 1, Quantity: 1, UnitPrice: 5})
		b.Status = status

		_, err := ValidateSelection([]int64{1, 2}, asMap(a, b))
		var sel *SelectionError
		require.ErrorAs(t, err, &sel, "status %s", status)
		require.Equal(t, KindNotMergeable, sel.Kind)
		require.Equal(t, status, sel.Status)
	}
}

func TestBuildPreviewAggregatesByProductAndPrice(t *testing.T) {
	// Same product at the same price collapses into one row; a different
	// price for the same product stays separate.
	a := mergeablePO(1, "PO-1", 10,
		LineItem{ProductID: 7, ProductName: "Widget", Quantity: 2, UnitPrice: 100},
		LineItem{ProductID: 8, ProductName: "Gadget", Quantity: 1, UnitPrice: 30},
	)
	b := mergeablePO(2, "PO-2", 10,
		LineItem{ProductID: 7, ProductName: "Widget", Quantity: 3, UnitPrice: 100},
		LineItem{ProductID: 7, ProductName: "Widget", Quantity: 1, UnitPrice: 90},
	)

	sel, err := ValidateSelection([]int64{1, 2}, asMap(a, b))
	require.NoError(t, err)

	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	preview, err := BuildPreview(sel, VendorInfo{ID: 10, VendorName: "Acme"}, now)
	require.NoError(t, err)

	require.Equal(t, []string{"PO-1", "PO-2"}, preview.PONumbers)
	require.Equal(t, 2, preview.OriginalPOsCount)
	require.Equal(t, now, preview.CombinedDate)
	require.Len(t, preview.Products, 3)

	widget := preview.Products[0]
	require.Equal(t, "Widget", widget.Name)
	require.Equal(t, int64(5), widget.Quantity)
	require.Equal(t, 100.0, widget.UnitPrice)
	require.Equal(t, 500.0, widget.TotalPrice)
	require.Equal(t, "PO-1, PO-2", widget.SourcePO)

	gadget := preview.Products[1]
	require.Equal(t, "Gadget", gadget.Name)
	require.Equal(t, "PO-1", gadget.SourcePO)

	discounted := preview.Products[2]
	require.Equal(t, int64(1), discounted.Quantity)
	require.Equal(t, 90.0, discounted.UnitPrice)
	require.Equal(t, "PO-2", discounted.SourcePO)

	require.Equal(t, a.TotalAmount+b.TotalAmount, preview.TotalAmount)
}

func TestBuildPreviewDeterministic(t *testing.T) {
	a := mergeablePO(1, "PO-1", 10,
		LineItem{ProductID: 1, ProductName: "A", Quantity: 1, UnitPrice: 10},
		LineItem{ProductID: 2, ProductName: "B", Quantity: 2, UnitPrice: 20},
	)
	b := mergeablePO(2, "PO-2", 10,
		LineItem{ProductID: 2, ProductName: "B", Quantity: 3, UnitPrice: 20},
	)
	sel, err := ValidateSelection([]int64{1, 2}, asMap(a, b))
	require.NoError(t, err)

	now := time.Now()
	first, err := BuildPreview(sel, VendorInfo{ID: 10}, now)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := BuildPreview(sel, VendorInfo{ID: 10}, now)
		require.NoError(t, err)
		require.Equal(t, first, again)
	}
}

func TestBuildPreviewRejectsStaleStoredTotal(t *testing.T) {
	a := mergeablePO(1, "PO-1", 10, LineItem{ProductID: 1, Quantity: 1, UnitPrice: 10})
	b := mergeablePO(2, "PO-2", 10, LineItem{ProductID: 1, Quantity: 1, UnitPrice: 10})
	b.TotalAmount = 25 // drifted from its lines

	sel, err := ValidateSelection([]int64{1, 2}, asMap(a, b))
	require.NoError(t, err)

	_, err = BuildPreview(sel, VendorInfo{ID: 10}, time.Now())
	var selErr *SelectionError
	require.ErrorAs(t, err, &selErr)
	require.Equal(t, KindStalePreview, selErr.Kind)
	require.Equal(t, int64(2), selErr.POID)
}

func TestBuildMergedLinesMatchesPreview(t *testing.T) {
	a := mergeablePO(1, "PO-1", 10,
		LineItem{ProductID: 7, ProductName: "Widget", Quantity: 2, UnitPrice: 100},
	)
	b := mergeablePO(2, "PO-2", 10,
		LineItem{ProductID: 7, ProductName: "Widget", Quantity: 3, UnitPrice: 100},
	)
	sel, err := ValidateSelection([]int64{1, 2}, asMap(a, b))
	require.NoError(t, err)

	lines, err := BuildMergedLines(sel)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	require.Equal(t, int64(5), lines[0].Quantity)
	require.Equal(t, 100.0, lines[0].UnitPrice)

	merged := PurchaseOrder{Lines: lines}
	preview, err := BuildPreview(sel, VendorInfo{ID: 10}, time.Now())
	require.NoError(t, err)
	require.Equal(t, preview.TotalAmount, merged.RecomputedTotal())
}
