package report

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tradewind-oms/tradewind-oms/internal/challans"
	"github.com/tradewind-oms/tradewind-oms/internal/purchaseorders"
	"github.com/tradewind-oms/tradewind-oms/internal/redemption"
)

func TestBuildChallanHTML(t *testing.T) {
	challan := challans.Challan{
		Number:        "CH-100",
		RecipientName: "Asha Rao",
		Address:       "14 MG Road",
		City:          "Pune",
		Pincode:       "411001",
		Items: []challans.ChallanItem{
			{ProductID: 7, ProductName: "Mixer", Quantity: 1, SerialNumber: "SN-001"},
			{ProductID: 8, ProductName: "Kettle", Quantity: 2},
		},
		CreatedAt: time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
	}
	html, err := BuildChallanHTML(challan)
	require.NoError(t, err)
	require.Contains(t, html, "Delivery Challan CH-100")
	require.Contains(t, html, "Asha Rao")
	require.Contains(t, html, "Mixer")
	require.Contains(t, html, "SN-001")
	require.Contains(t, html, "01 Aug 2026")
}

func TestBuildInvoiceHTML(t *testing.T) {
	po := purchaseorders.PurchaseOrder{
		Number:   "PO-42",
		VendorID: 10,
		Lines: []purchaseorders.LineItem{
			{ProductID: 7, ProductName: "Mixer", Quantity: 25, UnitPrice: 1500},
		},
		OriginalPOIDs: []int64{1, 2, 3},
		CreatedAt:     time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
	}
	po.TotalAmount = po.RecomputedTotal()

	html, err := BuildInvoiceHTML(po, purchaseorders.VendorInfo{VendorName: "Acme Supplies", City: "Pune", Address: "Plot 9"})
	require.NoError(t, err)
	require.Contains(t, html, "Purchase Invoice PO-42")
	require.Contains(t, html, "Acme Supplies")
	// Amounts use digit grouping.
	require.Contains(t, html, "37,500.00")
	require.Contains(t, html, "1,500.00")
	require.Contains(t, html, "Consolidated from 3 purchase orders.")
}

func TestBuildOrderInvoiceHTML(t *testing.T) {
	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC)
	orders := []redemption.Order{
		{
			Channel:        redemption.ChannelBank,
			OrderNumber:    "BO-1",
			CustomerName:   "Asha Rao",
			ProductName:    "Mixer",
			Quantity:       1,
			PONumber:       "PO-42",
			RedeemedPoints: 12500,
		},
		{
			Channel:      redemption.ChannelBank,
			OrderNumber:  "BO-2",
			CustomerName: "Ravi Iyer",
			ProductName:  "Kettle",
			Quantity:     2,
			PONumber:     "PO-42",
			// Amount is BIP-only, so a bank order contributes its points.
			RedeemedPoints: 4000,
		},
	}

	html, err := BuildOrderInvoiceHTML(redemption.ChannelBank, from, to, orders)
	require.NoError(t, err)
	require.Contains(t, html, "BANK Redemption Invoice")
	require.Contains(t, html, "01 Mar 2026")
	require.Contains(t, html, "BO-1")
	require.Contains(t, html, "BO-2")
	require.Contains(t, html, "PO-42")
	require.Contains(t, html, "12,500.00")
	require.Contains(t, html, "16,500.00")
}

func TestBuildInvoiceHTMLEscapesContent(t *testing.T) {
	po := purchaseorders.PurchaseOrder{
		Number: "PO-1",
		Lines: []purchaseorders.LineItem{
			{ProductID: 1, ProductName: "<script>alert(1)</script>", Quantity: 1, UnitPrice: 1},
		},
	}
	po.TotalAmount = po.RecomputedTotal()

	html, err := BuildInvoiceHTML(po, purchaseorders.VendorInfo{VendorName: "V"})
	require.NoError(t, err)
	require.False(t, strings.Contains(html, "<script>alert(1)</script>"))
	require.Contains(t, html, "&lt;script&gt;")
}
