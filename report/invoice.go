package report

import (
	"bytes"
	"html/template"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/tradewind-oms/tradewind-oms/internal/purchaseorders"
)

// amountPrinter formats monetary amounts with digit grouping.
var amountPrinter = message.NewPrinter(language.English)

func formatAmount(v float64) string {
	return amountPrinter.Sprintf("%.2f", v)
}

var invoiceTmpl = template.Must(template.New("invoice").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<style>
body { font-family: sans-serif; font-size: 12px; margin: 32px; }
h1 { font-size: 18px; }
table { width: 100%; border-collapse: collapse; margin-top: 16px; }
th, td { border: 1px solid #444; padding: 6px 8px; text-align: left; }
td.num, th.num { text-align: right; }
.meta { margin-top: 8px; color: #333; }
tr.total td { font-weight: bold; }
</style>
</head>
<body>
<h1>Purchase Invoice {{.PO.Number}}</h1>
<div class="meta">Date: {{.Date}}</div>
<div class="meta">
	<strong>Vendor:</strong> {{.Vendor.VendorName}}<br>
	{{if .Vendor.Address}}{{.Vendor.Address}}{{if .Vendor.City}}, {{.Vendor.City}}{{end}}<br>{{end}}
	{{if .Vendor.Email}}Email: {{.Vendor.Email}}{{end}}
</div>
{{if .SourceNote}}<div class="meta">{{.SourceNote}}</div>{{end}}
<table>
<tr><th>#</th><th>Product</th><th class="num">Qty</th><th class="num">Unit Price</th><th class="num">Amount</th></tr>
{{range .Rows}}
<tr><td>{{.Index}}</td><td>{{.Name}}</td><td class="num">{{.Quantity}}</td><td class="num">{{.UnitPrice}}</td><td class="num">{{.Amount}}</td></tr>
{{end}}
<tr class="total"><td colspan="4">Total</td><td class="num">{{.Total}}</td></tr>
</table>
</body>
</html>`))

type invoiceRow struct {
	Index     int
	Name      string
	Quantity  int64
	UnitPrice string
	Amount    string
}

type invoiceView struct {
	PO         purchaseorders.PurchaseOrder
	Vendor     purchaseorders.VendorInfo
	Date       string
	SourceNote string
	Rows       []invoiceRow
	Total      string
}

// BuildInvoiceHTML renders the printable invoice for a purchase order. Merge
// results carry a note listing how many originals they consolidate.
func BuildInvoiceHTML(po purchaseorders.PurchaseOrder, vendor purchaseorders.VendorInfo) (string, error) {
	view := invoiceView{
		PO:     po,
		Vendor: vendor,
		Date:   po.CreatedAt.Format("02 Jan 2006"),
		Total:  formatAmount(po.TotalAmount),
	}
	if po.IsMergeResult() {
		view.SourceNote = amountPrinter.Sprintf("Consolidated from %d purchase orders.", len(po.OriginalPOIDs))
	}
	for i, line := range po.Lines {
		view.Rows = append(view.Rows, invoiceRow{
			Index:     i + 1,
			Name:      line.ProductName,
			Quantity:  line.Quantity,
			UnitPrice: formatAmount(line.UnitPrice),
			Amount:    formatAmount(float64(line.Quantity) * line.UnitPrice),
		})
	}
	var buf bytes.Buffer
	if err := invoiceTmpl.Execute(&buf, view); err != nil {
		return "", err
	}
	return buf.String(), nil
}
