package report

import (
	"bytes"
	"html/template"
	"strings"
	"time"

	"github.com/tradewind-oms/tradewind-oms/internal/redemption"
)

var statementTmpl = template.Must(template.New("statement").Parse(`<!DOCTYPE html>
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
<h1>{{.ChannelLabel}} Redemption Invoice</h1>
<div class="meta">Period: {{.From}} to {{.To}}</div>
<table>
<tr><th>#</th><th>Order No.</th><th>Customer</th><th>Product</th><th class="num">Qty</th><th>PO No.</th><th class="num">Amount</th></tr>
{{range .Rows}}
<tr><td>{{.Index}}</td><td>{{.OrderNumber}}</td><td>{{.Customer}}</td><td>{{.Product}}</td><td class="num">{{.Quantity}}</td><td>{{.PONumber}}</td><td class="num">{{.Amount}}</td></tr>
{{end}}
<tr class="total"><td colspan="4">Total</td><td class="num">{{.TotalQuantity}}</td><td></td><td class="num">{{.TotalAmount}}</td></tr>
</table>
</body>
</html>`))

type statementRow struct {
	Index       int
	OrderNumber string
	Customer    string
	Product     string
	Quantity    int64
	PONumber    string
	Amount      string
}

type statementView struct {
	ChannelLabel  string
	From          string
	To            string
	Rows          []statementRow
	TotalQuantity int64
	TotalAmount   string
}

// BuildOrderInvoiceHTML renders the consolidated invoice for one channel's
// fulfilled orders inside a date window. Bank orders settle in redeemed
// points, BIP orders in rupees; both land in the amount column.
func BuildOrderInvoiceHTML(channel redemption.Channel, from, to time.Time, orders []redemption.Order) (string, error) {
	view := statementView{
		ChannelLabel: strings.ToUpper(string(channel)),
		From:         from.Format("02 Jan 2006"),
		To:           to.Format("02 Jan 2006"),
	}
	var totalAmount float64
	for i, order := range orders {
		amount := order.Amount
		if order.Channel == redemption.ChannelBank {
			amount = float64(order.RedeemedPoints)
		}
		totalAmount += amount
		view.TotalQuantity += order.Quantity
		view.Rows = append(view.Rows, statementRow{
			Index:       i + 1,
			OrderNumber: order.OrderNumber,
			Customer:    order.CustomerName,
			Product:     order.ProductName,
			Quantity:    order.Quantity,
			PONumber:    order.PONumber,
			Amount:      formatAmount(amount),
		})
	}
	view.TotalAmount = formatAmount(totalAmount)

	var buf bytes.Buffer
	if err := statementTmpl.Execute(&buf, view); err != nil {
		return "", err
	}
	return buf.String(), nil
}
