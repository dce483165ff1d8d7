package report

import (
	"bytes"
	"html/template"
	"time"

	"github.com/tradewind-oms/tradewind-oms/internal/challans"
)

var challanTmpl = template.Must(template.New("challan").Funcs(template.FuncMap{
	"inc": func(i int) int { return i + 1 },
}).Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<style>
body { font-family: sans-serif; font-size: 12px; margin: 32px; }
h1 { font-size: 18px; }
table { width: 100%; border-collapse: collapse; margin-top: 16px; }
th, td { border: 1px solid #444; padding: 6px 8px; text-align: left; }
.meta { margin-top: 8px; color: #333; }
</style>
</head>
<body>
<h1>Delivery Challan {{.Number}}</h1>
<div class="meta">Date: {{.Date}}</div>
<div class="meta">
	<strong>Deliver to:</strong> {{.Challan.RecipientName}}<br>
	{{.Challan.Address}}{{if .Challan.City}}, {{.Challan.City}}{{end}}{{if .Challan.Pincode}} - {{.Challan.Pincode}}{{end}}<br>
	{{if .Challan.Phone}}Phone: {{.Challan.Phone}}{{end}}
</div>
<table>
<tr><th>#</th><th>Product</th><th>Quantity</th><th>Serial No.</th></tr>
{{range $i, $item := .Challan.Items}}
<tr><td>{{inc $i}}</td><td>{{$item.ProductName}}</td><td>{{$item.Quantity}}</td><td>{{$item.SerialNumber}}</td></tr>
{{end}}
</table>
<p>Received the above goods in good condition.</p>
<p style="margin-top:48px">Signature: ____________________</p>
</body>
</html>`))

type challanView struct {
	Challan challans.Challan
	Number  string
	Date    string
}

// BuildChallanHTML renders the printable challan document.
func BuildChallanHTML(challan challans.Challan) (string, error) {
	view := challanView{
		Challan: challan,
		Number:  challan.Number,
		Date:    challan.CreatedAt.Format("02 Jan 2006"),
	}
	if challan.CreatedAt.IsZero() {
		view.Date = time.Now().Format("02 Jan 2006")
	}
	var buf bytes.Buffer
	if err := challanTmpl.Execute(&buf, view); err != nil {
		return "", err
	}
	return buf.String(), nil
}
