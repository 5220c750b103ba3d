package quotations

import (
	"bytes"
	"fmt"
	"html/template"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var documentTemplate = template.Must(template.New("quotation").Funcs(template.FuncMap{
	"money": formatMoney,
	"inc":   func(i int) int { return i + 1 },
}).Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.QuotationNumber}}</title>
<style>
body { font-family: sans-serif; font-size: 12px; }
table { width: 100%; border-collapse: collapse; }
th, td { border: 1px solid #999; padding: 4px; text-align: left; }
td.num { text-align: right; }
</style>
</head>
<body>
<h1>Quotation {{.QuotationNumber}}</h1>
<p>{{.CustomerInfo.Name}}{{with .CustomerInfo.Company}}, {{.}}{{end}}<br>{{.CustomerInfo.Email}}{{with .CustomerInfo.Phone}} / {{.}}{{end}}</p>
<p>Date: {{.CreatedAt.Format "02 Jan 2006"}}</p>
{{if .Items}}
<table>
<tr><th>#</th><th>Material</th><th>Thickness</th><th>Grade</th><th>Qty</th><th>Unit price</th><th>Total</th></tr>
{{range $i, $it := .Items}}
<tr><td>{{inc $i}}</td><td>{{$it.Material}}</td><td>{{$it.Thickness}}</td><td>{{$it.Grade}}</td><td class="num">{{$it.Quantity}}</td><td class="num">{{money $it.UnitPrice}}</td><td class="num">{{money $it.TotalPrice}}</td></tr>
{{end}}
</table>
{{end}}
<h2>Total: {{.Currency}} {{money .TotalAmount}}</h2>
</body>
</html>`))

var printer = message.NewPrinter(language.English)

func formatMoney(v float64) string {
	return printer.Sprintf("%.2f", v)
}

// renderHTML lays out q as a printable page.
func renderHTML(q *Quotation) (string, error) {
	var buf bytes.Buffer
	if err := documentTemplate.Execute(&buf, q); err != nil {
		return "", fmt.Errorf("render quotation %s: %w", q.QuotationNumber, err)
	}
	return buf.String(), nil
}
