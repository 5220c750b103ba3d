package dispatch

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/fabline/fabline/internal/orders"
	"github.com/fabline/fabline/web"
)

var printer = message.NewPrinter(language.English)

// money formats an amount with digit grouping, e.g. "INR 1,250,000.00".
func money(currency string, amount float64) string {
	return printer.Sprintf("%s %.2f", currency, amount)
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("02 Jan 2006")
}

func statusLabel(s string) string {
	if s == "" {
		return ""
	}
	label := strings.ReplaceAll(s, "_", " ")
	return strings.ToUpper(label[:1]) + label[1:]
}

var mailTemplates = template.Must(template.New("mail").Funcs(template.FuncMap{
	"money":  money,
	"status": statusLabel,
	"date":   formatDate,
}).ParseFS(web.MailTemplates, "templates/mail/*.html"))

func renderMail(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := mailTemplates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return strings.TrimSpace(buf.String()), nil
}

// statusTemplate picks the per-status customer template, falling back to the
// generic one.
func statusTemplate(status orders.Status) string {
	name := "order_status_" + string(status)
	if mailTemplates.Lookup(name) != nil {
		return name
	}
	return "order_status"
}

func dispatchSMS(o *orders.Order) string {
	if o.Dispatch != nil && o.Dispatch.TrackingNumber != "" {
		return printer.Sprintf("Order %s dispatched via %s. Tracking: %s", o.OrderNumber, o.Dispatch.Courier, o.Dispatch.TrackingNumber)
	}
	return printer.Sprintf("Order %s has been dispatched.", o.OrderNumber)
}
