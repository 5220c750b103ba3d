package dispatch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/fabline/fabline/internal/events"
	"github.com/fabline/fabline/internal/inquiries"
	"github.com/fabline/fabline/internal/notifications"
	"github.com/fabline/fabline/internal/orders"
	"github.com/fabline/fabline/internal/platform/blob"
	"github.com/fabline/fabline/internal/quotations"
	"github.com/fabline/fabline/internal/users"
	"github.com/fabline/fabline/jobs"
)

// Push is the realtime payload for every event.
type Push struct {
	EntityID  string `json:"entityId"`
	Number    string `json:"number,omitempty"`
	OldStatus string `json:"oldStatus,omitempty"`
	NewStatus string `json:"newStatus,omitempty"`
}

type mailData struct {
	Inquiry   *inquiries.Inquiry
	Quotation *quotations.Quotation
	Order     *orders.Order
	Customer  *users.User
}

func (d *Dispatcher) plan(evt events.Event) []task {
	var planned []task
	add := func(name string, enabled bool, run func(context.Context) error) {
		if enabled {
			planned = append(planned, task{name: name, run: run})
		}
	}
	mail := d.deps.Mailer != nil
	sms := d.deps.SMS != nil
	push := d.deps.Pusher != nil
	inbox := d.deps.Notifications != nil

	switch evt.Kind {
	case events.InquiryCreated:
		add("backoffice_email", mail && len(d.deps.Config.BackofficeEmails) > 0, func(ctx context.Context) error {
			return d.inquiryBackofficeEmail(ctx, evt)
		})
		add("staff_notifications", inbox, func(ctx context.Context) error {
			inq, err := d.deps.Inquiries.Load(ctx, evt.EntityID)
			if err != nil {
				return err
			}
			return d.notifyRoles(ctx, users.StaffRoles, notifications.CreateInput{
				Title:         "New inquiry",
				Message:       printer.Sprintf("Inquiry %s was submitted with %d part(s).", inq.InquiryNumber, len(inq.Parts)),
				Type:          notifications.TypeInfo,
				RelatedEntity: &notifications.RelatedEntity{Type: "inquiry", EntityID: inq.ID},
			})
		})
		add("staff_push", push, func(ctx context.Context) error {
			inq, err := d.deps.Inquiries.Load(ctx, evt.EntityID)
			if err != nil {
				return err
			}
			return d.pushStaff(ctx, evt, Push{EntityID: inq.ID, Number: inq.InquiryNumber, NewStatus: string(inq.Status)})
		})

	case events.QuotationSent:
		add("customer_email", mail, func(ctx context.Context) error {
			return d.quotationSentEmail(ctx, evt)
		})
		add("customer_sms", sms, func(ctx context.Context) error {
			q, err := d.deps.Quotations.Load(ctx, evt.EntityID)
			if err != nil {
				return err
			}
			if q.CustomerInfo.Phone == "" {
				return nil
			}
			return d.deps.SMS.Send(ctx, q.CustomerInfo.Phone, printer.Sprintf(
				"Quotation %s for %s has been sent to your email.", q.QuotationNumber, money(q.Currency, q.TotalAmount)))
		})

	case events.QuotationAccepted:
		add("staff_notifications", inbox, func(ctx context.Context) error {
			q, err := d.deps.Quotations.Load(ctx, evt.EntityID)
			if err != nil {
				return err
			}
			return d.notifyRoles(ctx, users.StaffRoles, notifications.CreateInput{
				Title:         "Quotation accepted",
				Message:       printer.Sprintf("%s accepted quotation %s (%s).", q.CustomerInfo.Name, q.QuotationNumber, money(q.Currency, q.TotalAmount)),
				Type:          notifications.TypeSuccess,
				RelatedEntity: &notifications.RelatedEntity{Type: "quotation", EntityID: q.ID},
			})
		})
		add("staff_push", push, func(ctx context.Context) error {
			q, err := d.deps.Quotations.Load(ctx, evt.EntityID)
			if err != nil {
				return err
			}
			return d.pushStaff(ctx, evt, Push{EntityID: q.ID, Number: q.QuotationNumber, NewStatus: string(q.Status)})
		})

	case events.OrderCreated:
		add("admin_payment_email", mail, func(ctx context.Context) error {
			o, customer, err := d.orderWithCustomer(ctx, evt.EntityID)
			if err != nil {
				return err
			}
			admins, err := d.deps.Directory.ListByRoles(ctx, users.RoleAdmin)
			if err != nil {
				return err
			}
			to := emails(admins)
			if len(to) == 0 {
				return nil
			}
			return d.sendMail(ctx, to, printer.Sprintf("Payment confirmation for order %s", o.OrderNumber),
				"order_payment_admin", mailData{Order: o, Customer: customer}, nil)
		})
		add("customer_email", mail, func(ctx context.Context) error {
			o, customer, err := d.orderWithCustomer(ctx, evt.EntityID)
			if err != nil {
				return err
			}
			return d.sendMail(ctx, []string{customer.Email}, printer.Sprintf("Order %s received", o.OrderNumber),
				"order_created_customer", mailData{Order: o, Customer: customer}, nil)
		})
		add("notifications", inbox, func(ctx context.Context) error {
			o, err := d.deps.Orders.Load(ctx, evt.EntityID)
			if err != nil {
				return err
			}
			related := &notifications.RelatedEntity{Type: "order", EntityID: o.ID}
			errCustomer := d.notifyUser(ctx, o.CustomerID, notifications.CreateInput{
				Title:         "Order placed",
				Message:       printer.Sprintf("Your order %s of %s has been placed.", o.OrderNumber, money(o.Currency, o.TotalAmount)),
				Type:          notifications.TypeSuccess,
				RelatedEntity: related,
			})
			errAdmins := d.notifyRoles(ctx, []users.Role{users.RoleAdmin}, notifications.CreateInput{
				Title:         "New order",
				Message:       printer.Sprintf("Order %s was placed with payment method %s.", o.OrderNumber, o.Payment.Method),
				Type:          notifications.TypeInfo,
				RelatedEntity: related,
			})
			return errors.Join(errCustomer, errAdmins)
		})
		add("push", push, func(ctx context.Context) error {
			return d.pushOrder(ctx, evt, true)
		})

	case events.OrderStatusChanged:
		add("customer_email", mail, func(ctx context.Context) error {
			o, customer, err := d.orderWithCustomer(ctx, evt.EntityID)
			if err != nil {
				return err
			}
			status := orders.Status(evt.NewStatus)
			return d.sendMail(ctx, []string{customer.Email},
				printer.Sprintf("Order %s is %s", o.OrderNumber, statusLabel(string(status))),
				statusTemplate(status), mailData{Order: o, Customer: customer}, nil)
		})
		add("dispatch_notification", inbox && evt.NewStatus == string(orders.StatusDispatched), func(ctx context.Context) error {
			o, err := d.deps.Orders.Load(ctx, evt.EntityID)
			if err != nil {
				return err
			}
			if o.Dispatch.HasTracking() {
				return nil
			}
			return d.notifyUser(ctx, o.CustomerID, notifications.CreateInput{
				Title:         "Order dispatched",
				Message:       printer.Sprintf("Order %s has been dispatched. Tracking details will follow.", o.OrderNumber),
				Type:          notifications.TypeInfo,
				RelatedEntity: &notifications.RelatedEntity{Type: "order", EntityID: o.ID},
			})
		})
		add("push", push, func(ctx context.Context) error {
			return d.pushOrder(ctx, evt, true)
		})
		add("refund", d.deps.Refunds != nil && evt.NewStatus == string(orders.StatusCancelled), func(ctx context.Context) error {
			return d.refund(ctx, evt)
		})

	case events.DispatchRecorded:
		add("customer_email", mail, func(ctx context.Context) error {
			o, customer, err := d.orderWithCustomer(ctx, evt.EntityID)
			if err != nil {
				return err
			}
			return d.sendMail(ctx, []string{customer.Email}, printer.Sprintf("Order %s dispatched", o.OrderNumber),
				"dispatch_recorded", mailData{Order: o, Customer: customer}, nil)
		})
		add("customer_sms", sms, func(ctx context.Context) error {
			o, customer, err := d.orderWithCustomer(ctx, evt.EntityID)
			if err != nil || customer.Phone == "" {
				return err
			}
			return d.deps.SMS.Send(ctx, customer.Phone, dispatchSMS(o))
		})
		add("notification", inbox, func(ctx context.Context) error {
			o, err := d.deps.Orders.Load(ctx, evt.EntityID)
			if err != nil {
				return err
			}
			return d.notifyUser(ctx, o.CustomerID, notifications.CreateInput{
				Title:         "Order dispatched",
				Message:       dispatchSMS(o),
				Type:          notifications.TypeInfo,
				RelatedEntity: &notifications.RelatedEntity{Type: "order", EntityID: o.ID},
			})
		})
		add("push", push, func(ctx context.Context) error {
			return d.pushOrder(ctx, evt, false)
		})

	case events.DeliveryConfirmed:
		add("customer_email", mail, func(ctx context.Context) error {
			o, customer, err := d.orderWithCustomer(ctx, evt.EntityID)
			if err != nil {
				return err
			}
			return d.sendMail(ctx, []string{customer.Email}, printer.Sprintf("Order %s delivered", o.OrderNumber),
				"delivery_confirmed", mailData{Order: o, Customer: customer}, nil)
		})
		add("customer_sms", sms, func(ctx context.Context) error {
			o, customer, err := d.orderWithCustomer(ctx, evt.EntityID)
			if err != nil || customer.Phone == "" {
				return err
			}
			return d.deps.SMS.Send(ctx, customer.Phone, printer.Sprintf("Order %s has been delivered.", o.OrderNumber))
		})
		add("notification", inbox, func(ctx context.Context) error {
			o, err := d.deps.Orders.Load(ctx, evt.EntityID)
			if err != nil {
				return err
			}
			return d.notifyUser(ctx, o.CustomerID, notifications.CreateInput{
				Title:         "Order delivered",
				Message:       printer.Sprintf("Order %s has been delivered.", o.OrderNumber),
				Type:          notifications.TypeSuccess,
				RelatedEntity: &notifications.RelatedEntity{Type: "order", EntityID: o.ID},
			})
		})
		add("push", push, func(ctx context.Context) error {
			return d.pushOrder(ctx, evt, true)
		})

	default:
		d.logger.Warn("dispatch: no tasks for event", slog.String("event", string(evt.Kind)))
	}
	return planned
}

func (d *Dispatcher) inquiryBackofficeEmail(ctx context.Context, evt events.Event) error {
	inq, err := d.deps.Inquiries.Load(ctx, evt.EntityID)
	if err != nil {
		return err
	}
	customer, err := d.deps.Directory.Get(ctx, inq.CustomerID)
	if err != nil {
		return fmt.Errorf("load customer %s: %w", inq.CustomerID, err)
	}

	var attachments []jobs.Attachment
	if d.deps.Blobs != nil {
		var buf bytes.Buffer
		if err := writeInquiryCSV(&buf, inq); err != nil {
			return fmt.Errorf("export inquiry: %w", err)
		}
		name := inq.InquiryNumber + ".csv"
		meta := blob.Meta{Name: name, ContentType: "text/csv", Size: int64(buf.Len())}
		locator, err := d.deps.Blobs.Store(ctx, blob.NewKey("exports/inquiries", name), &buf, meta)
		if err != nil {
			return fmt.Errorf("store inquiry export: %w", err)
		}
		attachments = append(attachments, jobs.Attachment{Name: name, Locator: locator})
	}
	for _, f := range inq.Files {
		if f.Locator != "" {
			attachments = append(attachments, jobs.Attachment{Name: f.Name, Locator: f.Locator})
		}
	}
	return d.sendMail(ctx, d.deps.Config.BackofficeEmails, printer.Sprintf("New inquiry %s", inq.InquiryNumber),
		"inquiry_backoffice", mailData{Inquiry: inq, Customer: customer}, attachments)
}

func (d *Dispatcher) quotationSentEmail(ctx context.Context, evt events.Event) error {
	q, err := d.deps.Quotations.Load(ctx, evt.EntityID)
	if err != nil {
		return err
	}
	var attachments []jobs.Attachment
	if q.Document != nil && q.Document.Locator != "" {
		name := q.Document.Name
		if name == "" {
			name = q.QuotationNumber + ".pdf"
		}
		attachments = append(attachments, jobs.Attachment{Name: name, Locator: q.Document.Locator})
	}
	return d.sendMail(ctx, []string{q.CustomerInfo.Email}, printer.Sprintf("Quotation %s", q.QuotationNumber),
		"quotation_sent", mailData{Quotation: q}, attachments)
}

// refund reverses a captured gateway payment on a cancelled order once.
func (d *Dispatcher) refund(ctx context.Context, evt events.Event) error {
	o, err := d.deps.Orders.Load(ctx, evt.EntityID)
	if err != nil {
		return err
	}
	if o.Payment.TransactionID == "" || o.Payment.RefundID != "" {
		return nil
	}
	refundID, err := d.deps.Refunds.Refund(ctx, o.Payment.TransactionID, nil)
	if err != nil {
		return fmt.Errorf("refund payment %s: %w", o.Payment.TransactionID, err)
	}
	if err := d.deps.Orders.RecordRefund(ctx, o.ID, refundID); err != nil {
		return fmt.Errorf("record refund %s: %w", refundID, err)
	}
	d.logger.Info("payment refunded",
		slog.String("order_id", o.ID),
		slog.String("payment_id", o.Payment.TransactionID),
		slog.String("refund_id", refundID))
	return nil
}

func (d *Dispatcher) sendMail(ctx context.Context, to []string, subject, tmpl string, data mailData, attachments []jobs.Attachment) error {
	recipients := make([]string, 0, len(to))
	for _, addr := range to {
		if addr != "" {
			recipients = append(recipients, addr)
		}
	}
	if len(recipients) == 0 {
		return errors.New("no email recipient")
	}
	html, err := renderMail(tmpl, data)
	if err != nil {
		return err
	}
	return d.deps.Mailer.Send(ctx, jobs.Mail{To: recipients, Subject: subject, HTML: html, Attachments: attachments})
}

func (d *Dispatcher) orderWithCustomer(ctx context.Context, id string) (*orders.Order, *users.User, error) {
	o, err := d.deps.Orders.Load(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	customer, err := d.deps.Directory.Get(ctx, o.CustomerID)
	if err != nil {
		return nil, nil, fmt.Errorf("load customer %s: %w", o.CustomerID, err)
	}
	return o, customer, nil
}

func (d *Dispatcher) notifyUser(ctx context.Context, userID string, in notifications.CreateInput) error {
	in.UserID = userID
	_, err := d.deps.Notifications.Create(ctx, in)
	return err
}

func (d *Dispatcher) notifyRoles(ctx context.Context, roles []users.Role, in notifications.CreateInput) error {
	recipients, err := d.deps.Directory.ListByRoles(ctx, roles...)
	if err != nil {
		return err
	}
	var errs []error
	for _, u := range recipients {
		if err := d.notifyUser(ctx, u.ID, in); err != nil {
			errs = append(errs, fmt.Errorf("notify %s: %w", u.ID, err))
		}
	}
	return errors.Join(errs...)
}

func (d *Dispatcher) pushStaff(ctx context.Context, evt events.Event, payload Push) error {
	var errs []error
	for _, role := range users.StaffRoles {
		if err := d.deps.Pusher.SendToRole(ctx, role, string(evt.Kind), payload); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (d *Dispatcher) pushOrder(ctx context.Context, evt events.Event, staff bool) error {
	o, err := d.deps.Orders.Load(ctx, evt.EntityID)
	if err != nil {
		return err
	}
	payload := Push{EntityID: o.ID, Number: o.OrderNumber, OldStatus: evt.OldStatus, NewStatus: evt.NewStatus}
	if payload.NewStatus == "" {
		payload.NewStatus = string(o.Status)
	}
	errUser := d.deps.Pusher.SendToUser(ctx, o.CustomerID, string(evt.Kind), payload)
	if !staff {
		return errUser
	}
	return errors.Join(errUser, d.pushStaff(ctx, evt, payload))
}

func emails(list []users.User) []string {
	out := make([]string, 0, len(list))
	for _, u := range list {
		if u.Email != "" {
			out = append(out, u.Email)
		}
	}
	return out
}
