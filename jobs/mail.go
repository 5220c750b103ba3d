package jobs

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net"
	"net/smtp"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/fabline/fabline/internal/platform/blob"
)

const defaultSMTPTimeout = 30 * time.Second

// SMTPConfig configures the SMTP transport. Timeout bounds one whole
// conversation with the server; zero means 30s.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	Timeout  time.Duration
}

type sendFunc func(ctx context.Context, addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPMailer sends mail over SMTP, pulling attachments from the blob store.
type SMTPMailer struct {
	cfg   SMTPConfig
	blobs blob.Store
	send  sendFunc
}

// NewSMTPMailer constructs an SMTPMailer.
func NewSMTPMailer(cfg SMTPConfig, blobs blob.Store) *SMTPMailer {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultSMTPTimeout
	}
	m := &SMTPMailer{cfg: cfg, blobs: blobs}
	m.send = m.deliver
	return m
}

// Send builds the MIME message and hands it to the SMTP server.
func (m *SMTPMailer) Send(ctx context.Context, mail Mail) error {
	if len(mail.To) == 0 {
		return errors.New("mail: no recipients")
	}
	msg, err := m.build(ctx, mail)
	if err != nil {
		return err
	}
	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}
	addr := net.JoinHostPort(m.cfg.Host, strconv.Itoa(m.cfg.Port))
	if err := m.send(ctx, addr, auth, m.cfg.From, mail.To, msg); err != nil {
		return fmt.Errorf("mail: smtp send: %w", err)
	}
	return nil
}

// deliver runs the SMTP conversation on a connection whose deadline is the
// earlier of ctx's deadline and the configured timeout. Cancelling ctx
// unblocks any pending read or write.
func (m *SMTPMailer) deliver(ctx context.Context, addr string, auth smtp.Auth, from string, to []string, msg []byte) (err error) {
	defer func() {
		if err != nil && ctx.Err() != nil {
			err = fmt.Errorf("%w: %v", ctx.Err(), err)
		}
	}()
	deadline := time.Now().Add(m.cfg.Timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	dialer := net.Dialer{Deadline: deadline}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	if err := conn.SetDeadline(deadline); err != nil {
		conn.Close()
		return err
	}
	stop := context.AfterFunc(ctx, func() { _ = conn.SetDeadline(time.Unix(1, 0)) })
	defer stop()

	host, _, _ := net.SplitHostPort(addr)
	c, err := smtp.NewClient(conn, host)
	if err != nil {
		conn.Close()
		return err
	}
	defer c.Close()

	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: host}); err != nil {
			return err
		}
	}
	if auth != nil {
		if ok, _ := c.Extension("AUTH"); !ok {
			return errors.New("server does not support AUTH")
		}
		if err := c.Auth(auth); err != nil {
			return err
		}
	}
	if err := c.Mail(from); err != nil {
		return err
	}
	for _, rcpt := range to {
		if err := c.Rcpt(rcpt); err != nil {
			return err
		}
	}
	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return c.Quit()
}

// HandleSendMail processes TaskSendMail tasks.
func (m *SMTPMailer) HandleSendMail(ctx context.Context, t *asynq.Task) error {
	var mail Mail
	if err := json.Unmarshal(t.Payload(), &mail); err != nil {
		return fmt.Errorf("mail: decode payload: %v: %w", err, asynq.SkipRetry)
	}
	return m.Send(ctx, mail)
}

func (m *SMTPMailer) build(ctx context.Context, mail Mail) ([]byte, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	header := textproto.MIMEHeader{}
	header.Set("From", m.cfg.From)
	header.Set("To", strings.Join(mail.To, ", "))
	header.Set("Subject", mime.QEncoding.Encode("utf-8", mail.Subject))
	header.Set("Message-ID", fmt.Sprintf("<%s@%s>", uuid.NewString(), m.cfg.Host))
	header.Set("MIME-Version", "1.0")
	header.Set("Content-Type", "multipart/mixed; boundary="+w.Boundary())
	for _, k := range []string{"From", "To", "Subject", "Message-ID", "MIME-Version", "Content-Type"} {
		fmt.Fprintf(&buf, "%s: %s\r\n", k, header.Get(k))
	}
	buf.WriteString("\r\n")

	body, err := w.CreatePart(textproto.MIMEHeader{
		"Content-Type":              {"text/html; charset=utf-8"},
		"Content-Transfer-Encoding": {"base64"},
	})
	if err != nil {
		return nil, err
	}
	if err := writeBase64(body, strings.NewReader(mail.HTML)); err != nil {
		return nil, err
	}

	for _, a := range mail.Attachments {
		if err := m.attach(ctx, w, a); err != nil {
			return nil, err
		}
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (m *SMTPMailer) attach(ctx context.Context, w *multipart.Writer, a Attachment) error {
	if m.blobs == nil {
		return fmt.Errorf("mail: attachment %s: no blob store", a.Name)
	}
	rc, meta, err := m.blobs.Retrieve(ctx, a.Locator)
	if err != nil {
		return fmt.Errorf("mail: attachment %s: %w", a.Name, err)
	}
	defer rc.Close()
	name := a.Name
	if name == "" {
		name = meta.Name
	}
	contentType := meta.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	part, err := w.CreatePart(textproto.MIMEHeader{
		"Content-Type":              {contentType},
		"Content-Transfer-Encoding": {"base64"},
		"Content-Disposition":       {mime.FormatMediaType("attachment", map[string]string{"filename": name})},
	})
	if err != nil {
		return err
	}
	return writeBase64(part, rc)
}

// writeBase64 wraps encoded output at 76 columns.
func writeBase64(w io.Writer, r io.Reader) error {
	raw, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	encoded := base64.StdEncoding.EncodeToString(raw)
	for len(encoded) > 76 {
		if _, err := io.WriteString(w, encoded[:76]+"\r\n"); err != nil {
			return err
		}
		encoded = encoded[76:]
	}
	_, err = io.WriteString(w, encoded+"\r\n")
	return err
}
