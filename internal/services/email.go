package services

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/base64"
	"errors"
	"fmt"
	"html/template"
	"io"
	"mime"
	"mime/multipart"
	"net"
	"net/mail"
	"net/smtp"
	"net/textproto"
	"strings"
	"time"

	"billflow/internal/config"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	ErrMailNotConfigured = errors.New("SMTP not configured")
	ErrSendFailed        = errors.New("email send failed")
)

// Mailer delivers a single email. Implementations do not retry.
type Mailer interface {
	Send(ctx context.Context, req EmailRequest) error
}

// EmailRequest represents an email to send
type EmailRequest struct {
	To          []string
	Subject     string
	Body        string
	IsHTML      bool
	Attachments []Attachment
}

// Attachment represents an email attachment
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

// NewMailer returns an SMTP mailer, or a logging mailer when no SMTP host is configured
func NewMailer(cfg config.MailConfig, log *zap.Logger) Mailer {
	if cfg.SMTPHost == "" {
		log.Warn("SMTP not configured, emails will only be logged")
		return NewLogMailer(log)
	}
	return NewSMTPMailer(cfg)
}

// SMTPMailer sends mail through an SMTP relay
type SMTPMailer struct {
	cfg config.MailConfig
}

func NewSMTPMailer(cfg config.MailConfig) *SMTPMailer {
	return &SMTPMailer{cfg: cfg}
}

func (m *SMTPMailer) Send(ctx context.Context, req EmailRequest) error {
	if m.cfg.SMTPHost == "" {
		return ErrMailNotConfigured
	}
	if len(req.To) == 0 {
		return fmt.Errorf("%w: no recipients", ErrSendFailed)
	}

	from := mail.Address{Name: m.cfg.FromName, Address: m.cfg.FromEmail}
	msg, err := buildMessage(from, req, time.Now())
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSendFailed, err)
	}

	if err := m.deliver(ctx, req.To, msg); err != nil {
		return fmt.Errorf("%w: %w", ErrSendFailed, err)
	}
	return nil
}

func (m *SMTPMailer) deliver(ctx context.Context, to []string, msg []byte) error {
	addr := net.JoinHostPort(m.cfg.SMTPHost, m.cfg.SMTPPort)

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", addr, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	c, err := smtp.NewClient(conn, m.cfg.SMTPHost)
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to start SMTP session: %w", err)
	}
	defer c.Close()

	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: m.cfg.SMTPHost}); err != nil {
			return fmt.Errorf("failed to start TLS: %w", err)
		}
	}
	if m.cfg.SMTPUsername != "" {
		auth := smtp.PlainAuth("", m.cfg.SMTPUsername, m.cfg.SMTPPassword, m.cfg.SMTPHost)
		if err := c.Auth(auth); err != nil {
			return fmt.Errorf("failed to authenticate: %w", err)
		}
	}

	if err := c.Mail(m.cfg.FromEmail); err != nil {
		return err
	}
	for _, rcpt := range to {
		if err := c.Rcpt(rcpt); err != nil {
			return fmt.Errorf("recipient %s rejected: %w", rcpt, err)
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

// buildMessage renders a MIME message. Attachments make it multipart/mixed
// with base64 parts.
func buildMessage(from mail.Address, req EmailRequest, date time.Time) ([]byte, error) {
	var buf bytes.Buffer

	bodyType := "text/plain; charset=UTF-8"
	if req.IsHTML {
		bodyType = "text/html; charset=UTF-8"
	}

	fmt.Fprintf(&buf, "From: %s\r\n", from.String())
	fmt.Fprintf(&buf, "To: %s\r\n", strings.Join(req.To, ", "))
	fmt.Fprintf(&buf, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", req.Subject))
	fmt.Fprintf(&buf, "Date: %s\r\n", date.Format(time.RFC1123Z))
	buf.WriteString("MIME-Version: 1.0\r\n")

	if len(req.Attachments) == 0 {
		fmt.Fprintf(&buf, "Content-Type: %s\r\n", bodyType)
		buf.WriteString("Content-Transfer-Encoding: base64\r\n\r\n")
		writeBase64(&buf, []byte(req.Body))
		return buf.Bytes(), nil
	}

	mw := multipart.NewWriter(&buf)
	fmt.Fprintf(&buf, "Content-Type: multipart/mixed; boundary=%s\r\n\r\n", mw.Boundary())

	part, err := mw.CreatePart(textproto.MIMEHeader{
		"Content-Type":              {bodyType},
		"Content-Transfer-Encoding": {"base64"},
	})
	if err != nil {
		return nil, err
	}
	writeBase64(part, []byte(req.Body))

	for _, att := range req.Attachments {
		part, err := mw.CreatePart(textproto.MIMEHeader{
			"Content-Type":              {attachmentContentType(att)},
			"Content-Disposition":       {mime.FormatMediaType("attachment", map[string]string{"filename": att.Filename})},
			"Content-Transfer-Encoding": {"base64"},
		})
		if err != nil {
			return nil, err
		}
		writeBase64(part, att.Data)
	}

	if err := mw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// attachmentContentType adds the file name to the attachment's media type,
// keeping parameters such as charset it already carries.
func attachmentContentType(att Attachment) string {
	mediaType, params, err := mime.ParseMediaType(att.ContentType)
	if err != nil {
		mediaType, params = "application/octet-stream", map[string]string{}
	}
	params["name"] = att.Filename
	return mime.FormatMediaType(mediaType, params)
}

// writeBase64 writes data base64 encoded in 76 column lines
func writeBase64(w io.Writer, data []byte) {
	encoded := base64.StdEncoding.EncodeToString(data)
	for len(encoded) > 76 {
		w.Write([]byte(encoded[:76] + "\r\n"))
		encoded = encoded[76:]
	}
	w.Write([]byte(encoded + "\r\n"))
}

// LogMailer logs emails instead of sending them
type LogMailer struct {
	log *zap.Logger
}

func NewLogMailer(log *zap.Logger) *LogMailer {
	return &LogMailer{log: log.Named("mail")}
}

func (m *LogMailer) Send(ctx context.Context, req EmailRequest) error {
	names := make([]string, 0, len(req.Attachments))
	for _, att := range req.Attachments {
		names = append(names, att.Filename)
	}
	m.log.Info("email not sent, SMTP disabled",
		zap.Strings("to", req.To),
		zap.String("subject", req.Subject),
		zap.Strings("attachments", names),
	)
	return nil
}

// InvoiceEmailData for invoice email template
type InvoiceEmailData struct {
	CompanyName   string
	CompanyEmail  string
	ClientName    string
	InvoiceNumber string
	InvoiceLink   string
	Amount        string
	Currency      string
	IssueDate     string
	DueDate       string
	Recurring     bool
}

var invoiceEmailTemplate = template.Must(template.New("invoice_email").Parse(`<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Invoice {{.InvoiceNumber}}</title>
    <style>
        body { font-family: 'Helvetica Neue', Arial, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { background: #1d4ed8; color: white; padding: 30px; border-radius: 8px 8px 0 0; }
        .logo { font-size: 24px; font-weight: bold; }
        .content { background: #f9fafb; padding: 30px; border: 1px solid #e5e7eb; }
        .invoice-box { background: white; padding: 20px; border-radius: 8px; margin: 20px 0; }
        .invoice-number { font-size: 20px; font-weight: bold; color: #2563eb; }
        .amount { font-size: 32px; font-weight: bold; margin: 20px 0; }
        .btn { display: inline-block; background: #2563eb; color: white; padding: 14px 28px; text-decoration: none; border-radius: 6px; font-weight: 600; }
        .footer { text-align: center; padding: 20px; color: #666; font-size: 12px; }
    </style>
</head>
<body>
    <div class="header">
        <div class="logo">{{.CompanyName}}</div>
    </div>
    <div class="content">
        <p>Hello {{.ClientName}},</p>
        <p>Please find attached invoice <strong>{{.InvoiceNumber}}</strong>{{if .Recurring}}, issued as part of your recurring billing{{end}}.</p>

        <div class="invoice-box">
            <div class="invoice-number">{{.InvoiceNumber}}</div>
            <div class="amount">{{.Currency}} {{.Amount}}</div>
            <p><strong>Issue Date:</strong> {{.IssueDate}}</p>
            <p><strong>Due Date:</strong> {{.DueDate}}</p>
        </div>
{{if .InvoiceLink}}
        <p>
            <a href="{{.InvoiceLink}}" class="btn">View Invoice</a>
        </p>
{{end}}
        <p>If you have any questions, please reply to {{if .CompanyEmail}}{{.CompanyEmail}}{{else}}this email{{end}}.</p>

        <p>Best regards,<br>{{.CompanyName}}</p>
    </div>
    <div class="footer">
        <p>This email was sent by Billflow</p>
    </div>
</body>
</html>`))

func renderInvoiceEmail(data *InvoiceEmailData) (string, error) {
	var buf bytes.Buffer
	if err := invoiceEmailTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render invoice email: %w", err)
	}
	return buf.String(), nil
}

// FormatDate formats date for emails and documents
func FormatDate(t time.Time) string {
	return t.Format("02 Jan 2006")
}

// FormatMoney formats an amount with two decimals and thousands separators
func FormatMoney(d decimal.Decimal) string {
	s := d.StringFixed(2)
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	whole, frac, _ := strings.Cut(s, ".")
	var b strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return sign + b.String() + "." + frac
}
