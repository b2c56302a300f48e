package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"html/template"
	"strings"
	"time"

	"billflow/internal/config"
	"billflow/internal/models"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/skip2/go-qrcode"
	"go.uber.org/zap"
)

var ErrRenderFailed = errors.New("invoice render failed")

const (
	ContentTypePDF  = "application/pdf"
	ContentTypeHTML = "text/html; charset=UTF-8"
)

// CompanyProfile is the issuing company shown in the document header
type CompanyProfile struct {
	Name    string
	Email   string
	Phone   string
	Address string
}

// InvoiceDocument is everything a renderer needs for one invoice
type InvoiceDocument struct {
	Invoice *models.Invoice
	Items   []models.InvoiceItem
	Client  *models.Client
	Company CompanyProfile
	ViewURL string
}

// Renderer turns an invoice document into a file. Identical documents must
// render to identical bytes.
type Renderer interface {
	Render(ctx context.Context, doc *InvoiceDocument) ([]byte, error)
	ContentType() string
}

// NewRenderer builds the renderer selected by cfg.Engine
func NewRenderer(cfg config.PDFConfig, log *zap.Logger) (Renderer, error) {
	switch cfg.Engine {
	case "chromedp", "":
		return NewChromedpRenderer(cfg, log), nil
	case "html":
		log.Warn("pdf engine is html, invoices are attached as HTML pages instead of PDF")
		return NewHTMLRenderer(), nil
	default:
		return nil, fmt.Errorf("unsupported pdf engine %q", cfg.Engine)
	}
}

// invoicePDFData is the template view of an InvoiceDocument
type invoicePDFData struct {
	InvoiceNumber string
	IssueDate     string
	DueDate       string
	Status        string
	Currency      string
	Frequency     string

	CompanyName    string
	CompanyAddress string
	CompanyEmail   string
	CompanyPhone   string

	ClientName    string
	ClientEmail   string
	ClientPhone   string
	ClientAddress string

	Items    []invoicePDFItem
	Subtotal string
	Tax      string
	Discount string
	Total    string
	HasTax   bool
	HasDisc  bool

	Notes   string
	Terms   string
	ViewURL string
	QRCode  template.URL
}

type invoicePDFItem struct {
	Description string
	Quantity    string
	UnitPrice   string
	Total       string
}

// HTMLRenderer renders the printable invoice page as HTML
type HTMLRenderer struct{}

func NewHTMLRenderer() *HTMLRenderer {
	return &HTMLRenderer{}
}

func (r *HTMLRenderer) ContentType() string { return ContentTypeHTML }

func (r *HTMLRenderer) Render(ctx context.Context, doc *InvoiceDocument) ([]byte, error) {
	if doc == nil || doc.Invoice == nil {
		return nil, fmt.Errorf("%w: missing invoice", ErrRenderFailed)
	}

	data, err := buildPDFData(doc)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRenderFailed, err)
	}

	var buf bytes.Buffer
	if err := invoicePDFTemplate.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRenderFailed, err)
	}
	return buf.Bytes(), nil
}

func buildPDFData(doc *InvoiceDocument) (*invoicePDFData, error) {
	inv := doc.Invoice

	items := make([]invoicePDFItem, len(doc.Items))
	for i, item := range doc.Items {
		items[i] = invoicePDFItem{
			Description: item.Description,
			Quantity:    item.Quantity.String(),
			UnitPrice:   FormatMoney(item.UnitPrice),
			Total:       FormatMoney(item.Total),
		}
	}

	data := &invoicePDFData{
		InvoiceNumber: inv.InvoiceNumber,
		IssueDate:     FormatDate(inv.IssueDate),
		DueDate:       FormatDate(inv.DueDate),
		Status:        string(inv.Status),
		Currency:      inv.Currency,

		CompanyName:    doc.Company.Name,
		CompanyAddress: doc.Company.Address,
		CompanyEmail:   doc.Company.Email,
		CompanyPhone:   doc.Company.Phone,

		Items:    items,
		Subtotal: FormatMoney(inv.Subtotal),
		Tax:      FormatMoney(inv.Tax),
		Discount: FormatMoney(inv.Discount),
		Total:    FormatMoney(inv.Total),
		HasTax:   !inv.Tax.IsZero(),
		HasDisc:  !inv.Discount.IsZero(),

		Notes:   inv.Notes,
		Terms:   inv.Terms,
		ViewURL: doc.ViewURL,
	}
	if inv.IsRecurring {
		data.Frequency = string(ParseFrequency(string(inv.Frequency)))
	}
	if doc.Client != nil {
		data.ClientName = doc.Client.Name
		data.ClientEmail = doc.Client.Email
		data.ClientPhone = doc.Client.Phone
		data.ClientAddress = doc.Client.Address
	}

	qr, err := invoiceQRCode(doc)
	if err != nil {
		return nil, err
	}
	data.QRCode = qr
	return data, nil
}

// invoiceQRCode encodes the view link, or the invoice summary when there is
// no link, as a PNG data URI.
func invoiceQRCode(doc *InvoiceDocument) (template.URL, error) {
	content := doc.ViewURL
	if content == "" {
		content = fmt.Sprintf("INV:%s|AMT:%s %s|DATE:%s",
			doc.Invoice.InvoiceNumber,
			doc.Invoice.Currency,
			doc.Invoice.Total.StringFixed(2),
			doc.Invoice.IssueDate.Format(time.DateOnly),
		)
	}

	png, err := qrcode.Encode(content, qrcode.Medium, 160)
	if err != nil {
		return "", fmt.Errorf("failed to encode qr code: %w", err)
	}
	return template.URL("data:image/png;base64," + base64.StdEncoding.EncodeToString(png)), nil
}

// ChromedpRenderer prints the HTML invoice to PDF with headless Chrome
type ChromedpRenderer struct {
	html    *HTMLRenderer
	cfg     config.PDFConfig
	log     *zap.Logger
	timeout time.Duration
}

func NewChromedpRenderer(cfg config.PDFConfig, log *zap.Logger) *ChromedpRenderer {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &ChromedpRenderer{
		html:    NewHTMLRenderer(),
		cfg:     cfg,
		log:     log.Named("pdf"),
		timeout: timeout,
	}
}

func (r *ChromedpRenderer) ContentType() string { return ContentTypePDF }

func (r *ChromedpRenderer) Render(ctx context.Context, doc *InvoiceDocument) ([]byte, error) {
	html, err := r.html.Render(ctx, doc)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	allocCtx, allocCancel := r.allocator(ctx)
	defer allocCancel()

	browserCtx, browserCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(format string, args ...interface{}) {
			r.log.Debug(fmt.Sprintf(format, args...))
		}),
	)
	defer browserCancel()

	start := time.Now()
	var pdf []byte
	err = chromedp.Run(browserCtx,
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			frameTree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(frameTree.Frame.ID, string(html)).Do(ctx)
		}),
		chromedp.ActionFunc(func(ctx context.Context) error {
			data, _, err := page.PrintToPDF().
				WithPrintBackground(true).
				WithPaperWidth(8.27).
				WithPaperHeight(11.69).
				WithMarginTop(0.4).
				WithMarginBottom(0.4).
				WithMarginLeft(0.4).
				WithMarginRight(0.4).
				Do(ctx)
			if err != nil {
				return err
			}
			pdf = data
			return nil
		}),
	)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: timed out after %v", ErrRenderFailed, r.timeout)
		}
		return nil, fmt.Errorf("%w: %w", ErrRenderFailed, err)
	}
	if len(pdf) == 0 {
		return nil, fmt.Errorf("%w: empty pdf", ErrRenderFailed)
	}

	r.log.Debug("invoice pdf rendered",
		zap.String("invoice_number", doc.Invoice.InvoiceNumber),
		zap.Int("bytes", len(pdf)),
		zap.Duration("duration", time.Since(start)),
	)
	return pdf, nil
}

func (r *ChromedpRenderer) allocator(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.cfg.RemoteURL != "" {
		return chromedp.NewRemoteAllocator(ctx, r.cfg.RemoteURL)
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("font-render-hinting", "none"),
	)
	if r.cfg.NoSandbox {
		opts = append(opts, chromedp.Flag("no-sandbox", true))
	}
	return chromedp.NewExecAllocator(ctx, opts...)
}

// fileExtension maps a renderer content type to an attachment extension
func fileExtension(contentType string) string {
	if strings.HasPrefix(contentType, "text/html") {
		return ".html"
	}
	return ".pdf"
}

var invoicePDFTemplate = template.Must(template.New("invoice_pdf").Parse(`<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>Invoice {{.InvoiceNumber}}</title>
    <style>
        * { margin: 0; padding: 0; box-sizing: border-box; }
        body { font-family: 'Helvetica Neue', Arial, sans-serif; font-size: 14px; line-height: 1.5; color: #333; background: #fff; }
        .invoice-container { max-width: 800px; margin: 0 auto; padding: 40px; }
        .header { display: flex; justify-content: space-between; align-items: flex-start; margin-bottom: 40px; padding-bottom: 20px; border-bottom: 3px solid #1d4ed8; }
        .company-name { font-size: 24px; font-weight: 700; color: #1d4ed8; margin-bottom: 8px; }
        .company-details, .invoice-meta { font-size: 12px; color: #666; }
        .invoice-details { text-align: right; }
        .invoice-number { font-size: 24px; font-weight: 700; color: #1d4ed8; }
        .status-badge { display: inline-block; padding: 4px 12px; border-radius: 20px; font-size: 11px; font-weight: 600; text-transform: uppercase; margin-top: 8px; background: #f3f4f6; color: #6b7280; }
        .parties { display: flex; justify-content: space-between; margin-bottom: 40px; }
        .party { flex: 1; }
        .party-title { font-size: 11px; font-weight: 600; text-transform: uppercase; color: #666; margin-bottom: 8px; }
        .party-name { font-weight: 600; margin-bottom: 4px; }
        table { width: 100%; border-collapse: collapse; margin-bottom: 30px; }
        th { background: #1d4ed8; color: white; padding: 12px; text-align: left; font-size: 12px; font-weight: 600; text-transform: uppercase; }
        td { padding: 12px; border-bottom: 1px solid #e5e7eb; }
        th.num, td.num { text-align: right; }
        .totals { margin-left: auto; width: 300px; }
        .totals-row { display: flex; justify-content: space-between; padding: 8px 0; font-size: 13px; }
        .totals-row.total { font-size: 18px; font-weight: 700; border-top: 2px solid #1d4ed8; margin-top: 8px; padding-top: 12px; }
        .notes { margin-top: 40px; padding-top: 20px; border-top: 1px solid #e5e7eb; }
        .notes-title { font-size: 12px; font-weight: 600; text-transform: uppercase; color: #666; margin-bottom: 8px; }
        .footer { margin-top: 60px; padding-top: 20px; border-top: 1px solid #e5e7eb; display: flex; justify-content: space-between; align-items: center; font-size: 11px; color: #999; }
        .qr-code { width: 80px; height: 80px; }
        @media print { body { -webkit-print-color-adjust: exact; } .invoice-container { padding: 0; } }
    </style>
</head>
<body>
    <div class="invoice-container">
        <div class="header">
            <div class="company-info">
                <div class="company-name">{{.CompanyName}}</div>
                <div class="company-details">
                    {{if .CompanyAddress}}{{.CompanyAddress}}<br>{{end}}
                    {{if .CompanyEmail}}{{.CompanyEmail}}<br>{{end}}
                    {{.CompanyPhone}}
                </div>
            </div>
            <div class="invoice-details">
                <div class="invoice-number">INVOICE</div>
                <div class="invoice-meta">{{.InvoiceNumber}}</div>
                <div class="invoice-meta">Date: {{.IssueDate}}</div>
                <div class="invoice-meta">Due: {{.DueDate}}</div>
                {{if .Frequency}}<div class="invoice-meta">Billed {{.Frequency}}</div>{{end}}
                <span class="status-badge">{{.Status}}</span>
            </div>
        </div>

        <div class="parties">
            <div class="party">
                <div class="party-title">From</div>
                <div class="party-name">{{.CompanyName}}</div>
                <div>{{.CompanyAddress}}</div>
                <div>{{.CompanyEmail}}</div>
                <div>{{.CompanyPhone}}</div>
            </div>
            <div class="party">
                <div class="party-title">Bill To</div>
                <div class="party-name">{{.ClientName}}</div>
                <div>{{.ClientAddress}}</div>
                <div>{{.ClientEmail}}</div>
                <div>{{.ClientPhone}}</div>
            </div>
        </div>

        <table>
            <thead>
                <tr>
                    <th>Description</th>
                    <th class="num">Qty</th>
                    <th class="num">Unit Price</th>
                    <th class="num">Total</th>
                </tr>
            </thead>
            <tbody>
                {{range .Items}}
                <tr>
                    <td>{{.Description}}</td>
                    <td class="num">{{.Quantity}}</td>
                    <td class="num">{{$.Currency}} {{.UnitPrice}}</td>
                    <td class="num">{{$.Currency}} {{.Total}}</td>
                </tr>
                {{end}}
            </tbody>
        </table>

        <div class="totals">
            <div class="totals-row"><span>Subtotal</span><span>{{.Currency}} {{.Subtotal}}</span></div>
            {{if .HasTax}}<div class="totals-row"><span>Tax</span><span>{{.Currency}} {{.Tax}}</span></div>{{end}}
            {{if .HasDisc}}<div class="totals-row"><span>Discount</span><span>-{{.Currency}} {{.Discount}}</span></div>{{end}}
            <div class="totals-row total"><span>Total</span><span>{{.Currency}} {{.Total}}</span></div>
        </div>

        {{if .Notes}}
        <div class="notes">
            <div class="notes-title">Notes</div>
            <div>{{.Notes}}</div>
        </div>
        {{end}}

        {{if .Terms}}
        <div class="notes">
            <div class="notes-title">Terms &amp; Conditions</div>
            <div>{{.Terms}}</div>
        </div>
        {{end}}

        <div class="footer">
            <div>
                <p>Thank you for your business!</p>
                {{if .ViewURL}}<p>View online: <a href="{{.ViewURL}}">{{.ViewURL}}</a></p>{{end}}
            </div>
            <img class="qr-code" src="{{.QRCode}}" alt="QR">
        </div>
    </div>
</body>
</html>`))
