package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"billflow/internal/models"

	"go.uber.org/zap"
)

// ErrDispatchSkipped marks an invoice that was generated but deliberately
// not delivered, e.g. because its client is gone or has no email address.
var ErrDispatchSkipped = errors.New("dispatch skipped")

//go:generate mockgen -destination=collaborators_mock.go -package=services . Renderer,Mailer,Archiver,InvoiceDispatcher,PassRunner

// InvoiceDispatcher delivers a freshly generated invoice. Errors are
// reported to the caller and never undo the generated invoice.
type InvoiceDispatcher interface {
	Dispatch(ctx context.Context, invoice *models.Invoice, items []models.InvoiceItem) error
}

// Dispatcher renders a generated invoice, archives the document and emails
// it to the client.
type Dispatcher struct {
	store    InvoiceStore
	renderer Renderer
	mailer   Mailer
	archiver Archiver
	links    *LinkSigner
	// fallbackCompany is used when the issuing user's profile is missing
	fallbackCompany CompanyProfile
	timeout         time.Duration
	log             *zap.Logger
}

type DispatcherOption func(*Dispatcher)

// WithArchiver stores every rendered document
func WithArchiver(a Archiver) DispatcherOption {
	return func(d *Dispatcher) { d.archiver = a }
}

// WithLinkSigner adds a signed "view invoice" link to the email and document
func WithLinkSigner(s *LinkSigner) DispatcherOption {
	return func(d *Dispatcher) { d.links = s }
}

// WithFallbackCompanyName sets the company name shown when a user has no profile
func WithFallbackCompanyName(name string) DispatcherOption {
	return func(d *Dispatcher) { d.fallbackCompany.Name = name }
}

// WithDispatchTimeout bounds the render, archive and send of one invoice
func WithDispatchTimeout(timeout time.Duration) DispatcherOption {
	return func(d *Dispatcher) { d.timeout = timeout }
}

func NewDispatcher(store InvoiceStore, renderer Renderer, mailer Mailer, log *zap.Logger, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		store:    store,
		renderer: renderer,
		mailer:   mailer,
		log:      log.Named("dispatch"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Dispatcher) Dispatch(ctx context.Context, invoice *models.Invoice, items []models.InvoiceItem) error {
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	log := d.log.With(
		zap.String("invoice_id", invoice.ID),
		zap.String("invoice_number", invoice.InvoiceNumber),
	)

	client, err := d.store.GetClient(ctx, invoice.ClientID)
	if err != nil {
		if errors.Is(err, ErrClientNotFound) {
			return fmt.Errorf("%w: client %s not found", ErrDispatchSkipped, invoice.ClientID)
		}
		return fmt.Errorf("failed to resolve client: %w", err)
	}

	doc := &InvoiceDocument{
		Invoice: invoice,
		Items:   items,
		Client:  client,
		Company: d.resolveCompany(ctx, invoice.UserID, log),
	}
	if d.links != nil {
		url, err := d.links.InvoiceURL(invoice.ID, invoice.UserID)
		if err != nil {
			log.Warn("invoice link not signed", zap.Error(err))
		} else {
			doc.ViewURL = url
		}
	}

	data, err := d.renderer.Render(ctx, doc)
	if err != nil {
		if !errors.Is(err, ErrRenderFailed) {
			err = fmt.Errorf("%w: %w", ErrRenderFailed, err)
		}
		return err
	}
	contentType := d.renderer.ContentType()

	// An archive failure is reported but does not stop delivery.
	var archiveErr error
	if d.archiver != nil {
		key, err := d.archiver.Archive(ctx, invoice, data, contentType)
		if err != nil {
			if !errors.Is(err, ErrArchiveFailed) {
				err = fmt.Errorf("%w: %w", ErrArchiveFailed, err)
			}
			archiveErr = err
			log.Warn("invoice archive failed", zap.Error(err))
		} else {
			log.Debug("invoice archived", zap.String("key", key))
		}
	}

	if client.Email == "" {
		return errors.Join(archiveErr, fmt.Errorf("%w: client %s has no email address", ErrDispatchSkipped, client.ID))
	}

	body, err := renderInvoiceEmail(&InvoiceEmailData{
		CompanyName:   doc.Company.Name,
		CompanyEmail:  doc.Company.Email,
		ClientName:    client.Name,
		InvoiceNumber: invoice.InvoiceNumber,
		InvoiceLink:   doc.ViewURL,
		Amount:        FormatMoney(invoice.Total),
		Currency:      invoice.Currency,
		IssueDate:     FormatDate(invoice.IssueDate),
		DueDate:       FormatDate(invoice.DueDate),
		Recurring:     invoice.IsRecurring,
	})
	if err != nil {
		return errors.Join(archiveErr, fmt.Errorf("%w: %w", ErrSendFailed, err))
	}

	err = d.mailer.Send(ctx, EmailRequest{
		To:      []string{client.Email},
		Subject: fmt.Sprintf("Invoice %s from %s", invoice.InvoiceNumber, doc.Company.Name),
		Body:    body,
		IsHTML:  true,
		Attachments: []Attachment{{
			Filename:    invoice.InvoiceNumber + fileExtension(contentType),
			ContentType: contentType,
			Data:        data,
		}},
	})
	if err != nil {
		if !errors.Is(err, ErrSendFailed) {
			err = fmt.Errorf("%w: %w", ErrSendFailed, err)
		}
		return errors.Join(archiveErr, err)
	}

	log.Info("invoice emailed", zap.String("to", client.Email))
	return archiveErr
}

// resolveCompany loads the issuing profile, falling back to a placeholder
// with empty contact fields.
func (d *Dispatcher) resolveCompany(ctx context.Context, userID string, log *zap.Logger) CompanyProfile {
	user, err := d.store.GetUser(ctx, userID)
	if err != nil {
		log.Warn("issuer profile unavailable, using placeholder", zap.String("user_id", userID), zap.Error(err))
		return d.fallbackCompany
	}

	name := user.CompanyName
	if name == "" {
		name = user.Name
	}
	return CompanyProfile{
		Name:    name,
		Email:   user.Email,
		Phone:   user.Phone,
		Address: user.Address,
	}
}
