package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"billflow/internal/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const auditActionRecurringGenerated = "invoice.recurring_generated"

// RecurringService runs the recurring invoice pass: it finds every series
// whose next invoice date has arrived, clones the series head into a new
// draft invoice and hands the result to the dispatcher.
type RecurringService struct {
	store      InvoiceStore
	runs       RunStore
	dispatcher InvoiceDispatcher
	lock       PassLock
	metrics    *RecurringMetrics
	now        func() time.Time
	location   *time.Location
	maxRetries int
	log        *zap.Logger
}

type RecurringOption func(*RecurringService)

// WithClock replaces the wall clock used by ProcessRecurringInvoices
func WithClock(now func() time.Time) RecurringOption {
	return func(s *RecurringService) { s.now = now }
}

// WithLocation sets the zone whose calendar days issue and due dates fall on
func WithLocation(loc *time.Location) RecurringOption {
	return func(s *RecurringService) { s.location = loc }
}

// WithMaxNumberRetries bounds how many invoice numbers are tried per template
// when generated numbers collide with existing invoices.
func WithMaxNumberRetries(n int) RecurringOption {
	return func(s *RecurringService) {
		if n > 0 {
			s.maxRetries = n
		}
	}
}

func WithPassLock(l PassLock) RecurringOption {
	return func(s *RecurringService) { s.lock = l }
}

func WithRunStore(r RunStore) RecurringOption {
	return func(s *RecurringService) { s.runs = r }
}

func WithMetrics(m *RecurringMetrics) RecurringOption {
	return func(s *RecurringService) { s.metrics = m }
}

func NewRecurringService(store InvoiceStore, dispatcher InvoiceDispatcher, log *zap.Logger, opts ...RecurringOption) *RecurringService {
	s := &RecurringService{
		store:      store,
		dispatcher: dispatcher,
		lock:       NewLocalPassLock(),
		now:        time.Now,
		location:   time.UTC,
		maxRetries: 5,
		log:        log.Named("recurring"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// InvoiceResult is the outcome of one due template in a pass
type InvoiceResult struct {
	TemplateID    string
	InvoiceID     string
	InvoiceNumber string
	CloneErr      error
	DispatchErr   error
}

// PassReport summarizes one recurring pass
type PassReport struct {
	RunID           string
	StartedAt       time.Time
	Due             int
	Generated       int
	Failed          int
	Dispatched      int
	DispatchFailed  int
	DispatchSkipped int
	Results         []InvoiceResult
}

// ProcessRecurringInvoices runs one pass at the current time. It is the
// entry point the scheduler calls once a day.
func (s *RecurringService) ProcessRecurringInvoices(ctx context.Context) error {
	_, err := s.ProcessAt(ctx, s.now())
	return err
}

// ProcessAt runs one pass as of now. Only a failure to load the recurring
// invoices fails the pass; clone and dispatch failures are isolated per
// invoice and reported in the PassReport. A pass that finds another pass
// running returns ErrPassInProgress.
func (s *RecurringService) ProcessAt(ctx context.Context, now time.Time) (*PassReport, error) {
	report := &PassReport{StartedAt: now}

	acquired, err := s.lock.TryAcquire(ctx)
	if err != nil {
		return nil, err
	}
	if !acquired {
		s.log.Info("recurring pass skipped, previous pass still running")
		s.recordSkipped(ctx, now)
		return report, ErrPassInProgress
	}
	defer func() {
		if err := s.lock.Release(context.WithoutCancel(ctx)); err != nil {
			s.log.Warn("failed to release pass lock", zap.Error(err))
		}
	}()

	start := time.Now()
	run := s.startRun(ctx, now)
	if run != nil {
		report.RunID = run.ID
	}

	s.log.Info("recurring pass started", zap.Time("now", now), zap.String("run_id", report.RunID))

	templates, err := s.store.ListRecurringInvoices(ctx)
	if err != nil {
		s.log.Error("recurring pass aborted", zap.Error(err))
		s.finishRun(ctx, run, report, err)
		s.metrics.PassFinished(ctx, time.Since(start), string(models.RunStatusFailed))
		return nil, fmt.Errorf("failed to load recurring invoices: %w", err)
	}

	due := dueTemplates(templates, now)
	report.Due = len(due)
	s.log.Info("recurring invoices due", zap.Int("due", len(due)), zap.Int("recurring", len(templates)))

	issue := startOfDay(now, s.location)
	for i := range due {
		result := s.processTemplate(ctx, &due[i], issue, report)
		report.Results = append(report.Results, result)
	}

	s.finishRun(ctx, run, report, nil)
	s.metrics.PassFinished(ctx, time.Since(start), string(models.RunStatusSucceeded))

	s.log.Info("recurring pass completed",
		zap.Int("due", report.Due),
		zap.Int("generated", report.Generated),
		zap.Int("failed", report.Failed),
		zap.Int("dispatched", report.Dispatched),
		zap.Int("dispatch_failed", report.DispatchFailed),
		zap.Int("dispatch_skipped", report.DispatchSkipped),
		zap.Duration("elapsed", time.Since(start)),
	)
	return report, nil
}

// dueTemplates keeps the invoices whose next invoice date is at or before now
func dueTemplates(invoices []models.Invoice, now time.Time) []models.Invoice {
	due := make([]models.Invoice, 0, len(invoices))
	for _, inv := range invoices {
		if !inv.IsRecurring || inv.NextInvoiceDate == nil {
			continue
		}
		if !inv.NextInvoiceDate.After(now) {
			due = append(due, inv)
		}
	}
	return due
}

func (s *RecurringService) processTemplate(ctx context.Context, template *models.Invoice, issue time.Time, report *PassReport) InvoiceResult {
	result := InvoiceResult{TemplateID: template.ID}
	log := s.log.With(
		zap.String("template_id", template.ID),
		zap.String("template_number", template.InvoiceNumber),
	)

	invoice, items, err := s.generate(ctx, template, issue)
	if err != nil {
		report.Failed++
		result.CloneErr = err
		s.metrics.CloneFailed(ctx)
		log.Error("recurring invoice not generated", zap.Error(err))
		return result
	}

	report.Generated++
	result.InvoiceID = invoice.ID
	result.InvoiceNumber = invoice.InvoiceNumber
	s.metrics.InvoiceGenerated(ctx, string(ParseFrequency(string(invoice.Frequency))))
	log.Info("recurring invoice generated",
		zap.String("invoice_id", invoice.ID),
		zap.String("invoice_number", invoice.InvoiceNumber),
		zap.Timep("next_invoice_date", invoice.NextInvoiceDate),
	)

	if s.dispatcher == nil {
		return result
	}

	err = s.dispatcher.Dispatch(ctx, invoice, items)
	result.DispatchErr = err
	switch {
	case err == nil:
		report.Dispatched++
	case errors.Is(err, ErrDispatchSkipped) && !errors.Is(err, ErrArchiveFailed):
		report.DispatchSkipped++
		log.Warn("recurring invoice not dispatched", zap.String("invoice_number", invoice.InvoiceNumber), zap.Error(err))
	default:
		report.DispatchFailed++
		s.metrics.DispatchFailed(ctx, err)
		log.Error("recurring invoice dispatch failed", zap.String("invoice_number", invoice.InvoiceNumber), zap.Error(err))
	}
	return result
}

// generate clones template, retrying with the following invoice number when
// the number is already taken.
func (s *RecurringService) generate(ctx context.Context, template *models.Invoice, issue time.Time) (*models.Invoice, []models.InvoiceItem, error) {
	number := IncrementInvoiceNumber(template.InvoiceNumber)
	for attempt := 1; ; attempt++ {
		invoice, items, err := s.cloneInvoice(ctx, template, number, issue)
		if err == nil {
			return invoice, items, nil
		}
		if !errors.Is(err, gorm.ErrDuplicatedKey) || attempt >= s.maxRetries {
			return nil, nil, err
		}
		s.log.Warn("invoice number taken, trying next",
			zap.String("template_id", template.ID),
			zap.String("invoice_number", number),
			zap.Int("attempt", attempt),
		)
		number = IncrementInvoiceNumber(number)
	}
}

// cloneInvoice creates the next invoice of the series, copies the template's
// line items and moves the template's next invoice date forward, all in one
// transaction.
func (s *RecurringService) cloneInvoice(ctx context.Context, template *models.Invoice, number string, issue time.Time) (*models.Invoice, []models.InvoiceItem, error) {
	var (
		invoice *models.Invoice
		cloned  []models.InvoiceItem
	)

	err := s.store.Transaction(ctx, func(tx InvoiceStore) error {
		items, err := tx.GetInvoiceItems(ctx, template.ID)
		if err != nil {
			return err
		}

		next := NextOccurrence(issue, template.Frequency)
		seriesID := template.SeriesID
		if seriesID == "" {
			seriesID = template.ID
		}

		invoice = &models.Invoice{
			UserID:          template.UserID,
			ClientID:        template.ClientID,
			InvoiceNumber:   number,
			Currency:        template.Currency,
			Subtotal:        template.Subtotal,
			Tax:             template.Tax,
			Discount:        template.Discount,
			Total:           template.Total,
			Status:          models.InvoiceStatusDraft,
			Notes:           template.Notes,
			Terms:           template.Terms,
			IssueDate:       issue,
			DueDate:         DueDate(issue, template.Frequency),
			IsRecurring:     true,
			Frequency:       template.Frequency,
			NextInvoiceDate: &next,
			SeriesID:        seriesID,
			SeriesSeq:       template.SeriesSeq + 1,
		}
		if err := tx.CreateInvoice(ctx, invoice); err != nil {
			return err
		}

		cloned = cloneItems(items)
		if err := tx.CreateInvoiceItems(ctx, invoice.ID, cloned); err != nil {
			return err
		}

		// rows written without the create hook have no series yet; giving the
		// template one keeps it from staying a series head next to its clone
		if err := tx.UpdateInvoice(ctx, template.ID, map[string]any{
			"next_invoice_date": next,
			"series_id":         seriesID,
		}); err != nil {
			return err
		}

		details, _ := json.Marshal(map[string]any{
			"template_id":       template.ID,
			"template_number":   template.InvoiceNumber,
			"invoice_number":    invoice.InvoiceNumber,
			"next_invoice_date": next,
			"items":             len(cloned),
		})
		return tx.CreateAuditLog(ctx, &models.AuditLog{
			UserID:     invoice.UserID,
			Action:     auditActionRecurringGenerated,
			EntityType: "invoice",
			EntityID:   invoice.ID,
			Details:    string(details),
		})
	})
	if err != nil {
		return nil, nil, err
	}
	return invoice, cloned, nil
}

// cloneItems copies line items verbatim, leaving ids and owner to be assigned
func cloneItems(items []models.InvoiceItem) []models.InvoiceItem {
	cloned := make([]models.InvoiceItem, len(items))
	for i, item := range items {
		var catalogID *string
		if item.CatalogItemID != nil {
			id := *item.CatalogItemID
			catalogID = &id
		}
		cloned[i] = models.InvoiceItem{
			CatalogItemID: catalogID,
			Description:   item.Description,
			Quantity:      item.Quantity,
			UnitPrice:     item.UnitPrice,
			Total:         item.Total,
			SortOrder:     item.SortOrder,
		}
	}
	return cloned
}

func (s *RecurringService) startRun(ctx context.Context, now time.Time) *models.RecurringRun {
	if s.runs == nil {
		return nil
	}
	run := &models.RecurringRun{Status: models.RunStatusRunning, StartedAt: now}
	if err := s.runs.CreateRun(ctx, run); err != nil {
		s.log.Warn("failed to record recurring run", zap.Error(err))
		return nil
	}
	return run
}

func (s *RecurringService) finishRun(ctx context.Context, run *models.RecurringRun, report *PassReport, passErr error) {
	if run == nil {
		return
	}
	finished := s.now()
	run.FinishedAt = &finished
	run.DueCount = report.Due
	run.GeneratedCount = report.Generated
	run.FailedCount = report.Failed
	run.DispatchedCount = report.Dispatched
	run.DispatchFailed = report.DispatchFailed
	run.DispatchSkipped = report.DispatchSkipped
	run.Status = models.RunStatusSucceeded
	if passErr != nil {
		run.Status = models.RunStatusFailed
		run.Error = passErr.Error()
	}
	if err := s.runs.SaveRun(context.WithoutCancel(ctx), run); err != nil {
		s.log.Warn("failed to update recurring run", zap.String("run_id", run.ID), zap.Error(err))
	}
}

func (s *RecurringService) recordSkipped(ctx context.Context, now time.Time) {
	if s.runs == nil {
		return
	}
	run := &models.RecurringRun{
		Status:     models.RunStatusSkipped,
		StartedAt:  now,
		FinishedAt: &now,
		Error:      ErrPassInProgress.Error(),
	}
	if err := s.runs.CreateRun(ctx, run); err != nil {
		s.log.Warn("failed to record skipped run", zap.Error(err))
	}
}
