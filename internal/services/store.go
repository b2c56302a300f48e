package services

import (
	"context"
	"errors"
	"fmt"

	"billflow/internal/database"
	"billflow/internal/models"

	"gorm.io/gorm"
)

var (
	ErrInvoiceNotFound = errors.New("invoice not found")
	ErrClientNotFound  = errors.New("client not found")
	ErrUserNotFound    = errors.New("user not found")
)

// InvoiceStore is the storage used by the recurring pass and its dispatcher.
// Every method honours ctx; Transaction hands fn a store bound to the
// transaction and commits only when fn returns nil.
type InvoiceStore interface {
	// ListRecurringInvoices returns the head of every recurring series that
	// has a next invoice date. Older members of a series are never returned.
	ListRecurringInvoices(ctx context.Context) ([]models.Invoice, error)
	GetInvoice(ctx context.Context, id string) (*models.Invoice, error)
	GetInvoiceItems(ctx context.Context, invoiceID string) ([]models.InvoiceItem, error)
	CreateInvoice(ctx context.Context, invoice *models.Invoice) error
	CreateInvoiceItems(ctx context.Context, invoiceID string, items []models.InvoiceItem) error
	UpdateInvoice(ctx context.Context, id string, fields map[string]any) error
	GetClient(ctx context.Context, id string) (*models.Client, error)
	GetUser(ctx context.Context, id string) (*models.User, error)
	CreateAuditLog(ctx context.Context, entry *models.AuditLog) error
	Transaction(ctx context.Context, fn func(tx InvoiceStore) error) error
}

// RunStore persists the history of recurring passes
type RunStore interface {
	CreateRun(ctx context.Context, run *models.RecurringRun) error
	SaveRun(ctx context.Context, run *models.RecurringRun) error
	ListRuns(ctx context.Context, limit, offset int) ([]models.RecurringRun, int64, error)
}

type GormInvoiceStore struct {
	db *gorm.DB
}

var (
	_ InvoiceStore = (*GormInvoiceStore)(nil)
	_ RunStore     = (*GormInvoiceStore)(nil)
)

func NewGormInvoiceStore(db *database.DB) *GormInvoiceStore {
	return &GormInvoiceStore{db: db.DB}
}

func (s *GormInvoiceStore) ListRecurringInvoices(ctx context.Context) ([]models.Invoice, error) {
	var invoices []models.Invoice
	err := s.db.WithContext(ctx).
		Where("is_recurring = ? AND next_invoice_date IS NOT NULL", true).
		Where("NOT EXISTS (SELECT 1 FROM invoices AS newer WHERE newer.series_id = invoices.series_id AND newer.series_seq > invoices.series_seq)").
		Find(&invoices).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list recurring invoices: %w", err)
	}
	return invoices, nil
}

func (s *GormInvoiceStore) GetInvoice(ctx context.Context, id string) (*models.Invoice, error) {
	var invoice models.Invoice
	if err := s.db.WithContext(ctx).First(&invoice, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvoiceNotFound
		}
		return nil, fmt.Errorf("failed to get invoice: %w", err)
	}
	return &invoice, nil
}

func (s *GormInvoiceStore) GetInvoiceItems(ctx context.Context, invoiceID string) ([]models.InvoiceItem, error) {
	var items []models.InvoiceItem
	err := s.db.WithContext(ctx).
		Where("invoice_id = ?", invoiceID).
		Order("sort_order ASC").
		Find(&items).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get invoice items: %w", err)
	}
	return items, nil
}

func (s *GormInvoiceStore) CreateInvoice(ctx context.Context, invoice *models.Invoice) error {
	if err := s.db.WithContext(ctx).Omit("Items").Create(invoice).Error; err != nil {
		return fmt.Errorf("failed to create invoice: %w", err)
	}
	return nil
}

func (s *GormInvoiceStore) CreateInvoiceItems(ctx context.Context, invoiceID string, items []models.InvoiceItem) error {
	if len(items) == 0 {
		return nil
	}
	for i := range items {
		items[i].InvoiceID = invoiceID
	}
	if err := s.db.WithContext(ctx).Create(&items).Error; err != nil {
		return fmt.Errorf("failed to create invoice items: %w", err)
	}
	return nil
}

func (s *GormInvoiceStore) UpdateInvoice(ctx context.Context, id string, fields map[string]any) error {
	result := s.db.WithContext(ctx).Model(&models.Invoice{}).Where("id = ?", id).Updates(fields)
	if result.Error != nil {
		return fmt.Errorf("failed to update invoice: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrInvoiceNotFound
	}
	return nil
}

func (s *GormInvoiceStore) GetClient(ctx context.Context, id string) (*models.Client, error) {
	var client models.Client
	if err := s.db.WithContext(ctx).First(&client, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrClientNotFound
		}
		return nil, fmt.Errorf("failed to get client: %w", err)
	}
	return &client, nil
}

func (s *GormInvoiceStore) GetUser(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

func (s *GormInvoiceStore) CreateAuditLog(ctx context.Context, entry *models.AuditLog) error {
	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("failed to write audit log: %w", err)
	}
	return nil
}

func (s *GormInvoiceStore) Transaction(ctx context.Context, fn func(tx InvoiceStore) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormInvoiceStore{db: tx})
	})
}

func (s *GormInvoiceStore) CreateRun(ctx context.Context, run *models.RecurringRun) error {
	if err := s.db.WithContext(ctx).Create(run).Error; err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}
	return nil
}

func (s *GormInvoiceStore) SaveRun(ctx context.Context, run *models.RecurringRun) error {
	if err := s.db.WithContext(ctx).Save(run).Error; err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}
	return nil
}

// ListRuns returns a page of passes, most recent first, and the total number
// of recorded passes
func (s *GormInvoiceStore) ListRuns(ctx context.Context, limit, offset int) ([]models.RecurringRun, int64, error) {
	var total int64
	if err := s.db.WithContext(ctx).Model(&models.RecurringRun{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count runs: %w", err)
	}

	var runs []models.RecurringRun
	err := s.db.WithContext(ctx).
		Order("started_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&runs).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list runs: %w", err)
	}
	return runs, total, nil
}
