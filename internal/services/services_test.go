package services

import (
	"context"
	"testing"
	"time"

	"billflow/internal/config"
	"billflow/internal/database"
	"billflow/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// ==================== TEST SETUP ====================

// newTestDB opens a private in-memory database. A single connection keeps
// every query on the same in-memory schema.
func newTestDB(t *testing.T) *database.DB {
	t.Helper()

	db, err := database.New(&config.DatabaseConfig{
		Driver:          "sqlite",
		DSN:             ":memory:",
		MaxOpenConns:    1,
		MaxIdleConns:    1,
		ConnMaxLifetime: time.Hour,
		QueryTimeout:    10 * time.Second,
		LogLevel:        "silent",
	}, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, db.Migrate())

	t.Cleanup(func() { db.Close() })
	return db
}

// ==================== HELPER FUNCTIONS ====================

func createTestUser(t *testing.T, db *database.DB) *models.User {
	t.Helper()

	user := &models.User{
		Email:       "owner-" + uuid.NewString()[:8] + "@example.com",
		Name:        "Test User",
		Phone:       "254712345678",
		CompanyName: "Acme Consulting",
		Address:     "1 Main Street",
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func createTestClient(t *testing.T, db *database.DB, userID string) *models.Client {
	t.Helper()

	client := &models.Client{
		UserID: userID,
		Name:   "Test Client " + t.Name(),
		Email:  "client-" + uuid.NewString()[:8] + "@test.com",
		Phone:  "254712345678",
	}
	require.NoError(t, db.Create(client).Error)
	return client
}

type itemSpec struct {
	description string
	quantity    string
	unitPrice   string
	catalogID   *string
}

// createRecurringInvoice stores a recurring template and its line items
func createRecurringInvoice(t *testing.T, db *database.DB, userID, clientID, number string, freq models.Frequency, next time.Time, items ...itemSpec) *models.Invoice {
	t.Helper()

	subtotal := decimal.Zero
	lines := make([]models.InvoiceItem, len(items))
	for i, it := range items {
		qty := decimal.RequireFromString(it.quantity)
		price := decimal.RequireFromString(it.unitPrice)
		total := qty.Mul(price)
		subtotal = subtotal.Add(total)
		lines[i] = models.InvoiceItem{
			CatalogItemID: it.catalogID,
			Description:   it.description,
			Quantity:      qty,
			UnitPrice:     price,
			Total:         total,
			SortOrder:     i,
		}
	}

	issue := next.AddDate(0, -1, 0)
	invoice := &models.Invoice{
		UserID:          userID,
		ClientID:        clientID,
		InvoiceNumber:   number,
		Currency:        "USD",
		Subtotal:        subtotal,
		Tax:             decimal.Zero,
		Discount:        decimal.Zero,
		Total:           subtotal,
		Status:          models.InvoiceStatusSent,
		IssueDate:       issue,
		DueDate:         issue.AddDate(0, 0, 14),
		IsRecurring:     true,
		Frequency:       freq,
		NextInvoiceDate: ptr(next),
	}
	require.NoError(t, db.Omit("Items").Create(invoice).Error)

	for i := range lines {
		lines[i].InvoiceID = invoice.ID
	}
	if len(lines) > 0 {
		require.NoError(t, db.Create(&lines).Error)
	}
	return invoice
}

func findInvoiceByNumber(t *testing.T, db *database.DB, userID, number string) *models.Invoice {
	t.Helper()

	var invoice models.Invoice
	err := db.Where("user_id = ? AND invoice_number = ?", userID, number).First(&invoice).Error
	if err != nil {
		return nil
	}
	return &invoice
}

func reloadInvoice(t *testing.T, db *database.DB, id string) *models.Invoice {
	t.Helper()

	var invoice models.Invoice
	require.NoError(t, db.First(&invoice, "id = ?", id).Error)
	return &invoice
}

func countInvoices(t *testing.T, db *database.DB) int64 {
	t.Helper()

	var n int64
	require.NoError(t, db.Model(&models.Invoice{}).Count(&n).Error)
	return n
}

func requireSameInstant(t *testing.T, want, got time.Time, msgAndArgs ...any) {
	t.Helper()
	require.Truef(t, want.Equal(got), "want %s, got %s %v", want, got, msgAndArgs)
}

func ptr[T any](v T) *T {
	return &v
}

// failingStore wraps a store and fails chosen operations, including inside
// transactions.
type failingStore struct {
	InvoiceStore
	failList          error
	failItemsWithDesc string
}

func (s *failingStore) ListRecurringInvoices(ctx context.Context) ([]models.Invoice, error) {
	if s.failList != nil {
		return nil, s.failList
	}
	return s.InvoiceStore.ListRecurringInvoices(ctx)
}

func (s *failingStore) CreateInvoiceItems(ctx context.Context, invoiceID string, items []models.InvoiceItem) error {
	for _, item := range items {
		if s.failItemsWithDesc != "" && item.Description == s.failItemsWithDesc {
			return errItemsRejected
		}
	}
	return s.InvoiceStore.CreateInvoiceItems(ctx, invoiceID, items)
}

func (s *failingStore) Transaction(ctx context.Context, fn func(tx InvoiceStore) error) error {
	return s.InvoiceStore.Transaction(ctx, func(tx InvoiceStore) error {
		return fn(&failingStore{InvoiceStore: tx, failList: s.failList, failItemsWithDesc: s.failItemsWithDesc})
	})
}
