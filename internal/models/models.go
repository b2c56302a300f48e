package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// User is the issuing account. Its company fields populate the invoice header.
type User struct {
	ID          string    `json:"id" gorm:"size:36;primaryKey"`
	Email       string    `json:"email" gorm:"size:255;uniqueIndex;not null"`
	Name        string    `json:"name"`
	Phone       string    `json:"phone"`
	CompanyName string    `json:"company_name"`
	Address     string    `json:"address"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Client represents a customer/client of the user
type Client struct {
	ID        string    `json:"id" gorm:"size:36;primaryKey"`
	UserID    string    `json:"user_id" gorm:"size:36;index;not null"`
	Name      string    `json:"name" gorm:"not null"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	Address   string    `json:"address"`
	Currency  string    `json:"currency" gorm:"default:'USD'"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// InvoiceStatus represents the status of an invoice
type InvoiceStatus string

const (
	InvoiceStatusDraft     InvoiceStatus = "draft"
	InvoiceStatusSent      InvoiceStatus = "sent"
	InvoiceStatusPaid      InvoiceStatus = "paid"
	InvoiceStatusOverdue   InvoiceStatus = "overdue"
	InvoiceStatusCancelled InvoiceStatus = "cancelled"
)

// Frequency is the cadence of a recurring invoice series
type Frequency string

const (
	FrequencyWeekly    Frequency = "weekly"
	FrequencyBiweekly  Frequency = "biweekly"
	FrequencyMonthly   Frequency = "monthly"
	FrequencyQuarterly Frequency = "quarterly"
	FrequencyAnnually  Frequency = "annually"
)

// Invoice is the central billing record. A recurring series is the chain of
// invoices sharing a SeriesID; the member with the highest SeriesSeq is the
// series head and carries the live NextInvoiceDate.
type Invoice struct {
	ID            string          `json:"id" gorm:"size:36;primaryKey"`
	UserID        string          `json:"user_id" gorm:"size:36;index;not null;uniqueIndex:idx_user_invoice_number,priority:1"`
	ClientID      string          `json:"client_id" gorm:"size:36;index;not null"`
	InvoiceNumber string          `json:"invoice_number" gorm:"size:64;not null;uniqueIndex:idx_user_invoice_number,priority:2"`
	Currency      string          `json:"currency" gorm:"default:'USD'"`
	Subtotal      decimal.Decimal `json:"subtotal" gorm:"type:decimal(18,2);not null"`
	Tax           decimal.Decimal `json:"tax" gorm:"type:decimal(18,2);not null"`
	Discount      decimal.Decimal `json:"discount" gorm:"type:decimal(18,2);not null"`
	Total         decimal.Decimal `json:"total" gorm:"type:decimal(18,2);not null"`
	Status        InvoiceStatus   `json:"status" gorm:"default:'draft'"`
	Notes         string          `json:"notes"`
	Terms         string          `json:"terms"`

	IssueDate time.Time `json:"issue_date"`
	DueDate   time.Time `json:"due_date"`

	IsRecurring     bool       `json:"is_recurring" gorm:"index;default:false"`
	Frequency       Frequency  `json:"frequency"`
	NextInvoiceDate *time.Time `json:"next_invoice_date" gorm:"index"`
	SeriesID        string     `json:"series_id" gorm:"size:36;index"`
	SeriesSeq       int        `json:"series_seq" gorm:"default:0"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Items []InvoiceItem `json:"items,omitempty" gorm:"foreignKey:InvoiceID"`
}

// CatalogItem is a reusable product or service a line item may reference
type CatalogItem struct {
	ID          string          `json:"id" gorm:"size:36;primaryKey"`
	UserID      string          `json:"user_id" gorm:"size:36;index;not null"`
	Name        string          `json:"name" gorm:"not null"`
	Description string          `json:"description"`
	UnitPrice   decimal.Decimal `json:"unit_price" gorm:"type:decimal(18,2);not null"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// InvoiceItem represents a line item in an invoice
type InvoiceItem struct {
	ID            string          `json:"id" gorm:"size:36;primaryKey"`
	InvoiceID     string          `json:"invoice_id" gorm:"size:36;index;not null"`
	CatalogItemID *string         `json:"catalog_item_id" gorm:"size:36;index"`
	Description   string          `json:"description" gorm:"not null"`
	Quantity      decimal.Decimal `json:"quantity" gorm:"type:decimal(18,4);not null"`
	UnitPrice     decimal.Decimal `json:"unit_price" gorm:"type:decimal(18,2);not null"`
	Total         decimal.Decimal `json:"total" gorm:"type:decimal(18,2);not null"`
	SortOrder     int             `json:"sort_order" gorm:"default:0"`
	CreatedAt     time.Time       `json:"created_at"`
}

// RunStatus is the outcome of one recurring pass
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusFailed    RunStatus = "failed"
	RunStatusSkipped   RunStatus = "skipped"
)

// RecurringRun records one execution of the recurring pass
type RecurringRun struct {
	ID              string     `json:"id" gorm:"size:36;primaryKey"`
	Status          RunStatus  `json:"status" gorm:"index"`
	StartedAt       time.Time  `json:"started_at" gorm:"index"`
	FinishedAt      *time.Time `json:"finished_at"`
	DueCount        int        `json:"due_count"`
	GeneratedCount  int        `json:"generated_count"`
	FailedCount     int        `json:"failed_count"`
	DispatchedCount int        `json:"dispatched_count"`
	DispatchFailed  int        `json:"dispatch_failed"`
	DispatchSkipped int        `json:"dispatch_skipped"`
	Error           string     `json:"error"`
}

// AuditLog for tracking changes
type AuditLog struct {
	ID         string    `json:"id" gorm:"size:36;primaryKey"`
	UserID     string    `json:"user_id" gorm:"size:36;index"`
	Action     string    `json:"action" gorm:"not null"`
	EntityType string    `json:"entity_type"`
	EntityID   string    `json:"entity_id"`
	Details    string    `json:"details"` // JSON blob
	CreatedAt  time.Time `json:"created_at"`
}

// BeforeCreate hook for UUID
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	return nil
}

func (c *Client) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	return nil
}

// BeforeCreate assigns the id and, for the first invoice of a series, makes
// the invoice its own series root.
func (i *Invoice) BeforeCreate(tx *gorm.DB) error {
	if i.ID == "" {
		i.ID = uuid.New().String()
	}
	if i.SeriesID == "" {
		i.SeriesID = i.ID
	}
	if i.Status == "" {
		i.Status = InvoiceStatusDraft
	}
	return nil
}

func (c *CatalogItem) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	return nil
}

func (i *InvoiceItem) BeforeCreate(tx *gorm.DB) error {
	if i.ID == "" {
		i.ID = uuid.New().String()
	}
	return nil
}

func (r *RecurringRun) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	return nil
}

func (a *AuditLog) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	return nil
}
