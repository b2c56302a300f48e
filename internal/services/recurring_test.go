package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"billflow/internal/database"
	"billflow/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"
)

var errItemsRejected = errors.New("items rejected")

func newTestRecurringService(db *database.DB, store InvoiceStore, dispatcher InvoiceDispatcher, opts ...RecurringOption) *RecurringService {
	runs := NewGormInvoiceStore(db)
	opts = append([]RecurringOption{WithRunStore(runs)}, opts...)
	return NewRecurringService(store, dispatcher, zap.NewNop(), opts...)
}

// ==================== PASS TESTS ====================

func TestProcessAt_MonthlyScenario(t *testing.T) {
	db := newTestDB(t)
	store := NewGormInvoiceStore(db)
	user := createTestUser(t, db)
	client := createTestClient(t, db, user.ID)

	template := createRecurringInvoice(t, db, user.ID, client.ID, "INV-0005", models.FrequencyMonthly,
		date(2024, time.January, 1),
		itemSpec{description: "Consulting", quantity: "1", unitPrice: "1000"},
	)

	svc := newTestRecurringService(db, store, nil)
	report, err := svc.ProcessAt(context.Background(), date(2024, time.January, 15))
	require.NoError(t, err)

	assert.Equal(t, 1, report.Due)
	assert.Equal(t, 1, report.Generated)
	assert.Zero(t, report.Failed)

	generated := findInvoiceByNumber(t, db, user.ID, "INV-0006")
	require.NotNil(t, generated)
	assert.Equal(t, models.InvoiceStatusDraft, generated.Status)
	assert.Equal(t, client.ID, generated.ClientID)
	assert.True(t, generated.IsRecurring)
	assert.Equal(t, models.FrequencyMonthly, generated.Frequency)
	assert.True(t, generated.Total.Equal(decimal.NewFromInt(1000)))
	requireSameInstant(t, date(2024, time.January, 15), generated.IssueDate)
	requireSameInstant(t, date(2024, time.February, 15), generated.DueDate)
	require.NotNil(t, generated.NextInvoiceDate)
	requireSameInstant(t, date(2024, time.February, 15), *generated.NextInvoiceDate)
	assert.Equal(t, template.SeriesID, generated.SeriesID)
	assert.Equal(t, template.SeriesSeq+1, generated.SeriesSeq)

	items, err := store.GetInvoiceItems(context.Background(), generated.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Consulting", items[0].Description)

	reloaded := reloadInvoice(t, db, template.ID)
	require.NotNil(t, reloaded.NextInvoiceDate)
	requireSameInstant(t, date(2024, time.February, 15), *reloaded.NextInvoiceDate)
	assert.Equal(t, models.InvoiceStatusSent, reloaded.Status, "template is otherwise untouched")
}

func TestProcessAt_DoesNotRefire(t *testing.T) {
	db := newTestDB(t)
	store := NewGormInvoiceStore(db)
	user := createTestUser(t, db)
	client := createTestClient(t, db, user.ID)

	createRecurringInvoice(t, db, user.ID, client.ID, "INV-0005", models.FrequencyMonthly,
		date(2024, time.January, 1),
		itemSpec{description: "Consulting", quantity: "1", unitPrice: "1000"},
	)
	svc := newTestRecurringService(db, store, nil)
	now := time.Date(2024, time.January, 15, 2, 0, 0, 0, time.UTC)

	first, err := svc.ProcessAt(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Generated)

	second, err := svc.ProcessAt(context.Background(), now)
	require.NoError(t, err)
	assert.Zero(t, second.Due)
	assert.Zero(t, second.Generated)

	nextDay, err := svc.ProcessAt(context.Background(), now.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Zero(t, nextDay.Due)

	assert.Equal(t, int64(2), countInvoices(t, db))
}

func TestProcessAt_TemplateWithoutSeriesFiresOnce(t *testing.T) {
	db := newTestDB(t)
	store := NewGormInvoiceStore(db)
	user := createTestUser(t, db)
	client := createTestClient(t, db, user.ID)

	template := createRecurringInvoice(t, db, user.ID, client.ID, "INV-0005", models.FrequencyMonthly,
		date(2024, time.January, 1),
		itemSpec{description: "Consulting", quantity: "1", unitPrice: "1000"},
	)
	require.NoError(t, db.Model(&models.Invoice{}).Where("id = ?", template.ID).UpdateColumn("series_id", "").Error)

	svc := newTestRecurringService(db, store, nil)

	first, err := svc.ProcessAt(context.Background(), date(2024, time.January, 15))
	require.NoError(t, err)
	assert.Equal(t, 1, first.Generated)
	assert.Equal(t, template.ID, reloadInvoice(t, db, template.ID).SeriesID)

	second, err := svc.ProcessAt(context.Background(), date(2024, time.February, 15))
	require.NoError(t, err)
	assert.Equal(t, 1, second.Due)
	assert.Equal(t, 1, second.Generated)

	assert.Equal(t, int64(3), countInvoices(t, db))
	assert.NotNil(t, findInvoiceByNumber(t, db, user.ID, "INV-0007"))
	assert.Nil(t, findInvoiceByNumber(t, db, user.ID, "INV-0008"))
}

func TestProcessAt_OnlySeriesHeadFires(t *testing.T) {
	db := newTestDB(t)
	store := NewGormInvoiceStore(db)
	user := createTestUser(t, db)
	client := createTestClient(t, db, user.ID)

	createRecurringInvoice(t, db, user.ID, client.ID, "INV-0005", models.FrequencyMonthly,
		date(2024, time.January, 1),
		itemSpec{description: "Consulting", quantity: "1", unitPrice: "1000"},
	)
	svc := newTestRecurringService(db, store, nil)

	_, err := svc.ProcessAt(context.Background(), date(2024, time.January, 15))
	require.NoError(t, err)

	// template and INV-0006 now both point at Feb 15; only the newest may fire
	report, err := svc.ProcessAt(context.Background(), date(2024, time.February, 15))
	require.NoError(t, err)
	assert.Equal(t, 1, report.Due)
	assert.Equal(t, 1, report.Generated)
	assert.Equal(t, "INV-0007", report.Results[0].InvoiceNumber)

	assert.Equal(t, int64(3), countInvoices(t, db))
}

func TestProcessAt_NextDateNeverInPast(t *testing.T) {
	freqs := []models.Frequency{
		models.FrequencyWeekly, models.FrequencyBiweekly, models.FrequencyMonthly,
		models.FrequencyQuarterly, models.FrequencyAnnually,
	}

	for _, freq := range freqs {
		t.Run(string(freq), func(t *testing.T) {
			db := newTestDB(t)
			store := NewGormInvoiceStore(db)
			user := createTestUser(t, db)
			client := createTestClient(t, db, user.ID)

			// a series that missed several periods
			template := createRecurringInvoice(t, db, user.ID, client.ID, "INV-1001", freq,
				date(2023, time.March, 1),
				itemSpec{description: "Hosting", quantity: "1", unitPrice: "20"},
			)
			now := time.Date(2024, time.January, 31, 23, 59, 0, 0, time.UTC)

			svc := newTestRecurringService(db, store, nil)
			report, err := svc.ProcessAt(context.Background(), now)
			require.NoError(t, err)
			require.Equal(t, 1, report.Generated)

			reloaded := reloadInvoice(t, db, template.ID)
			require.NotNil(t, reloaded.NextInvoiceDate)
			assert.True(t, reloaded.NextInvoiceDate.After(now), "next %s", reloaded.NextInvoiceDate)
		})
	}
}

func TestProcessAt_LineItemFidelity(t *testing.T) {
	db := newTestDB(t)
	store := NewGormInvoiceStore(db)
	user := createTestUser(t, db)
	client := createTestClient(t, db, user.ID)

	catalog := &models.CatalogItem{UserID: user.ID, Name: "Support", UnitPrice: decimal.RequireFromString("75.50")}
	require.NoError(t, db.Create(catalog).Error)

	template := createRecurringInvoice(t, db, user.ID, client.ID, "RET-0099", models.FrequencyQuarterly,
		date(2024, time.January, 1),
		itemSpec{description: "Retainer", quantity: "1", unitPrice: "2500"},
		itemSpec{description: "Support hours", quantity: "3.5", unitPrice: "75.50", catalogID: &catalog.ID},
		itemSpec{description: "Licence", quantity: "10", unitPrice: "12.99"},
	)

	svc := newTestRecurringService(db, store, nil)
	report, err := svc.ProcessAt(context.Background(), date(2024, time.January, 2))
	require.NoError(t, err)
	require.Equal(t, 1, report.Generated)
	assert.Equal(t, "RET-0100", report.Results[0].InvoiceNumber)

	original, err := store.GetInvoiceItems(context.Background(), template.ID)
	require.NoError(t, err)
	cloned, err := store.GetInvoiceItems(context.Background(), report.Results[0].InvoiceID)
	require.NoError(t, err)

	require.Len(t, cloned, len(original))
	for i := range original {
		assert.NotEqual(t, original[i].ID, cloned[i].ID)
		assert.Equal(t, report.Results[0].InvoiceID, cloned[i].InvoiceID)
		assert.Equal(t, original[i].Description, cloned[i].Description)
		assert.True(t, original[i].Quantity.Equal(cloned[i].Quantity), "quantity of %s", original[i].Description)
		assert.True(t, original[i].UnitPrice.Equal(cloned[i].UnitPrice), "price of %s", original[i].Description)
		assert.True(t, original[i].Total.Equal(cloned[i].Total), "total of %s", original[i].Description)
		assert.Equal(t, original[i].CatalogItemID, cloned[i].CatalogItemID)
	}
}

func TestProcessAt_CopiesTotalsVerbatim(t *testing.T) {
	db := newTestDB(t)
	store := NewGormInvoiceStore(db)
	user := createTestUser(t, db)
	client := createTestClient(t, db, user.ID)

	template := createRecurringInvoice(t, db, user.ID, client.ID, "INV-0001", models.FrequencyMonthly,
		date(2024, time.January, 1),
		itemSpec{description: "Consulting", quantity: "1", unitPrice: "1000"},
	)
	// totals deliberately inconsistent with the items
	require.NoError(t, db.Model(template).Updates(map[string]any{
		"tax":      decimal.RequireFromString("160"),
		"discount": decimal.RequireFromString("10"),
		"total":    decimal.RequireFromString("999.99"),
	}).Error)

	svc := newTestRecurringService(db, store, nil)
	_, err := svc.ProcessAt(context.Background(), date(2024, time.January, 1))
	require.NoError(t, err)

	generated := findInvoiceByNumber(t, db, user.ID, "INV-0002")
	require.NotNil(t, generated)
	assert.True(t, generated.Subtotal.Equal(decimal.NewFromInt(1000)))
	assert.True(t, generated.Tax.Equal(decimal.NewFromInt(160)))
	assert.True(t, generated.Discount.Equal(decimal.NewFromInt(10)))
	assert.True(t, generated.Total.Equal(decimal.RequireFromString("999.99")))
}

func TestProcessAt_PartialFailureIsolation(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db)
	client := createTestClient(t, db, user.ID)
	due := date(2024, time.January, 1)

	first := createRecurringInvoice(t, db, user.ID, client.ID, "A-0001", models.FrequencyMonthly, due,
		itemSpec{description: "Alpha", quantity: "1", unitPrice: "100"})
	second := createRecurringInvoice(t, db, user.ID, client.ID, "B-0001", models.FrequencyMonthly, due,
		itemSpec{description: "Beta", quantity: "1", unitPrice: "200"},
		itemSpec{description: "fail", quantity: "1", unitPrice: "1"})
	third := createRecurringInvoice(t, db, user.ID, client.ID, "C-0001", models.FrequencyMonthly, due,
		itemSpec{description: "Gamma", quantity: "1", unitPrice: "300"})

	store := &failingStore{InvoiceStore: NewGormInvoiceStore(db), failItemsWithDesc: "fail"}
	svc := newTestRecurringService(db, store, nil)

	report, err := svc.ProcessAt(context.Background(), date(2024, time.January, 15))
	require.NoError(t, err)
	assert.Equal(t, 3, report.Due)
	assert.Equal(t, 2, report.Generated)
	assert.Equal(t, 1, report.Failed)

	assert.NotNil(t, findInvoiceByNumber(t, db, user.ID, "A-0002"))
	assert.NotNil(t, findInvoiceByNumber(t, db, user.ID, "C-0002"))
	assert.Nil(t, findInvoiceByNumber(t, db, user.ID, "B-0002"), "failed clone must roll back the invoice")

	requireSameInstant(t, due, *reloadInvoice(t, db, second.ID).NextInvoiceDate)
	requireSameInstant(t, date(2024, time.February, 15), *reloadInvoice(t, db, first.ID).NextInvoiceDate)
	requireSameInstant(t, date(2024, time.February, 15), *reloadInvoice(t, db, third.ID).NextInvoiceDate)

	var failed *InvoiceResult
	for i := range report.Results {
		if report.Results[i].TemplateID == second.ID {
			failed = &report.Results[i]
		}
	}
	require.NotNil(t, failed)
	assert.ErrorIs(t, failed.CloneErr, errItemsRejected)

	// still eligible on the next pass
	store.failItemsWithDesc = ""
	retry, err := svc.ProcessAt(context.Background(), date(2024, time.January, 16))
	require.NoError(t, err)
	assert.Equal(t, 1, retry.Generated)
	assert.NotNil(t, findInvoiceByNumber(t, db, user.ID, "B-0002"))
}

func TestProcessAt_NumberCollisionRetries(t *testing.T) {
	db := newTestDB(t)
	store := NewGormInvoiceStore(db)
	user := createTestUser(t, db)
	client := createTestClient(t, db, user.ID)

	createRecurringInvoice(t, db, user.ID, client.ID, "INV-0005", models.FrequencyMonthly,
		date(2024, time.January, 1),
		itemSpec{description: "Consulting", quantity: "1", unitPrice: "1000"},
	)
	manual := &models.Invoice{
		UserID: user.ID, ClientID: client.ID, InvoiceNumber: "INV-0006",
		Subtotal: decimal.Zero, Tax: decimal.Zero, Discount: decimal.Zero, Total: decimal.Zero,
	}
	require.NoError(t, db.Create(manual).Error)

	svc := newTestRecurringService(db, store, nil)
	report, err := svc.ProcessAt(context.Background(), date(2024, time.January, 15))
	require.NoError(t, err)
	require.Equal(t, 1, report.Generated)
	assert.Equal(t, "INV-0007", report.Results[0].InvoiceNumber)
}

func TestProcessAt_NumberCollisionGivesUp(t *testing.T) {
	db := newTestDB(t)
	store := NewGormInvoiceStore(db)
	user := createTestUser(t, db)
	client := createTestClient(t, db, user.ID)

	template := createRecurringInvoice(t, db, user.ID, client.ID, "INV-0005", models.FrequencyMonthly,
		date(2024, time.January, 1),
		itemSpec{description: "Consulting", quantity: "1", unitPrice: "1000"},
	)
	for _, n := range []string{"INV-0006", "INV-0007"} {
		require.NoError(t, db.Create(&models.Invoice{
			UserID: user.ID, ClientID: client.ID, InvoiceNumber: n,
			Subtotal: decimal.Zero, Tax: decimal.Zero, Discount: decimal.Zero, Total: decimal.Zero,
		}).Error)
	}

	svc := newTestRecurringService(db, store, nil, WithMaxNumberRetries(2))
	report, err := svc.ProcessAt(context.Background(), date(2024, time.January, 15))
	require.NoError(t, err)
	assert.Equal(t, 1, report.Failed)
	assert.Zero(t, report.Generated)

	requireSameInstant(t, date(2024, time.January, 1), *reloadInvoice(t, db, template.ID).NextInvoiceDate)
}

func TestProcessAt_SkipsInvoicesNotDue(t *testing.T) {
	db := newTestDB(t)
	store := NewGormInvoiceStore(db)
	user := createTestUser(t, db)
	client := createTestClient(t, db, user.ID)

	createRecurringInvoice(t, db, user.ID, client.ID, "FUT-0001", models.FrequencyWeekly,
		date(2024, time.January, 16),
		itemSpec{description: "Later", quantity: "1", unitPrice: "1"})

	stopped := createRecurringInvoice(t, db, user.ID, client.ID, "OFF-0001", models.FrequencyWeekly,
		date(2024, time.January, 1),
		itemSpec{description: "Stopped", quantity: "1", unitPrice: "1"})
	require.NoError(t, db.Model(stopped).Update("is_recurring", false).Error)

	paused := createRecurringInvoice(t, db, user.ID, client.ID, "NIL-0001", models.FrequencyWeekly,
		date(2024, time.January, 1),
		itemSpec{description: "Paused", quantity: "1", unitPrice: "1"})
	require.NoError(t, db.Model(paused).Update("next_invoice_date", nil).Error)

	svc := newTestRecurringService(db, store, nil)
	report, err := svc.ProcessAt(context.Background(), date(2024, time.January, 15))
	require.NoError(t, err)
	assert.Zero(t, report.Due)
	assert.Equal(t, int64(3), countInvoices(t, db))
}

func TestProcessAt_DueAtExactlyNow(t *testing.T) {
	db := newTestDB(t)
	store := NewGormInvoiceStore(db)
	user := createTestUser(t, db)
	client := createTestClient(t, db, user.ID)

	now := time.Date(2024, time.January, 15, 2, 0, 0, 0, time.UTC)
	createRecurringInvoice(t, db, user.ID, client.ID, "INV-0001", models.FrequencyWeekly, now,
		itemSpec{description: "Weekly", quantity: "1", unitPrice: "1"})

	svc := newTestRecurringService(db, store, nil)
	report, err := svc.ProcessAt(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Generated)
}

func TestProcessAt_ListFailureAbortsPass(t *testing.T) {
	db := newTestDB(t)
	listErr := errors.New("database unreachable")
	store := &failingStore{InvoiceStore: NewGormInvoiceStore(db), failList: listErr}

	svc := newTestRecurringService(db, store, nil)
	report, err := svc.ProcessAt(context.Background(), date(2024, time.January, 15))
	require.Error(t, err)
	assert.ErrorIs(t, err, listErr)
	assert.Nil(t, report)

	runs, _, err := NewGormInvoiceStore(db).ListRuns(context.Background(), 10, 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, models.RunStatusFailed, runs[0].Status)
	assert.Contains(t, runs[0].Error, "database unreachable")
}

func TestProcessAt_SkipsWhileAnotherPassRuns(t *testing.T) {
	db := newTestDB(t)
	store := NewGormInvoiceStore(db)
	lock := NewLocalPassLock()

	ok, err := lock.TryAcquire(context.Background())
	require.NoError(t, err)
	require.True(t, ok)

	svc := newTestRecurringService(db, store, nil, WithPassLock(lock))
	_, err = svc.ProcessAt(context.Background(), date(2024, time.January, 15))
	assert.ErrorIs(t, err, ErrPassInProgress)

	runs, _, err := store.ListRuns(context.Background(), 10, 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, models.RunStatusSkipped, runs[0].Status)

	require.NoError(t, lock.Release(context.Background()))
	_, err = svc.ProcessAt(context.Background(), date(2024, time.January, 15))
	assert.NoError(t, err)
}

func TestProcessAt_RecordsRunAndAudit(t *testing.T) {
	db := newTestDB(t)
	store := NewGormInvoiceStore(db)
	user := createTestUser(t, db)
	client := createTestClient(t, db, user.ID)

	createRecurringInvoice(t, db, user.ID, client.ID, "INV-0005", models.FrequencyMonthly,
		date(2024, time.January, 1),
		itemSpec{description: "Consulting", quantity: "1", unitPrice: "1000"})

	svc := newTestRecurringService(db, store, nil)
	report, err := svc.ProcessAt(context.Background(), date(2024, time.January, 15))
	require.NoError(t, err)
	require.NotEmpty(t, report.RunID)

	runs, _, err := store.ListRuns(context.Background(), 10, 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, report.RunID, runs[0].ID)
	assert.Equal(t, models.RunStatusSucceeded, runs[0].Status)
	assert.Equal(t, 1, runs[0].DueCount)
	assert.Equal(t, 1, runs[0].GeneratedCount)
	assert.NotNil(t, runs[0].FinishedAt)

	var audit models.AuditLog
	require.NoError(t, db.Where("action = ?", auditActionRecurringGenerated).First(&audit).Error)
	assert.Equal(t, report.Results[0].InvoiceID, audit.EntityID)
	assert.Equal(t, user.ID, audit.UserID)
	assert.Contains(t, audit.Details, "INV-0006")
}

func TestProcessAt_CalendarDayInLocation(t *testing.T) {
	db := newTestDB(t)
	store := NewGormInvoiceStore(db)
	user := createTestUser(t, db)
	client := createTestClient(t, db, user.ID)

	createRecurringInvoice(t, db, user.ID, client.ID, "INV-0001", models.FrequencyMonthly,
		date(2024, time.January, 1),
		itemSpec{description: "Consulting", quantity: "1", unitPrice: "1000"})

	eat := time.FixedZone("EAT", 3*60*60)
	// 22:30 UTC on the 14th is the 15th in EAT
	now := time.Date(2024, time.January, 14, 22, 30, 0, 0, time.UTC)

	svc := newTestRecurringService(db, store, nil, WithLocation(eat))
	_, err := svc.ProcessAt(context.Background(), now)
	require.NoError(t, err)

	generated := findInvoiceByNumber(t, db, user.ID, "INV-0002")
	require.NotNil(t, generated)
	requireSameInstant(t, time.Date(2024, time.January, 15, 0, 0, 0, 0, eat), generated.IssueDate)
	requireSameInstant(t, time.Date(2024, time.February, 15, 0, 0, 0, 0, eat), *generated.NextInvoiceDate)
}

func TestProcessRecurringInvoices_UsesInjectedClock(t *testing.T) {
	db := newTestDB(t)
	store := NewGormInvoiceStore(db)
	user := createTestUser(t, db)
	client := createTestClient(t, db, user.ID)

	createRecurringInvoice(t, db, user.ID, client.ID, "INV-0005", models.FrequencyMonthly,
		date(2024, time.January, 1),
		itemSpec{description: "Consulting", quantity: "1", unitPrice: "1000"})

	svc := newTestRecurringService(db, store, nil, WithClock(func() time.Time {
		return date(2024, time.January, 15)
	}))
	require.NoError(t, svc.ProcessRecurringInvoices(context.Background()))

	generated := findInvoiceByNumber(t, db, user.ID, "INV-0006")
	require.NotNil(t, generated)
	requireSameInstant(t, date(2024, time.January, 15), generated.IssueDate)
}

// ==================== DISPATCH ISOLATION TESTS ====================

func TestProcessAt_DispatchFailureKeepsInvoice(t *testing.T) {
	db := newTestDB(t)
	store := NewGormInvoiceStore(db)
	user := createTestUser(t, db)
	client := createTestClient(t, db, user.ID)

	createRecurringInvoice(t, db, user.ID, client.ID, "INV-0005", models.FrequencyMonthly,
		date(2024, time.January, 1),
		itemSpec{description: "Consulting", quantity: "1", unitPrice: "1000"})

	ctrl := gomock.NewController(t)
	dispatcher := NewMockInvoiceDispatcher(ctrl)
	dispatcher.EXPECT().
		Dispatch(gomock.Any(), gomock.Any(), gomock.Len(1)).
		DoAndReturn(func(_ context.Context, inv *models.Invoice, _ []models.InvoiceItem) error {
			assert.Equal(t, "INV-0006", inv.InvoiceNumber)
			return ErrSendFailed
		})

	svc := newTestRecurringService(db, store, dispatcher)
	report, err := svc.ProcessAt(context.Background(), date(2024, time.January, 15))
	require.NoError(t, err)
	assert.Equal(t, 1, report.Generated)
	assert.Equal(t, 1, report.DispatchFailed)
	assert.ErrorIs(t, report.Results[0].DispatchErr, ErrSendFailed)

	generated := findInvoiceByNumber(t, db, user.ID, "INV-0006")
	require.NotNil(t, generated)
	assert.Equal(t, models.InvoiceStatusDraft, generated.Status)
}

func TestProcessAt_MissingClientStillGenerates(t *testing.T) {
	db := newTestDB(t)
	store := NewGormInvoiceStore(db)
	user := createTestUser(t, db)

	createRecurringInvoice(t, db, user.ID, "deleted-client", "INV-0005", models.FrequencyMonthly,
		date(2024, time.January, 1),
		itemSpec{description: "Consulting", quantity: "1", unitPrice: "1000"})

	ctrl := gomock.NewController(t)
	// no expectations: a missing client must stop dispatch before rendering
	dispatcher := NewDispatcher(store, NewMockRenderer(ctrl), NewMockMailer(ctrl), zap.NewNop())

	svc := newTestRecurringService(db, store, dispatcher)
	report, err := svc.ProcessAt(context.Background(), date(2024, time.January, 15))
	require.NoError(t, err)
	assert.Equal(t, 1, report.Generated)
	assert.Equal(t, 1, report.DispatchSkipped)
	assert.Zero(t, report.DispatchFailed)
	assert.ErrorIs(t, report.Results[0].DispatchErr, ErrDispatchSkipped)

	generated := findInvoiceByNumber(t, db, user.ID, "INV-0006")
	require.NotNil(t, generated)
	assert.Equal(t, models.InvoiceStatusDraft, generated.Status)
}

func TestProcessAt_DispatchesEveryGeneratedInvoice(t *testing.T) {
	db := newTestDB(t)
	store := NewGormInvoiceStore(db)
	user := createTestUser(t, db)
	client := createTestClient(t, db, user.ID)

	for _, n := range []string{"A-1", "B-1", "C-1"} {
		createRecurringInvoice(t, db, user.ID, client.ID, n, models.FrequencyWeekly,
			date(2024, time.January, 1),
			itemSpec{description: n, quantity: "1", unitPrice: "10"})
	}

	ctrl := gomock.NewController(t)
	dispatcher := NewMockInvoiceDispatcher(ctrl)
	gomock.InOrder(
		dispatcher.EXPECT().Dispatch(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil),
		dispatcher.EXPECT().Dispatch(gomock.Any(), gomock.Any(), gomock.Any()).Return(ErrRenderFailed),
		dispatcher.EXPECT().Dispatch(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil),
	)

	svc := newTestRecurringService(db, store, dispatcher)
	report, err := svc.ProcessAt(context.Background(), date(2024, time.January, 15))
	require.NoError(t, err)
	assert.Equal(t, 3, report.Generated)
	assert.Equal(t, 2, report.Dispatched)
	assert.Equal(t, 1, report.DispatchFailed)
}

func TestDueTemplates(t *testing.T) {
	now := date(2024, time.January, 15)
	invoices := []models.Invoice{
		{ID: "past", IsRecurring: true, NextInvoiceDate: ptr(date(2024, time.January, 1))},
		{ID: "now", IsRecurring: true, NextInvoiceDate: ptr(now)},
		{ID: "future", IsRecurring: true, NextInvoiceDate: ptr(now.Add(time.Second))},
		{ID: "nil", IsRecurring: true},
		{ID: "off", NextInvoiceDate: ptr(date(2024, time.January, 1))},
	}

	due := dueTemplates(invoices, now)

	ids := make([]string, len(due))
	for i, inv := range due {
		ids[i] = inv.ID
	}
	assert.ElementsMatch(t, []string{"past", "now"}, ids)
}
