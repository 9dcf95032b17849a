package persistence

import (
	"testing"
	"time"

	"github.com/JasonPDev313/Oppsera-sub010/internal/domain/ledger"
	"github.com/JasonPDev313/Oppsera-sub010/internal/domain/mapping"
	"github.com/JasonPDev313/Oppsera-sub010/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupLedgerTestDB opens an in-memory sqlite database with the ledger schema.
// The pool is pinned to one connection so every query sees the same database.
func setupLedgerTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(models.LedgerModels()...))
	for _, table := range models.MappingTables {
		require.NoError(t, db.Table(table).AutoMigrate(&models.AccountMappingModel{}))
	}
	return db
}

func businessDay() time.Time {
	return time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)
}

func postingInput(ref string, cash, revenue uuid.UUID, amount string) ledger.PostingInput {
	amt := decimal.RequireFromString(amount)
	return ledger.PostingInput{
		SourceModule:      "pos",
		SourceReferenceID: ref,
		SourceEntityID:    ref,
		BusinessDate:      businessDay(),
		Memo:              "tender " + ref,
		PostedBy:          "system",
		Lines: []ledger.LineInput{
			{AccountID: cash, Debit: amt},
			{AccountID: revenue, Credit: amt},
		},
	}
}

func newTestEntry(t *testing.T, tenantID uuid.UUID, number int64, ref string) *ledger.JournalEntry {
	t.Helper()
	entry, err := ledger.NewJournalEntry(tenantID, number, postingInput(ref, uuid.New(), uuid.New(), "25.00"),
		decimal.RequireFromString("0.05"), time.Now().UTC())
	require.NoError(t, err)
	return entry
}

func seedMapping(t *testing.T, db *gorm.DB, tenantID uuid.UUID, kind mapping.MappingKind, key string, locationID *uuid.UUID, target mapping.Target) uuid.UUID {
	t.Helper()
	accountID := uuid.New()
	now := time.Now().UTC()
	require.NoError(t, db.Table(models.MappingTables[kind]).Create(&models.AccountMappingModel{
		ID:         uuid.New(),
		TenantID:   tenantID,
		MappingKey: key,
		LocationID: locationID,
		Target:     target,
		AccountID:  accountID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}).Error)
	return accountID
}
