package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/JasonPDev313/Oppsera-sub010/internal/domain/ledger"
	"github.com/JasonPDev313/Oppsera-sub010/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGormJournalRepository_InsertAndFind(t *testing.T) {
	db := setupLedgerTestDB(t)
	ctx := context.Background()
	tenantID := uuid.New()
	repo := NewGormJournalRepository(db, tenantID)

	entry := newTestEntry(t, tenantID, 1, "tender-1")
	require.NoError(t, repo.Insert(ctx, entry))

	t.Run("finds by id with ordered lines", func(t *testing.T) {
		found, err := repo.FindByID(ctx, entry.ID)
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, int64(1), found.JournalNumber)
		assert.Equal(t, ledger.JournalStatusPosted, found.Status)
		require.Len(t, found.Lines, 2)
		assert.Equal(t, 1, found.Lines[0].SortOrder)
		assert.True(t, found.Lines[0].DebitAmount.Equal(entry.Lines[0].DebitAmount))
		assert.True(t, found.Lines[1].CreditAmount.Equal(entry.Lines[1].CreditAmount))
	})

	t.Run("finds by source reference", func(t *testing.T) {
		found, err := repo.FindBySource(ctx, "pos", "tender-1")
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, entry.ID, found.ID)
	})

	t.Run("absent entry is nil", func(t *testing.T) {
		found, err := repo.FindByID(ctx, uuid.New())
		require.NoError(t, err)
		assert.Nil(t, found)
	})

	t.Run("other tenant cannot see the entry", func(t *testing.T) {
		other := NewGormJournalRepository(db, uuid.New())
		found, err := other.FindByID(ctx, entry.ID)
		require.NoError(t, err)
		assert.Nil(t, found)
	})
}

func TestGormJournalRepository_InsertDuplicateSource(t *testing.T) {
	db := setupLedgerTestDB(t)
	ctx := context.Background()
	tenantID := uuid.New()
	repo := NewGormJournalRepository(db, tenantID)

	require.NoError(t, repo.Insert(ctx, newTestEntry(t, tenantID, 1, "tender-1")))

	err := repo.Insert(ctx, newTestEntry(t, tenantID, 2, "tender-1"))
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrDuplicateEvent)
}

func TestGormJournalRepository_InsertRejectsForeignTenant(t *testing.T) {
	db := setupLedgerTestDB(t)
	repo := NewGormJournalRepository(db, uuid.New())

	err := repo.Insert(context.Background(), newTestEntry(t, uuid.New(), 1, "tender-1"))
	assert.ErrorIs(t, err, shared.ErrTenantMismatch)
}

func TestGormJournalRepository_MarkVoided(t *testing.T) {
	db := setupLedgerTestDB(t)
	ctx := context.Background()
	tenantID := uuid.New()
	repo := NewGormJournalRepository(db, tenantID)

	entry := newTestEntry(t, tenantID, 1, "tender-1")
	require.NoError(t, repo.Insert(ctx, entry))

	require.NoError(t, entry.Void("manager", "keyed twice", uuid.New(), time.Now().UTC()))
	require.NoError(t, repo.MarkVoided(ctx, entry))

	stored, err := repo.FindByID(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.JournalStatusVoided, stored.Status)
	assert.Equal(t, "keyed twice", stored.VoidReason)
	assert.NotNil(t, stored.VoidedAt)
	require.Len(t, stored.Lines, 2)

	t.Run("second void is a concurrency conflict", func(t *testing.T) {
		err := repo.MarkVoided(ctx, entry)
		assert.ErrorIs(t, err, shared.ErrConcurrencyConflict)
	})
}

func TestGormJournalRepository_SourceEntityLookups(t *testing.T) {
	db := setupLedgerTestDB(t)
	ctx := context.Background()
	tenantID := uuid.New()
	repo := NewGormJournalRepository(db, tenantID)

	original := newTestEntry(t, tenantID, 1, "tender-9")
	require.NoError(t, repo.Insert(ctx, original))

	reversal, err := ledger.NewJournalEntry(tenantID, 2,
		original.ReversalInput("manager", "remap", businessDay()),
		decimal.RequireFromString("0.05"), time.Now().UTC())
	require.NoError(t, err)
	require.NoError(t, repo.Insert(ctx, reversal))

	active, err := repo.FindActiveBySourceEntity(ctx, "pos", "tender-9")
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, original.ID, active.ID)

	require.NoError(t, original.Void("manager", "remap", reversal.ID, time.Now().UTC()))
	require.NoError(t, repo.MarkVoided(ctx, original))

	active, err = repo.FindActiveBySourceEntity(ctx, "pos", "tender-9")
	require.NoError(t, err)
	assert.Nil(t, active)
}

func TestGormJournalNumberAllocator_Next(t *testing.T) {
	db := setupLedgerTestDB(t)
	ctx := context.Background()
	tenantA, tenantB := uuid.New(), uuid.New()

	allocA := NewGormJournalNumberAllocator(db, tenantA)
	allocB := NewGormJournalNumberAllocator(db, tenantB)

	for want := int64(1); want <= 3; want++ {
		got, err := allocA.Next(ctx)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	got, err := allocB.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got, "numbering is per tenant")
}
