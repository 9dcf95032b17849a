package event

import (
	"context"
	"errors"
	"testing"

	"github.com/JasonPDev313/Oppsera-sub010/internal/domain/shared"
	"github.com/JasonPDev313/Oppsera-sub010/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestOutboxPublisher_Write(t *testing.T) {
	db := setupOutboxDB(t)
	publisher := NewOutboxPublisher(NewEventSerializer())
	ctx := context.Background()
	tenantID := uuid.New()

	evt1 := newTestEvent(posted, tenantID)
	evt2 := newTestEvent(voided, tenantID)

	var entries []*shared.OutboxEntry
	err := db.Transaction(func(tx *gorm.DB) error {
		var err error
		entries, err = publisher.Write(ctx, tx, evt1, evt2)
		return err
	})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, evt1.EventID(), entries[0].EventID)
	assert.Equal(t, tenantID, entries[1].TenantID)
	assert.Contains(t, string(entries[0].Payload), `"data":"test data"`)
	assert.Equal(t, shared.DefaultMaxRetries, entries[0].MaxRetries)

	var count int64
	require.NoError(t, db.Model(&models.OutboxEntryModel{}).Count(&count).Error)
	assert.Equal(t, int64(2), count)
}

func TestOutboxPublisher_WithMaxRetries(t *testing.T) {
	db := setupOutboxDB(t)
	publisher := NewOutboxPublisher(NewEventSerializer(), WithMaxRetries(8))

	var entries []*shared.OutboxEntry
	err := db.Transaction(func(tx *gorm.DB) error {
		var err error
		entries, err = publisher.Write(context.Background(), tx, newTestEvent(posted, uuid.New()))
		return err
	})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 8, entries[0].MaxRetries)

	stored, err := NewGormOutboxRepository(db).FindByID(context.Background(), entries[0].ID)
	require.NoError(t, err)
	assert.Equal(t, 8, stored.MaxRetries)
}

func TestOutboxPublisher_Write_NoEvents(t *testing.T) {
	db := setupOutboxDB(t)
	publisher := NewOutboxPublisher(NewEventSerializer())

	entries, err := publisher.Write(context.Background(), db)

	require.NoError(t, err)
	assert.Nil(t, entries)
}

func TestOutboxPublisher_Write_RolledBackWithTransaction(t *testing.T) {
	db := setupOutboxDB(t)
	publisher := NewOutboxPublisher(NewEventSerializer())
	ctx := context.Background()
	errPosting := errors.New("journal insert failed")

	err := db.Transaction(func(tx *gorm.DB) error {
		if _, err := publisher.Write(ctx, tx, newTestEvent(posted, uuid.New())); err != nil {
			return err
		}
		return errPosting
	})
	require.ErrorIs(t, err, errPosting)

	var count int64
	require.NoError(t, db.Model(&models.OutboxEntryModel{}).Count(&count).Error)
	assert.Zero(t, count)
}
