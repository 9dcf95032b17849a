package persistence

import (
	"context"

	"github.com/JasonPDev313/Oppsera-sub010/internal/domain/ledger"
	"github.com/JasonPDev313/Oppsera-sub010/internal/domain/mapping"
	"github.com/JasonPDev313/Oppsera-sub010/internal/domain/shared"
	"github.com/JasonPDev313/Oppsera-sub010/internal/infrastructure/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// OutboxWriter persists collected events to the outbox inside a transaction
type OutboxWriter interface {
	Write(ctx context.Context, tx *gorm.DB, events ...shared.DomainEvent) ([]*shared.OutboxEntry, error)
}

// OutboxFlusher delivers freshly committed outbox entries. Entries it cannot
// deliver stay in the outbox for the background relay.
type OutboxFlusher interface {
	Flush(ctx context.Context, entries []*shared.OutboxEntry)
}

// GormTransactionCoordinator implements ledger.TransactionCoordinator
type GormTransactionCoordinator struct {
	db      *gorm.DB
	outbox  OutboxWriter
	flusher OutboxFlusher
	logger  *zap.Logger
}

// NewGormTransactionCoordinator creates a coordinator. flusher may be nil, in
// which case committed events wait for the background relay.
func NewGormTransactionCoordinator(db *gorm.DB, outbox OutboxWriter, flusher OutboxFlusher, logger *zap.Logger) *GormTransactionCoordinator {
	return &GormTransactionCoordinator{
		db:      db,
		outbox:  outbox,
		flusher: flusher,
		logger:  logger,
	}
}

// Do runs fn in a transaction whose repositories are bound to tenantID. The
// tenant must match the tenant carried on ctx, if any. Events collected on the
// unit of work are written to the outbox before commit and flushed after it.
func (c *GormTransactionCoordinator) Do(ctx context.Context, tenantID uuid.UUID, fn func(ctx context.Context, uow ledger.UnitOfWork) error) error {
	if tenantID == uuid.Nil {
		return shared.NewDomainError(shared.CodeValidation, "tenant id is required")
	}
	if ctxTenant := logger.GetTenantID(ctx); ctxTenant != "" && ctxTenant != tenantID.String() {
		return shared.NewDomainErrorf(shared.CodeTenantMismatch, "unit of work for tenant %s opened under tenant %s", tenantID, ctxTenant)
	}

	var entries []*shared.OutboxEntry
	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		uow := newGormUnitOfWork(tx, tenantID)
		if err := fn(ctx, uow); err != nil {
			return err
		}
		if uow.events.Len() == 0 {
			return nil
		}
		for _, evt := range uow.events.Events() {
			if evt.TenantID() != tenantID {
				return shared.NewDomainErrorf(shared.CodeTenantMismatch, "event %s belongs to another tenant", evt.EventType())
			}
		}
		var err error
		entries, err = c.outbox.Write(ctx, tx, uow.events.Events()...)
		return err
	})
	if err != nil {
		return err
	}

	if c.flusher != nil && len(entries) > 0 {
		c.flusher.Flush(ctx, entries)
	}
	c.logger.Debug("unit of work committed",
		zap.String("tenant_id", tenantID.String()),
		zap.Int("events", len(entries)),
	)
	return nil
}

// gormUnitOfWork hands out repositories bound to one transaction and tenant
type gormUnitOfWork struct {
	tx       *gorm.DB
	tenantID uuid.UUID
	events   shared.EventBuffer
}

func newGormUnitOfWork(tx *gorm.DB, tenantID uuid.UUID) *gormUnitOfWork {
	return &gormUnitOfWork{tx: tx, tenantID: tenantID}
}

func (u *gormUnitOfWork) Collect(events ...shared.DomainEvent) {
	u.events.Collect(events...)
}

func (u *gormUnitOfWork) TenantID() uuid.UUID {
	return u.tenantID
}

func (u *gormUnitOfWork) Journals() ledger.JournalRepository {
	return NewGormJournalRepository(u.tx, u.tenantID)
}

func (u *gormUnitOfWork) JournalNumbers() ledger.JournalNumberAllocator {
	return NewGormJournalNumberAllocator(u.tx, u.tenantID)
}

func (u *gormUnitOfWork) ProcessedEvents() ledger.ProcessedEventRepository {
	return NewGormProcessedEventRepository(u.tx, u.tenantID)
}

func (u *gormUnitOfWork) SourceDocuments() ledger.SourceDocumentRepository {
	return NewGormSourceDocumentRepository(u.tx, u.tenantID)
}

func (u *gormUnitOfWork) RevenueActivity() ledger.RevenueActivityRepository {
	return NewGormRevenueActivityRepository(u.tx, u.tenantID)
}

func (u *gormUnitOfWork) Unmapped() mapping.UnmappedEventRepository {
	return NewGormUnmappedEventRepository(u.tx, u.tenantID)
}

var (
	_ ledger.TransactionCoordinator = (*GormTransactionCoordinator)(nil)
	_ ledger.UnitOfWork             = (*gormUnitOfWork)(nil)
)
