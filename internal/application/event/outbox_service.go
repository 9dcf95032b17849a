// Package event holds the operator-facing services over the GL outbox.
package event

import (
	"context"
	"errors"
	"time"

	"github.com/JasonPDev313/Oppsera-sub010/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// OutboxStore is the slice of the outbox repository the admin service needs
type OutboxStore interface {
	FindDead(ctx context.Context, filter shared.Filter) ([]*shared.OutboxEntry, int64, error)
	FindByID(ctx context.Context, id uuid.UUID) (*shared.OutboxEntry, error)
	Update(ctx context.Context, entry *shared.OutboxEntry) error
	CountByStatus(ctx context.Context) (map[shared.OutboxStatus]int64, error)
}

// OutboxService lets operators inspect and replay dead GL notifications
type OutboxService struct {
	store  OutboxStore
	logger *zap.Logger
}

// NewOutboxService creates an outbox admin service
func NewOutboxService(store OutboxStore, logger *zap.Logger) *OutboxService {
	return &OutboxService{store: store, logger: logger.Named("outbox_admin")}
}

// OutboxEntryDTO is the wire shape of an outbox entry
type OutboxEntryDTO struct {
	ID            uuid.UUID  `json:"id"`
	TenantID      uuid.UUID  `json:"tenant_id"`
	EventID       uuid.UUID  `json:"event_id"`
	EventType     string     `json:"event_type"`
	AggregateID   uuid.UUID  `json:"aggregate_id"`
	AggregateType string     `json:"aggregate_type"`
	Status        string     `json:"status"`
	RetryCount    int        `json:"retry_count"`
	MaxRetries    int        `json:"max_retries"`
	LastError     string     `json:"last_error,omitempty"`
	NextRetryAt   *time.Time `json:"next_retry_at,omitempty"`
	ProcessedAt   *time.Time `json:"processed_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// OutboxFilter is the query of the dead letter listing
type OutboxFilter struct {
	Page     int `form:"page" binding:"omitempty,min=1"`
	PageSize int `form:"page_size" binding:"omitempty,min=1,max=100"`
}

// OutboxStatsDTO counts entries per status
type OutboxStatsDTO struct {
	Pending    int64 `json:"pending"`
	Processing int64 `json:"processing"`
	Sent       int64 `json:"sent"`
	Failed     int64 `json:"failed"`
	Dead       int64 `json:"dead"`
	Total      int64 `json:"total"`
}

const retryAllPageSize = 100

// GetDeadLetterEntries lists dead entries, most recently failed first
func (s *OutboxService) GetDeadLetterEntries(ctx context.Context, filter OutboxFilter) (shared.Paginated[OutboxEntryDTO], error) {
	f := shared.Filter{Page: filter.Page, PageSize: filter.PageSize}
	if f.Page < 1 {
		f.Page = 1
	}
	f.PageSize = f.Limit()

	entries, total, err := s.store.FindDead(ctx, f)
	if err != nil {
		s.logger.Error("failed to list dead letter entries", zap.Error(err))
		return shared.Paginated[OutboxEntryDTO]{}, shared.NewDomainError(shared.CodeInternal, "Failed to retrieve dead letter entries")
	}

	items := make([]OutboxEntryDTO, len(entries))
	for i, entry := range entries {
		items[i] = toOutboxEntryDTO(entry)
	}
	return shared.NewPaginated(items, total, f.Page, f.PageSize), nil
}

// GetEntry returns one entry
func (s *OutboxService) GetEntry(ctx context.Context, id uuid.UUID) (*OutboxEntryDTO, error) {
	entry, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	dto := toOutboxEntryDTO(entry)
	return &dto, nil
}

// RetryDeadEntry puts a dead entry back in the relay queue
func (s *OutboxService) RetryDeadEntry(ctx context.Context, id uuid.UUID) (*OutboxEntryDTO, error) {
	entry, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := entry.ResetForRetry(); err != nil {
		return nil, shared.NewDomainError(shared.CodeValidation, err.Error())
	}
	if err := s.store.Update(ctx, entry); err != nil {
		s.logger.Error("failed to reset outbox entry", zap.Error(err), zap.String("id", id.String()))
		return nil, shared.NewDomainError(shared.CodeInternal, "Failed to retry entry")
	}

	s.logger.Info("dead letter entry reset for retry",
		zap.String("id", id.String()),
		zap.String("event_type", entry.EventType),
	)
	dto := toOutboxEntryDTO(entry)
	return &dto, nil
}

// RetryAllDeadEntries resets every dead entry and returns how many were reset.
// Reset entries leave the dead set, so the first page is read until it is empty.
func (s *OutboxService) RetryAllDeadEntries(ctx context.Context) (int64, error) {
	var count int64
	filter := shared.Filter{Page: 1, PageSize: retryAllPageSize}

	for {
		entries, _, err := s.store.FindDead(ctx, filter)
		if err != nil {
			s.logger.Error("failed to list dead letter entries", zap.Error(err))
			return count, shared.NewDomainError(shared.CodeInternal, "Failed to retrieve dead letter entries")
		}
		if len(entries) == 0 {
			break
		}

		reset := 0
		for _, entry := range entries {
			if err := entry.ResetForRetry(); err != nil {
				continue
			}
			if err := s.store.Update(ctx, entry); err != nil {
				s.logger.Error("failed to reset outbox entry", zap.Error(err), zap.String("id", entry.ID.String()))
				continue
			}
			reset++
		}
		count += int64(reset)

		if reset == 0 || len(entries) < retryAllPageSize {
			break
		}
	}

	s.logger.Info("dead letter entries reset", zap.Int64("count", count))
	return count, nil
}

// GetStats counts entries per status
func (s *OutboxService) GetStats(ctx context.Context) (*OutboxStatsDTO, error) {
	counts, err := s.store.CountByStatus(ctx)
	if err != nil {
		s.logger.Error("failed to count outbox entries", zap.Error(err))
		return nil, shared.NewDomainError(shared.CodeInternal, "Failed to get outbox stats")
	}

	stats := &OutboxStatsDTO{
		Pending:    counts[shared.OutboxStatusPending],
		Processing: counts[shared.OutboxStatusProcessing],
		Sent:       counts[shared.OutboxStatusSent],
		Failed:     counts[shared.OutboxStatusFailed],
		Dead:       counts[shared.OutboxStatusDead],
	}
	stats.Total = stats.Pending + stats.Processing + stats.Sent + stats.Failed + stats.Dead
	return stats, nil
}

func (s *OutboxService) find(ctx context.Context, id uuid.UUID) (*shared.OutboxEntry, error) {
	entry, err := s.store.FindByID(ctx, id)
	switch {
	case errors.Is(err, shared.ErrNotFound), err == nil && entry == nil:
		return nil, shared.NewDomainError(shared.CodeNotFound, "Outbox entry not found")
	case err != nil:
		s.logger.Error("failed to load outbox entry", zap.Error(err), zap.String("id", id.String()))
		return nil, shared.NewDomainError(shared.CodeInternal, "Failed to load outbox entry")
	}
	return entry, nil
}

func toOutboxEntryDTO(entry *shared.OutboxEntry) OutboxEntryDTO {
	return OutboxEntryDTO{
		ID:            entry.ID,
		TenantID:      entry.TenantID,
		EventID:       entry.EventID,
		EventType:     entry.EventType,
		AggregateID:   entry.AggregateID,
		AggregateType: entry.AggregateType,
		Status:        string(entry.Status),
		RetryCount:    entry.RetryCount,
		MaxRetries:    entry.MaxRetries,
		LastError:     entry.LastError,
		NextRetryAt:   entry.NextRetryAt,
		ProcessedAt:   entry.ProcessedAt,
		CreatedAt:     entry.CreatedAt,
		UpdatedAt:     entry.UpdatedAt,
	}
}
