package telemetry

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// ErrMeterNil is returned when a metrics constructor gets no meter
var ErrMeterNil = errors.New("telemetry: meter is nil")

// Posting outcomes used as the outcome label
const (
	OutcomePosted     = "posted"
	OutcomeDuplicate  = "duplicate"
	OutcomeUnmapped   = "unmapped"
	OutcomeSkipped    = "skipped"
	OutcomeReview     = "pending_review"
	OutcomeUnbalanced = "unbalanced"
	OutcomeFailed     = "failed"
)

// PostingDurationBuckets covers one event from claim to commit (seconds)
var PostingDurationBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5}

// LedgerMetrics counts journal activity. A nil *LedgerMetrics records nothing,
// so services can run without a meter.
type LedgerMetrics struct {
	entriesPosted   *Counter
	entriesVoided   *Counter
	unmappedLogged  *Counter
	eventsProcessed *Counter
	remapItems      *Counter
	postingDuration *Histogram
}

// NewLedgerMetrics registers the ledger instruments on meter
func NewLedgerMetrics(meter metric.Meter) (*LedgerMetrics, error) {
	if meter == nil {
		return nil, ErrMeterNil
	}

	m := &LedgerMetrics{}
	var err error

	if m.entriesPosted, err = NewCounter(meter,
		"gl_journal_entries_posted_total",
		"Journal entries posted, reversals included",
		"{entries}",
	); err != nil {
		return nil, err
	}
	if m.entriesVoided, err = NewCounter(meter,
		"gl_journal_entries_voided_total",
		"Journal entries voided",
		"{entries}",
	); err != nil {
		return nil, err
	}
	if m.unmappedLogged, err = NewCounter(meter,
		"gl_unmapped_events_logged_total",
		"Account resolution misses recorded in the unmapped backlog",
		"{misses}",
	); err != nil {
		return nil, err
	}
	if m.eventsProcessed, err = NewCounter(meter,
		"gl_inbound_events_total",
		"Inbound events handled by the posting engine, by outcome",
		"{events}",
	); err != nil {
		return nil, err
	}
	if m.remapItems, err = NewCounter(meter,
		"gl_remap_items_total",
		"Tenders processed by remap execution, by outcome",
		"{tenders}",
	); err != nil {
		return nil, err
	}
	if m.postingDuration, err = NewHistogram(meter, HistogramOpts{
		Name:        "gl_posting_duration_seconds",
		Description: "Time to post one inbound event",
		Unit:        "s",
		Boundaries:  PostingDurationBuckets,
	}); err != nil {
		return nil, err
	}

	return m, nil
}

// RecordPosted counts a posted entry
func (m *LedgerMetrics) RecordPosted(ctx context.Context, tenantID uuid.UUID, sourceModule string) {
	if m == nil {
		return
	}
	m.entriesPosted.Inc(ctx,
		AttrTenantID.String(tenantID.String()),
		AttrSourceModule.String(sourceModule),
	)
}

// RecordVoided counts a voided entry
func (m *LedgerMetrics) RecordVoided(ctx context.Context, tenantID uuid.UUID, sourceModule string) {
	if m == nil {
		return
	}
	m.entriesVoided.Inc(ctx,
		AttrTenantID.String(tenantID.String()),
		AttrSourceModule.String(sourceModule),
	)
}

// RecordUnmapped counts backlog upserts
func (m *LedgerMetrics) RecordUnmapped(ctx context.Context, tenantID uuid.UUID, entityType string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.unmappedLogged.Add(ctx, int64(n),
		AttrTenantID.String(tenantID.String()),
		AttrEntityType.String(entityType),
	)
}

// RecordEvent counts one handled inbound event and its latency
func (m *LedgerMetrics) RecordEvent(ctx context.Context, eventType, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	attrs := []attribute.KeyValue{
		AttrEventType.String(eventType),
		AttrOutcome.String(outcome),
	}
	m.eventsProcessed.Inc(ctx, attrs...)
	m.postingDuration.RecordDuration(ctx, d, attrs...)
}

// RecordRemapItem counts one remap item
func (m *LedgerMetrics) RecordRemapItem(ctx context.Context, tenantID uuid.UUID, success bool) {
	if m == nil {
		return
	}
	outcome := OutcomePosted
	if !success {
		outcome = OutcomeFailed
	}
	m.remapItems.Inc(ctx,
		AttrTenantID.String(tenantID.String()),
		AttrOutcome.String(outcome),
	)
}
