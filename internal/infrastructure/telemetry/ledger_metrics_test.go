package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestLedgerMetrics(t *testing.T) {
	ctx := context.Background()
	mp, reader := newManualMeter(t)
	m, err := NewLedgerMetrics(mp.Meter("gl"))
	require.NoError(t, err)

	tenantID := uuid.New()
	m.RecordPosted(ctx, tenantID, "pos")
	m.RecordPosted(ctx, tenantID, "manual")
	m.RecordVoided(ctx, tenantID, "pos")
	m.RecordUnmapped(ctx, tenantID, "sub_department", 2)
	m.RecordUnmapped(ctx, tenantID, "tax_group", 0)
	m.RecordEvent(ctx, "pos.tender.completed.v1", OutcomePosted, 30*time.Millisecond)
	m.RecordRemapItem(ctx, tenantID, true)
	m.RecordRemapItem(ctx, tenantID, false)

	metrics := collect(t, reader)
	assert.Equal(t, int64(2), sumOf(t, metrics["gl_journal_entries_posted_total"]))
	assert.Equal(t, int64(1), sumOf(t, metrics["gl_journal_entries_voided_total"]))
	assert.Equal(t, int64(2), sumOf(t, metrics["gl_unmapped_events_logged_total"]))
	assert.Equal(t, int64(1), sumOf(t, metrics["gl_inbound_events_total"]))
	assert.Equal(t, int64(2), sumOf(t, metrics["gl_remap_items_total"]))

	hist, ok := metrics["gl_posting_duration_seconds"].Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, hist.DataPoints, 1)
	assert.Equal(t, uint64(1), hist.DataPoints[0].Count)

	remap := metrics["gl_remap_items_total"].Data.(metricdata.Sum[int64])
	outcomes := map[string]int64{}
	for _, dp := range remap.DataPoints {
		v, _ := dp.Attributes.Value(attribute.Key("outcome"))
		outcomes[v.AsString()] = dp.Value
	}
	assert.Equal(t, map[string]int64{OutcomePosted: 1, OutcomeFailed: 1}, outcomes)
}

func TestLedgerMetrics_Nil(t *testing.T) {
	var m *LedgerMetrics
	assert.NotPanics(t, func() {
		m.RecordPosted(context.Background(), uuid.New(), "pos")
		m.RecordEvent(context.Background(), "x", OutcomeFailed, time.Second)
		m.RecordRemapItem(context.Background(), uuid.New(), true)
	})

	_, err := NewLedgerMetrics(nil)
	assert.ErrorIs(t, err, ErrMeterNil)
}
