package accounting

import (
	"context"
	"testing"

	"github.com/JasonPDev313/Oppsera-sub010/internal/domain/ledger"
	"github.com/JasonPDev313/Oppsera-sub010/internal/domain/mapping"
	"github.com/JasonPDev313/Oppsera-sub010/internal/domain/posting"
	"github.com/JasonPDev313/Oppsera-sub010/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRemapService_PreviewRemap(t *testing.T) {
	ctx := context.Background()

	t.Run("unchanged mappings project the posted lines", func(t *testing.T) {
		h := newHarness(t)
		h.mapTender()
		_, err := h.engine.Process(ctx, h.tenderEvent("T-1"))
		require.NoError(t, err)

		previews, err := h.remap.PreviewRemap(ctx, h.tenantID, []string{"T-1"})
		require.NoError(t, err)
		require.Len(t, previews, 1)

		p := previews[0]
		assert.Equal(t, "T-1", p.TenderID)
		assert.Equal(t, ledger.DocumentStatusPosted, p.DocumentStatus)
		assert.False(t, p.HasChanges)
		assert.False(t, p.IsNewPosting)
		assert.NotNil(t, p.OriginalEntryID)
		assert.True(t, ledger.LinesEqual(p.OriginalLines, p.ProjectedLines))
		assert.Empty(t, p.UnresolvedMappings)
	})

	t.Run("changed mapping shows a difference without writing", func(t *testing.T) {
		h := newHarness(t)
		h.mapTender()
		_, err := h.engine.Process(ctx, h.tenderEvent("T-1"))
		require.NoError(t, err)
		commits := h.ledger.commits

		newRevenue := uuid.New()
		h.mappings.set(mapping.KindSubDepartment, "food", mapping.TargetRevenue, newRevenue)

		previews, err := h.remap.PreviewRemap(ctx, h.tenantID, []string{"T-1"})
		require.NoError(t, err)
		p := previews[0]
		assert.True(t, p.HasChanges)
		assert.False(t, p.IsNewPosting)
		assert.Equal(t, h.revenue, p.OriginalLines[1].AccountID)
		assert.Equal(t, newRevenue, p.ProjectedLines[1].AccountID)
		assert.Equal(t, commits, h.ledger.commits)
	})

	t.Run("unmapped tender reports its gaps then a new posting", func(t *testing.T) {
		h := newHarness(t)
		_, err := h.engine.Process(ctx, h.tenderEvent("T-1"))
		require.Equal(t, shared.CodeUnmappedAccount, shared.ErrorCode(err))

		previews, err := h.remap.PreviewRemap(ctx, h.tenantID, []string{"T-1"})
		require.NoError(t, err)
		assert.Len(t, previews[0].UnresolvedMappings, 3)
		assert.False(t, previews[0].HasChanges)
		assert.Empty(t, previews[0].ProjectedLines)

		h.mapTender()
		previews, err = h.remap.PreviewRemap(ctx, h.tenantID, []string{"T-1"})
		require.NoError(t, err)
		assert.True(t, previews[0].IsNewPosting)
		assert.True(t, previews[0].HasChanges)
		assert.Empty(t, previews[0].OriginalLines)
		assert.Len(t, previews[0].ProjectedLines, 3)
	})

	t.Run("unknown tender is not found", func(t *testing.T) {
		h := newHarness(t)

		_, err := h.remap.PreviewRemap(ctx, h.tenantID, []string{"T-404"})
		assert.Equal(t, shared.CodeNotFound, shared.ErrorCode(err))
	})
}

func TestRemapService_ExecuteRemap(t *testing.T) {
	ctx := context.Background()

	request := func(h *harness, ids ...string) RemapRequest {
		return RemapRequest{TenantID: h.tenantID, TenderIDs: ids, Reason: "mapping fixed", Actor: "carol"}
	}

	t.Run("posts an unmapped tender once its mappings exist", func(t *testing.T) {
		h := newHarness(t)
		_, err := h.engine.Process(ctx, h.tenderEvent("T-1"))
		require.Equal(t, shared.CodeUnmappedAccount, shared.ErrorCode(err))
		h.mapTender()

		result, err := h.remap.ExecuteRemap(ctx, request(h, "T-1"))
		require.NoError(t, err)
		require.NoError(t, result.Err())
		assert.Equal(t, RemapSummary{Total: 1, Success: 1}, result.Summary)

		item := result.Results[0]
		assert.Equal(t, RemapItemPosted, item.Status)
		assert.Nil(t, item.VoidedEntryID)
		require.NotNil(t, item.NewEntryID)
		assert.Equal(t, int64(1), item.JournalNumber)

		entries := h.ledger.entries(h.tenantID)
		require.Len(t, entries, 1)
		assert.Equal(t, "T-1", entries[0].SourceReferenceID)
		assert.Equal(t, "carol", entries[0].PostedBy)

		doc := h.ledger.doc(h.tenantID, posting.ModulePOS, ledger.EntityTypeTender, "T-1")
		assert.Equal(t, ledger.DocumentStatusPosted, doc.Status)
		assert.Equal(t, *item.NewEntryID, *doc.JournalEntryID)
		assert.Empty(t, doc.MissingMappings)

		for _, row := range h.ledger.unmappedRows(h.tenantID) {
			assert.Equal(t, mapping.UnmappedStatusResolved, row.Status, row.EntityID)
			assert.NotNil(t, row.ResolvedAt)
		}

		page, err := h.queries.ListRemappableTenders(ctx, h.tenantID, shared.DefaultFilter())
		require.NoError(t, err)
		assert.Zero(t, page.Total)
	})

	t.Run("changed mapping voids and reposts", func(t *testing.T) {
		h := newHarness(t)
		h.mapTender()
		outcome, err := h.engine.Process(ctx, h.tenderEvent("T-1"))
		require.NoError(t, err)
		originalID := *outcome.JournalEntryID

		h.mappings.set(mapping.KindSubDepartment, "food", mapping.TargetRevenue, uuid.New())
		result, err := h.remap.ExecuteRemap(ctx, request(h, "T-1"))
		require.NoError(t, err)
		item := result.Results[0]
		assert.Equal(t, RemapItemReposted, item.Status)
		require.NotNil(t, item.VoidedEntryID)
		assert.Equal(t, originalID, *item.VoidedEntryID)

		entries := h.ledger.entries(h.tenantID)
		require.Len(t, entries, 3)
		assert.Equal(t, ledger.JournalStatusVoided, entries[0].Status)
		assert.Equal(t, ledger.VoidReferencePrefix+originalID.String(), entries[1].SourceReferenceID)
		assert.Equal(t, posting.RemapReference("T-1", 1), entries[2].SourceReferenceID)
		assert.Equal(t, "T-1", entries[2].SourceEntityID)
		assert.Equal(t, *item.NewEntryID, entries[2].ID)

		h.mappings.set(mapping.KindSubDepartment, "food", mapping.TargetRevenue, uuid.New())
		result, err = h.remap.ExecuteRemap(ctx, request(h, "T-1"))
		require.NoError(t, err)
		assert.Equal(t, RemapItemReposted, result.Results[0].Status)

		entries = h.ledger.entries(h.tenantID)
		require.Len(t, entries, 5)
		assert.Equal(t, posting.RemapReference("T-1", 2), entries[4].SourceReferenceID)
		assert.Equal(t, ledger.JournalStatusVoided, entries[2].Status)
	})

	t.Run("unchanged tender succeeds without writing entries", func(t *testing.T) {
		h := newHarness(t)
		h.mapTender()
		outcome, err := h.engine.Process(ctx, h.tenderEvent("T-1"))
		require.NoError(t, err)

		result, err := h.remap.ExecuteRemap(ctx, request(h, "T-1"))
		require.NoError(t, err)
		item := result.Results[0]
		assert.Equal(t, RemapItemUnchanged, item.Status)
		assert.Equal(t, *outcome.JournalEntryID, *item.NewEntryID)
		assert.Len(t, h.ledger.entries(h.tenantID), 1)
	})

	t.Run("tender held for review is posted", func(t *testing.T) {
		h := newHarness(t)
		h.mapTender()
		settings := mapping.DefaultSettings(h.tenantID)
		settings.PostingMode = mapping.PostingModeManual
		h.settings.settings = settings
		_, err := h.engine.Process(ctx, h.tenderEvent("T-1"))
		require.NoError(t, err)

		result, err := h.remap.ExecuteRemap(ctx, request(h, "T-1"))
		require.NoError(t, err)
		assert.Equal(t, RemapItemPosted, result.Results[0].Status)
		assert.Len(t, h.ledger.entries(h.tenantID), 1)
	})

	t.Run("failures are isolated per tender", func(t *testing.T) {
		h := newHarness(t)
		h.mapTender()
		_, err := h.engine.Process(ctx, h.tenderEvent("T-1"))
		require.NoError(t, err)
		h.mappings.set(mapping.KindSubDepartment, "food", mapping.TargetRevenue, uuid.New())

		stuck := h.tenderEvent("T-2")
		stuck.Data.(*posting.TenderCompleted).Lines[0].SubDepartmentID = "bar"
		_, err = h.engine.Process(ctx, stuck)
		require.Equal(t, shared.CodeUnmappedAccount, shared.ErrorCode(err))

		result, err := h.remap.ExecuteRemap(ctx, request(h, "T-1", "T-2", "T-404"))
		require.NoError(t, err)
		assert.Equal(t, RemapSummary{Total: 3, Success: 1, Failed: 2}, result.Summary)

		batchErr := result.Err()
		require.Error(t, batchErr)
		assert.ErrorIs(t, batchErr, shared.ErrRemapBatchPartialFailure)

		assert.Equal(t, RemapItemReposted, result.Results[0].Status)

		unmapped := result.Results[1]
		assert.Equal(t, RemapItemFailed, unmapped.Status)
		require.NotNil(t, unmapped.Error)
		assert.Equal(t, shared.CodeUnmappedAccount, unmapped.Error.Code)
		assert.Equal(t, []mapping.EntityRef{{EntityType: string(mapping.KindSubDepartment), EntityID: "bar"}}, unmapped.UnresolvedMappings)

		missing := result.Results[2]
		assert.Equal(t, RemapItemFailed, missing.Status)
		assert.Equal(t, shared.CodeNotFound, missing.Error.Code)

		doc := h.ledger.doc(h.tenantID, posting.ModulePOS, ledger.EntityTypeTender, "T-2")
		assert.Equal(t, ledger.DocumentStatusUnmapped, doc.Status)
	})

	t.Run("invalid requests", func(t *testing.T) {
		h := newHarness(t)

		tests := []struct {
			name string
			req  RemapRequest
		}{
			{"no tenders", RemapRequest{TenantID: h.tenantID, Reason: "fix"}},
			{"duplicate tenders", RemapRequest{TenantID: h.tenantID, TenderIDs: []string{"T-1", "T-1"}, Reason: "fix"}},
			{"blank tender", RemapRequest{TenantID: h.tenantID, TenderIDs: []string{""}, Reason: "fix"}},
			{"blank reason", RemapRequest{TenantID: h.tenantID, TenderIDs: []string{"T-1"}, Reason: "   "}},
			{"missing tenant", RemapRequest{TenderIDs: []string{"T-1"}, Reason: "fix"}},
			{"over the batch limit", RemapRequest{TenantID: h.tenantID, TenderIDs: []string{"a", "b", "c", "d"}, Reason: "fix"}},
			{"over the batch limit across kinds", RemapRequest{TenantID: h.tenantID, TenderIDs: []string{"a", "b"},
				Documents: []ledger.DocumentRef{settlementRef("S-1"), settlementRef("S-2")}, Reason: "fix"}},
			{"document without an entity id", RemapRequest{TenantID: h.tenantID,
				Documents: []ledger.DocumentRef{{SourceModule: posting.ModuleCardSettlement, EntityType: "card_settlement"}}, Reason: "fix"}},
			{"tender named twice", RemapRequest{TenantID: h.tenantID, TenderIDs: []string{"T-1"},
				Documents: []ledger.DocumentRef{ledger.TenderRef("T-1")}, Reason: "fix"}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				result, err := h.remap.ExecuteRemap(ctx, tt.req)
				assert.Nil(t, result)
				assert.Equal(t, shared.CodeValidation, shared.ErrorCode(err))
			})
		}
		assert.Zero(t, h.ledger.commits)
	})
}

func settlementRef(id string) ledger.DocumentRef {
	return ledger.DocumentRef{SourceModule: posting.ModuleCardSettlement, EntityType: "card_settlement", EntityID: id}
}

func TestRemapService_RecoversUnmappedSettlement(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	settlement := h.settlementEvent("S-1")

	_, err := h.engine.Process(ctx, settlement)
	require.Equal(t, shared.CodeUnmappedAccount, shared.ErrorCode(err))

	page, err := h.queries.ListRemappableDocuments(ctx, h.tenantID, "", shared.DefaultFilter())
	require.NoError(t, err)
	require.Equal(t, int64(1), page.Total)
	assert.Equal(t, settlementRef("S-1"), page.Items[0].Ref())

	h.mapSettlement()

	// the claim was committed with the backlog, so redelivery cannot post it
	outcome, err := h.engine.Process(ctx, settlement)
	require.Equal(t, shared.CodeDuplicateEvent, shared.ErrorCode(err))
	assert.Equal(t, OutcomeDuplicate, outcome.Status)
	assert.Empty(t, h.ledger.entries(h.tenantID))

	previews, err := h.remap.PreviewRemap(ctx, h.tenantID, nil, settlementRef("S-1"))
	require.NoError(t, err)
	require.Len(t, previews, 1)
	assert.Equal(t, settlementRef("S-1"), previews[0].Document)
	assert.Empty(t, previews[0].TenderID)
	assert.True(t, previews[0].IsNewPosting)
	require.Len(t, previews[0].ProjectedLines, 3)

	result, err := h.remap.ExecuteRemap(ctx, RemapRequest{
		TenantID:  h.tenantID,
		Documents: []ledger.DocumentRef{settlementRef("S-1")},
		Reason:    "bank account mapped",
		Actor:     "carol",
	})
	require.NoError(t, err)
	require.NoError(t, result.Err())
	item := result.Results[0]
	assert.Equal(t, RemapItemPosted, item.Status)
	assert.Equal(t, settlementRef("S-1"), item.Document)

	entries := h.ledger.entries(h.tenantID)
	require.Len(t, entries, 1)
	entry := entries[0]
	assert.Equal(t, posting.ModuleCardSettlement, entry.SourceModule)
	assert.Equal(t, "S-1", entry.SourceReferenceID)
	assert.Equal(t, "S-1", entry.SourceEntityID)
	assert.Equal(t, h.bank, entry.Lines[0].AccountID)
	assert.True(t, entry.Lines[0].DebitAmount.Equal(dec("975.00")))
	assert.True(t, entry.Lines[1].DebitAmount.Equal(dec("25.00")))
	assert.True(t, entry.Lines[2].CreditAmount.Equal(dec("1000.00")))

	doc := h.ledger.doc(h.tenantID, posting.ModuleCardSettlement, "card_settlement", "S-1")
	assert.Equal(t, ledger.DocumentStatusPosted, doc.Status)
	for _, row := range h.ledger.unmappedRows(h.tenantID) {
		assert.Equal(t, mapping.UnmappedStatusResolved, row.Status, row.EntityID)
	}

	page, err = h.queries.ListRemappableDocuments(ctx, h.tenantID, "", shared.DefaultFilter())
	require.NoError(t, err)
	assert.Zero(t, page.Total)

	again, err := h.remap.ExecuteRemap(ctx, RemapRequest{
		TenantID:  h.tenantID,
		Documents: []ledger.DocumentRef{settlementRef("S-1")},
		Reason:    "bank account mapped",
	})
	require.NoError(t, err)
	assert.Equal(t, RemapItemUnchanged, again.Results[0].Status)
	assert.Len(t, h.ledger.entries(h.tenantID), 1)
}
