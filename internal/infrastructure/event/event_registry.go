package event

import (
	"github.com/JasonPDev313/Oppsera-sub010/internal/domain/ledger"
	"github.com/JasonPDev313/Oppsera-sub010/internal/domain/mapping"
)

// RegisterLedgerEvents registers the outbound ledger events with the
// serializer so the outbox processor can deserialize them.
func RegisterLedgerEvents(serializer *EventSerializer) {
	serializer.Register(ledger.EventTypeJournalEntryPosted, &ledger.JournalEntryPostedEvent{})
	serializer.Register(ledger.EventTypeJournalEntryVoided, &ledger.JournalEntryVoidedEvent{})
	serializer.Register(mapping.EventTypeUnmappedEventLogged, &mapping.UnmappedEventLoggedEvent{})
}
