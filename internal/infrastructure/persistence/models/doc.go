// Package models contains GORM-specific persistence models that map to database tables.
// These models are separate from domain entities to keep the domain layer pure and free
// from ORM concerns.
//
// Structure:
//   - base.go: BaseModel shared by aggregate tables
//   - ledger.go: journal, idempotency, unmapped backlog, mapping and settings tables
//   - outbox.go: Outbox pattern model for event delivery
package models
