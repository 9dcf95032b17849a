// Package migrations embeds the ledger schema so the server and the migrate
// command ship it inside the binary.
package migrations

import "embed"

// FS holds the numbered up/down migration pairs
//
//go:embed *.sql
var FS embed.FS
