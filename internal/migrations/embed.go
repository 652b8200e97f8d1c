// Package migrations holds the ClickHouse schema as goose SQL migrations.
package migrations

import "embed"

// FS contains every migration; the directory root is ".".
//
//go:embed *.sql
var FS embed.FS
