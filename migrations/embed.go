// Package migrations ships the Postgres schema inside the server binary.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
