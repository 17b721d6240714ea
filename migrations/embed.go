// Package migrations embeds the goose schema migrations so the binary can
// apply them at startup without a files-on-disk deployment step.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
