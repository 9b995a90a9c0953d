// Package migrations embeds the goose SQL migrations so the migrate binary
// can run without the source tree present.
package migrations

import "embed"

//go:embed *.sql
var EmbeddedFS embed.FS
