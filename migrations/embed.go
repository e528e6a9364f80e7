package migrations

import "embed"

// FS holds the journal schema migrations, one directory per database.
//
//go:embed sqlite/*.sql postgres/*.sql
var FS embed.FS
