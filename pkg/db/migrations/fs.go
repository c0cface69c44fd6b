// Package migrations holds the schema of the web session store. Go migrations register
// themselves with goose on import; SQL migrations are embedded in FS.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
