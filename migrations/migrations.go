package migrations

import (
	"embed"
	"io/fs"
)

//go:embed *.sql
var migrationsFS embed.FS

// FS returns the embedded SQL migrations. Files are named NNN_name.up.sql / NNN_name.down.sql.
func FS() fs.FS {
	return migrationsFS
}
