// Package migrations embeds the compliance schema migrations into the binary.
//
// Files are grouped by dialect (sqlite/, postgres/) and share version numbers
// so both stores move through the same schema history.
package migrations

import (
	"embed"

	"github.com/nerrad567/gray-logic-compliance/internal/infrastructure/database"
)

//go:embed sqlite/*.sql postgres/*.sql
var migrationsFS embed.FS

func init() {
	database.MigrationsFS = migrationsFS
	database.MigrationsDir = "."
}
