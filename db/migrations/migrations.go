package migrations

import "embed"

// PostgresFS and SQLiteFS embed the SQL migrations of each backend. The
// golang-migrate library reads them through the iofs driver.
var (
	//go:embed postgres/*.sql
	PostgresFS embed.FS

	//go:embed sqlite/*.sql
	SQLiteFS embed.FS
)

const Version = 1
