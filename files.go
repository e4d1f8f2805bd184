package identity

import (
	"embed"
)

//go:embed data/sql/migrations
var migrationsFS embed.FS

// GetMigrationsFS returns the migration files for this package
func GetMigrationsFS() embed.FS {
	return migrationsFS
}

//go:embed data/mail
var mailFS embed.FS

// GetMailFS returns the bundled mail templates
func GetMailFS() embed.FS {
	return mailFS
}
