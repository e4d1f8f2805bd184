package identity

import (
	"context"
	"database/sql"
	"io/fs"

	"github.com/goliatone/go-persistence-bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"github.com/uptrace/bun/schema"
)

// RegisterModels registers every model this package persists. The join
// table goes first so bun can resolve the m2m Roles relation.
func RegisterModels() {
	persistence.RegisterModel((*UserToRole)(nil))
	persistence.RegisterModel((*User)(nil))
	persistence.RegisterModel((*Role)(nil))
	persistence.RegisterModel((*ActionToken)(nil))
	persistence.RegisterModel((*SessionRecord)(nil))
}

// OpenSQLite opens a sqlite database through the shim driver. Use
// "file::memory:?cache=shared" for throwaway stores.
func OpenSQLite(dsn string) (*sql.DB, error) {
	return sql.Open(sqliteshim.ShimName, dsn)
}

// SQLiteDialect returns the dialect matching OpenSQLite
func SQLiteDialect() schema.Dialect {
	return sqlitedialect.New()
}

// NewPersistence builds the persistence client for this package's models
// and runs the embedded migrations against the given database.
func NewPersistence(ctx context.Context, cfg persistence.Config, db *sql.DB, dialect schema.Dialect) (*persistence.Client, error) {
	RegisterModels()

	client, err := persistence.New(cfg, db, dialect)
	if err != nil {
		return nil, err
	}

	migrations, err := fs.Sub(migrationsFS, "data/sql/migrations")
	if err != nil {
		return nil, err
	}

	client.RegisterDialectMigrations(
		migrations,
		persistence.WithDialectSourceLabel("data/sql/migrations"),
		persistence.WithValidationTargets("postgres", "sqlite"),
	)

	if err := client.ValidateDialects(ctx); err != nil {
		return nil, err
	}

	if err := client.Migrate(ctx); err != nil {
		return nil, err
	}

	return client, nil
}
