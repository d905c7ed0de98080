package db

import (
	"database/sql"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"meta-ads/db/migrations"
	"meta-ads/internal/pkg/errs"
)

// MigratePostgres applies all up migrations of the postgres schema to the
// database at addr.
func MigratePostgres(addr string) error {
	driver, err := iofs.New(migrations.PostgresFS, "postgres")
	if err != nil {
		return err
	}
	defer driver.Close()

	mg, err := migrate.NewWithSourceInstance("iofs", driver, addr)
	if err != nil {
		return err
	}
	defer mg.Close()

	return apply(mg)
}

// MigrateSQLite applies the sqlite schema through an already open handle.
// The handle stays open; closing the migrate instance would close it too.
func MigrateSQLite(db *sql.DB) error {
	src, err := iofs.New(migrations.SQLiteFS, "sqlite")
	if err != nil {
		return err
	}
	target, err := sqlite.WithInstance(db, &sqlite.Config{})
	if err != nil {
		return err
	}
	mg, err := migrate.NewWithInstance("iofs", src, "sqlite", target)
	if err != nil {
		return err
	}
	return apply(mg)
}

func apply(mg *migrate.Migrate) error {
	_, dirty, err := mg.Version()
	if err != nil && !errs.Is(err, migrate.ErrNilVersion) {
		return err
	}

	if dirty {
		return errs.New("database is in dirty state")
	}

	if err = mg.Migrate(migrations.Version); err != nil && !errs.Is(err, migrate.ErrNoChange) {
		return err
	}

	return nil
}
