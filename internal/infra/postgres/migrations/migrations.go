// Package migrations registers the bun migrations for the Postgres store. Each
// file named {version}_{name}.go registers exactly one migration.
package migrations

import "github.com/uptrace/bun/migrate"

var Migrations = migrate.NewMigrations()
