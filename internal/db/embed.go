// Package db holds the schema migrations applied with goose.
package db

import "embed"

// Migrations contains every goose migration, embedded into the binaries
//
//go:embed migrations/*.sql
var Migrations embed.FS

// MigrationsDir is the directory of Migrations that goose reads
const MigrationsDir = "migrations"
