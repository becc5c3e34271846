// Package db provides the embedded goose migrations of the application schema.
package db

import "embed"

// MigrationsDir is the directory of Migrations holding the goose files.
const MigrationsDir = "migrations"

// Migrations contains the SQL migrations applied on startup.
//
//go:embed migrations/*.sql
var Migrations embed.FS
