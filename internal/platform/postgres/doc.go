// Package postgres provides PostgreSQL implementations of the store
// interfaces, using the pgx driver through database/sql. It also embeds the
// schema migrations for this backend.
package postgres
