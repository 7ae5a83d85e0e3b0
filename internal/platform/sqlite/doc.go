// Package sqlite provides single-file SQLite implementations of the store
// interfaces for local and offline use. It uses sqlx over the pure-Go
// modernc driver, so no cgo toolchain is needed.
package sqlite
