// Package store defines the persistence contracts the practice service
// depends on: a read-mostly vocabulary catalog and per-user review progress.
// Concrete backends live under internal/platform.
package store
