// Package domain contains the core business entities of the application:
// vocabulary items, which are read-only reference data, and the per-user
// review progress records that the spaced repetition scheduler advances.
// It is independent of any storage or delivery mechanism.
package domain
