// Package store owns the content-addressed implementation cache.
//
// Ownership boundary:
// - implementation-id -> on-disk directory lookup
// - archive digest verification and unpack on add
package store
