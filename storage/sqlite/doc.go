// Package sqlite provides a SQLite-backed log store.
//
// It uses the pure-Go modernc.org/sqlite driver, so no cgo is required.
// Cosine distance is computed inside SQL by a registered scalar function,
// which lets the database apply filters, ordering, and the result limit in
// a single query.
package sqlite
