// Package badger provides a BadgerDB-backed log store.
//
// The backend wraps the embedded key-value database and exposes
// transactions and sequences; the store layers log record persistence and
// brute-force cosine similarity search on top of it. All records live under
// a shared key prefix and are scanned in full on every search, which is the
// right trade-off for the corpus sizes a single-node deployment holds.
package badger
