// Package ingest provides the asynchronous log ingestion pipeline.
//
// Payloads accepted by Enqueue are processed on a worker pool: the store is
// bootstrapped on first use, the payload is validated and normalized, its
// message is embedded, and the record is persisted atomically with its
// vector. Transient failures are retried with exponential backoff; permanent
// ones go to the dead-letter callback. Delivery is at least once, so a
// payload may be stored more than once under distinct IDs after a failure
// between persistence and acknowledgement.
package ingest
