// Package rag provides the retrieval-augmented query pipeline.
//
// A query is answered in stages, each under its own timeout: the question
// is embedded, the log store is searched with the caller's filter, the
// ranked results are capped and trimmed to the generator's token budget,
// and an answer is synthesized. When no generator is configured, generation
// fails, or it runs past its timeout, the pipeline falls back to the
// retrieved messages themselves, so synthesis problems never fail a query.
package rag
