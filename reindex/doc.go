// Package reindex re-embeds the stored corpus with the current embedding
// model.
//
// The Reindexer iterates over every stored document, generates fresh
// chunk vectors in batches and upserts each document back into the sink.
// The whole run executes as a tracked retrain process with retry, so
// progress and failures are observable like any other long-running
// operation.
package reindex
