// Package store persists pipeline state in SQLite: feed subscriptions, the
// append-only processed-entry log, the retry queue, run history, and clip
// completion markers.
//
// Every write commits immediately; no transaction spans entry processing, so
// concurrent readers (the status command, the watch view) always see a
// consistent snapshot. The schema is applied through additive embedded
// migrations and is safe to initialize against an existing database file.
//
// Dedupe rests on two invariants: processed_entries.entry_guid is unique and
// append-only, and retry-candidate queries exclude processed guids by
// subquery. Keep both when touching the schema.
package store
