// Package store persists draft records in SQL. SQLite (modernc.org/sqlite)
// is the default; PostgreSQL (lib/pq) is used when a DSN is configured.
//
// [Store] implements draft.Backend: records stay editable while in the
// "draft" state and every terminal write (submit, archive) is conditioned on
// that state, so a second submit of the same draft reports not found.
// Payloads at or above the configured threshold are stored zstd-compressed.
package store
