// Package stores persists the run journal in SQLite.
//
// SQLiteStore implements engine.Journal. Every run records the plan summary
// and the digest of the running configuration it started from; the
// configuration text is stored once per distinct digest. Each resource
// transaction that sent (or would have sent) commands is recorded as a
// Change. The schema is managed by golang-migrate from embedded migrations.
package stores
