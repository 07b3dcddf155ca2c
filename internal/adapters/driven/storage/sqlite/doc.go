// Package sqlite provides a unified SQLite-based implementation of the driven store ports.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that requires
// no CGO, enabling easy cross-compilation. It implements every store interface
// through a single database connection pool:
//
//   - CredentialStore: Credential persistence
//   - ConnectorStore: Connector persistence
//   - PairStore: Connector-credential pair persistence
//   - AttemptStore: Index and deletion attempts plus pair leases
//   - DocumentStore: Document identity and attribution
//   - ChunkStore: Chunk bookkeeping rows
//
// # Schema
//
// The schema is managed by goose through the SQL files embedded in the
// migrations/ directory.
//
// # Data Location
//
// By default, the database is stored at ~/.sercha-ingest/data/lifecycle.db
//
// # Concurrency
//
// Write transactions are opened as BEGIN IMMEDIATE, so read-modify-write
// sequences (attempt starts, pair updates, attribution removal) are
// serialised by SQLite's write lock. busy_timeout makes competing writers
// wait instead of failing.
package sqlite
