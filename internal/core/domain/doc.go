// Package domain defines the core business entities for the ingestion lifecycle.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Credential: An opaque secret payload owned by a user
//   - Connector: A configured content source
//   - Pair: A connector bound to a credential, the unit of indexing
//   - Attempt: One index or deletion run against a pair
//   - Document: Canonical document identity, deduplicated across pairs
//   - Chunk: Bookkeeping row for one chunk held by one backing store
//
// The attempt state machine and the pair watermark rules live here as
// methods so that every store adapter applies them the same way.
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
