// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Persistence
//
// Every store below is implemented by the sqlite, postgres and memory
// adapters. Operations documented as atomic run inside one transaction;
// state machine rules come from the domain package.
//
//   - CredentialStore: Credential persistence
//   - ConnectorStore: Connector persistence
//   - PairStore: Connector-credential pair persistence
//   - AttemptStore: Index and deletion attempts plus pair leases
//   - DocumentStore: Document identity and attribution
//   - ChunkStore: Chunk bookkeeping rows per store type
//
// # Collaborators
//
//   - Connector: Pulls documents from a source
//   - ConnectorFactory: Selects a connector driver by source
//   - CredentialProvider: Resolves an opaque credential payload
//   - ChunkPipeline: Splits a document into chunk payloads
//   - DocumentIndex: A physical store driver (vector or keyword)
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter, connector, or postprocessor package
package driven
