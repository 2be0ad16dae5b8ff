// Package model defines the replicated attendance document and the pure
// helpers that operate on it.
//
// The Document is the single unit of replication: every client holds one
// copy in memory and the remote store holds exactly one record under a fixed
// key. Field names on the wire are camelCase so that existing browser
// clients can read and write the same record.
//
// CONTENT IDENTITY:
//
// Change detection never compares serialized payloads directly. ContentHash
// feeds the document through MarshalCanonical (RFC 8785) and hashes the
// result with a domain prefix. The lastUpdated stamp is excluded, so two
// documents that differ only in when they were committed hash the same.
package model
