// Package remote implements the document stores a client replicates
// against.
//
// Every backend offers the same three calls: Fetch the record under the
// fixed key, Update it only if it exists, and Create it. None of them
// retries, and none offers transactions; the replication engine treats a
// failed call as "try again on the next tick".
//
// Backends:
//   - HTTPStore: PostgREST-style REST endpoint (the production default)
//   - RedisStore: a single string key
//   - SQLStore: one row in SQLite or Postgres
//   - FirestoreStore: one Firestore document
//   - Memory: in-process, for tests and demos
package remote
