// Package ledger implements a tamper-evident, hash-chained audit log of loan
// lifecycle events.
//
// Each subject (a loan) owns an independent append-only chain. Every entry
// carries a SHA-256 digest over its own fields and the digest of its
// predecessor; the first entry links to the GENESIS sentinel. Any later
// modification, deletion or reordering of stored entries is detectable by
// VerifyEntries, which recomputes digests and checks sequence and linkage
// invariants in a single report-everything pass.
//
// Event payloads are opaque: the ledger canonicalizes, stores and hashes them
// but never interprets them.
//
// Two implementations of the Store interface are provided:
//   - MemoryStore: in-process, for testing and development.
//   - PostgresStore: durable, for production use.
package ledger
