// Package blobts is a time-indexed blob store
// kept in the working directory of a git repository.
//
// A blob store stores arbitrary sequences of bytes,
// or _blobs_.
// Each blob is indexed by a _key_:
// a timestamp in nanoseconds since the Unix epoch.
// The key is the time the blob was added,
// or a time chosen by the caller,
// bumped forward by a nanosecond or more when needed
// so that no two blobs share a key
// and keys issued by one writer always increase.
//
// Each blob is a file in the working directory named by its decimal key.
// Its content may be compressed
// (with gzip, zstd, or lz4)
// and encrypted
// (with XChaCha20-Poly1305),
// in that order.
//
// Every write is committed and pushed to the repository's remote
// before it returns,
// so any number of writers sharing the remote see one another's blobs
// after a Sync.
// When the remote has moved on,
// a writer pulls and tries again,
// backing off exponentially.
// When another writer has claimed the same key,
// the write is redone under a new one.
// A failed write leaves nothing behind,
// neither a file nor a commit.
//
// Reading is done with Query, or its iterator form Blobs,
// over an Interval of keys in either direction.
// Blobs are decoded lazily, one at a time,
// so a failure to decode one blob does not lose the ones before it.
//
// Access to the repository goes through the vcs.VCS interface.
// The vcs/git subpackage implements it with the git executable,
// and vcs/mem with an in-memory remote for tests.
package blobts
