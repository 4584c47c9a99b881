// Package checkpoint provides an append-only, content-keyed object store
// for incremental, resumable batch pipelines.
//
// A Store is bound to a base directory and a checkpoint identity. Each
// accepted save call writes one immutable blob holding the batch's new
// objects, updates an index document mapping blob names to member keys,
// and appends the new keys to a flat ledger file used for O(1) dedup
// checks. Keys already present in the ledger are silently skipped, so
// re-running a pipeline over overlapping inputs never re-saves objects.
//
// On-disk layout under the base directory:
//
//	<identity>.txt              ledger: comma-separated keys, trailing comma
//	<identity>/metadata.json    index: {blobName: [key, ...], ...}
//	<identity>/<digest>.msgpack one blob per accepted save with new keys
//
// Blobs are named by the SHA-1 digest of their member keys in insertion
// order, giving deterministic names without a counter. Blobs are write-once:
// later saves create new blobs, never amend old ones.
//
// The store assumes a single writer per identity. It performs no file
// locking and no atomic-rename writes; concurrent writers can race on the
// index document. Readers in other processes are tolerated between writes
// and observe state by opening their own Store.
package checkpoint

import (
	"log/slog"
)

// DefaultMaxObjects is the per-save batch limit applied when Options
// leaves MaxObjects unset.
const DefaultMaxObjects = 1000

// blobExt is the file extension of serialized batch blobs.
const blobExt = ".msgpack"

// indexFile is the name of the index document inside the identity directory.
const indexFile = "metadata.json"

// Object is the minimal contract stored values must satisfy.
// The store never interprets payload fields, only the key.
type Object interface {
	// Key returns the unique key identifying this object within its
	// checkpoint identity. Keys must be non-empty and must not contain
	// commas (the ledger format cannot represent them).
	Key() string
}

// Schema supplies the caller-defined object shape: a constructor from raw
// field mappings and a validity predicate. The store uses it to build
// objects for SaveFields and to reject malformed candidates before
// anything is persisted.
type Schema[T Object] interface {
	// New constructs an object from a raw field mapping.
	New(fields map[string]any) (T, error)

	// Valid reports whether the object satisfies the shape contract.
	// Typed nil pointers and zero-key objects must report false.
	Valid(obj T) bool
}

// Options configures a Store at construction.
// The zero value gives a non-overwriting store with DefaultMaxObjects
// and a discard logger.
type Options[T Object] struct {
	// Overwrite removes any existing blobs, index, and ledger for the
	// identity before the store initializes. Absence of prior state is
	// not an error.
	Overwrite bool

	// Initial objects are saved through the normal save protocol before
	// Open returns. A save failure fails Open.
	Initial []T

	// MaxObjects caps the candidate count of a single save call.
	// Non-positive values use DefaultMaxObjects.
	MaxObjects int

	// Logger receives store events. Nil means discard.
	Logger *slog.Logger
}
