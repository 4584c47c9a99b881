package checkpoint

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/KyleAMoore/Redshift-ResNet/pkg/preprocess/contenthash"
	"github.com/KyleAMoore/Redshift-ResNet/pkg/preprocess/observability"
)

// Store is an append-only object store for one checkpoint identity.
//
// A Store is not safe for concurrent use: the intended model is one writer
// per identity, with readers in other processes opening their own Store
// between writes. The in-memory ledger set and watermark are private to
// this instance; reconstruct a Store to observe another process's writes.
type Store[T Object] struct {
	identity   string
	blobDir    string
	ledgerPath string
	indexPath  string

	schema     Schema[T]
	maxObjects int
	logger     *slog.Logger

	keys         map[string]struct{}
	lastModified time.Time
}

// Open binds a Store to baseDir and identity, creating both directories if
// needed. The ledger is loaded from disk when present; its file
// modification time becomes the initial watermark, otherwise the watermark
// is the construction time. Any Initial objects in opts are saved through
// the normal save protocol before Open returns.
func Open[T Object](baseDir, identity string, schema Schema[T], opts Options[T]) (*Store[T], error) {
	if identity == "" {
		return nil, fmt.Errorf("checkpoint identity must not be empty")
	}
	if schema == nil {
		return nil, fmt.Errorf("checkpoint schema must not be nil")
	}

	maxObjects := opts.MaxObjects
	if maxObjects <= 0 {
		maxObjects = DefaultMaxObjects
	}

	s := &Store[T]{
		identity:   identity,
		blobDir:    filepath.Join(baseDir, identity),
		ledgerPath: filepath.Join(baseDir, identity+".txt"),
		indexPath:  filepath.Join(baseDir, identity, indexFile),
		schema:     schema,
		maxObjects: maxObjects,
		logger:     observability.DefaultLogger(opts.Logger).With(slog.String("identity", identity)),
		keys:       make(map[string]struct{}),
	}

	if opts.Overwrite {
		s.logger.Debug("removing existing checkpoint state")
		if err := os.RemoveAll(s.blobDir); err != nil {
			return nil, fmt.Errorf("remove blob directory: %w", err)
		}
		if err := os.Remove(s.ledgerPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("remove ledger: %w", err)
		}
	}

	if err := os.MkdirAll(s.blobDir, 0o755); err != nil {
		return nil, fmt.Errorf("create blob directory: %w", err)
	}

	if err := s.loadLedger(); err != nil {
		return nil, err
	}

	if len(opts.Initial) > 0 {
		if err := s.Save(opts.Initial); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// loadLedger reconstructs the seen-keys set from the ledger file.
// A missing file yields an empty set and a watermark of now.
func (s *Store[T]) loadLedger() error {
	info, err := os.Stat(s.ledgerPath)
	if errors.Is(err, fs.ErrNotExist) {
		s.lastModified = time.Now()
		return nil
	}
	if err != nil {
		return fmt.Errorf("stat ledger: %w", err)
	}

	data, err := os.ReadFile(s.ledgerPath)
	if err != nil {
		return fmt.Errorf("read ledger: %w", err)
	}

	for _, key := range strings.Split(string(data), ",") {
		if key != "" {
			s.keys[key] = struct{}{}
		}
	}
	s.lastModified = info.ModTime()

	s.logger.Debug("ledger loaded",
		slog.Int("keys", len(s.keys)),
		slog.Time("last_modified", s.lastModified),
	)
	return nil
}

// Save persists the new objects of one batch.
//
// An empty batch is a no-op. A batch larger than the configured maximum is
// rejected whole with a BatchSizeError. A candidate failing the schema's
// shape contract rejects the whole call with a SchemaError; nothing from
// the call is persisted. Candidates whose keys are already in the ledger
// are silently skipped; duplicate submission across save calls is a
// normal occurrence, not a failure.
//
// When the batch contains new keys, Save writes one blob named by the
// content hash of those keys in insertion order, rewrites the index
// document in full, then appends the keys to the ledger. The write order
// is fixed (blob, index, ledger) so a ledger entry implies its blob and
// index entry are durably present; an interruption earlier leaves at worst
// an orphan blob that a later run retries harmlessly. The watermark
// advances only when new keys were persisted.
func (s *Store[T]) Save(objects []T) error {
	if len(objects) == 0 {
		return nil
	}
	if len(objects) > s.maxObjects {
		return &BatchSizeError{Count: len(objects), Max: s.maxObjects}
	}

	newObjects := make(map[string]T)
	newKeys := make([]string, 0, len(objects))
	skipped := 0

	for _, obj := range objects {
		if !s.schema.Valid(obj) {
			return &SchemaError{Message: "shape validation failed"}
		}
		key := obj.Key()
		if key == "" {
			return &SchemaError{Message: "object key must not be empty"}
		}
		if strings.Contains(key, ",") {
			return &SchemaError{Key: key, Message: "object key must not contain a comma"}
		}

		if _, seen := s.keys[key]; seen {
			skipped++
			continue
		}
		if _, queued := newObjects[key]; !queued {
			newKeys = append(newKeys, key)
		}
		newObjects[key] = obj
	}

	if len(newKeys) == 0 {
		s.logger.Debug("save skipped, all keys already persisted",
			slog.Int("skipped", skipped))
		return nil
	}

	blobName, err := s.writeBlob(newObjects, newKeys)
	if err != nil {
		return err
	}
	if err := s.appendLedger(newKeys); err != nil {
		return err
	}

	for _, key := range newKeys {
		s.keys[key] = struct{}{}
	}
	s.lastModified = time.Now()

	s.logger.Debug("checkpoint saved",
		slog.String("blob", blobName),
		slog.Int("written", len(newKeys)),
		slog.Int("skipped", skipped),
	)
	return nil
}

// SaveFields constructs objects from raw field mappings through the schema
// and saves them. Construction failure rejects the whole call with a
// SchemaError before anything is persisted.
func (s *Store[T]) SaveFields(batches []map[string]any) error {
	if len(batches) == 0 {
		return nil
	}
	if len(batches) > s.maxObjects {
		return &BatchSizeError{Count: len(batches), Max: s.maxObjects}
	}

	objects := make([]T, 0, len(batches))
	for _, fields := range batches {
		obj, err := s.schema.New(fields)
		if err != nil {
			return &SchemaError{Message: "constructor rejected field mapping", Err: err}
		}
		objects = append(objects, obj)
	}
	return s.Save(objects)
}

// Get returns the object stored under key.
// Returns ErrNotFound if the key has no index entry or no index document
// exists yet.
func (s *Store[T]) Get(key string) (T, error) {
	var zero T

	ix, err := s.loadIndex()
	if err != nil {
		return zero, err
	}

	blobName, ok := ix.find(key)
	if !ok {
		return zero, ErrNotFound
	}

	objects, err := s.loadBlob(blobName)
	if err != nil {
		return zero, err
	}

	obj, ok := objects[key]
	if !ok {
		return zero, &CorruptStateError{
			Path: filepath.Join(s.blobDir, blobName),
			Err:  fmt.Errorf("blob does not contain indexed key %q", key),
		}
	}
	return obj, nil
}

// Index returns the full index document as a mapping from blob name to
// ordered member keys. Returns an empty mapping when no index document
// exists yet.
func (s *Store[T]) Index() (map[string][]string, error) {
	ix, err := s.loadIndex()
	if err != nil {
		return nil, err
	}
	return ix.snapshot(), nil
}

// Blob returns the full key-to-object mapping of one named blob.
// Returns ErrNotFound if no blob file with that name exists.
func (s *Store[T]) Blob(name string) (map[string]T, error) {
	return s.loadBlob(name)
}

// Contains reports whether key has already been accepted by a save call.
func (s *Store[T]) Contains(key string) bool {
	_, ok := s.keys[key]
	return ok
}

// Len returns the number of keys in the ledger.
func (s *Store[T]) Len() int {
	return len(s.keys)
}

// LastModified returns the watermark of the most recent state-changing
// save, or the ledger's file modification time (construction time when no
// ledger existed) if no save has accepted new keys yet.
func (s *Store[T]) LastModified() time.Time {
	return s.lastModified
}

// Identity returns the checkpoint identity this store is bound to.
func (s *Store[T]) Identity() string {
	return s.identity
}

// writeBlob serializes the accepted objects into a new blob named by the
// content hash of keys, then rewrites the index document with the new
// entry added. Returns the blob name.
func (s *Store[T]) writeBlob(objects map[string]T, keys []string) (string, error) {
	name := contenthash.Keys(keys) + blobExt

	data, err := msgpack.Marshal(objects)
	if err != nil {
		return "", fmt.Errorf("encode blob: %w", err)
	}
	if err := os.WriteFile(filepath.Join(s.blobDir, name), data, 0o644); err != nil {
		return "", fmt.Errorf("write blob: %w", err)
	}

	ix, err := s.loadIndex()
	if err != nil {
		return "", err
	}
	ix.add(name, keys)

	doc, err := json.MarshalIndent(ix, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode index: %w", err)
	}
	if err := os.WriteFile(s.indexPath, doc, 0o644); err != nil {
		return "", fmt.Errorf("write index: %w", err)
	}
	return name, nil
}

// appendLedger appends the accepted keys to the ledger file, comma-joined
// with a trailing comma.
func (s *Store[T]) appendLedger(keys []string) error {
	f, err := os.OpenFile(s.ledgerPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	if _, err := f.WriteString(strings.Join(keys, ",") + ","); err != nil {
		f.Close()
		return fmt.Errorf("append ledger: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close ledger: %w", err)
	}
	return nil
}

// loadIndex reads the index document, or initializes an empty index when
// the document does not exist yet.
func (s *Store[T]) loadIndex() (*blobIndex, error) {
	data, err := os.ReadFile(s.indexPath)
	if errors.Is(err, fs.ErrNotExist) {
		return newBlobIndex(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read index: %w", err)
	}

	ix := newBlobIndex()
	if err := json.Unmarshal(data, ix); err != nil {
		return nil, &CorruptStateError{Path: s.indexPath, Err: err}
	}
	return ix, nil
}

// loadBlob reads and decodes one named blob file.
func (s *Store[T]) loadBlob(name string) (map[string]T, error) {
	path := filepath.Join(s.blobDir, name)

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read blob: %w", err)
	}

	var objects map[string]T
	if err := msgpack.Unmarshal(data, &objects); err != nil {
		return nil, &CorruptStateError{Path: path, Err: err}
	}
	return objects, nil
}
