package study

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/pkg/errors"

	"github.com/cora-labs/lendsim/pkg/simulation"
	"github.com/cora-labs/lendsim/pkg/types"
)

var (
	// ErrCacheMiss: no usable entry for the key. Undecodable or
	// mislabeled entries degrade to a miss rather than poisoning the
	// study.
	ErrCacheMiss = errors.New("study: cache miss")

	// ErrCacheTampered: the entry decoded but its content hash does
	// not match. Never silently recomputed.
	ErrCacheTampered = errors.New("study: cached result does not match its checksum")
)

// Key addresses one (configuration, seed, history) triple in the
// result cache.
type Key string

// CacheKey hashes the canonical JSON of the configuration together
// with the seed and the price-history digest. Two studies share an
// entry exactly when all three agree.
func CacheKey(cfg *Config, seed uint64, historyDigest string) (Key, error) {
	canonical, err := json.Marshal(struct {
		Config  *Config `json:"config"`
		Seed    uint64  `json:"seed"`
		History string  `json:"history"`
	}{cfg, seed, historyDigest})
	if err != nil {
		return "", errors.Wrap(err, "study: encoding cache key")
	}
	sum := sha256.Sum256(canonical)
	return Key(hex.EncodeToString(sum[:])), nil
}

// HistoryDigest fingerprints a price series for cache keying.
func HistoryDigest(history types.PriceSeries) string {
	h := sha256.New()
	enc := json.NewEncoder(h)
	for _, p := range history {
		// Encode never fails on PricePoint
		_ = enc.Encode(p)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Record is one immutable cache entry.
type Record struct {
	Key       Key               `json:"key"`
	CreatedAt time.Time         `json:"createdAt"`
	Result    simulation.Result `json:"result"`
	Checksum  string            `json:"checksum"`
}

func NewRecord(key Key, result simulation.Result) *Record {
	return &Record{
		Key:       key,
		CreatedAt: time.Now().UTC(),
		Result:    result,
		Checksum:  resultChecksum(result),
	}
}

// Verify recomputes the content hash of the stored result.
func (r *Record) Verify() error {
	if resultChecksum(r.Result) != r.Checksum {
		return errors.Wrapf(ErrCacheTampered, "key %s", r.Key)
	}
	return nil
}

func resultChecksum(result simulation.Result) string {
	payload, err := json.Marshal(result)
	if err != nil {
		// Result is a plain struct; Marshal cannot fail on it.
		panic(err)
	}
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

// Store is a content-addressed result cache. Set is write-if-absent:
// entries are immutable and a second write under the same key is a
// no-op, never an overwrite.
type Store interface {
	Get(ctx context.Context, key Key) (*Record, error)
	Set(ctx context.Context, record *Record) error
}

// MemoryStore caches within a single process. Safe for concurrent use.
type MemoryStore struct {
	mu      sync.Mutex
	records map[Key]*Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[Key]*Record)}
}

func (s *MemoryStore) Get(_ context.Context, key Key) (*Record, error) {
	s.mu.Lock()
	record, ok := s.records[key]
	s.mu.Unlock()
	if !ok {
		return nil, errors.Wrapf(ErrCacheMiss, "key %s", key)
	}
	if err := record.Verify(); err != nil {
		return nil, err
	}
	return record, nil
}

func (s *MemoryStore) Set(_ context.Context, record *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.records[record.Key]; exists {
		return nil
	}
	s.records[record.Key] = record
	return nil
}

// FileStore keeps one JSON file per entry under a directory, guarded
// by a lock file so concurrent study processes can share it.
type FileStore struct {
	dir string
}

func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "study: creating cache directory")
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path(key Key) string {
	return filepath.Join(s.dir, string(key)+".json")
}

func (s *FileStore) lock() *flock.Flock {
	return flock.New(filepath.Join(s.dir, ".lock"))
}

func (s *FileStore) Get(_ context.Context, key Key) (*Record, error) {
	raw, err := os.ReadFile(s.path(key))
	if err != nil {
		return nil, errors.Wrapf(ErrCacheMiss, "key %s", key)
	}

	var record Record
	if err := json.Unmarshal(raw, &record); err != nil {
		// a torn or corrupted file is a miss, the run recomputes
		return nil, errors.Wrapf(ErrCacheMiss, "key %s: undecodable entry", key)
	}
	if record.Key != key {
		return nil, errors.Wrapf(ErrCacheMiss, "key %s: entry labeled %s", key, record.Key)
	}
	if err := record.Verify(); err != nil {
		return nil, err
	}
	return &record, nil
}

func (s *FileStore) Set(ctx context.Context, record *Record) error {
	fl := s.lock()
	if err := fl.Lock(); err != nil {
		return errors.Wrap(err, "study: acquiring cache lock")
	}
	defer func() { _ = fl.Unlock() }()

	path := s.path(record.Key)
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	payload, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return errors.Wrap(err, "study: encoding cache entry")
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, payload, 0o644); err != nil {
		return errors.Wrap(err, "study: writing cache entry")
	}
	return errors.Wrap(os.Rename(tmp, path), "study: committing cache entry")
}
