package snapshot

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/orneryd/kgraph/pkg/graph"
)

var (
	// ErrNotFound is returned when no snapshot has the requested name.
	ErrNotFound = errors.New("snapshot not found")

	// ErrStoreClosed is returned by operations on a closed store.
	ErrStoreClosed = errors.New("snapshot store closed")

	// ErrInvalidName is returned for an empty snapshot name.
	ErrInvalidName = errors.New("invalid snapshot name")

	// ErrCorrupt is returned when stored data no longer matches its digest.
	ErrCorrupt = errors.New("snapshot digest mismatch")
)

// Key prefixes
const (
	prefixInfo = byte(0x01) // info:name -> JSON(Info)
	prefixData = byte(0x02) // data:name -> JSON(graph.Snapshot)
)

// Info describes a stored snapshot.
type Info struct {
	Name          string    `json:"name"`
	Entities      int       `json:"entities"`
	Relationships int       `json:"relationships"`
	Digest        string    `json:"digest"`
	SavedAt       time.Time `json:"savedAt"`
}

// Options configures a BadgerStore.
type Options struct {
	// Dir is the directory for the Badger files. Required unless InMemory.
	Dir string

	// InMemory keeps everything in RAM. Data is lost on Close.
	InMemory bool

	// SyncWrites forces fsync after each save.
	SyncWrites bool

	// Logger for Badger internals. Nil silences Badger.
	Logger badger.Logger
}

// BadgerStore keeps named snapshots in BadgerDB, for example one per
// federated peer or one per checkpoint.
//
// Key Structure:
//   - Info: 0x01 + name -> JSON(Info)
//   - Data: 0x02 + name -> JSON(graph.Snapshot)
//
// Example:
//
//	store, err := snapshot.Open(snapshot.Options{Dir: "./data/snapshots"})
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer store.Close()
//
//	info, _ := store.Save("nightly", g.Export())
//	snap, _, _ := store.Load("nightly")
//	res, _ := other.Merge(snap)
//
// Thread Safety:
//
//	Safe for concurrent use from multiple goroutines.
type BadgerStore struct {
	db     *badger.DB
	mu     sync.RWMutex
	closed bool
	now    func() time.Time
}

// Open opens or creates a store.
func Open(opts Options) (*BadgerStore, error) {
	badgerOpts := badger.DefaultOptions(opts.Dir)
	if opts.InMemory {
		badgerOpts = badgerOpts.WithInMemory(true).WithDir("").WithValueDir("")
	}
	if opts.SyncWrites {
		badgerOpts = badgerOpts.WithSyncWrites(true)
	}
	// quiet unless a logger is supplied
	badgerOpts = badgerOpts.WithLogger(opts.Logger)

	// snapshots are small and written rarely
	badgerOpts = badgerOpts.
		WithMemTableSize(16 << 20).
		WithValueLogFileSize(64 << 20).
		WithNumMemtables(2).
		WithBlockCacheSize(16 << 20).
		WithIndexCacheSize(8 << 20)

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot store: %w", err)
	}
	return &BadgerStore{db: db, now: time.Now}, nil
}

// OpenInMemory opens a store that keeps everything in RAM.
func OpenInMemory() (*BadgerStore, error) {
	return Open(Options{InMemory: true})
}

func infoKey(name string) []byte {
	return append([]byte{prefixInfo}, []byte(name)...)
}

func dataKey(name string) []byte {
	return append([]byte{prefixData}, []byte(name)...)
}

// Save stores snap under name, replacing any previous snapshot of that name.
func (s *BadgerStore) Save(name string, snap graph.Snapshot) (Info, error) {
	if name == "" {
		return Info{}, ErrInvalidName
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return Info{}, ErrStoreClosed
	}

	snap = normalize(snap)
	data, err := json.Marshal(snap)
	if err != nil {
		return Info{}, fmt.Errorf("encoding snapshot: %w", err)
	}
	info := Info{
		Name:          name,
		Entities:      len(snap.Entities),
		Relationships: len(snap.Relationships),
		Digest:        digestBytes(data),
		SavedAt:       s.now().UTC(),
	}

	meta, err := json.Marshal(info)
	if err != nil {
		return Info{}, fmt.Errorf("encoding snapshot info: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(dataKey(name), data); err != nil {
			return err
		}
		return txn.Set(infoKey(name), meta)
	})
	if err != nil {
		return Info{}, fmt.Errorf("saving snapshot %q: %w", name, err)
	}
	return info, nil
}

// Load returns the snapshot stored under name and its Info. The stored bytes
// are checked against the digest recorded at save time before decoding.
func (s *BadgerStore) Load(name string) (graph.Snapshot, Info, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return graph.Snapshot{}, Info{}, ErrStoreClosed
	}

	var snap graph.Snapshot
	var info Info
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(infoKey(name))
		if err == badger.ErrKeyNotFound {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &info)
		}); err != nil {
			return err
		}

		item, err = txn.Get(dataKey(name))
		if err == badger.ErrKeyNotFound {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			if digestBytes(val) != info.Digest {
				return ErrCorrupt
			}
			return json.Unmarshal(val, &snap)
		})
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			return graph.Snapshot{}, Info{}, fmt.Errorf("%w: %s", ErrNotFound, name)
		case errors.Is(err, ErrCorrupt):
			return graph.Snapshot{}, Info{}, fmt.Errorf("%w: %s", ErrCorrupt, name)
		}
		return graph.Snapshot{}, Info{}, fmt.Errorf("loading snapshot %q: %w", name, err)
	}
	return normalize(snap), info, nil
}

// List returns the Info of every stored snapshot, ordered by name.
func (s *BadgerStore) List() ([]Info, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}

	infos := make([]Info, 0)
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte{prefixInfo}
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var info Info
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &info)
			}); err != nil {
				return err
			}
			infos = append(infos, info)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing snapshots: %w", err)
	}
	return infos, nil
}

// Delete removes the snapshot stored under name.
func (s *BadgerStore) Delete(name string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrStoreClosed
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(infoKey(name)); err == badger.ErrKeyNotFound {
			return ErrNotFound
		} else if err != nil {
			return err
		}
		if err := txn.Delete(infoKey(name)); err != nil {
			return err
		}
		return txn.Delete(dataKey(name))
	})
	if errors.Is(err, ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return err
}

// Close closes the store. Further calls return ErrStoreClosed.
func (s *BadgerStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}
