package speaker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/vmihailenco/msgpack/v5"
)

// KVOptions configures a badger database for snapshots.
type KVOptions struct {
	// Dir is the data directory. Required unless InMemory is set.
	Dir string

	// InMemory keeps all data in memory.
	InMemory bool

	// Logger receives badger warnings and errors. Default: slog.Default().
	Logger *slog.Logger
}

// KV is a badger database holding snapshots for any number of sessions.
// Each session lives under its own key prefix:
//
//	{session}:meta             counter, sensitivity, profile order
//	{session}:profile:{id}     one msgpack-encoded Profile
type KV struct {
	db *badger.DB
}

// OpenKV opens or creates the database.
func OpenKV(opts KVOptions) (*KV, error) {
	if !opts.InMemory && opts.Dir == "" {
		return nil, errors.New("speaker: KVOptions.Dir is required for on-disk mode")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	dbOpts := badger.DefaultOptions(opts.Dir).
		WithLogger(badgerLogger{logger.With("component", "badger")})
	if opts.InMemory {
		dbOpts = dbOpts.WithDir("").WithValueDir("").WithInMemory(true)
	}
	db, err := badger.Open(dbOpts)
	if err != nil {
		return nil, fmt.Errorf("speaker: open badger: %w", err)
	}
	return &KV{db: db}, nil
}

// Close releases the database.
func (k *KV) Close() error {
	return k.db.Close()
}

// Session returns the Store for one session name. Names must be
// non-empty and must not contain ':'.
func (k *KV) Session(name string) (*KVStore, error) {
	if name == "" || strings.Contains(name, ":") {
		return nil, fmt.Errorf("speaker: invalid session name %q", name)
	}
	return &KVStore{db: k.db, session: name}, nil
}

// Sessions lists session names that have a saved snapshot, in key order.
func (k *KV) Sessions(_ context.Context) ([]string, error) {
	var names []string
	suffix := []byte(":meta")
	err := k.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			key := it.Item().Key()
			if bytes.HasSuffix(key, suffix) && bytes.Count(key, []byte(":")) == 1 {
				names = append(names, string(key[:len(key)-len(suffix)]))
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("speaker: list sessions: %w", err)
	}
	return names, nil
}

// KVStore is the Store for one session inside a KV database.
type KVStore struct {
	db      *badger.DB
	session string
}

// kvMeta is the value under {session}:meta.
type kvMeta struct {
	Version     int       `msgpack:"version"`
	Counter     int       `msgpack:"counter"`
	Sensitivity float64   `msgpack:"sensitivity"`
	SavedAt     time.Time `msgpack:"saved_at"`
	Order       []string  `msgpack:"order"`
}

func (s *KVStore) metaKey() []byte { return []byte(s.session + ":meta") }

func (s *KVStore) profilePrefix() []byte { return []byte(s.session + ":profile:") }

func (s *KVStore) profileKey(id string) []byte {
	return append(s.profilePrefix(), id...)
}

// Session returns the session name.
func (s *KVStore) Session() string { return s.session }

func (s *KVStore) Load(_ context.Context) (Snapshot, error) {
	var snap Snapshot
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(s.metaKey())
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w: session %s", ErrNoSnapshot, s.session)
		}
		if err != nil {
			return err
		}
		var meta kvMeta
		if err := item.Value(func(v []byte) error { return msgpack.Unmarshal(v, &meta) }); err != nil {
			return fmt.Errorf("%w: meta: %w", ErrCorrupt, err)
		}
		snap = Snapshot{
			Version:     meta.Version,
			Counter:     meta.Counter,
			Sensitivity: meta.Sensitivity,
			SavedAt:     meta.SavedAt,
			Profiles:    make([]Profile, 0, len(meta.Order)),
		}
		for _, id := range meta.Order {
			item, err := txn.Get(s.profileKey(id))
			if errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("%w: missing profile %s", ErrCorrupt, id)
			}
			if err != nil {
				return err
			}
			var p Profile
			if err := item.Value(func(v []byte) error { return msgpack.Unmarshal(v, &p) }); err != nil {
				return fmt.Errorf("%w: profile %s: %w", ErrCorrupt, id, err)
			}
			snap.Profiles = append(snap.Profiles, p)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrNoSnapshot) || errors.Is(err, ErrCorrupt) {
			return Snapshot{}, err
		}
		return Snapshot{}, fmt.Errorf("speaker: load session %s: %w", s.session, err)
	}
	if err := snap.validate(); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

// Save replaces the session's profiles and meta in one transaction.
func (s *KVStore) Save(_ context.Context, snap Snapshot) error {
	meta := kvMeta{
		Version:     SnapshotVersion,
		Counter:     snap.Counter,
		Sensitivity: snap.Sensitivity,
		SavedAt:     snap.SavedAt,
		Order:       make([]string, len(snap.Profiles)),
	}
	for i := range snap.Profiles {
		meta.Order[i] = snap.Profiles[i].ID
	}
	metaData, err := msgpack.Marshal(&meta)
	if err != nil {
		return fmt.Errorf("speaker: encode meta: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		if err := s.deleteAll(txn); err != nil {
			return err
		}
		for i := range snap.Profiles {
			p := &snap.Profiles[i]
			data, err := msgpack.Marshal(p)
			if err != nil {
				return fmt.Errorf("encode profile %s: %w", p.ID, err)
			}
			if err := txn.Set(s.profileKey(p.ID), data); err != nil {
				return err
			}
		}
		return txn.Set(s.metaKey(), metaData)
	})
	if err != nil {
		return fmt.Errorf("speaker: save session %s: %w", s.session, err)
	}
	return nil
}

func (s *KVStore) Clear(_ context.Context) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		if err := s.deleteAll(txn); err != nil {
			return err
		}
		return txn.Delete(s.metaKey())
	})
	if err != nil {
		return fmt.Errorf("speaker: clear session %s: %w", s.session, err)
	}
	return nil
}

// deleteAll removes every profile key of the session within txn.
func (s *KVStore) deleteAll(txn *badger.Txn) error {
	prefix := s.profilePrefix()
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Prefix = prefix
	it := txn.NewIterator(opts)
	var keys [][]byte
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		keys = append(keys, it.Item().KeyCopy(nil))
	}
	it.Close()
	for _, k := range keys {
		if err := txn.Delete(k); err != nil {
			return err
		}
	}
	return nil
}

var _ Store = (*KVStore)(nil)

// badgerLogger routes badger's printf-style logging to slog. Info and
// debug output is demoted to debug.
type badgerLogger struct {
	l *slog.Logger
}

func (b badgerLogger) Errorf(f string, v ...any) {
	b.l.Error(strings.TrimSpace(fmt.Sprintf(f, v...)))
}

func (b badgerLogger) Warningf(f string, v ...any) {
	b.l.Warn(strings.TrimSpace(fmt.Sprintf(f, v...)))
}

func (b badgerLogger) Infof(f string, v ...any) {
	b.l.Debug(strings.TrimSpace(fmt.Sprintf(f, v...)))
}

func (b badgerLogger) Debugf(f string, v ...any) {
	b.l.Debug(strings.TrimSpace(fmt.Sprintf(f, v...)))
}
