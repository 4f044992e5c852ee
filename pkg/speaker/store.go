package speaker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/haivivi/diarize/pkg/storage"
)

// ErrNoSnapshot is returned by Store.Load when nothing has been saved.
var ErrNoSnapshot = errors.New("speaker: no snapshot")

// Store persists snapshots between sessions.
//
// Implementations must be safe for concurrent use.
type Store interface {
	// Load returns the last saved snapshot. It returns an error wrapping
	// ErrNoSnapshot when none exists and ErrCorrupt when the saved data
	// is unusable.
	Load(ctx context.Context) (Snapshot, error)

	// Save replaces the stored snapshot.
	Save(ctx context.Context, snap Snapshot) error

	// Clear removes the stored snapshot.
	Clear(ctx context.Context) error
}

// FileStore keeps a snapshot as a single encoded blob.
type FileStore struct {
	files storage.FileStore
	name  string
	codec Codec
}

// NewFileStore stores snapshots in files under name, encoded with codec.
func NewFileStore(files storage.FileStore, name string, codec Codec) *FileStore {
	return &FileStore{files: files, name: name, codec: codec}
}

// Name returns the blob name.
func (s *FileStore) Name() string { return s.name }

func (s *FileStore) Load(ctx context.Context) (Snapshot, error) {
	data, err := s.files.Get(ctx, s.name)
	if errors.Is(err, fs.ErrNotExist) {
		return Snapshot{}, fmt.Errorf("%w: %s", ErrNoSnapshot, s.name)
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("speaker: load %s: %w", s.name, err)
	}
	return s.codec.Decode(bytes.NewReader(data))
}

func (s *FileStore) Save(ctx context.Context, snap Snapshot) error {
	var buf bytes.Buffer
	if err := s.codec.Encode(&buf, snap); err != nil {
		return err
	}
	if err := s.files.Put(ctx, s.name, buf.Bytes()); err != nil {
		return fmt.Errorf("speaker: save %s: %w", s.name, err)
	}
	return nil
}

func (s *FileStore) Clear(ctx context.Context) error {
	if err := s.files.Delete(ctx, s.name); err != nil {
		return fmt.Errorf("speaker: clear %s: %w", s.name, err)
	}
	return nil
}

var _ Store = (*FileStore)(nil)
