package snapshot

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// fileMagic prefixes every snapshot file so stale or foreign files are
// rejected before decompression. The trailing byte is the format version.
var fileMagic = []byte{'W', 'S', 'S', 1}

// fileExtension is appended to every snapshot file name.
const fileExtension = ".snap"

// ErrSnapshotNotFound is returned when loading a snapshot that does not exist.
var ErrSnapshotNotFound = errors.New("snapshot not found")

// ErrInvalidSnapshot is returned when a snapshot file fails format validation.
var ErrInvalidSnapshot = errors.New("invalid snapshot file")

// Store persists node state dumps as snappy-compressed files on disk.
// State dumps from dev nodes are large and highly repetitive, so they
// compress well.
type Store struct {
	log        logrus.FieldLogger
	dir        string
	compressor Compressor
}

// NewStore creates a snapshot store rooted at dir. The directory is created
// on first save. maxLength bounds the decompressed size of loaded snapshots;
// 0 means no limit.
func NewStore(log logrus.FieldLogger, dir string, maxLength uint64) *Store {
	return &Store{
		log:        log.WithField("component", "snapshot_store"),
		dir:        dir,
		compressor: NewSnappyCompressor(maxLength),
	}
}

// Dir returns the directory the store writes into.
func (s *Store) Dir() string {
	return s.dir
}

// Save compresses and writes a state dump under name, replacing any previous
// snapshot with the same name.
func (s *Store) Save(name string, data []byte) error {
	path, err := s.path(name)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return errors.Wrap(err, "failed to create snapshot directory")
	}

	compressed, err := s.compressor.Compress(data)
	if err != nil {
		return errors.Wrap(err, "failed to compress snapshot")
	}

	payload := make([]byte, 0, len(fileMagic)+len(compressed))
	payload = append(payload, fileMagic...)
	payload = append(payload, compressed...)

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, payload, 0o644); err != nil {
		return errors.Wrap(err, "failed to write snapshot")
	}

	if err := os.Rename(tmp, path); err != nil {
		return errors.Wrap(err, "failed to finalize snapshot")
	}

	s.log.WithFields(logrus.Fields{
		"name":       name,
		"size":       len(data),
		"compressed": len(compressed),
	}).Debug("Saved snapshot")

	return nil
}

// Load reads and decompresses the snapshot stored under name.
func (s *Store) Load(name string) ([]byte, error) {
	path, err := s.path(name)
	if err != nil {
		return nil, err
	}

	payload, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(ErrSnapshotNotFound, "%s", name)
		}

		return nil, errors.Wrap(err, "failed to read snapshot")
	}

	if len(payload) < len(fileMagic) || !bytes.Equal(payload[:len(fileMagic)], fileMagic) {
		return nil, errors.Wrapf(ErrInvalidSnapshot, "%s: bad header", name)
	}

	data, err := s.compressor.Decompress(payload[len(fileMagic):])
	if err != nil {
		return nil, errors.Wrapf(err, "failed to decompress snapshot %s", name)
	}

	return data, nil
}

// Delete removes the snapshot stored under name. Deleting a snapshot that
// does not exist is not an error.
func (s *Store) Delete(name string) error {
	path, err := s.path(name)
	if err != nil {
		return err
	}

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "failed to delete snapshot")
	}

	return nil
}

// path validates name and returns the file path for it. Names must not
// escape the store directory.
func (s *Store) path(name string) (string, error) {
	if name == "" {
		return "", errors.New("snapshot name is required")
	}

	if strings.ContainsAny(name, "/\\") || name != filepath.Base(name) {
		return "", errors.Errorf("invalid snapshot name: %q", name)
	}

	return filepath.Join(s.dir, name+fileExtension), nil
}
