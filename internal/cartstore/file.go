package cartstore

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"go.uber.org/zap"

	"github.com/emberroast/brewcart/internal/domain/cart"
)

var _ cart.SnapshotStore = (*File)(nil)

// File persists one gzip-compressed JSON snapshot per session under a
// directory. Writes go to a temp file first and are renamed into place, so a
// crash mid-write leaves the previous snapshot intact rather than a torn one.
type File struct {
	dir string
	lg  *zap.Logger
}

// NewFile creates the directory if needed and returns a file-backed snapshot
// store rooted there.
func NewFile(dir string, lg *zap.Logger) (*File, error) {
	if lg == nil {
		lg = zap.NewNop()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "create cart dir")
	}
	return &File{dir: dir, lg: lg}, nil
}

// Save writes the snapshot for the session, replacing any previous one.
func (f *File) Save(_ context.Context, sessionID string, snap cart.Snapshot) error {
	path, err := f.path(sessionID)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(f.dir, "cart-*.tmp")
	if err != nil {
		return errors.Wrap(err, "create temp file")
	}
	defer os.Remove(tmp.Name())

	zw := pgzip.NewWriter(tmp)
	if _, err := zw.Write(snap.Encode()); err != nil {
		tmp.Close()
		return errors.Wrap(err, "write snapshot")
	}
	if err := zw.Close(); err != nil {
		tmp.Close()
		return errors.Wrap(err, "flush snapshot")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "close temp file")
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return errors.Wrap(err, "replace snapshot")
	}
	return nil
}

// Load reads the session's snapshot. Missing, unreadable, or corrupt files
// all report absent: a broken snapshot resets the cart instead of blocking
// the session.
func (f *File) Load(_ context.Context, sessionID string) (cart.Snapshot, bool, error) {
	path, err := f.path(sessionID)
	if err != nil {
		return cart.Snapshot{}, false, err
	}

	file, err := os.Open(path)
	if err != nil {
		if !os.IsNotExist(err) {
			f.lg.Warn("cart snapshot unreadable", zap.String("path", path), zap.Error(err))
		}
		return cart.Snapshot{}, false, nil
	}
	defer file.Close()

	zr, err := pgzip.NewReader(file)
	if err != nil {
		f.lg.Warn("cart snapshot corrupt", zap.String("path", path), zap.Error(err))
		return cart.Snapshot{}, false, nil
	}
	defer zr.Close()

	data, err := io.ReadAll(zr)
	if err != nil {
		f.lg.Warn("cart snapshot corrupt", zap.String("path", path), zap.Error(err))
		return cart.Snapshot{}, false, nil
	}

	snap, err := cart.DecodeSnapshot(data)
	if err != nil {
		f.lg.Warn("cart snapshot rejected", zap.String("path", path), zap.Error(err))
		return cart.Snapshot{}, false, nil
	}
	return snap, true, nil
}

// path validates the session ID and maps it to a file path. IDs are opaque
// but must not escape the store directory.
func (f *File) path(sessionID string) (string, error) {
	if sessionID == "" || strings.ContainsAny(sessionID, `/\`) || strings.Contains(sessionID, "..") {
		return "", errors.Errorf("invalid session id %q", sessionID)
	}
	return filepath.Join(f.dir, sessionID+".json.gz"), nil
}
