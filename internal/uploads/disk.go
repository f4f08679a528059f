package uploads

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// DiskStore keeps uploads as plain files in a single directory.
type DiskStore struct {
	root string
}

// NewDiskStore returns a store rooted at dir, creating it if needed.
func NewDiskStore(dir string) (*DiskStore, error) {
	if dir == "" {
		return nil, errors.New("upload dir is empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &DiskStore{root: dir}, nil
}

// Put writes r to a temporary file next to the target and renames it into
// place once the copy completes, so readers never see a partial file.
func (s *DiskStore) Put(ctx context.Context, name string, r io.Reader) (Stored, error) {
	if err := ValidateName(name); err != nil {
		return Stored{}, err
	}
	if err := ctx.Err(); err != nil {
		return Stored{}, err
	}

	// Sanitized names never start with a dot, so temp files cannot be fetched.
	tmp, err := os.CreateTemp(s.root, ".upload-*")
	if err != nil {
		return Stored{}, fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	n, err := io.Copy(tmp, r)
	if err != nil {
		_ = tmp.Close()
		cleanup()
		return Stored{}, fmt.Errorf("write upload: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return Stored{}, fmt.Errorf("close upload: %w", err)
	}
	if err := ctx.Err(); err != nil {
		cleanup()
		return Stored{}, err
	}

	if err := os.Rename(tmpName, filepath.Join(s.root, name)); err != nil {
		cleanup()
		return Stored{}, fmt.Errorf("commit upload: %w", err)
	}

	return Stored{Name: name, Size: n}, nil
}

// Open returns the stored file, or ErrNotFound.
func (s *DiskStore) Open(_ context.Context, name string) (*Object, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}

	f, err := os.Open(filepath.Join(s.root, name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("open upload: %w", err)
	}

	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("stat upload: %w", err)
	}
	if !st.Mode().IsRegular() {
		_ = f.Close()
		return nil, ErrNotFound
	}

	return &Object{Body: f, Size: st.Size(), ModTime: st.ModTime()}, nil
}

// Ping checks that the upload directory is still there.
func (s *DiskStore) Ping(_ context.Context) error {
	st, err := os.Stat(s.root)
	if err != nil {
		return err
	}
	if !st.IsDir() {
		return fmt.Errorf("upload root %s is not a directory", s.root)
	}
	return nil
}
