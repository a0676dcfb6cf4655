package infra

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"github.com/tnqbao/gau-media-service/entity"
)

const (
	localPublicMode  os.FileMode = 0o644
	localPrivateMode os.FileMode = 0o600
)

// LocalDisk stores files on a filesystem rooted at a directory and serves
// them under a base URL.
type LocalDisk struct {
	fs      afero.Fs
	baseURL string
}

func NewLocalDisk(root, baseURL string) *LocalDisk {
	return NewLocalDiskFs(afero.NewBasePathFs(afero.NewOsFs(), root), baseURL)
}

// NewLocalDiskFs wraps an already rooted filesystem.
func NewLocalDiskFs(fs afero.Fs, baseURL string) *LocalDisk {
	return &LocalDisk{fs: fs, baseURL: strings.TrimRight(baseURL, "/")}
}

func (d *LocalDisk) Exists(_ context.Context, p string) (bool, error) {
	ok, err := afero.Exists(d.fs, clean(p))
	if err != nil {
		return false, fmt.Errorf("failed to stat %s: %w", p, err)
	}
	return ok, nil
}

func (d *LocalDisk) Put(ctx context.Context, p string, r io.Reader, _ int64, _ string) error {
	p = clean(p)
	if err := d.fs.MkdirAll(path.Dir(p), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", p, err)
	}
	f, err := d.fs.OpenFile(p, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, localPublicMode)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", p, err)
	}
	if _, err := io.Copy(f, contextReader{ctx: ctx, r: r}); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write %s: %w", p, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", p, err)
	}
	return nil
}

func (d *LocalDisk) Delete(_ context.Context, p string) error {
	err := d.fs.Remove(clean(p))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete %s: %w", p, err)
	}
	return nil
}

func (d *LocalDisk) Size(_ context.Context, p string) (int64, error) {
	info, err := d.fs.Stat(clean(p))
	if err != nil {
		return 0, fmt.Errorf("failed to stat %s: %w", p, err)
	}
	return info.Size(), nil
}

func (d *LocalDisk) SetVisibility(_ context.Context, p string, visibility entity.Visibility) error {
	mode := localPublicMode
	if visibility == entity.VisibilityPrivate {
		mode = localPrivateMode
	}
	if err := d.fs.Chmod(clean(p), mode); err != nil {
		return fmt.Errorf("failed to set visibility of %s: %w", p, err)
	}
	return nil
}

func (d *LocalDisk) URL(_ context.Context, p string) (string, error) {
	u := url.URL{Path: "/" + clean(p)}
	return d.baseURL + u.EscapedPath(), nil
}

// AllFiles lists every file below dir, recursively, as slash separated paths
// relative to the disk root.
func (d *LocalDisk) AllFiles(_ context.Context, dir string) ([]string, error) {
	dir = clean(dir)
	if dir == "" {
		dir = "."
	}
	exists, err := afero.DirExists(d.fs, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", dir, err)
	}
	if !exists {
		return nil, nil
	}

	var files []string
	err = afero.Walk(d.fs, dir, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		files = append(files, clean(filepath.ToSlash(p)))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}
	return files, nil
}

func clean(p string) string {
	p = path.Clean("/" + strings.TrimSpace(p))
	return strings.TrimLeft(p, "/")
}

type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
