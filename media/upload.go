package media

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gabriel-vasile/mimetype"
)

// Upload is a file that is available on the local filesystem, either an
// incoming multipart upload saved to disk or a remote file fetched into a
// temp file.
type Upload struct {
	Path        string // local path of the bytes
	Name        string // client supplied file name
	ContentType string // client supplied content type, may be empty

	// Materialized marks temp files owned by the library. Close removes them.
	Materialized bool

	sniffOnce sync.Once
	sniffed   *mimetype.MIME
}

func NewUpload(path, name, contentType string) *Upload {
	return &Upload{Path: path, Name: name, ContentType: contentType}
}

func (u *Upload) Open() (io.ReadCloser, error) {
	return os.Open(u.Path)
}

func (u *Upload) sniff() *mimetype.MIME {
	u.sniffOnce.Do(func() {
		m, err := mimetype.DetectFile(u.Path)
		if err == nil {
			u.sniffed = m
		}
	})
	return u.sniffed
}

// DetectedContentType sniffs the content type from the file bytes, falling
// back to the client supplied value when the bytes are unrecognized.
func (u *Upload) DetectedContentType() string {
	if m := u.sniff(); m != nil && !m.Is("application/octet-stream") {
		return m.String()
	}
	if u.ContentType != "" {
		return u.ContentType
	}
	return "application/octet-stream"
}

// GuessExtension returns the extension implied by the sniffed content type,
// then the client file name, then the local path. It is empty when none of
// them carries one.
func (u *Upload) GuessExtension() string {
	if m := u.sniff(); m != nil && m.Extension() != "" {
		return NormalizeExtension(m.Extension())
	}
	if ext := NormalizeExtension(filepath.Ext(u.Name)); ext != "" {
		return ext
	}
	return NormalizeExtension(filepath.Ext(u.Path))
}

// BaseName is the client file name without directory and extension.
func (u *Upload) BaseName() string {
	name := filepath.Base(u.Name)
	return strings.TrimSuffix(name, filepath.Ext(name))
}

func (u *Upload) Size() (int64, error) {
	info, err := os.Stat(u.Path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// Close removes the backing temp file when the library created it.
func (u *Upload) Close() error {
	if !u.Materialized || u.Path == "" {
		return nil
	}
	err := os.Remove(u.Path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
