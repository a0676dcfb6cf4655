package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/tnqbao/gau-media-service/entity"
)

type memDisk struct {
	mu         sync.Mutex
	name       string
	files      map[string][]byte
	visibility map[string]entity.Visibility
	deletes    map[string]int
	failPut    map[string]bool // keyed by extension
}

func newMemDisk(name string) *memDisk {
	return &memDisk{
		name:       name,
		files:      map[string][]byte{},
		visibility: map[string]entity.Visibility{},
		deletes:    map[string]int{},
		failPut:    map[string]bool{},
	}
}

func (d *memDisk) Exists(_ context.Context, p string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.files[p]
	return ok, nil
}

func (d *memDisk) Put(_ context.Context, p string, r io.Reader, _ int64, _ string) error {
	if d.failPut[strings.TrimPrefix(filepath.Ext(p), ".")] {
		return errors.New("disk full")
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.files[p] = b
	return nil
}

func (d *memDisk) Delete(_ context.Context, p string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.files, p)
	d.deletes[p]++
	return nil
}

func (d *memDisk) Size(_ context.Context, p string) (int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	b, ok := d.files[p]
	if !ok {
		return 0, os.ErrNotExist
	}
	return int64(len(b)), nil
}

func (d *memDisk) SetVisibility(_ context.Context, p string, v entity.Visibility) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.visibility[p] = v
	return nil
}

func (d *memDisk) URL(_ context.Context, p string) (string, error) {
	return "https://cdn.test/" + d.name + "/" + p, nil
}

func (d *memDisk) AllFiles(_ context.Context, dir string) ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []string
	for p := range d.files {
		if dir == "" || strings.HasPrefix(p, strings.Trim(dir, "/")+"/") {
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (d *memDisk) paths() []string {
	out, _ := d.AllFiles(context.Background(), "")
	return out
}

type memDisks map[string]*memDisk

func (m memDisks) Disk(name string) (Disk, error) {
	d, ok := m[name]
	if !ok {
		return nil, fmt.Errorf("disk %s is not configured", name)
	}
	return d, nil
}

func (m memDisks) Names() []string {
	names := make([]string, 0, len(m))
	for n := range m {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

type memStore struct {
	mu      sync.Mutex
	records []entity.Media
	clock   time.Time
}

func (s *memStore) tick() time.Time {
	if s.clock.IsZero() {
		s.clock = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	}
	s.clock = s.clock.Add(time.Second)
	return s.clock
}

func (s *memStore) Upsert(_ context.Context, m *entity.Media) (*entity.Media, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.tick()
	for i, r := range s.records {
		if r.OwnerType == m.OwnerType && r.OwnerID == m.OwnerID && r.Collection == m.Collection && r.Extension == m.Extension {
			prev := r
			m.ID = r.ID
			m.CreatedAt = r.CreatedAt
			m.UpdatedAt = now
			s.records[i] = *m
			return &prev, nil
		}
	}
	m.CreatedAt = now
	m.UpdatedAt = now
	s.records = append(s.records, *m)
	return nil, nil
}

func (s *memStore) Update(_ context.Context, m *entity.Media) (*entity.Media, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, r := range s.records {
		if r.ID == m.ID {
			prev := r
			m.UpdatedAt = s.tick()
			s.records[i] = *m
			return &prev, nil
		}
	}
	return nil, errors.New("record not found")
}

func (s *memStore) FindByCollection(_ context.Context, ownerType, ownerID, collection string) ([]entity.Media, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []entity.Media
	for _, r := range s.records {
		if r.OwnerType == ownerType && r.OwnerID == ownerID && r.Collection == collection {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *memStore) FindByOwner(_ context.Context, ownerType, ownerID string) ([]entity.Media, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []entity.Media
	for _, r := range s.records {
		if r.OwnerType == ownerType && r.OwnerID == ownerID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *memStore) Delete(_ context.Context, m *entity.Media) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, r := range s.records {
		if r.ID == m.ID {
			s.records = append(s.records[:i], s.records[i+1:]...)
			return nil
		}
	}
	return nil
}

func (s *memStore) all() []entity.Media {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]entity.Media(nil), s.records...)
}

// stubImages decodes real images but encodes a small marker so tests can
// assert on the options each variant was produced with.
type stubImages struct {
	mu      sync.Mutex
	decodes int
	encoded []ImageOptions
}

func (p *stubImages) Decode(r io.Reader) (image.Image, error) {
	p.mu.Lock()
	p.decodes++
	p.mu.Unlock()
	img, _, err := image.Decode(r)
	return img, err
}

func (p *stubImages) Encode(w io.Writer, _ image.Image, opts ImageOptions) error {
	p.mu.Lock()
	p.encoded = append(p.encoded, opts)
	p.mu.Unlock()
	_, err := fmt.Fprintf(w, "%s:%d:%dx%d:%s", opts.Extension, opts.Quality, opts.Width, opts.Height, opts.Fit)
	return err
}

func (p *stubImages) CanEncode(ext string) bool {
	return ext != "avif" && ext != "svg"
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []Event
}

func (p *recordingPublisher) PublishMediaEvent(_ context.Context, e Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

type fixedTokens struct{ ulid, uuid string }

func (f fixedTokens) ULID() string { return f.ulid }
func (f fixedTokens) UUID() string { return f.uuid }

type countingTokens struct {
	mu sync.Mutex
	n  int
}

func (c *countingTokens) ULID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n++
	return fmt.Sprintf("01TOKEN%03d", c.n)
}

func (c *countingTokens) UUID() string { return "00000000-0000-4000-8000-000000000000" }

type harness struct {
	lib    *Library
	disk   *memDisk
	disks  memDisks
	store  *memStore
	images *stubImages
	events *recordingPublisher
}

func newHarness(t *testing.T, tokens TokenSource) *harness {
	t.Helper()
	h := &harness{
		disk:   newMemDisk("public"),
		store:  &memStore{},
		images: &stubImages{},
		events: &recordingPublisher{},
	}
	h.disks = memDisks{"public": h.disk, "archive": newMemDisk("archive")}
	h.lib = NewLibrary(Config{
		Disks:   h.disks,
		Store:   h.store,
		Images:  h.images,
		Events:  h.events,
		TempDir: t.TempDir(),
		Tokens:  tokens,
	})
	return h
}

func writePNG(t *testing.T, name string) *Upload {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 640, 480))
	for x := 0; x < 640; x++ {
		img.Set(x, x%480, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	p := filepath.Join(t.TempDir(), "upload.png")
	require.NoError(t, os.WriteFile(p, buf.Bytes(), 0o600))
	return NewUpload(p, name, "image/png")
}

func writeFile(t *testing.T, name string, content []byte) *Upload {
	t.Helper()
	p := filepath.Join(t.TempDir(), "upload"+filepath.Ext(name))
	require.NoError(t, os.WriteFile(p, content, 0o600))
	return NewUpload(p, name, "")
}
