package media

import (
	"context"
	"fmt"
	"image"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/tnqbao/gau-media-service/entity"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Config wires a Library to its collaborators.
type Config struct {
	Disks  Disks
	Store  Store
	Images ImageProcessor
	Events EventPublisher
	Logger Logger

	HTTPClient   *http.Client
	FetchTimeout time.Duration
	TempDir      string
	Tokens       TokenSource
}

// Library is the media-attachment engine.
type Library struct {
	disks      Disks
	store      Store
	images     ImageProcessor
	logger     Logger
	tokens     TokenSource
	fetcher    *Fetcher
	writer     *Writer
	reconciler *Reconciler
	metrics    *instruments
}

func NewLibrary(cfg Config) *Library {
	if cfg.Disks == nil {
		panic("media: Disks is required")
	}
	if cfg.Store == nil {
		panic("media: Store is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = nopLogger{}
	}
	tokens := cfg.Tokens
	if tokens == nil {
		tokens = RandomTokens
	}
	fetcher := NewFetcher(cfg.HTTPClient, cfg.FetchTimeout)
	fetcher.TempDir = cfg.TempDir

	return &Library{
		disks:      cfg.Disks,
		store:      cfg.Store,
		images:     cfg.Images,
		logger:     logger,
		tokens:     tokens,
		fetcher:    fetcher,
		writer:     NewWriter(cfg.Images),
		reconciler: NewReconciler(cfg.Store, cfg.Disks, cfg.Events, logger),
		metrics:    newInstruments(),
	}
}

func (l *Library) Reconciler() *Reconciler {
	return l.reconciler
}

// Attach starts an attach call for owner. input is either an *Upload or a
// remote URL string.
func (l *Library) Attach(owner Owner, input any) *Builder {
	return &Builder{lib: l, owner: owner, input: input}
}

// CollectionOption overrides parts of a collection's configuration for one call.
type CollectionOption func(*collectionCall)

type collectionCall struct {
	name     string
	path     string
	metadata map[string]any
}

// WithName overrides the name template. Blank values are ignored.
func WithName(name string) CollectionOption {
	return func(c *collectionCall) {
		if strings.TrimSpace(name) != "" {
			c.name = name
		}
	}
}

// WithPath overrides the path template. Blank values are ignored.
func WithPath(path string) CollectionOption {
	return func(c *collectionCall) {
		if strings.TrimSpace(path) != "" {
			c.path = path
		}
	}
}

// WithMetadata attaches free-form metadata to every record of the call.
func WithMetadata(metadata map[string]any) CollectionOption {
	return func(c *collectionCall) { c.metadata = metadata }
}

// Builder collects the modifiers of one attach call.
type Builder struct {
	lib      *Library
	owner    Owner
	input    any
	replace  bool
	keepName bool
}

// ReplaceExisting clears the target collection before the new variants are
// stored. It applies to the next ToCollection call only.
func (b *Builder) ReplaceExisting(state bool) *Builder {
	b.replace = state
	return b
}

// KeepOriginalName names stored files after a slug of the client file name
// when no name template is given.
func (b *Builder) KeepOriginalName(state bool) *Builder {
	b.keepName = state
	return b
}

// ToCollection stores the input in collection and returns one record per
// stored variant, in plan order.
//
// Variants are written one after another. When a write fails the error is
// returned at once and variants already written in this call stay in place.
func (b *Builder) ToCollection(ctx context.Context, collection string, opts ...CollectionOption) ([]entity.Media, error) {
	l := b.lib
	ctx, span := tracer.Start(ctx, "media.to_collection")
	defer span.End()
	span.SetAttributes(
		attribute.String("media.owner_type", b.owner.MediaOwnerType()),
		attribute.String("media.collection", collection),
	)

	if b.input == nil {
		return nil, validationError("to collection", "no file has been set")
	}

	collections := b.owner.MediaCollections()
	base, ok := collections[collection]
	if !ok {
		return nil, configurationError("to collection", "collection %s is not defined in the media config of %s",
			collection, b.owner.MediaOwnerType())
	}

	call := collectionCall{}
	for _, opt := range opts {
		opt(&call)
	}
	cfg := base
	if call.name != "" {
		cfg.Name = call.name
	}
	if call.path != "" {
		cfg.Path = call.path
	}
	if err := checkKeyTemplate("name", cfg.Name); err != nil {
		return nil, err
	}
	if err := checkKeyTemplate("path", cfg.Path); err != nil {
		return nil, err
	}

	fit, err := ParseFit(cfg.Fit)
	if err != nil {
		return nil, err
	}
	visibility, err := parseVisibility(cfg.Visibility)
	if err != nil {
		return nil, err
	}
	cfg.Visibility = visibility
	if cfg.Kind != "" {
		if _, err := ResolveKind(cfg.Kind, ""); err != nil {
			return nil, err
		}
	}
	diskName := cfg.DiskName()
	disk, err := l.disks.Disk(diskName)
	if err != nil {
		return nil, configurationError("to collection", "disk %s: %v", diskName, err)
	}

	upload, release, err := b.resolveInput(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	kind, err := ResolveKind(cfg.Kind, upload.DetectedContentType())
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("media.kind", string(kind)))

	var decoded image.Image
	if kind == entity.KindImage && l.images != nil {
		if decoded, err = l.decode(upload); err != nil {
			return nil, err
		}
	}

	// Replace clears once the input is in hand and before planning.
	if b.replace {
		if _, err := l.reconciler.ClearCollection(ctx, b.owner, collection); err != nil {
			return nil, err
		}
		b.replace = false
	}

	var (
		imageVariants []Variant
		binaryExts    []string
	)
	sniffed := upload.GuessExtension()
	if kind == entity.KindImage {
		imageVariants, err = PlanImage(cfg, sniffed)
		if err != nil {
			return nil, err
		}
		if err := l.checkEncodable(imageVariants); err != nil {
			return nil, err
		}
	} else {
		binaryExts, err = PlanBinary(cfg, sniffed)
		if err != nil {
			return nil, err
		}
	}

	tmpl := Template{OwnerType: b.owner.MediaOwnerType(), Collection: collection, Tokens: l.tokens}
	job := &WriteJob{
		Source:   upload,
		Config:   cfg,
		Fit:      fit,
		DiskName: diskName,
		Disk:     disk,
		Dir:      tmpl.Path(cfg.Path),
		Name:     b.fileName(tmpl, cfg.Name, upload),
		decoded:  decoded,
	}

	var records []entity.Media
	store := func(art Artifact) error {
		rec, err := l.reconciler.Persist(ctx, b.owner, collection, art, call.metadata)
		if err != nil {
			return err
		}
		records = append(records, *rec)
		return nil
	}

	if kind == entity.KindImage {
		for _, v := range imageVariants {
			art, err := l.writer.WriteImage(ctx, job, v)
			if err != nil {
				return records, err
			}
			if err := store(art); err != nil {
				return records, err
			}
		}
	} else {
		for _, ext := range binaryExts {
			art, err := l.writer.WriteBinary(ctx, job, ext)
			if err != nil {
				return records, err
			}
			if err := store(art); err != nil {
				return records, err
			}
		}
	}

	l.logger.InfoWithContextf(ctx, "[Media] Stored %d variant(s) of %s in %s/%s for %s %s",
		len(records), upload.Name, diskName, job.Dir, b.owner.MediaOwnerType(), b.owner.MediaOwnerID())
	return records, nil
}

// resolveInput turns the builder input into a local upload. The returned
// release func removes temp files the call created.
func (b *Builder) resolveInput(ctx context.Context) (*Upload, func(), error) {
	switch in := b.input.(type) {
	case *Upload:
		if in == nil || in.Path == "" {
			return nil, nil, validationError("to collection", "no file has been set")
		}
		return in, func() {}, nil
	case string:
		started := time.Now()
		upload, err := b.lib.fetcher.Fetch(ctx, in)
		b.lib.metrics.fetchDuration.Record(ctx, time.Since(started).Seconds(),
			metric.WithAttributes(attribute.Bool("media.fetch.ok", err == nil)))
		if err != nil {
			b.lib.logger.ErrorWithContextf(ctx, err, "[Media] Failed to fetch remote file %s", in)
			return nil, nil, err
		}
		return upload, func() {
			if err := upload.Close(); err != nil {
				b.lib.logger.WarningWithContextf(ctx, "[Media] Failed to remove temp file %s: %v", upload.Path, err)
			}
		}, nil
	default:
		return nil, nil, validationError("to collection", "file must be a URL or an *Upload, got %T", b.input)
	}
}

func (b *Builder) fileName(tmpl Template, pattern string, upload *Upload) string {
	if strings.TrimSpace(pattern) == "" && b.keepName {
		if s := slugify(upload.BaseName()); s != "" {
			return s
		}
	}
	return tmpl.Name(pattern)
}

func (l *Library) decode(upload *Upload) (image.Image, error) {
	src, err := upload.Open()
	if err != nil {
		return nil, validationError("decode image", "open source: %v", err)
	}
	defer src.Close()
	img, err := l.images.Decode(src)
	if err != nil {
		return nil, validationError("decode image", "decode source image: %v", err)
	}
	return img, nil
}

func (l *Library) checkEncodable(variants []Variant) error {
	if l.images == nil {
		return configurationError("plan image", "no image processor configured")
	}
	for _, v := range variants {
		if !l.images.CanEncode(v.Extension) {
			return configurationError("plan image", "image format %q cannot be encoded", v.Extension)
		}
	}
	return nil
}

// GetCollection returns the records of a collection keyed by extension, with
// their URLs resolved.
func (l *Library) GetCollection(ctx context.Context, owner Owner, collection string) (map[string]entity.Media, error) {
	records, err := l.store.FindByCollection(ctx, owner.MediaOwnerType(), owner.MediaOwnerID(), collection)
	if err != nil {
		return nil, fmt.Errorf("failed to list media collection %s: %w", collection, err)
	}
	out := make(map[string]entity.Media, len(records))
	for _, rec := range records {
		rec.URL = l.resolveURL(ctx, &rec)
		out[rec.Extension] = rec
	}
	return out, nil
}

// Find returns the record of a collection with the given extension, or the
// most recently updated one when ext is blank.
func (l *Library) Find(ctx context.Context, owner Owner, collection, ext string) (*entity.Media, error) {
	records, err := l.store.FindByCollection(ctx, owner.MediaOwnerType(), owner.MediaOwnerID(), collection)
	if err != nil {
		return nil, fmt.Errorf("failed to list media collection %s: %w", collection, err)
	}
	if len(records) == 0 {
		return nil, &Error{Kind: ErrNotFound, Op: "find", Msg: "collection " + collection + " is empty"}
	}

	ext = NormalizeExtension(ext)
	if ext != "" {
		for i := range records {
			if records[i].Extension == ext {
				rec := records[i]
				rec.URL = l.resolveURL(ctx, &rec)
				return &rec, nil
			}
		}
		return nil, &Error{Kind: ErrNotFound, Op: "find", Msg: fmt.Sprintf("no %s media in collection %s", ext, collection)}
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].UpdatedAt.After(records[j].UpdatedAt)
	})
	rec := records[0]
	rec.URL = l.resolveURL(ctx, &rec)
	return &rec, nil
}

func (l *Library) GetURL(ctx context.Context, owner Owner, collection, ext string) (string, error) {
	rec, err := l.Find(ctx, owner, collection, ext)
	if err != nil {
		return "", err
	}
	return rec.URL, nil
}

func (l *Library) GetSize(ctx context.Context, owner Owner, collection, ext string) (*int64, error) {
	rec, err := l.Find(ctx, owner, collection, ext)
	if err != nil {
		return nil, err
	}
	return rec.Size, nil
}

func (l *Library) GetMetadata(ctx context.Context, owner Owner, collection, ext string) (map[string]any, error) {
	rec, err := l.Find(ctx, owner, collection, ext)
	if err != nil {
		return nil, err
	}
	return rec.Metadata, nil
}

func (l *Library) HasMedia(ctx context.Context, owner Owner, collection, ext string) (bool, error) {
	_, err := l.Find(ctx, owner, collection, ext)
	if err == nil {
		return true, nil
	}
	if IsNotFound(err) {
		return false, nil
	}
	return false, err
}

// ClearCollection removes the records (and bytes) of a collection.
func (l *Library) ClearCollection(ctx context.Context, owner Owner, collection string, extensions ...string) (int, error) {
	return l.reconciler.ClearCollection(ctx, owner, collection, extensions...)
}

// Remove deletes the record with ext from collection.
func (l *Library) Remove(ctx context.Context, owner Owner, collection, ext string) error {
	if NormalizeExtension(ext) == "" {
		return validationError("remove", "extension is required")
	}
	rec, err := l.Find(ctx, owner, collection, ext)
	if err != nil {
		return err
	}
	return l.reconciler.Remove(ctx, rec)
}

// OwnerDeleted cascades a permanent delete of owner to its media.
func (l *Library) OwnerDeleted(ctx context.Context, owner Owner, force bool) (int, error) {
	return l.reconciler.OwnerDeleted(ctx, owner, force)
}

// ResolveURL fills the URL of a record from its disk.
func (l *Library) ResolveURL(ctx context.Context, rec *entity.Media) string {
	return l.resolveURL(ctx, rec)
}

func (l *Library) resolveURL(ctx context.Context, rec *entity.Media) string {
	disk, err := l.disks.Disk(rec.Disk)
	if err != nil {
		l.logger.WarningWithContextf(ctx, "[Media] Cannot resolve disk %s for media %s: %v", rec.Disk, rec.ID, err)
		return ""
	}
	url, err := disk.URL(ctx, strings.TrimLeft(rec.Path, "/"))
	if err != nil {
		l.logger.WarningWithContextf(ctx, "[Media] Cannot resolve url of %s on disk %s: %v", rec.Path, rec.Disk, err)
		return ""
	}
	return url
}
