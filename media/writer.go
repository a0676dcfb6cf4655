package media

import (
	"bytes"
	"context"
	"image"
	"mime"

	"github.com/tnqbao/gau-media-service/entity"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Artifact is a variant that has been written to a disk.
type Artifact struct {
	Extension string
	Path      string
	Disk      string
}

// WriteJob holds what every variant of one attach call shares.
type WriteJob struct {
	Source   *Upload
	Config   entity.CollectionConfig
	Fit      entity.Fit
	DiskName string
	Disk     Disk
	Dir      string // expanded path template
	Name     string // expanded name template

	decoded image.Image
}

// Writer produces the bytes of each variant and stores them.
type Writer struct {
	images  ImageProcessor
	metrics *instruments
}

func NewWriter(images ImageProcessor) *Writer {
	return &Writer{images: images, metrics: newInstruments()}
}

// WriteImage re-encodes the source image for one variant and stores it.
func (w *Writer) WriteImage(ctx context.Context, job *WriteJob, v Variant) (Artifact, error) {
	relPath := BuildRelativePath(job.Dir, job.Name, v.Extension)
	ctx, span := w.startSpan(ctx, job, v.Extension, relPath)
	defer span.End()

	if w.images == nil {
		return Artifact{}, w.fail(span, configurationError("write image", "no image processor configured"))
	}

	if job.decoded == nil {
		src, err := job.Source.Open()
		if err != nil {
			return Artifact{}, w.fail(span, validationError("write image", "open source: %v", err))
		}
		img, err := w.images.Decode(src)
		_ = src.Close()
		if err != nil {
			return Artifact{}, w.fail(span, validationError("write image", "decode source image: %v", err))
		}
		job.decoded = img
	}

	var buf bytes.Buffer
	err := w.images.Encode(&buf, job.decoded, ImageOptions{
		Width:     job.Config.Width,
		Height:    job.Config.Height,
		Fit:       job.Fit,
		Quality:   v.Quality,
		Extension: v.Extension,
	})
	if err != nil {
		return Artifact{}, w.fail(span, storageWriteError("write image", err, "encode %s variant", v.Extension))
	}

	size := int64(buf.Len())
	if err := job.Disk.Put(ctx, relPath, &buf, size, contentTypeFor(v.Extension)); err != nil {
		return Artifact{}, w.fail(span, storageWriteError("write image", err, "put %s on disk %s", relPath, job.DiskName))
	}

	return w.finish(ctx, span, job, v.Extension, relPath, size)
}

// WriteBinary copies the source bytes verbatim under the given extension.
func (w *Writer) WriteBinary(ctx context.Context, job *WriteJob, ext string) (Artifact, error) {
	relPath := BuildRelativePath(job.Dir, job.Name, ext)
	ctx, span := w.startSpan(ctx, job, ext, relPath)
	defer span.End()

	size, err := job.Source.Size()
	if err != nil {
		return Artifact{}, w.fail(span, validationError("write binary", "stat source: %v", err))
	}
	src, err := job.Source.Open()
	if err != nil {
		return Artifact{}, w.fail(span, validationError("write binary", "open source: %v", err))
	}
	defer src.Close()

	if err := job.Disk.Put(ctx, relPath, src, size, job.Source.DetectedContentType()); err != nil {
		return Artifact{}, w.fail(span, storageWriteError("write binary", err, "put %s on disk %s", relPath, job.DiskName))
	}

	return w.finish(ctx, span, job, ext, relPath, size)
}

func (w *Writer) finish(ctx context.Context, span trace.Span, job *WriteJob, ext, relPath string, size int64) (Artifact, error) {
	if job.Config.Visibility != "" {
		if err := job.Disk.SetVisibility(ctx, relPath, job.Config.Visibility); err != nil {
			return Artifact{}, w.fail(span, storageWriteError("set visibility", err, "%s on disk %s", relPath, job.DiskName))
		}
	}

	attrs := metric.WithAttributes(
		attribute.String("media.disk", job.DiskName),
		attribute.String("media.extension", ext),
	)
	w.metrics.variantsWritten.Add(ctx, 1, attrs)
	w.metrics.bytesWritten.Add(ctx, size, attrs)

	return Artifact{Extension: ext, Path: relPath, Disk: job.DiskName}, nil
}

func (w *Writer) startSpan(ctx context.Context, job *WriteJob, ext, relPath string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "media.write_variant", trace.WithAttributes(
		attribute.String("media.disk", job.DiskName),
		attribute.String("media.extension", ext),
		attribute.String("media.path", relPath),
	))
}

func (w *Writer) fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

func contentTypeFor(ext string) string {
	if ct := mime.TypeByExtension("." + ext); ct != "" {
		return ct
	}
	switch ext {
	case "webp":
		return "image/webp"
	case "avif":
		return "image/avif"
	case "bmp":
		return "image/bmp"
	case "tiff", "tif":
		return "image/tiff"
	}
	return "application/octet-stream"
}
