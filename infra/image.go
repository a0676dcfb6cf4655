package infra

import (
	"fmt"
	"image"
	"image/color"
	"io"
	"math"

	"github.com/disintegration/imaging"
	"github.com/gen2brain/webp"
	"github.com/tnqbao/gau-media-service/entity"
	"github.com/tnqbao/gau-media-service/media"
	xwebp "golang.org/x/image/webp"
)

func init() {
	image.RegisterFormat("webp", "RIFF????WEBPVP8", xwebp.Decode, xwebp.DecodeConfig)
}

// ImageProcessor resizes and re-encodes images with imaging. WebP output is
// encoded with gen2brain/webp.
type ImageProcessor struct{}

func NewImageProcessor() *ImageProcessor {
	return &ImageProcessor{}
}

func (p *ImageProcessor) Decode(r io.Reader) (image.Image, error) {
	img, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, nil
}

func (p *ImageProcessor) CanEncode(ext string) bool {
	switch media.NormalizeExtension(ext) {
	case "jpg", "jpeg", "png", "gif", "bmp", "tiff", "webp":
		return true
	}
	return false
}

func (p *ImageProcessor) Encode(w io.Writer, img image.Image, opts media.ImageOptions) error {
	ext := media.NormalizeExtension(opts.Extension)
	out := Transform(img, opts.Width, opts.Height, opts.Fit, ext == "jpg" || ext == "jpeg")

	quality := opts.Quality
	if quality <= 0 || quality > 100 {
		quality = 100
	}

	var err error
	switch ext {
	case "jpg", "jpeg":
		err = imaging.Encode(w, out, imaging.JPEG, imaging.JPEGQuality(quality))
	case "png":
		err = imaging.Encode(w, out, imaging.PNG)
	case "gif":
		err = imaging.Encode(w, out, imaging.GIF)
	case "bmp":
		err = imaging.Encode(w, out, imaging.BMP)
	case "tiff":
		err = imaging.Encode(w, out, imaging.TIFF)
	case "webp":
		err = webp.Encode(w, out, webp.Options{Quality: quality})
	default:
		return fmt.Errorf("unsupported image format %q", ext)
	}
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", ext, err)
	}
	return nil
}

// Transform applies the resize policy. Both dimensions use fit (contain when
// blank); one dimension keeps the aspect ratio; none leaves img untouched.
func Transform(img image.Image, width, height int, fit entity.Fit, opaque bool) image.Image {
	switch {
	case width > 0 && height > 0:
	case width > 0:
		return imaging.Resize(img, width, 0, imaging.Lanczos)
	case height > 0:
		return imaging.Resize(img, 0, height, imaging.Lanczos)
	default:
		return img
	}

	switch fit {
	case entity.FitMax:
		return imaging.Fit(img, width, height, imaging.Lanczos)
	case entity.FitFill:
		bg := color.Color(color.Transparent)
		if opaque {
			bg = color.White
		}
		canvas := imaging.New(width, height, bg)
		return imaging.PasteCenter(canvas, contain(img, width, height))
	case entity.FitStretch:
		return imaging.Resize(img, width, height, imaging.Lanczos)
	case entity.FitCrop, entity.FitCover:
		return imaging.Fill(img, width, height, imaging.Center, imaging.Lanczos)
	default:
		return contain(img, width, height)
	}
}

// contain scales img up or down until it fits inside width x height.
func contain(img image.Image, width, height int) image.Image {
	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return img
	}
	scale := math.Min(float64(width)/float64(b.Dx()), float64(height)/float64(b.Dy()))
	w := int(math.Max(1, math.Round(float64(b.Dx())*scale)))
	h := int(math.Max(1, math.Round(float64(b.Dy())*scale)))
	return imaging.Resize(img, w, h, imaging.Lanczos)
}
