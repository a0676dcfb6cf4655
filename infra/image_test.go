package infra

import (
	"bytes"
	"image"
	"image/color"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tnqbao/gau-media-service/entity"
	"github.com/tnqbao/gau-media-service/media"
)

func testImage(w, h int) image.Image {
	return imaging.New(w, h, color.NRGBA{R: 30, G: 120, B: 200, A: 255})
}

func TestTransform(t *testing.T) {
	src := testImage(400, 200)

	cases := []struct {
		name          string
		width, height int
		fit           entity.Fit
		wantW, wantH  int
	}{
		{"no dimensions", 0, 0, "", 400, 200},
		{"width only", 100, 0, "", 100, 50},
		{"height only", 0, 100, "", 200, 100},
		{"contain default", 100, 100, "", 100, 50},
		{"contain upscales", 800, 800, entity.FitContain, 800, 400},
		{"max never upscales", 800, 800, entity.FitMax, 400, 200},
		{"fill pads to box", 100, 100, entity.FitFill, 100, 100},
		{"stretch", 100, 100, entity.FitStretch, 100, 100},
		{"crop", 100, 100, entity.FitCrop, 100, 100},
		{"cover", 50, 120, entity.FitCover, 50, 120},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out := Transform(src, tc.width, tc.height, tc.fit, false)
			assert.Equal(t, tc.wantW, out.Bounds().Dx())
			assert.Equal(t, tc.wantH, out.Bounds().Dy())
		})
	}
}

func TestImageProcessorEncodesFormats(t *testing.T) {
	p := NewImageProcessor()
	src := testImage(64, 48)

	for _, ext := range []string{"jpg", "png", "gif", "bmp", "tiff", "webp"} {
		t.Run(ext, func(t *testing.T) {
			require.True(t, p.CanEncode(ext))

			var buf bytes.Buffer
			err := p.Encode(&buf, src, media.ImageOptions{Width: 32, Height: 32, Fit: entity.FitCover, Quality: 80, Extension: ext})
			require.NoError(t, err)

			decoded, err := p.Decode(bytes.NewReader(buf.Bytes()))
			require.NoError(t, err)
			assert.Equal(t, 32, decoded.Bounds().Dx())
			assert.Equal(t, 32, decoded.Bounds().Dy())
		})
	}
}

func TestImageProcessorRejectsUnsupportedFormats(t *testing.T) {
	p := NewImageProcessor()
	assert.False(t, p.CanEncode("avif"))
	assert.False(t, p.CanEncode("svg"))

	var buf bytes.Buffer
	err := p.Encode(&buf, testImage(4, 4), media.ImageOptions{Extension: "avif"})
	assert.Error(t, err)
}
