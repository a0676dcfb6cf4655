package media

import (
	"github.com/tnqbao/gau-media-service/entity"
)

const defaultQuality = 100

// Variant is one output format planned for an image collection.
type Variant struct {
	Extension string
	Quality   int
}

// PlanImage returns the ordered extension/quality pairs to produce for an image.
// Declared extensions win over the sniffed one. A repeated extension keeps its
// first position and takes the last declared quality.
func PlanImage(cfg entity.CollectionConfig, sniffed string) ([]Variant, error) {
	if len(cfg.Extensions) > 0 {
		variants := make([]Variant, 0, len(cfg.Extensions))
		index := make(map[string]int, len(cfg.Extensions))
		for _, eq := range cfg.Extensions {
			ext := NormalizeExtension(eq.Extension)
			if ext == "" {
				continue
			}
			quality, err := normalizeQuality(ext, eq.Quality)
			if err != nil {
				return nil, err
			}
			if i, ok := index[ext]; ok {
				variants[i].Quality = quality
				continue
			}
			index[ext] = len(variants)
			variants = append(variants, Variant{Extension: ext, Quality: quality})
		}
		if len(variants) > 0 {
			return variants, nil
		}
	}

	ext := NormalizeExtension(sniffed)
	if ext == "" {
		return nil, validationError("plan image", "could not determine file extension for the uploaded image")
	}
	return []Variant{{Extension: ext, Quality: defaultQuality}}, nil
}

// PlanBinary returns the ordered, distinct extensions to store for a video,
// audio or generic file: declared list, then single declared extension, then
// the sniffed extension.
func PlanBinary(cfg entity.CollectionConfig, sniffed string) ([]string, error) {
	var candidates []string
	switch {
	case len(cfg.Extensions) > 0:
		for _, eq := range cfg.Extensions {
			candidates = append(candidates, eq.Extension)
		}
	case NormalizeExtension(cfg.Extension) != "":
		candidates = []string{cfg.Extension}
	default:
		candidates = []string{sniffed}
	}

	seen := make(map[string]struct{}, len(candidates))
	out := make([]string, 0, len(candidates))
	for _, c := range candidates {
		ext := NormalizeExtension(c)
		if ext == "" {
			continue
		}
		if _, ok := seen[ext]; ok {
			continue
		}
		seen[ext] = struct{}{}
		out = append(out, ext)
	}
	if len(out) == 0 {
		return nil, validationError("plan binary", "could not determine file extension for the uploaded file")
	}
	return out, nil
}

func normalizeQuality(ext string, q int) (int, error) {
	if q == 0 {
		return defaultQuality, nil
	}
	if q < 1 || q > 100 {
		return 0, configurationError("plan image", "quality for %q must be between 1 and 100, got %d", ext, q)
	}
	return q, nil
}
