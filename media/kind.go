package media

import (
	"strings"

	"github.com/tnqbao/gau-media-service/entity"
)

// ResolveKind returns the explicit kind when one is configured, otherwise the
// kind sniffed from the top-level type of contentType.
func ResolveKind(explicit entity.Kind, contentType string) (entity.Kind, error) {
	if explicit != "" {
		for _, k := range entity.Kinds {
			if explicit == k {
				return k, nil
			}
		}
		return "", configurationError("resolve kind", "invalid media type %q, allowed values: %s",
			explicit, joinKinds(entity.Kinds))
	}

	ct := strings.ToLower(strings.TrimSpace(contentType))
	switch {
	case strings.HasPrefix(ct, "image/"):
		return entity.KindImage, nil
	case strings.HasPrefix(ct, "video/"):
		return entity.KindVideo, nil
	case strings.HasPrefix(ct, "audio/"):
		return entity.KindAudio, nil
	default:
		return entity.KindFile, nil
	}
}

// ParseFit validates a configured fit mode. A blank value means "use the default".
func ParseFit(raw entity.Fit) (entity.Fit, error) {
	if raw == "" {
		return "", nil
	}
	fit := entity.Fit(strings.ToLower(string(raw)))
	for _, f := range entity.Fits {
		if fit == f {
			return f, nil
		}
	}
	names := make([]string, len(entity.Fits))
	for i, f := range entity.Fits {
		names[i] = string(f)
	}
	return "", configurationError("parse fit", "invalid fit value %q, allowed values: %s",
		raw, strings.Join(names, ", "))
}

func parseVisibility(raw entity.Visibility) (entity.Visibility, error) {
	switch entity.Visibility(strings.ToLower(string(raw))) {
	case "":
		return "", nil
	case entity.VisibilityPublic:
		return entity.VisibilityPublic, nil
	case entity.VisibilityPrivate:
		return entity.VisibilityPrivate, nil
	}
	return "", configurationError("parse visibility", "invalid visibility %q, allowed values: public, private", raw)
}

func joinKinds(kinds []entity.Kind) string {
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = string(k)
	}
	return strings.Join(names, ", ")
}
