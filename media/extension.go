package media

import (
	"strings"

	"github.com/tnqbao/gau-media-service/entity"
)

var (
	imageExtensions = []string{"jpeg", "jpg", "png", "webp", "avif", "gif", "svg", "bmp", "tiff"}
	videoExtensions = []string{"mp4", "webm", "ogg", "avi", "mov", "wmv", "flv", "mkv", "m4v"}
	audioExtensions = []string{"mp3", "wav", "ogg", "m4a", "aac", "flac", "wma", "opus"}
)

var extensionRegistry = map[entity.Kind]map[string]struct{}{
	entity.KindImage: toSet(imageExtensions),
	entity.KindVideo: toSet(videoExtensions),
	entity.KindAudio: toSet(audioExtensions),
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}

// NormalizeExtension lower-cases raw and strips one leading dot.
func NormalizeExtension(raw string) string {
	ext := strings.ToLower(strings.TrimSpace(raw))
	return strings.TrimPrefix(ext, ".")
}

// ValidExtension reports whether ext belongs to the registry of kind.
// Every extension is valid for the generic file kind.
func ValidExtension(ext string, kind entity.Kind) bool {
	if kind == entity.KindFile {
		return true
	}
	set, ok := extensionRegistry[kind]
	if !ok {
		return false
	}
	_, ok = set[NormalizeExtension(ext)]
	return ok
}

// Extensions returns the registered extensions of kind in declaration order.
func Extensions(kind entity.Kind) []string {
	var src []string
	switch kind {
	case entity.KindImage:
		src = imageExtensions
	case entity.KindVideo:
		src = videoExtensions
	case entity.KindAudio:
		src = audioExtensions
	default:
		return nil
	}
	out := make([]string, len(src))
	copy(out, src)
	return out
}
