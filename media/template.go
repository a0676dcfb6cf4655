package media

import (
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"github.com/oklog/ulid/v2"
)

const (
	DefaultNameTemplate = "{ulid}"
	DefaultPathTemplate = "{model}/{collection}"
)

// TokenSource produces the random tokens a template may reference.
type TokenSource interface {
	ULID() string
	UUID() string
}

type randomTokens struct{}

func (randomTokens) ULID() string { return ulid.Make().String() }
func (randomTokens) UUID() string { return uuid.NewString() }

// RandomTokens draws time-sortable ULIDs and random v4 UUIDs.
var RandomTokens TokenSource = randomTokens{}

// Template expands placeholders for one owner type and collection.
//
// Recognized tokens: {ulid}, {uuid}, {model} (alias {owner}) and {collection}.
// Each random token is drawn once per expansion, so repeated occurrences in
// one pattern share the same value.
type Template struct {
	OwnerType  string
	Collection string
	Tokens     TokenSource
}

func (t Template) Expand(pattern string) string {
	tokens := t.Tokens
	if tokens == nil {
		tokens = RandomTokens
	}

	out := strings.Trim(strings.TrimSpace(pattern), "/")
	if strings.Contains(out, "{ulid}") {
		out = strings.ReplaceAll(out, "{ulid}", tokens.ULID())
	}
	if strings.Contains(out, "{uuid}") {
		out = strings.ReplaceAll(out, "{uuid}", tokens.UUID())
	}
	owner := strings.ToLower(t.OwnerType)
	out = strings.ReplaceAll(out, "{model}", owner)
	out = strings.ReplaceAll(out, "{owner}", owner)
	out = strings.ReplaceAll(out, "{collection}", t.Collection)
	return strings.Trim(out, "/")
}

// Name expands pattern, falling back to DefaultNameTemplate when blank.
func (t Template) Name(pattern string) string {
	if strings.TrimSpace(pattern) == "" {
		pattern = DefaultNameTemplate
	}
	return t.Expand(pattern)
}

// Path expands pattern, falling back to DefaultPathTemplate when blank.
func (t Template) Path(pattern string) string {
	if strings.TrimSpace(pattern) == "" {
		pattern = DefaultPathTemplate
	}
	return t.Expand(pattern)
}

// BuildRelativePath joins dir, name and ext into a clean storage key that
// never starts or ends with a slash and never climbs above the disk root.
func BuildRelativePath(dir, name, ext string) string {
	return strings.TrimLeft(path.Clean("/"+dir+"/"+name+"."+ext), "/")
}

// checkKeyTemplate rejects templates with a ".." segment.
func checkKeyTemplate(field, pattern string) error {
	for _, segment := range strings.Split(pattern, "/") {
		if strings.TrimSpace(segment) == ".." {
			return configurationError("to collection", "%s template %q must not contain a .. segment", field, pattern)
		}
	}
	return nil
}

func slugify(name string) string {
	return slug.Make(name)
}
