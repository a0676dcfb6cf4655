package dto

// AttachMediaRequest is bound from a multipart form (with a "file" part) or
// from a JSON body carrying a remote URL. In multipart forms metadata is a
// JSON encoded string.
type AttachMediaRequest struct {
	URL      string         `form:"url" json:"url"`
	Name     string         `form:"name" json:"name"`
	Path     string         `form:"path" json:"path"`
	Replace  bool           `form:"replace" json:"replace"`
	KeepName bool           `form:"keep_name" json:"keep_name"`
	Metadata map[string]any `form:"-" json:"metadata"`
}

type CleanupRequestDTO struct {
	Orphaned bool `json:"orphaned"`
	Missing  bool `json:"missing"`
	Unused   bool `json:"unused"`
	All      bool `json:"all"`
	DryRun   bool `json:"dry_run"`
}
