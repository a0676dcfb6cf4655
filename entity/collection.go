package entity

import (
	"fmt"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Kind is the coarse media category of a collection.
type Kind string

const (
	KindImage Kind = "image"
	KindVideo Kind = "video"
	KindAudio Kind = "audio"
	KindFile  Kind = "file"
)

// Kinds lists every recognized kind in declaration order.
var Kinds = []Kind{KindImage, KindVideo, KindAudio, KindFile}

// Fit is the resize policy used when both width and height are configured.
type Fit string

const (
	FitContain Fit = "contain"
	FitMax     Fit = "max"
	FitFill    Fit = "fill"
	FitStretch Fit = "stretch"
	FitCrop    Fit = "crop"
	FitCover   Fit = "cover"
)

var Fits = []Fit{FitContain, FitMax, FitFill, FitStretch, FitCrop, FitCover}

type Visibility string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
)

// ExtensionQuality is one entry of an image collection's output formats.
// A zero Quality means 100.
type ExtensionQuality struct {
	Extension string `json:"extension" yaml:"extension"`
	Quality   int    `json:"quality,omitempty" yaml:"quality,omitempty"`
}

// CollectionConfig declares how files attached to one collection are stored.
type CollectionConfig struct {
	Kind       Kind          `json:"type,omitempty" yaml:"type,omitempty"`
	Disk       string        `json:"disk,omitempty" yaml:"disk,omitempty"`
	Path       string        `json:"path,omitempty" yaml:"path,omitempty"`
	Name       string        `json:"name,omitempty" yaml:"name,omitempty"`
	Visibility Visibility    `json:"visibility,omitempty" yaml:"visibility,omitempty"`
	Width      int           `json:"width,omitempty" yaml:"width,omitempty"`
	Height     int           `json:"height,omitempty" yaml:"height,omitempty"`
	Fit        Fit           `json:"fit,omitempty" yaml:"fit,omitempty"`
	Extensions ExtensionList `json:"extensions,omitempty" yaml:"extensions,omitempty"`
	Extension  string        `json:"extension,omitempty" yaml:"extension,omitempty"`
}

// DefaultDisk is used when a collection does not name a disk.
const DefaultDisk = "public"

func (c CollectionConfig) DiskName() string {
	if c.Disk == "" {
		return DefaultDisk
	}
	return c.Disk
}

// ExtensionList keeps the declaration order of a collection's extensions.
// In YAML it accepts either a mapping of extension to quality or a bare
// sequence of extensions (quality 100).
type ExtensionList []ExtensionQuality

func (l *ExtensionList) UnmarshalYAML(node *yaml.Node) error {
	out := ExtensionList{}
	switch node.Kind {
	case yaml.MappingNode:
		for i := 0; i+1 < len(node.Content); i += 2 {
			key, value := node.Content[i], node.Content[i+1]
			quality := 0
			if value.Value != "" && value.Tag != "!!null" {
				q, err := strconv.Atoi(value.Value)
				if err != nil {
					return fmt.Errorf("quality for %q must be an integer: %w", key.Value, err)
				}
				quality = q
			}
			out = append(out, ExtensionQuality{Extension: key.Value, Quality: quality})
		}
	case yaml.SequenceNode:
		for _, item := range node.Content {
			if item.Kind == yaml.MappingNode {
				var eq ExtensionQuality
				if err := item.Decode(&eq); err != nil {
					return err
				}
				out = append(out, eq)
				continue
			}
			out = append(out, ExtensionQuality{Extension: item.Value})
		}
	case yaml.ScalarNode:
		if node.Value != "" {
			out = append(out, ExtensionQuality{Extension: node.Value})
		}
	default:
		return fmt.Errorf("extensions must be a mapping or a sequence")
	}
	*l = out
	return nil
}
