// Package mediatype classifies filenames into coarse media categories.
package mediatype

import (
	"path/filepath"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Type is a closed set of media categories.
type Type string

const (
	Video   Type = "video"
	Text    Type = "text"
	Ebook   Type = "ebook"
	Archive Type = "archive"
	// DiskImage is stored as "image" to stay compatible with existing history documents.
	DiskImage Type = "image"
	Photo     Type = "photo"
	Audio     Type = "audio"
	Other     Type = "other"
)

// Default is the generic hint producers pass when they have no better idea.
const Default = Video

var extensions = map[Type][]string{
	Video:     {"mp4", "mkv", "avi", "wmv", "mov", "flv", "mpg", "mpeg", "m4v", "3gp"},
	Text:      {"nfo", "txt", "md", "log", "srt", "sub"},
	Ebook:     {"epub", "cbz", "cbr", "pdf", "mobi", "azw3"},
	Archive:   {"zip", "rar", "7z", "tar", "gz", "bz2", "xz"},
	DiskImage: {"iso", "img", "bin", "cue", "mdf"},
	Photo:     {"jpg", "jpeg", "png", "gif", "webp", "bmp", "tiff"},
	Audio:     {"mp3", "flac", "wav", "m4a", "ogg", "opus", "wma", "aac"},
}

var byExtension = func() map[string]Type {
	index := make(map[string]Type)
	for kind, exts := range extensions {
		for _, ext := range exts {
			index[ext] = kind
		}
	}
	return index
}()

var icons = map[Type]string{
	Video:     "🎥",
	Text:      "📄",
	Ebook:     "📚",
	Archive:   "📦",
	DiskImage: "💿",
	Photo:     "🖼️",
	Audio:     "🎵",
	Other:     "❓",
}

// Classify maps a filename to its media category by extension.
func Classify(filename string) Type {
	ext := strings.TrimPrefix(filepath.Ext(strings.TrimSpace(filename)), ".")
	if ext == "" {
		return Other
	}
	if kind, ok := byExtension[strings.ToLower(ext)]; ok {
		return kind
	}
	return Other
}

// Parse converts a stored string into a Type, mapping unknown values to Other.
func Parse(value string) Type {
	t := Type(strings.ToLower(strings.TrimSpace(value)))
	if _, ok := icons[t]; ok {
		return t
	}
	return Other
}

// IsGeneric reports whether t carries no information beyond the default hint.
func IsGeneric(t Type) bool {
	return t == "" || t == Default
}

// Refine returns hint unless it is generic, in which case the filename decides.
func Refine(hint Type, filename string) Type {
	if IsGeneric(hint) {
		return Classify(filename)
	}
	return hint
}

// Label returns a display label such as "Ebook".
func Label(t Type) string {
	if t == "" {
		t = Other
	}
	return cases.Title(language.English).String(string(t))
}

// Icon returns the emoji shown next to items of type t.
func Icon(t Type) string {
	if icon, ok := icons[t]; ok {
		return icon
	}
	return icons[Other]
}
