package models

import (
	"path/filepath"
	"strings"
	"unicode/utf8"
)

const MaxTitleLength = 255

// Extension returns the last extension of the original filename without the
// dot, or "" for names without one (including dotfiles such as ".env").
func (f *DocumentFile) Extension() string {
	return FileExtension(f.OriginalFilename)
}

func FileExtension(filename string) string {
	base := filepath.Base(filename)
	if strings.HasPrefix(base, ".") && strings.Count(base, ".") == 1 {
		return ""
	}
	return strings.TrimPrefix(filepath.Ext(base), ".")
}

// TitleFromFilename derives a document title from a file name: the base name
// with its last extension removed. Names that would become empty (".env")
// are kept whole.
func TitleFromFilename(filename string) string {
	base := filepath.Base(strings.ReplaceAll(filename, "\\", "/"))
	title := strings.TrimSpace(strings.TrimSuffix(base, filepath.Ext(base)))
	if title == "" {
		title = strings.TrimSpace(base)
	}
	return TruncateTitle(title)
}

func TruncateTitle(title string) string {
	if utf8.RuneCountInString(title) <= MaxTitleLength {
		return title
	}
	return string([]rune(title)[:MaxTitleLength])
}
