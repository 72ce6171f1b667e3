package util

import (
	"path/filepath"
	"strings"

	"mediavault/internal/model"
)

const (
	CategoryPDFs      = "PDFs"
	CategoryDocuments = "Documents"
	CategoryPhotos    = "Photos"
	CategoryVideos    = "Videos"
	CategoryOthers    = "Others"
)

// Categorize maps an upload to its display bucket from the media kind and,
// for documents, the file extension.
func Categorize(name string, kind model.FileKind) string {
	switch kind {
	case model.FileKindPhoto:
		return CategoryPhotos
	case model.FileKindVideo:
		return CategoryVideos
	case model.FileKindDocument:
		if strings.EqualFold(filepath.Ext(name), ".pdf") {
			return CategoryPDFs
		}
		return CategoryDocuments
	default:
		return CategoryOthers
	}
}
