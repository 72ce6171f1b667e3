package util

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"mediavault/internal/model"
)

func TestCategorize(t *testing.T) {
	cases := []struct {
		name     string
		kind     model.FileKind
		expected string
	}{
		{"report.pdf", model.FileKindDocument, CategoryPDFs},
		{"REPORT.PDF", model.FileKindDocument, CategoryPDFs},
		{"notes.txt", model.FileKindDocument, CategoryDocuments},
		{"holiday.jpg", model.FileKindPhoto, CategoryPhotos},
		{"clip.mp4", model.FileKindVideo, CategoryVideos},
		{"blob.bin", model.FileKindOther, CategoryOthers},
		{"", model.FileKind("unknown"), CategoryOthers},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.expected, Categorize(tc.name, tc.kind), "%s/%s", tc.name, tc.kind)
	}
}
