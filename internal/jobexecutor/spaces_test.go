package jobexecutor

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifySpaces_PhotoExtensions(t *testing.T) {
	photos := photoExtensionSet([]string{"jpg", "jpeg", "png", "tif", "tiff"})

	tests := []struct {
		name string
		want []string
	}{
		{"vacation.jpg", []string{"drive", "photos"}},
		{"vacation.JPG", []string{"drive", "photos"}},
		{"scan.TIFF", []string{"drive", "photos"}},
		{"notes.txt", []string{"drive"}},
		{"noextension", []string{"drive"}},
		{"archive.jpg.zip", []string{"drive"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classifySpaces(tt.name, photos))
		})
	}
}

func TestPhotoExtensionSet_NormalizesDotsAndCase(t *testing.T) {
	set := photoExtensionSet([]string{".JPG", "Png"})
	_, hasJPG := set["jpg"]
	_, hasPNG := set["png"]
	assert.True(t, hasJPG)
	assert.True(t, hasPNG)
}
