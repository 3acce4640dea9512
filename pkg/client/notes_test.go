package client

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNoteFor(t *testing.T) {
	for _, class := range []string{"Normal", "Viral Pneumonia", "Lung_Opacity"} {
		note, ok := NoteFor(class)
		assert.True(t, ok, class)
		assert.NotEmpty(t, note.About, class)
		assert.NotEmpty(t, note.Signs, class)
		assert.NotEmpty(t, note.ModelInsights, class)
		assert.NotEmpty(t, note.VisualPatterns, class)
	}

	_, ok := NoteFor("Bacterial Pneumonia")
	assert.False(t, ok)
}
