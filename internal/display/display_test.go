package display

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plower/internal/domain"
)

func TestPreview_LatestFiveNewestFirst(t *testing.T) {
	var docs []domain.Document
	for i := 1; i <= 7; i++ {
		docs = append(docs, domain.Document{Name: fmt.Sprintf("doc%d", i), Content: "c"})
	}

	got := Preview(docs)

	var names []string
	for _, d := range got {
		names = append(names, d.Name)
	}
	assert.Equal(t, []string{"doc7", "doc6", "doc5", "doc4", "doc3"}, names)
}

func TestPreview_TruncatesLongContent(t *testing.T) {
	long := strings.Repeat("あ", 301)
	got := Preview([]domain.Document{{Name: "a", Content: long}, {Name: "b", Content: "short"}})

	require.Len(t, got, 2)
	assert.Equal(t, "short", got[0].Content)
	assert.Equal(t, strings.Repeat("あ", 300)+"...", got[1].Content)
	assert.Empty(t, Preview(nil))
}

func TestMarkup(t *testing.T) {
	out, err := Markup("一行目\n二行目")
	require.NoError(t, err)
	assert.Contains(t, out, "一行目<br>")

	out, err = Markup("<script>alert(1)</script>")
	require.NoError(t, err)
	assert.NotContains(t, out, "<script>")
}

func TestNotice_PlainWhenColourDisabled(t *testing.T) {
	prev := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = prev })

	var buf bytes.Buffer
	Notice(&buf, Warning, "skipped big.txt\n")
	assert.Equal(t, "skipped big.txt\n", buf.String())
}
