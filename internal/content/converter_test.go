package content

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/marks/internal/domain"
)

func TestConverterConvert(t *testing.T) {
	out, err := NewConverter().Convert(`<h2>Title</h2><p>First paragraph.</p><br><br><br><br><p>Second <strong>bold</strong>.</p>`)
	require.NoError(t, err)

	assert.Contains(t, out, "## Title")
	assert.Contains(t, out, "**bold**")
	assert.NotContains(t, out, "\n\n\n")
	assert.Equal(t, out, Normalize(out), "output must already be normalized")
}

func TestConverterEmptyDocument(t *testing.T) {
	for _, in := range []string{"", "   ", "<div>   </div>", "<p>\n\n</p>"} {
		_, err := NewConverter().Convert(in)
		require.Error(t, err, "input %q", in)
		assert.Equal(t, domain.KindExtraction, domain.KindOf(err))
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"collapse newlines", "a\n\n\n\nb", "a\n\nb"},
		{"keep single blank line", "a\n\nb", "a\n\nb"},
		{"trim ends", "\n\n  a  \n\n", "a"},
		{"whitespace only lines", "a\n  \n\t\n \nb", "a\n\nb"},
		{"crlf", "a\r\n\r\n\r\nb", "a\n\nb"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}
