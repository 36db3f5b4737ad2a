package content

import (
	"errors"
	"regexp"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"

	"github.com/MrSnakeDoc/marks/internal/domain"
)

var (
	excessiveLinesRe = regexp.MustCompile(`\n{3,}`)
	trailingSpaceRe  = regexp.MustCompile(`[ \t]+\n`)

	errEmptyDocument = errors.New("document has no text content")
)

// Converter turns cleaned markup into normalized markdown.
type Converter struct {
	converter *md.Converter
}

// NewConverter creates a converter with GitHub flavored output (tables, strikethrough, task lists).
func NewConverter() *Converter {
	converter := md.NewConverter("", true, nil)
	converter.Use(plugin.GitHubFlavored())

	return &Converter{converter: converter}
}

// Convert returns markdown with runs of blank lines collapsed to one and the
// ends trimmed. Conversion failures and empty output are extraction errors.
func (c *Converter) Convert(cleanedHTML string) (string, error) {
	markdown, err := c.converter.ConvertString(cleanedHTML)
	if err != nil {
		return "", domain.NewConversionError(err)
	}

	markdown = Normalize(markdown)
	if markdown == "" {
		return "", domain.NewConversionError(errEmptyDocument)
	}
	return markdown, nil
}

// Normalize collapses 3+ newlines to a single blank line and trims the text.
func Normalize(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = trailingSpaceRe.ReplaceAllString(text, "\n")
	text = excessiveLinesRe.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}
