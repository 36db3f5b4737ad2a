package content

import (
	"bytes"
	"errors"
	"fmt"
	"html"
	"io"
	"mime"
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
	"golang.org/x/net/html/charset"

	"github.com/MrSnakeDoc/marks/internal/domain"
)

// staticBoilerplate is always stripped.
const staticBoilerplate = "script, style, noscript, iframe, aside"

// boilerplatePattern matches tag names, ids and classes of layout chrome.
var boilerplatePattern = regexp.MustCompile(`(?i)footer|header|navigation|nav|sidebar|menu`)

// structural elements are never stripped, whatever their id or class says.
var structural = map[string]bool{"html": true, "head": true, "body": true}

var errBinaryBody = errors.New("body is not text")

// CleanResult is a page with layout chrome removed.
type CleanResult struct {
	Title string
	HTML  string // cleaned <body> inner markup
}

// Cleaner strips boilerplate and extracts a best-effort title.
type Cleaner struct {
	readabilityFallback bool
}

// NewCleaner returns a cleaner that falls back to a readability pass when
// stripping leaves the body without text.
func NewCleaner() *Cleaner {
	return &Cleaner{readabilityFallback: true}
}

// Clean parses raw markup. Malformed markup and unknown content types are
// parsed best-effort; only a binary body produces an *domain.ExtractionError.
func (c *Cleaner) Clean(raw []byte, contentType, pageURL string) (*CleanResult, error) {
	mediaType := "text/html"
	if contentType != "" {
		if mt, _, err := mime.ParseMediaType(contentType); err == nil {
			mediaType = mt
		}
	}

	decoded := decode(raw, contentType)
	if isBinary(decoded) {
		return nil, &domain.ExtractionError{Op: "clean", Err: fmt.Errorf("%w: %s", errBinaryBody, mediaType)}
	}

	if mediaType == "text/plain" || mediaType == "text/markdown" {
		return &CleanResult{
			Title: domain.FallbackTitle,
			HTML:  "<pre>" + html.EscapeString(decoded) + "</pre>",
		}, nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(decoded))
	if err != nil {
		return nil, &domain.ExtractionError{Op: "clean", Err: fmt.Errorf("failed to parse html: %w", err)}
	}

	// Title first: <title> lives in <head> and <h1> may sit in a header block.
	title := extractTitle(doc)

	stripBoilerplate(doc)

	body := doc.Find("body").First()
	cleaned, err := body.Html()
	if err != nil {
		cleaned = ""
	}

	if c.readabilityFallback && strings.TrimSpace(body.Text()) == "" {
		if article := readabilityContent(decoded, pageURL); article != "" {
			cleaned = article
		}
	}

	return &CleanResult{Title: title, HTML: cleaned}, nil
}

// extractTitle applies <title>, then first <h1>, then the literal fallback.
func extractTitle(doc *goquery.Document) string {
	if t := strings.TrimSpace(doc.Find("title").First().Text()); t != "" {
		return t
	}
	if t := strings.TrimSpace(doc.Find("h1").First().Text()); t != "" {
		return t
	}
	return domain.FallbackTitle
}

func stripBoilerplate(doc *goquery.Document) {
	doc.Find(staticBoilerplate).Remove()

	doc.Find("*").FilterFunction(func(_ int, s *goquery.Selection) bool {
		name := goquery.NodeName(s)
		if structural[name] {
			return false
		}
		if boilerplatePattern.MatchString(name) {
			return true
		}
		if id, ok := s.Attr("id"); ok && boilerplatePattern.MatchString(id) {
			return true
		}
		if class, ok := s.Attr("class"); ok && boilerplatePattern.MatchString(class) {
			return true
		}
		return false
	}).Remove()
}

func readabilityContent(documentHTML, pageURL string) string {
	parsedURL, err := url.Parse(pageURL)
	if err != nil {
		return ""
	}
	article, err := readability.FromReader(strings.NewReader(documentHTML), parsedURL)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(article.Content)
}

// decode converts raw bytes to UTF-8 using the declared or sniffed charset.
func decode(raw []byte, contentType string) string {
	r, err := charset.NewReader(bytes.NewReader(raw), contentType)
	if err != nil {
		return string(raw)
	}
	out, err := io.ReadAll(r)
	if err != nil {
		return string(raw)
	}
	return string(out)
}

// isBinary reports a NUL byte or invalid UTF-8 after charset decoding.
func isBinary(s string) bool {
	return strings.IndexByte(s, 0) >= 0 || !utf8.ValidString(s)
}
