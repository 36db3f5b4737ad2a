package homepage

import (
	"errors"
	"sort"
	"strings"

	"github.com/MrSnakeDoc/marks/internal/domain"
)

// ErrNoBookmarks is returned when a config holds no importable entry.
var ErrNoBookmarks = errors.New("no valid bookmarks found in config")

// Skipped describes an entry the mapper dropped.
type Skipped struct {
	Category string
	Name     string
	Reason   string
}

// Mapper converts Homepage bookmark config to bookmark drafts.
type Mapper struct{}

// NewMapper creates a new bookmark mapper
func NewMapper() *Mapper {
	return &Mapper{}
}

// Map returns one draft per distinct valid href, in file order. The title
// is the bookmark name (abbr when the name is blank) and the category
// becomes the single tag. Entries without a usable http(s) href are
// reported in skipped.
func (m *Mapper) Map(config BookmarksConfig) (drafts []Draft, skipped []Skipped, err error) {
	seen := make(map[string]struct{})

	for _, category := range config {
		for _, categoryName := range sortedKeys(category) {
			for _, bookmarkMap := range category[categoryName] {
				for _, name := range sortedKeys(bookmarkMap) {
					entries := bookmarkMap[name]
					if len(entries) == 0 {
						skipped = append(skipped, Skipped{categoryName, name, "no entry"})
						continue
					}
					entry := entries[0] // Take the first (and only) entry

					href := strings.TrimSpace(entry.Href)
					if err := domain.ValidateURL(href); err != nil {
						skipped = append(skipped, Skipped{categoryName, name, err.Error()})
						continue
					}
					if _, dup := seen[href]; dup {
						skipped = append(skipped, Skipped{categoryName, name, "duplicate href"})
						continue
					}
					seen[href] = struct{}{}

					title := strings.TrimSpace(name)
					if title == "" {
						title = strings.TrimSpace(entry.Abbr)
					}

					drafts = append(drafts, Draft{
						URL:         href,
						Title:       title,
						Description: strings.TrimSpace(entry.Description),
						Tags:        []string{categoryName},
					})
				}
			}
		}
	}

	if len(drafts) == 0 {
		return nil, skipped, ErrNoBookmarks
	}
	return drafts, skipped, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
