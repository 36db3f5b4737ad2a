package homepage

// Entry is a single bookmark entry in bookmarks.yaml.
type Entry struct {
	Icon        string `yaml:"icon"`
	Abbr        string `yaml:"abbr"`
	Href        string `yaml:"href"`
	Description string `yaml:"description"`
}

// Category maps a category name to its bookmarks. The YAML structure is
// - CategoryName: [ - BookmarkName: [{ icon, abbr, href }] ]
// Each bookmark name maps to a list with a single entry.
type Category map[string][]map[string][]Entry

// BookmarksConfig is the root structure for bookmarks.yaml
type BookmarksConfig []Category

// Draft is one bookmark ready for creation.
type Draft struct {
	URL         string
	Title       string
	Description string
	Tags        []string
}
