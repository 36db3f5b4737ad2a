package homepage

import (
	"errors"
	"testing"
)

func TestMapperMap(t *testing.T) {
	config := BookmarksConfig{
		{
			"Developer": []map[string][]Entry{
				{"Github": {{Abbr: "GH", Href: "https://github.com/", Description: " code "}}},
				{"Go Docs": {{Abbr: "GO", Href: "https://go.dev/doc/"}}},
			},
		},
		{
			"Social": []map[string][]Entry{
				{"Reddit": {{Abbr: "RE", Href: "https://reddit.com/"}}},
				{"Mirror": {{Abbr: "GH", Href: "https://github.com/"}}},
				{"Broken": {{Abbr: "BR", Href: ""}}},
				{"Mail": {{Href: "mailto:me@example.com"}}},
				{"Empty": {}},
			},
		},
	}

	drafts, skipped, err := NewMapper().Map(config)
	if err != nil {
		t.Fatalf("Map() error = %v", err)
	}

	if len(drafts) != 3 {
		t.Fatalf("Map() returned %d drafts, want 3: %+v", len(drafts), drafts)
	}

	first := drafts[0]
	if first.URL != "https://github.com/" || first.Title != "Github" || first.Description != "code" {
		t.Errorf("unexpected first draft: %+v", first)
	}
	if len(first.Tags) != 1 || first.Tags[0] != "Developer" {
		t.Errorf("category should be the only tag, got %v", first.Tags)
	}
	if drafts[2].URL != "https://reddit.com/" || drafts[2].Tags[0] != "Social" {
		t.Errorf("unexpected third draft: %+v", drafts[2])
	}

	if len(skipped) != 4 {
		t.Errorf("expected 4 skipped entries, got %d: %+v", len(skipped), skipped)
	}
}

func TestMapperMapEmptyConfig(t *testing.T) {
	_, _, err := NewMapper().Map(BookmarksConfig{})
	if !errors.Is(err, ErrNoBookmarks) {
		t.Errorf("expected ErrNoBookmarks, got %v", err)
	}
}

func TestMapperMapFallsBackToAbbr(t *testing.T) {
	config := BookmarksConfig{
		{"Tools": []map[string][]Entry{{"  ": {{Abbr: "TL", Href: "https://tools.example"}}}}},
	}

	drafts, _, err := NewMapper().Map(config)
	if err != nil {
		t.Fatalf("Map() error = %v", err)
	}
	if drafts[0].Title != "TL" {
		t.Errorf("Title = %q, want TL", drafts[0].Title)
	}
}
