package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
)

// Entry is one crawlable tag from the reference file.
type Entry struct {
	Name     string `json:"name"`
	Link     string `json:"link"`
	Category string `json:"-"`
}

// Catalog holds the reference tag data loaded at startup. It is built once
// and passed explicitly; nothing mutates it after Load returns.
type Catalog struct {
	entries    []Entry
	categories map[string]string // link -> category
}

// Load reads the reference file mapping category names to tag lists:
//
//	{"Exchange": [{"name": "Binance", "link": "binance"}, ...], ...}
//
// A missing or unparsable file is a fatal startup condition for the caller.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read tags file %s: %w", path, err)
	}

	var byCategory map[string][]Entry
	if err := json.Unmarshal(data, &byCategory); err != nil {
		return nil, fmt.Errorf("failed to parse tags file %s: %w", path, err)
	}

	cat := &Catalog{
		categories: make(map[string]string),
	}

	// Walk categories in a stable order so the crawl list is deterministic
	// across runs; the progress file keys off tag links.
	categoryNames := make([]string, 0, len(byCategory))
	for name := range byCategory {
		categoryNames = append(categoryNames, name)
	}
	sort.Strings(categoryNames)

	for _, categoryName := range categoryNames {
		for _, entry := range byCategory[categoryName] {
			if entry.Link == "" {
				continue
			}
			entry.Category = categoryName
			cat.entries = append(cat.entries, entry)
			cat.categories[entry.Link] = categoryName
		}
	}

	return cat, nil
}

// Entries returns the ordered crawl list of tags.
func (c *Catalog) Entries() []Entry {
	return c.entries
}

// CategoryFor resolves a tag link to its reference-file category.
func (c *Catalog) CategoryFor(link string) (string, bool) {
	category, ok := c.categories[link]
	return category, ok
}

// Categories returns the link -> category lookup map.
func (c *Catalog) Categories() map[string]string {
	return c.categories
}

func (c *Catalog) Len() int {
	return len(c.entries)
}
