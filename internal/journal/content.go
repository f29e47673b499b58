// Package journal holds the pure rules of the diary: what counts as an empty
// entry, how entries are grouped by recency, and how archive filters are read.
package journal

import (
	"fmt"
	"html"
	"regexp"
	"strings"
)

// DefaultTitle is stored when an entry is created with a blank title.
const DefaultTitle = "Untitled"

var tagRe = regexp.MustCompile(`<[^>]*>`)

// StripMarkup removes markup tags and surrounding whitespace.
func StripMarkup(content string) string {
	return strings.TrimSpace(tagRe.ReplaceAllString(content, ""))
}

// IsBlank reports whether an entry with this title and content must not be stored.
func IsBlank(title, content string) bool {
	return strings.TrimSpace(title) == "" && StripMarkup(content) == ""
}

// TitleOrDefault returns title, or DefaultTitle when title is blank.
func TitleOrDefault(title string) string {
	if strings.TrimSpace(title) == "" {
		return DefaultTitle
	}
	return title
}

// AppendParagraph appends text as a new paragraph block.
func AppendParagraph(content, text string) string {
	return content + "<p>" + html.EscapeString(text) + "</p>"
}

// EntryPath is the location of a stored entry.
func EntryPath(id int64) string { return fmt.Sprintf("/entry/%d", id) }

// Views refreshed after any entry mutation.
const (
	ViewHome    = "/"
	ViewArchive = "/entries"
)

// InvalidatedViews lists the cached views a mutation of entry id makes stale.
// Pass withEntry=false for a creation, whose entry view did not exist before.
func InvalidatedViews(id int64, withEntry bool) []string {
	views := []string{ViewHome, ViewArchive}
	if withEntry {
		views = append(views, EntryPath(id))
	}
	return views
}
