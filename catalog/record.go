package catalog

import (
	"strings"
)

// Record is one bibliographic record returned by a catalog search.
// Identifiers, Languages, Types and Rights hold distinct values in the order
// they were first seen; Authors keeps every creator in document order.
type Record struct {
	Identifiers []string `json:"identifiers,omitempty"`
	ISBN        string   `json:"isbn"`
	Title       string   `json:"title"`
	Authors     []string `json:"authors,omitempty"`
	Publisher   string   `json:"publisher,omitempty"`
	Date        string   `json:"date,omitempty"`
	Format      string   `json:"format,omitempty"`
	Languages   []string `json:"languages,omitempty"`
	Types       []string `json:"types,omitempty"`
	Rights      []string `json:"rights,omitempty"`
}

// String renders the labeled block shown to users. Each author is followed
// by a semicolon.
func (r Record) String() string {
	var sb strings.Builder
	sb.WriteString("Title: ")
	sb.WriteString(r.Title)
	sb.WriteString("\nAuthors: ")
	for _, a := range r.Authors {
		sb.WriteString(a)
		sb.WriteString(";")
	}
	sb.WriteString("\nISBN: ")
	sb.WriteString(r.ISBN)
	sb.WriteString("\nPublisher: ")
	sb.WriteString(r.Publisher)
	sb.WriteString("\nDate: ")
	sb.WriteString(r.Date)
	sb.WriteString("\n")
	return sb.String()
}

// FormatRecords renders records as consecutive blocks separated by a blank line.
func FormatRecords(records []Record) string {
	blocks := make([]string, 0, len(records))
	for _, r := range records {
		blocks = append(blocks, r.String())
	}
	return strings.Join(blocks, "\n")
}

func appendUnique(set []string, v string) []string {
	for _, s := range set {
		if s == v {
			return set
		}
	}
	return append(set, v)
}
