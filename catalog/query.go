// Package catalog searches a remote union catalog over SRU and turns the
// Dublin Core records it returns into typed bibliographic records.
package catalog

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

const (
	// DefaultBaseURL is the BnF SRU endpoint; the CQL query is appended to it.
	DefaultBaseURL = "https://catalogue.bnf.fr/api/SRU?version=1.2&operation=searchRetrieve&query="
	// DefaultPageSize is the number of records requested per search.
	DefaultPageSize = 500

	recordSchema = "dublincore"
)

// Category selects the record family searched by the remote catalog.
type Category int

const (
	CategoryBib Category = iota + 1 // bibliographic records
	CategoryAut                     // authority records
)

// Categories lists the searchable categories in lookup priority order.
var Categories = []Category{CategoryBib, CategoryAut}

func (c Category) String() string {
	switch c {
	case CategoryBib:
		return "bib"
	case CategoryAut:
		return "aut"
	default:
		return ""
	}
}

// ParseCategory maps "bib" or "aut" to a Category.
func ParseCategory(s string) (Category, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "bib":
		return CategoryBib, nil
	case "aut":
		return CategoryAut, nil
	default:
		return 0, fmt.Errorf("%w: unknown record category %q", ErrInvalidArgument, s)
	}
}

// Field is the indexed field a search is run against.
type Field int

const (
	FieldAuthor Field = iota + 1
	FieldISBN
	FieldTitle
	FieldDate
)

func (f Field) String() string {
	switch f {
	case FieldAuthor:
		return "author"
	case FieldISBN:
		return "isbn"
	case FieldTitle:
		return "title"
	case FieldDate:
		return "date"
	default:
		return ""
	}
}

// operator returns the CQL relation used for the field. ISBNs must match as
// an adjacent phrase, everything else matches on all tokens.
func (f Field) operator() string {
	if f == FieldISBN {
		return "adj"
	}
	return "all"
}

// ParseField maps a search type such as "title" to a Field. Matching is
// case-insensitive.
func ParseField(s string) (Field, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "author":
		return FieldAuthor, nil
	case "isbn":
		return FieldISBN, nil
	case "title":
		return FieldTitle, nil
	case "date":
		return FieldDate, nil
	default:
		return 0, fmt.Errorf("%w: unknown search field %q", ErrInvalidArgument, s)
	}
}

// QueryBuilder renders SRU search URLs.
type QueryBuilder struct {
	baseURL  string
	pageSize int
}

// NewQueryBuilder returns a builder for baseURL. Zero values fall back to
// DefaultBaseURL and DefaultPageSize.
func NewQueryBuilder(baseURL string, pageSize int) QueryBuilder {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return QueryBuilder{baseURL: baseURL, pageSize: pageSize}
}

// Expression returns the raw CQL expression, e.g. (bib.title all "Les Misérables").
func Expression(category Category, field Field, value string) (string, error) {
	if category.String() == "" {
		return "", fmt.Errorf("%w: unknown record category %d", ErrInvalidArgument, category)
	}
	if field.String() == "" {
		return "", fmt.Errorf("%w: unknown search field %d", ErrInvalidArgument, field)
	}
	if strings.TrimSpace(value) == "" {
		return "", fmt.Errorf("%w: empty %s value", ErrInvalidArgument, field)
	}
	return fmt.Sprintf("(%s.%s %s %q)", category, field, field.operator(), value), nil
}

// Build returns the full request URL: base endpoint, percent-encoded CQL
// expression, then the schema and first-page parameters.
func (b QueryBuilder) Build(category Category, field Field, value string) (string, error) {
	expr, err := Expression(category, field, value)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString(b.baseURL)
	sb.WriteString(url.QueryEscape(expr))
	sb.WriteString("&recordSchema=")
	sb.WriteString(recordSchema)
	sb.WriteString("&maximumRecords=")
	sb.WriteString(strconv.Itoa(b.pageSize))
	sb.WriteString("&startRecord=1")
	return sb.String(), nil
}
