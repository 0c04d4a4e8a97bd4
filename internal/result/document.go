package result

import (
	"fmt"
	"strings"

	"github.com/hpungsan/codyarch/internal/budget"
)

// Kind identifies which fetch produced a result.
type Kind string

const (
	KindWeb Kind = "web"
	KindPDF Kind = "pdf"
)

// Kinds lists all result kinds in display order.
var Kinds = []Kind{KindWeb, KindPDF}

// ParseKind validates a kind name.
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case KindWeb:
		return KindWeb, nil
	case KindPDF:
		return KindPDF, nil
	}
	return "", fmt.Errorf("unknown result kind %q (want web or pdf)", s)
}

// DirName is the per-kind directory under the hidden project directory.
func (k Kind) DirName() string {
	return string(k) + "results"
}

// SearchResult is the raw text returned for one query, before persistence.
type SearchResult struct {
	Query   string
	RawText string
}

// Empty reports whether the fetch produced no usable text.
func (s SearchResult) Empty() bool {
	return strings.TrimSpace(s.RawText) == ""
}

// Document is a persisted, budgeted result.
type Document struct {
	Kind Kind `json:"kind"`

	// Query is the search text or URL the result was fetched for
	Query string `json:"query"`

	// Name is the sanitized file stem derived from Query
	Name string `json:"name"`

	// Path is the absolute location of the written file
	Path string `json:"path"`

	// Content is the prefixed, truncated text written to Path
	Content string `json:"-"`

	// Chars is the rune count of Content
	Chars int `json:"chars"`

	// Size is Content measured under Limit.Kind
	Size int `json:"size"`

	Limit budget.Limit `json:"limit"`

	// Iterations is how many truncation steps were needed
	Iterations int `json:"iterations"`
}
