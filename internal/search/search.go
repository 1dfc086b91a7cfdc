package search

import (
	"context"
	"strings"

	"autodoc/api/internal/store"
)

// Result is a single search hit returned to the caller.
type Result struct {
	ID         int64  `json:"id"`
	FormName   string `json:"formName"`
	SchemaName string `json:"schemaName,omitempty"`
	Snippet    string `json:"snippet"`
}

type Query struct {
	Text   string
	Limit  int
	Offset int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a full-text search.
type Searcher interface {
	Search(ctx context.Context, q Query) ([]Result, int, error)
	Healthy() bool
}

// Engine is a search backend that also accepts index updates.
type Engine interface {
	Searcher
	IndexDocuments(docs []DocumentRecord) error
	DeleteDocument(id int64) error
}

// DocumentRecord is what gets indexed for a stored document.
type DocumentRecord struct {
	ID         int64  `json:"id"`
	FormName   string `json:"formName"`
	SchemaName string `json:"schemaName"`
	Content    string `json:"content"`
}

// NewDocumentRecord flattens the extracted key/value pairs into one
// searchable text block.
func NewDocumentRecord(doc store.Document) DocumentRecord {
	var content strings.Builder
	for _, pair := range doc.Data.ExtractedPairs() {
		if content.Len() > 0 {
			content.WriteString("\n")
		}
		content.WriteString(pair.Key)
		content.WriteString(": ")
		content.WriteString(pair.Value)
	}
	return DocumentRecord{
		ID:         doc.ID,
		FormName:   doc.FormName,
		SchemaName: doc.Data.SchemaName(),
		Content:    content.String(),
	}
}
