package search

import (
	"context"
	"fmt"

	"autodoc/api/internal/store"
)

// FullTextStore is the part of the document store used for fallback search
// and reindexing.
type FullTextStore interface {
	SearchDocuments(ctx context.Context, text string, limit, offset int) ([]store.SearchHit, int, error)
	ListDocuments(ctx context.Context) ([]store.Document, error)
}

// PgFTS implements Searcher using PostgreSQL full-text search.
type PgFTS struct {
	store FullTextStore
}

func NewPgFTS(store FullTextStore) *PgFTS {
	return &PgFTS{store: store}
}

// Healthy always returns true; without Postgres nothing else works either.
func (p *PgFTS) Healthy() bool {
	return true
}

func (p *PgFTS) Search(ctx context.Context, q Query) ([]Result, int, error) {
	hits, total, err := p.store.SearchDocuments(ctx, q.Text, q.Limit, q.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("pgfts: %w", err)
	}
	results := make([]Result, 0, len(hits))
	for _, hit := range hits {
		results = append(results, Result{ID: hit.ID, FormName: hit.FormName, Snippet: hit.Snippet})
	}
	return results, total, nil
}

// LoadAllRecords returns every document as an index record.
func (p *PgFTS) LoadAllRecords(ctx context.Context) ([]DocumentRecord, error) {
	docs, err := p.store.ListDocuments(ctx)
	if err != nil {
		return nil, fmt.Errorf("load documents: %w", err)
	}
	records := make([]DocumentRecord, 0, len(docs))
	for _, doc := range docs {
		records = append(records, NewDocumentRecord(doc))
	}
	return records, nil
}
