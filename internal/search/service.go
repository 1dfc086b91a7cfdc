package search

import (
	"context"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"autodoc/api/internal/store"
)

// Service is the facade that tries the engine first and falls back to PG FTS.
// Engine writes go through one worker so they reach the engine in the order
// they were issued.
type Service struct {
	engine Engine
	pgfts  *PgFTS
	log    zerolog.Logger

	start sync.Once
	jobs  chan indexJob
	wg    sync.WaitGroup
}

type indexJob struct {
	upsert  *DocumentRecord
	remove  int64
	reindex context.Context
}

const indexQueueSize = 256

// NewService creates a search service. engine may be nil when Meilisearch
// is not configured.
func NewService(engine Engine, pgfts *PgFTS, logger zerolog.Logger) *Service {
	return &Service{engine: engine, pgfts: pgfts, log: logger}
}

func (s *Service) Search(ctx context.Context, q Query) Response {
	q.Text = strings.TrimSpace(q.Text)
	if q.Text == "" {
		return Response{Results: []Result{}, Total: 0, Query: q.Text}
	}
	if s.engineReady() {
		results, total, err := s.engine.Search(ctx, q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text}
		}
		s.log.Warn().Err(err).Msg("search.engine.fallback")
	}

	results, total, err := s.pgfts.Search(ctx, q)
	if err != nil {
		s.log.Error().Err(err).Msg("search.pgfts.failed")
		return Response{Results: []Result{}, Total: 0, Query: q.Text}
	}
	return Response{Results: nonNil(results), Total: total, Query: q.Text}
}

// IndexDocument queues doc for the engine.
func (s *Service) IndexDocument(doc store.Document) {
	if !s.engineReady() {
		return
	}
	record := NewDocumentRecord(doc)
	s.enqueue(indexJob{upsert: &record})
}

// DeleteDocument queues removal of a document from the engine.
func (s *Service) DeleteDocument(id int64) {
	if !s.engineReady() {
		return
	}
	s.enqueue(indexJob{remove: id})
}

// StartReindex queues a full reindex behind any pending updates.
func (s *Service) StartReindex(ctx context.Context) {
	if !s.engineReady() || s.pgfts == nil {
		return
	}
	s.enqueue(indexJob{reindex: ctx})
}

// ReindexAllFromPG pushes every stored document to the engine.
func (s *Service) ReindexAllFromPG(ctx context.Context) {
	if !s.engineReady() || s.pgfts == nil {
		return
	}
	records, err := s.pgfts.LoadAllRecords(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("search.reindex.load_failed")
		return
	}
	if err := s.engine.IndexDocuments(records); err != nil {
		s.log.Error().Err(err).Msg("search.reindex.failed")
		return
	}
	s.log.Info().Int("documents", len(records)).Msg("search.reindex.ok")
}

// Wait blocks until queued engine writes have finished.
func (s *Service) Wait() {
	s.wg.Wait()
}

func (s *Service) enqueue(job indexJob) {
	s.start.Do(func() {
		s.jobs = make(chan indexJob, indexQueueSize)
		go s.work()
	})
	s.wg.Add(1)
	s.jobs <- job
}

func (s *Service) work() {
	for job := range s.jobs {
		s.apply(job)
		s.wg.Done()
	}
}

func (s *Service) apply(job indexJob) {
	switch {
	case job.reindex != nil:
		s.ReindexAllFromPG(job.reindex)
	case job.upsert != nil:
		if err := s.engine.IndexDocuments([]DocumentRecord{*job.upsert}); err != nil {
			s.log.Warn().Err(err).Int64("document_id", job.upsert.ID).Msg("search.index.failed")
		}
	default:
		if err := s.engine.DeleteDocument(job.remove); err != nil {
			s.log.Warn().Err(err).Int64("document_id", job.remove).Msg("search.delete.failed")
		}
	}
}

func (s *Service) engineReady() bool {
	return s.engine != nil && s.engine.Healthy()
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}
