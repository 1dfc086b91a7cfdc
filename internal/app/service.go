package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"autodoc/api/internal/auth"
	"autodoc/api/internal/blob"
	"autodoc/api/internal/config"
	"autodoc/api/internal/docdata"
	"autodoc/api/internal/export"
	"autodoc/api/internal/journal"
	"autodoc/api/internal/ocr"
	"autodoc/api/internal/search"
	"autodoc/api/internal/store"
	"autodoc/api/internal/untrusted"
)

type dataStore interface {
	CreateDocument(context.Context, string, docdata.Object) (store.Document, error)
	ListDocuments(context.Context) ([]store.Document, error)
	ListDocumentsByFormName(context.Context, string) ([]store.Document, error)
	GetDocument(context.Context, int64) (store.Document, error)
	UpdateDocument(context.Context, int64, string, docdata.Object) (store.Document, error)
	DeleteDocument(context.Context, int64) error
	SchemaNames(context.Context) ([]string, error)
	Ping(ctx context.Context) error
}

type accountService interface {
	Register(ctx context.Context, username, password string) (store.User, error)
	Authenticate(ctx context.Context, username, password string) (store.User, error)
}

type textExtractor interface {
	ExtractText(ctx context.Context, r io.Reader) (string, error)
}

type structurer interface {
	Structure(ctx context.Context, rawText string) (string, error)
}

type queryGenerator interface {
	GenerateSQL(ctx context.Context, question string, schemaNames []string) (string, error)
}

type queryRunner interface {
	Run(ctx context.Context, question, statement string) ([]untrusted.Row, error)
}

type indexer interface {
	Search(ctx context.Context, q search.Query) search.Response
	IndexDocument(doc store.Document)
	DeleteDocument(id int64)
}

type archiver interface {
	Put(ctx context.Context, fileName, contentType string, data []byte) (blob.Stored, error)
}

type queryLog interface {
	Recent(ctx context.Context, limit int) ([]journal.Entry, error)
	Ping(ctx context.Context) error
}

type exporter interface {
	DocumentPDF(ctx context.Context, doc store.Document) (*export.Result, error)
	Catalog(docs []store.Document) (*export.Result, error)
}

// Dependencies are the collaborators of the service. Search, Archive and
// Journal are optional.
type Dependencies struct {
	Store     dataStore
	Accounts  accountService
	Tokens    *auth.Issuer
	OCR       textExtractor
	Structure structurer
	Query     queryGenerator
	Executor  queryRunner
	Search    indexer
	Archive   archiver
	Journal   queryLog
	Export    exporter
}

type Service struct {
	cfg       config.Config
	store     dataStore
	accounts  accountService
	tokens    *auth.Issuer
	ocr       textExtractor
	structure structurer
	query     queryGenerator
	executor  queryRunner
	search    indexer
	archive   archiver
	journal   queryLog
	export    exporter
	log       zerolog.Logger
}

func New(cfg config.Config, deps Dependencies, logger zerolog.Logger) *Service {
	if deps.Export == nil {
		deps.Export = export.NewService(nil)
	}
	return &Service{
		cfg:       cfg,
		store:     deps.Store,
		accounts:  deps.Accounts,
		tokens:    deps.Tokens,
		ocr:       deps.OCR,
		structure: deps.Structure,
		query:     deps.Query,
		executor:  deps.Executor,
		search:    deps.Search,
		archive:   deps.Archive,
		journal:   deps.Journal,
		export:    deps.Export,
		log:       logger,
	}
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// Register creates an account. The secret is hashed server-side whatever the
// client called the field.
func (s *Service) Register(ctx context.Context, username, secret string) error {
	user, err := s.accounts.Register(ctx, username, secret)
	if err != nil {
		return err
	}
	s.log.Info().Str("username", user.Username).Str("role", user.Role).Msg("auth.register.ok")
	return nil
}

type LoginResult struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"-"`
}

func (s *Service) Login(ctx context.Context, username, password string) (LoginResult, error) {
	user, err := s.accounts.Authenticate(ctx, username, password)
	if err != nil {
		return LoginResult{}, err
	}
	token, expiresAt, err := s.tokens.Issue(user.Username, user.Role)
	if err != nil {
		return LoginResult{}, fmt.Errorf("issue token: %w", err)
	}
	s.log.Info().Str("username", user.Username).Msg("auth.login.ok")
	return LoginResult{Token: token, ExpiresAt: expiresAt}, nil
}

func (s *Service) CreateDocument(ctx context.Context, formName string, data docdata.Object) (store.Document, error) {
	doc, err := s.store.CreateDocument(ctx, formName, data)
	if err != nil {
		return store.Document{}, err
	}
	s.indexDocument(doc)
	return doc, nil
}

// DocumentsByName returns the documents whose formName equals formName
// exactly. With ByNameFullCatalog set, a name with at least one match
// returns the whole catalog instead.
func (s *Service) DocumentsByName(ctx context.Context, formName string) ([]store.Document, error) {
	if strings.TrimSpace(formName) == "" {
		return nil, badRequest("Form name cannot be null or empty")
	}
	matches, err := s.store.ListDocumentsByFormName(ctx, formName)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, store.ErrNotFound
	}
	if !s.cfg.ByNameFullCatalog {
		return matches, nil
	}
	return s.store.ListDocuments(ctx)
}

func (s *Service) AllDocuments(ctx context.Context) ([]store.Document, error) {
	return s.store.ListDocuments(ctx)
}

func (s *Service) DocumentDetails(ctx context.Context, id int64) (store.Document, error) {
	return s.store.GetDocument(ctx, id)
}

// UpdateDocument replaces both formName and data.
func (s *Service) UpdateDocument(ctx context.Context, id int64, formName string, data docdata.Object) (store.Document, error) {
	doc, err := s.store.UpdateDocument(ctx, id, formName, data)
	if err != nil {
		return store.Document{}, err
	}
	s.indexDocument(doc)
	return doc, nil
}

func (s *Service) DeleteDocument(ctx context.Context, id int64) error {
	if err := s.store.DeleteDocument(ctx, id); err != nil {
		return err
	}
	if s.search != nil {
		s.search.DeleteDocument(id)
	}
	return nil
}

// Upload is a received scan file.
type Upload struct {
	FileName    string
	ContentType string
	Data        []byte
}

type ScanResult struct {
	ID       int64  `json:"id"`
	FormName string `json:"formName"`
	Message  string `json:"message"`
}

// Scan runs OCR then structuring on the upload and stores the result as a
// new document named after the file. Any stage failure aborts the request.
func (s *Service) Scan(ctx context.Context, upload Upload) (ScanResult, error) {
	if strings.TrimSpace(upload.FileName) == "" {
		return ScanResult{}, badRequest("A file is required.")
	}
	started := time.Now()
	s.archiveUpload(ctx, upload)

	raw, err := s.ocr.ExtractText(ctx, bytes.NewReader(upload.Data))
	if err != nil {
		if errors.Is(err, ocr.ErrEmptyDocument) {
			return ScanResult{}, err
		}
		return ScanResult{}, domainError(http.StatusInternalServerError, "Document analysis failed.", err)
	}

	structured, err := s.structure.Structure(ctx, raw)
	if err != nil {
		return ScanResult{}, domainError(http.StatusInternalServerError, "Structuring the extracted text failed.", err)
	}

	data, err := docdata.ParseObject([]byte(structured))
	if err != nil {
		return ScanResult{}, domainError(http.StatusInternalServerError, "Structured output is not a JSON object.", err)
	}

	doc, err := s.CreateDocument(ctx, upload.FileName, data)
	if err != nil {
		return ScanResult{}, err
	}
	s.log.Info().
		Int64("document_id", doc.ID).
		Str("form_name", doc.FormName).
		Str("schema_name", doc.Data.SchemaName()).
		Int64("elapsed_ms", time.Since(started).Milliseconds()).
		Msg("document.scan.ok")
	return ScanResult{ID: doc.ID, FormName: doc.FormName, Message: "Data saved successfully"}, nil
}

func (s *Service) archiveUpload(ctx context.Context, upload Upload) {
	if s.archive == nil || len(upload.Data) == 0 {
		return
	}
	stored, err := s.archive.Put(ctx, upload.FileName, upload.ContentType, upload.Data)
	if err != nil {
		s.log.Warn().Err(err).Str("file", upload.FileName).Msg("document.scan.archive_failed")
		return
	}
	s.log.Debug().Str("bucket", stored.Bucket).Str("key", stored.Key).Msg("document.scan.archived")
}

// Ask turns question into SQL through the language model and runs it
// unmodified. Rows with a string Data column get it decoded as JSON when
// possible.
func (s *Service) Ask(ctx context.Context, question string) ([]untrusted.Row, error) {
	if strings.TrimSpace(question) == "" {
		return nil, badRequest("Query cannot be null or empty")
	}
	names, err := s.store.SchemaNames(ctx)
	if err != nil {
		return nil, fmt.Errorf("schema names: %w", err)
	}
	statement, err := s.query.GenerateSQL(ctx, question, names)
	if err != nil {
		return nil, domainError(http.StatusInternalServerError, "Generating the query failed.", err)
	}
	rows, err := s.executor.Run(ctx, question, statement)
	if err != nil {
		return nil, domainError(http.StatusInternalServerError, "Running the generated query failed.", err)
	}
	if len(rows) == 0 {
		return nil, domainError(http.StatusNotFound, "No results found", nil)
	}
	for _, row := range rows {
		expandDataColumn(row)
	}
	return rows, nil
}

func expandDataColumn(row untrusted.Row) {
	for key, value := range row {
		if !strings.EqualFold(key, "data") {
			continue
		}
		text, ok := value.(string)
		if !ok {
			continue
		}
		parsed, err := docdata.DecodeStrict(strings.NewReader(text))
		if err != nil {
			continue
		}
		row[key] = parsed
	}
}

func (s *Service) Search(ctx context.Context, q search.Query) search.Response {
	if s.search == nil {
		return search.Response{Results: []search.Result{}, Query: strings.TrimSpace(q.Text)}
	}
	return s.search.Search(ctx, q)
}

func (s *Service) QueryLog(ctx context.Context, limit int) ([]journal.Entry, error) {
	if s.journal == nil {
		return nil, domainError(http.StatusServiceUnavailable, "Query journal is not configured.", nil)
	}
	entries, err := s.journal.Recent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("query journal: %w", err)
	}
	return entries, nil
}

func (s *Service) ExportCatalog(ctx context.Context) (*export.Result, error) {
	docs, err := s.store.ListDocuments(ctx)
	if err != nil {
		return nil, err
	}
	return s.export.Catalog(docs)
}

func (s *Service) ExportDocumentPDF(ctx context.Context, id int64) (*export.Result, error) {
	doc, err := s.store.GetDocument(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.export.DocumentPDF(ctx, doc)
}

// Readiness reports the state of each backing service. Only the database
// decides readiness.
func (s *Service) Readiness(ctx context.Context) (bool, map[string]any) {
	checks := map[string]any{"database": map[string]any{"status": "ok"}}
	ready := true
	if err := s.store.Ping(ctx); err != nil {
		ready = false
		checks["database"] = map[string]any{"status": "error", "error": err.Error()}
	}
	if s.journal != nil {
		if err := s.journal.Ping(ctx); err != nil {
			checks["journal"] = map[string]any{"status": "error", "error": err.Error()}
		} else {
			checks["journal"] = map[string]any{"status": "ok"}
		}
	}
	return ready, checks
}

func (s *Service) indexDocument(doc store.Document) {
	if s.search != nil {
		s.search.IndexDocument(doc)
	}
}
