package app

import (
	"context"
	"encoding/json"
	"io"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"autodoc/api/internal/auth"
	"autodoc/api/internal/authpw"
	"autodoc/api/internal/blob"
	"autodoc/api/internal/config"
	"autodoc/api/internal/docdata"
	"autodoc/api/internal/export"
	"autodoc/api/internal/journal"
	"autodoc/api/internal/search"
	"autodoc/api/internal/store"
	"autodoc/api/internal/untrusted"
)

type memStore struct {
	mu     sync.Mutex
	nextID int64
	docs   map[int64]store.Document
	pingFn func(context.Context) error
}

func newMemStore() *memStore {
	return &memStore{docs: make(map[int64]store.Document)}
}

func (m *memStore) CreateDocument(_ context.Context, formName string, data docdata.Object) (store.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	if data == nil {
		data = docdata.Object{}
	}
	doc := store.Document{ID: m.nextID, FormName: formName, Data: data}
	m.docs[doc.ID] = doc
	return doc, nil
}

func (m *memStore) ListDocuments(context.Context) ([]store.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	docs := make([]store.Document, 0, len(m.docs))
	for _, doc := range m.docs {
		docs = append(docs, doc)
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	return docs, nil
}

func (m *memStore) ListDocumentsByFormName(ctx context.Context, formName string) ([]store.Document, error) {
	all, _ := m.ListDocuments(ctx)
	matches := []store.Document{}
	for _, doc := range all {
		if doc.FormName == formName {
			matches = append(matches, doc)
		}
	}
	return matches, nil
}

func (m *memStore) GetDocument(_ context.Context, id int64) (store.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[id]
	if !ok {
		return store.Document{}, store.ErrNotFound
	}
	return doc, nil
}

func (m *memStore) UpdateDocument(_ context.Context, id int64, formName string, data docdata.Object) (store.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.docs[id]; !ok {
		return store.Document{}, store.ErrNotFound
	}
	if data == nil {
		data = docdata.Object{}
	}
	doc := store.Document{ID: id, FormName: formName, Data: data}
	m.docs[id] = doc
	return doc, nil
}

func (m *memStore) DeleteDocument(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.docs[id]; !ok {
		return store.ErrNotFound
	}
	delete(m.docs, id)
	return nil
}

func (m *memStore) SchemaNames(ctx context.Context) ([]string, error) {
	all, _ := m.ListDocuments(ctx)
	var raws [][]byte
	for _, doc := range all {
		value, ok := doc.Data["schemaName"]
		if !ok {
			continue
		}
		raw, err := json.Marshal(value)
		if err != nil {
			return nil, err
		}
		raws = append(raws, raw)
	}
	return docdata.FlattenSchemaNames(raws), nil
}

func (m *memStore) Ping(ctx context.Context) error {
	if m.pingFn != nil {
		return m.pingFn(ctx)
	}
	return nil
}

type memUsers struct {
	mu    sync.Mutex
	users map[string]store.User
}

func (m *memUsers) UserExists(_ context.Context, username string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.users[username]
	return ok, nil
}

func (m *memUsers) CreateUser(_ context.Context, user store.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[user.Username]; ok {
		return store.ErrConflict
	}
	m.users[user.Username] = user
	return nil
}

func (m *memUsers) GetUserByUsername(_ context.Context, username string) (store.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[username]
	if !ok {
		return store.User{}, store.ErrNotFound
	}
	return user, nil
}

type fakeOCR struct {
	extractFn func(context.Context, []byte) (string, error)
}

func (f *fakeOCR) ExtractText(ctx context.Context, r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	return f.extractFn(ctx, data)
}

type fakeStructurer struct {
	structureFn func(context.Context, string) (string, error)
}

func (f *fakeStructurer) Structure(ctx context.Context, raw string) (string, error) {
	return f.structureFn(ctx, raw)
}

type fakeQuery struct {
	generateFn func(context.Context, string, []string) (string, error)
}

func (f *fakeQuery) GenerateSQL(ctx context.Context, question string, names []string) (string, error) {
	return f.generateFn(ctx, question, names)
}

type fakeRunner struct {
	runFn func(context.Context, string, string) ([]untrusted.Row, error)
}

func (f *fakeRunner) Run(ctx context.Context, question, statement string) ([]untrusted.Row, error) {
	return f.runFn(ctx, question, statement)
}

type fakeIndexer struct {
	mu      sync.Mutex
	indexed []int64
	deleted []int64
}

func (f *fakeIndexer) Search(_ context.Context, q search.Query) search.Response {
	return search.Response{Results: []search.Result{{ID: 1, FormName: "hit.pdf"}}, Total: 1, Query: q.Text}
}

func (f *fakeIndexer) IndexDocument(doc store.Document) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.indexed = append(f.indexed, doc.ID)
}

func (f *fakeIndexer) DeleteDocument(id int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, id)
}

type fakeArchive struct {
	putFn func(context.Context, string, string, []byte) (blob.Stored, error)
}

func (f *fakeArchive) Put(ctx context.Context, fileName, contentType string, data []byte) (blob.Stored, error) {
	return f.putFn(ctx, fileName, contentType, data)
}

type fakeJournal struct {
	entries []journal.Entry
	pingErr error
}

func (f *fakeJournal) Recent(_ context.Context, limit int) ([]journal.Entry, error) {
	if limit < len(f.entries) {
		return f.entries[:limit], nil
	}
	return f.entries, nil
}

func (f *fakeJournal) Ping(context.Context) error { return f.pingErr }

type fakeExporter struct {
	pdfErr error
}

func (f *fakeExporter) DocumentPDF(_ context.Context, doc store.Document) (*export.Result, error) {
	if f.pdfErr != nil {
		return nil, f.pdfErr
	}
	return &export.Result{Data: []byte("%PDF"), Filename: "doc.pdf", MimeType: "application/pdf"}, nil
}

func (f *fakeExporter) Catalog(docs []store.Document) (*export.Result, error) {
	return export.NewService(nil).Catalog(docs)
}

type testEnv struct {
	store   *memStore
	users   *memUsers
	tokens  *auth.Issuer
	ocr     *fakeOCR
	struc   *fakeStructurer
	query   *fakeQuery
	runner  *fakeRunner
	index   *fakeIndexer
	archive *fakeArchive
	journal *fakeJournal
	export  *fakeExporter
	cfg     config.Config
}

func newTestEnv() *testEnv {
	return &testEnv{
		store:  newMemStore(),
		users:  &memUsers{users: make(map[string]store.User)},
		tokens: auth.NewIssuer("test-signing-key-with-enough-bytes", "autodoc", "autodoc-web", time.Hour),
		ocr: &fakeOCR{extractFn: func(context.Context, []byte) (string, error) {
			return "Invoice Contoso Total 100", nil
		}},
		struc: &fakeStructurer{structureFn: func(context.Context, string) (string, error) {
			return `{"schemaName":"Invoice","dataExtracted":[{"key":"Total","value":"100"}]}`, nil
		}},
		query: &fakeQuery{generateFn: func(context.Context, string, []string) (string, error) {
			return `SELECT 1`, nil
		}},
		runner: &fakeRunner{runFn: func(context.Context, string, string) ([]untrusted.Row, error) {
			return []untrusted.Row{{"count": int64(1)}}, nil
		}},
		index:  &fakeIndexer{},
		export: &fakeExporter{},
		cfg:    config.Config{MaxUploadBytes: 1 << 20},
	}
}

func (e *testEnv) service() *Service {
	deps := Dependencies{
		Store:     e.store,
		Accounts:  authpw.NewService(e.users),
		Tokens:    e.tokens,
		OCR:       e.ocr,
		Structure: e.struc,
		Query:     e.query,
		Executor:  e.runner,
		Search:    e.index,
		Export:    e.export,
	}
	if e.archive != nil {
		deps.Archive = e.archive
	}
	if e.journal != nil {
		deps.Journal = e.journal
	}
	return New(e.cfg, deps, zerolog.Nop())
}

func (e *testEnv) handler() *HTTPServer {
	return NewHTTPServer(e.service(), []string{"http://localhost:3000"}, zerolog.Nop())
}

func mustObject(t *testing.T, raw string) docdata.Object {
	t.Helper()
	obj, err := docdata.ParseObject([]byte(raw))
	if err != nil {
		t.Fatalf("parse %s: %v", raw, err)
	}
	return obj
}
