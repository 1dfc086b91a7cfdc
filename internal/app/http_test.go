package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"autodoc/api/internal/auth"
	"autodoc/api/internal/export"
	"autodoc/api/internal/journal"
)

func do(t *testing.T, h http.Handler, method, target, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("parse response %q: %v", rr.Body.String(), err)
	}
	return payload
}

func adminToken(t *testing.T, issuer *auth.Issuer) string {
	t.Helper()
	token, _, err := issuer.Issue("admin", "Admin")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	return token
}

func TestHealthEndpoint(t *testing.T) {
	h := newTestEnv().handler().Handler()

	rr := do(t, h, http.MethodGet, "/api/health", "", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if ok := decode(t, rr)["ok"]; ok != true {
		t.Errorf("expected ok=true, got %v", ok)
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID header")
	}
}

func TestReadyEndpoint(t *testing.T) {
	env := newTestEnv()
	env.journal = &fakeJournal{pingErr: errors.New("redis down")}
	h := env.handler().Handler()

	rr := do(t, h, http.MethodGet, "/api/ready", "", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200 with a degraded journal, got %d", rr.Code)
	}
	checks, _ := decode(t, rr)["checks"].(map[string]any)
	journalCheck, _ := checks["journal"].(map[string]any)
	if journalCheck["status"] != "error" {
		t.Errorf("journal check = %v", checks["journal"])
	}

	env.store.pingFn = func(context.Context) error { return errors.New("connection refused") }
	rr = do(t, h, http.MethodGet, "/api/ready", "", "")
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d", rr.Code)
	}
	if decode(t, rr)["status"] != "not_ready" {
		t.Errorf("unexpected body %s", rr.Body.String())
	}
}

func TestAuthFlow(t *testing.T) {
	env := newTestEnv()
	h := env.handler().Handler()

	rr := do(t, h, http.MethodPost, "/api/Auth/register", `{"userName":"alice","passwordHash":"s3cret"}`, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("register: %d %s", rr.Code, rr.Body.String())
	}
	if stored := env.users.users["alice"].PasswordHash; stored == "s3cret" || !strings.Contains(stored, ".") {
		t.Fatalf("password stored as %q", stored)
	}

	rr = do(t, h, http.MethodPost, "/api/Auth/register", `{"userName":"alice","password":"other"}`, "")
	if rr.Code != http.StatusConflict {
		t.Fatalf("duplicate register: %d", rr.Code)
	}

	rr = do(t, h, http.MethodPost, "/api/Auth/register", `{"userName":"","passwordHash":""}`, "")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("empty register: %d", rr.Code)
	}

	wrong := do(t, h, http.MethodPost, "/api/Auth/login", `{"userName":"alice","password":"s3cretx"}`, "")
	unknown := do(t, h, http.MethodPost, "/api/Auth/login", `{"userName":"mallory","password":"s3cret"}`, "")
	if wrong.Code != http.StatusUnauthorized || unknown.Code != http.StatusUnauthorized {
		t.Fatalf("bad logins: %d %d", wrong.Code, unknown.Code)
	}
	if wrong.Body.String() != unknown.Body.String() {
		t.Errorf("login failures differ: %q vs %q", wrong.Body.String(), unknown.Body.String())
	}

	rr = do(t, h, http.MethodPost, "/api/Auth/login", `{"userName":"alice","password":"s3cret"}`, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("login: %d %s", rr.Code, rr.Body.String())
	}
	token, _ := decode(t, rr)["token"].(string)
	if token == "" {
		t.Fatal("expected token")
	}

	if rr := do(t, h, http.MethodPost, "/api/Auth/logout", "", ""); rr.Code != http.StatusUnauthorized {
		t.Fatalf("logout without token: %d", rr.Code)
	}
	rr = do(t, h, http.MethodPost, "/api/Auth/logout", "", token)
	if rr.Code != http.StatusOK {
		t.Fatalf("logout: %d", rr.Code)
	}
	if msg, _ := decode(t, rr)["message"].(string); !strings.Contains(msg, "Logged out") {
		t.Errorf("logout message = %q", msg)
	}
}

func TestDocumentLifecycleOverHTTP(t *testing.T) {
	env := newTestEnv()
	h := env.handler().Handler()
	token := adminToken(t, env.tokens)

	rr := do(t, h, http.MethodPost, "/api/Document/seed-document", `{"formName":"invoice-1","data":`+invoiceData+`}`, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("seed: %d %s", rr.Code, rr.Body.String())
	}
	created := decode(t, rr)
	id, _ := created["id"].(float64)
	if id == 0 || created["message"] == nil {
		t.Fatalf("seed response = %v", created)
	}

	rr = do(t, h, http.MethodGet, "/api/Document/document-details/1", "", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("details: %d", rr.Code)
	}
	details := decode(t, rr)
	if details["formName"] != "invoice-1" {
		t.Errorf("details = %v", details)
	}
	data, _ := details["data"].(map[string]any)
	if data["schemaName"] != "Invoice" {
		t.Errorf("data = %v", data)
	}

	rr = do(t, h, http.MethodGet, "/api/Document/get-all-documents", "", "")
	var all []map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &all); err != nil || len(all) != 1 {
		t.Fatalf("all = %s (%v)", rr.Body.String(), err)
	}

	update := `{"formName":"invoice-1b","data":{"total":5}}`
	if rr := do(t, h, http.MethodPut, "/api/Document/update-document/1", update, ""); rr.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous update: %d", rr.Code)
	}
	if rr := do(t, h, http.MethodPut, "/api/Document/update-document/1", update, token); rr.Code != http.StatusOK {
		t.Fatalf("update: %d %s", rr.Code, rr.Body.String())
	}
	if rr := do(t, h, http.MethodPut, "/api/Document/update-document/99", update, token); rr.Code != http.StatusNotFound {
		t.Fatalf("update missing: %d", rr.Code)
	}

	if rr := do(t, h, http.MethodDelete, "/api/Document/delete-document/1", "", ""); rr.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous delete: %d", rr.Code)
	}
	if rr := do(t, h, http.MethodDelete, "/api/Document/delete-document/1", "", token); rr.Code != http.StatusOK {
		t.Fatalf("delete: %d", rr.Code)
	}
	rr = do(t, h, http.MethodGet, "/api/Document/document-details/1", "", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("details after delete: %d", rr.Code)
	}
	body := decode(t, rr)
	if len(body) != 1 || body["message"] != "Document not found" {
		t.Errorf("error body = %v", body)
	}

	if rr := do(t, h, http.MethodGet, "/api/Document/document-details/abc", "", ""); rr.Code != http.StatusBadRequest {
		t.Errorf("non-numeric id: %d", rr.Code)
	}
}

func TestForeignRoleIsForbidden(t *testing.T) {
	env := newTestEnv()
	h := env.handler().Handler()
	token, _, err := env.tokens.Issue("eve", "Viewer")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if rr := do(t, h, http.MethodDelete, "/api/Document/delete-document/1", "", token); rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rr.Code)
	}
}

func TestExpiredTokenIsRejected(t *testing.T) {
	env := newTestEnv()
	h := env.handler().Handler()
	past := time.Now().Add(-3 * time.Hour)
	claims := auth.Claims{
		Name: "admin",
		Role: "Admin",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "autodoc",
			Audience:  jwt.ClaimStrings{"autodoc-web"},
			IssuedAt:  jwt.NewNumericDate(past),
			ExpiresAt: jwt.NewNumericDate(past.Add(2 * time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-signing-key-with-enough-bytes"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if rr := do(t, h, http.MethodPost, "/api/Auth/logout", "", token); rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
}

func TestByNameOverHTTP(t *testing.T) {
	for _, fullCatalog := range []bool{false, true} {
		env := newTestEnv()
		env.cfg.ByNameFullCatalog = fullCatalog
		h := env.handler().Handler()
		for _, name := range []string{"a.pdf", "b.pdf"} {
			do(t, h, http.MethodPost, "/api/Document/seed-document", `{"formName":"`+name+`","data":{}}`, "")
		}

		if rr := do(t, h, http.MethodGet, "/api/Document/by-name", "", ""); rr.Code != http.StatusBadRequest {
			t.Errorf("fullCatalog=%v missing name: %d", fullCatalog, rr.Code)
		}
		if rr := do(t, h, http.MethodGet, "/api/Document/by-name?formName=zzz", "", ""); rr.Code != http.StatusNotFound {
			t.Errorf("fullCatalog=%v unknown name: %d", fullCatalog, rr.Code)
		}

		rr := do(t, h, http.MethodGet, "/api/Document/by-name?formName=a.pdf", "", "")
		var docs []map[string]any
		if err := json.Unmarshal(rr.Body.Bytes(), &docs); err != nil {
			t.Fatalf("decode: %v", err)
		}
		want := 1
		if fullCatalog {
			want = 2
		}
		if len(docs) != want {
			t.Errorf("fullCatalog=%v returned %d documents, want %d", fullCatalog, len(docs), want)
		}
	}
}

func multipartScan(t *testing.T, fileName string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", fileName)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write(content); err != nil {
		t.Fatalf("write part: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return &buf, writer.FormDataContentType()
}

func TestScanOverHTTP(t *testing.T) {
	env := newTestEnv()
	h := env.handler().Handler()
	token := adminToken(t, env.tokens)

	body, contentType := multipartScan(t, "receipt.png", []byte("image bytes"))
	req := httptest.NewRequest(http.MethodPost, "/api/Document/scan", body)
	req.Header.Set("Content-Type", contentType)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous scan: %d", rr.Code)
	}

	body, contentType = multipartScan(t, "receipt.png", []byte("image bytes"))
	req = httptest.NewRequest(http.MethodPost, "/api/Document/scan", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+token)
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("scan: %d %s", rr.Code, rr.Body.String())
	}
	if got := decode(t, rr)["formName"]; got != "receipt.png" {
		t.Errorf("formName = %v", got)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/Document/scan", strings.NewReader("{}"))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("scan without file: %d", rr.Code)
	}
}

func TestQueryOverHTTP(t *testing.T) {
	env := newTestEnv()
	h := env.handler().Handler()

	if rr := do(t, h, http.MethodPost, "/api/Document/query?query=", "", ""); rr.Code != http.StatusBadRequest {
		t.Fatalf("empty query: %d", rr.Code)
	}
	rr := do(t, h, http.MethodPost, "/api/Document/query?query=how+many", "", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("query: %d %s", rr.Code, rr.Body.String())
	}
	result, _ := decode(t, rr)["result"].([]any)
	if len(result) != 1 {
		t.Fatalf("result = %v", result)
	}
}

func TestSearchOverHTTP(t *testing.T) {
	h := newTestEnv().handler().Handler()
	rr := do(t, h, http.MethodGet, "/api/Document/search?q=contoso", "", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("search: %d", rr.Code)
	}
	if decode(t, rr)["query"] != "contoso" {
		t.Errorf("unexpected body %s", rr.Body.String())
	}
}

func TestExportEndpoints(t *testing.T) {
	env := newTestEnv()
	h := env.handler().Handler()
	do(t, h, http.MethodPost, "/api/Document/seed-document", `{"formName":"a.pdf","data":`+invoiceData+`}`, "")

	rr := do(t, h, http.MethodGet, "/api/Document/export", "", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("export: %d", rr.Code)
	}
	if !strings.Contains(rr.Header().Get("Content-Type"), "spreadsheetml") {
		t.Errorf("content type = %q", rr.Header().Get("Content-Type"))
	}
	if !strings.Contains(rr.Header().Get("Content-Disposition"), "documents.xlsx") {
		t.Errorf("disposition = %q", rr.Header().Get("Content-Disposition"))
	}

	rr = do(t, h, http.MethodGet, "/api/Document/document-details/1/pdf", "", "")
	if rr.Code != http.StatusOK || rr.Header().Get("Content-Type") != "application/pdf" {
		t.Fatalf("pdf: %d %q", rr.Code, rr.Header().Get("Content-Type"))
	}

	env.export.pdfErr = export.ErrPDFDependencyMissing
	if rr := do(t, h, http.MethodGet, "/api/Document/document-details/1/pdf", "", ""); rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("pdf without chrome: %d", rr.Code)
	}
	if rr := do(t, h, http.MethodGet, "/api/Document/document-details/9/pdf", "", ""); rr.Code != http.StatusNotFound {
		t.Fatalf("pdf missing document: %d", rr.Code)
	}
}

func TestQueryLogEndpoint(t *testing.T) {
	env := newTestEnv()
	env.journal = &fakeJournal{entries: []journal.Entry{
		{Statement: "SELECT 1", Question: "one?", RowCount: 1},
		{Statement: "SELECT 2", Question: "two?", RowCount: 1},
	}}
	h := env.handler().Handler()

	if rr := do(t, h, http.MethodGet, "/api/Document/query-log", "", ""); rr.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous query log: %d", rr.Code)
	}
	rr := do(t, h, http.MethodGet, "/api/Document/query-log?limit=1", "", adminToken(t, env.tokens))
	if rr.Code != http.StatusOK {
		t.Fatalf("query log: %d", rr.Code)
	}
	items, _ := decode(t, rr)["items"].([]any)
	if len(items) != 1 {
		t.Fatalf("items = %v", items)
	}
}

func TestCORSPreflight(t *testing.T) {
	h := newTestEnv().handler().Handler()
	req := httptest.NewRequest(http.MethodOptions, "/api/Document/get-all-documents", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Fatalf("allow origin = %q", got)
	}
}
