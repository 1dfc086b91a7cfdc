package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"autodoc/api/internal/auth"
	"autodoc/api/internal/docdata"
	"autodoc/api/internal/export"
	"autodoc/api/internal/rbac"
	"autodoc/api/internal/search"
)

type HTTPServer struct {
	service     *Service
	corsOrigins []string
	log         zerolog.Logger
}

func NewHTTPServer(service *Service, corsOrigins []string, logger zerolog.Logger) *HTTPServer {
	return &HTTPServer{service: service, corsOrigins: corsOrigins, log: logger}
}

func (s *HTTPServer) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.accessLog)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With", "X-Request-ID"},
		ExposedHeaders:   []string{"Content-Disposition", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	tokens := s.service.tokens

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/ready", s.handleReady)

		r.Route("/Auth", func(r chi.Router) {
			r.Post("/register", s.handleRegister)
			r.Post("/login", s.handleLogin)
			r.With(tokens.Middleware).Post("/logout", s.handleLogout)
		})

		r.Route("/Document", func(r chi.Router) {
			r.Post("/seed-document", s.handleSeedDocument)
			r.Get("/by-name", s.handleDocumentsByName)
			r.Get("/get-all-documents", s.handleAllDocuments)
			r.Get("/document-details/{id}", s.handleDocumentDetails)
			r.Get("/document-details/{id}/pdf", s.handleDocumentPDF)
			r.Post("/query", s.handleQuery)
			r.Get("/search", s.handleSearch)
			r.Get("/export", s.handleExport)

			r.Group(func(r chi.Router) {
				r.Use(tokens.Middleware)
				r.With(auth.RequireAction(rbac.ActionWrite)).Put("/update-document/{id}", s.handleUpdateDocument)
				r.With(auth.RequireAction(rbac.ActionWrite)).Delete("/delete-document/{id}", s.handleDeleteDocument)
				r.With(auth.RequireAction(rbac.ActionWrite)).Post("/scan", s.handleScan)
				r.With(auth.RequireAction(rbac.ActionAdmin)).Get("/query-log", s.handleQueryLog)
			})
		})
	})

	return r
}

func (s *HTTPServer) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		requestID := middleware.GetReqID(r.Context())
		if requestID != "" {
			w.Header().Set("X-Request-ID", requestID)
		}
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		s.log.Info().
			Str("request_id", requestID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("bytes", ww.BytesWritten()).
			Int64("elapsed_ms", time.Since(started).Milliseconds()).
			Msg("http.request")
	})
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *HTTPServer) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	ready, checks := s.service.Readiness(ctx)
	status := "ready"
	statusCode := http.StatusOK
	if !ready {
		status = "not_ready"
		statusCode = http.StatusServiceUnavailable
	}
	writeJSON(w, statusCode, map[string]any{
		"ok":     ready,
		"status": status,
		"checks": checks,
	})
}

func (s *HTTPServer) handleRegister(w http.ResponseWriter, r *http.Request) {
	var body struct {
		UserName     string `json:"userName"`
		PasswordHash string `json:"passwordHash"`
		Password     string `json:"password"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	secret := body.PasswordHash
	if secret == "" {
		secret = body.Password
	}
	if err := s.service.Register(r.Context(), body.UserName, secret); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "User registered successfully.")
}

func (s *HTTPServer) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		UserName string `json:"userName"`
		Password string `json:"password"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	result, err := s.service.Login(r.Context(), body.UserName, body.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *HTTPServer) handleLogout(w http.ResponseWriter, r *http.Request) {
	writeMessage(w, http.StatusOK, "Logged out successfully. Remove the token on the client.")
}

type documentBody struct {
	FormName string         `json:"formName"`
	Data     docdata.Object `json:"data"`
}

func (s *HTTPServer) handleSeedDocument(w http.ResponseWriter, r *http.Request) {
	var body documentBody
	if err := decodeBody(r, &body); err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	doc, err := s.service.CreateDocument(r.Context(), body.FormName, body.Data)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": doc.ID, "message": "Document Saved Successfully"})
}

func (s *HTTPServer) handleDocumentsByName(w http.ResponseWriter, r *http.Request) {
	docs, err := s.service.DocumentsByName(r.Context(), r.URL.Query().Get("formName"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, docs)
}

func (s *HTTPServer) handleAllDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := s.service.AllDocuments(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, docs)
}

func (s *HTTPServer) handleDocumentDetails(w http.ResponseWriter, r *http.Request) {
	id, err := documentID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	doc, err := s.service.DocumentDetails(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (s *HTTPServer) handleUpdateDocument(w http.ResponseWriter, r *http.Request) {
	id, err := documentID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var body documentBody
	if err := decodeBody(r, &body); err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	doc, err := s.service.UpdateDocument(r.Context(), id, body.FormName, body.Data)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": doc.ID, "message": "Document updated successfully"})
}

func (s *HTTPServer) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	id, err := documentID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.service.DeleteDocument(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "Document deleted successfully")
}

func (s *HTTPServer) handleScan(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.service.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.service.cfg.MaxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeMessage(w, http.StatusRequestEntityTooLarge, "Uploaded file is too large.")
			return
		}
		writeMessage(w, http.StatusBadRequest, "A file is required.")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "A file is required.")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "Could not read the uploaded file.")
		return
	}
	result, err := s.service.Scan(r.Context(), Upload{
		FileName:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *HTTPServer) handleQuery(w http.ResponseWriter, r *http.Request) {
	rows, err := s.service.Ask(r.Context(), r.URL.Query().Get("query"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"result": rows})
}

func (s *HTTPServer) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	resp := s.service.Search(r.Context(), search.Query{
		Text:   q.Get("q"),
		Limit:  queryInt(q.Get("limit"), 20),
		Offset: queryInt(q.Get("offset"), 0),
	})
	writeJSON(w, http.StatusOK, resp)
}

func (s *HTTPServer) handleQueryLog(w http.ResponseWriter, r *http.Request) {
	entries, err := s.service.QueryLog(r.Context(), queryInt(r.URL.Query().Get("limit"), 50))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": entries})
}

func (s *HTTPServer) handleExport(w http.ResponseWriter, r *http.Request) {
	result, err := s.service.ExportCatalog(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeFile(w, result)
}

func (s *HTTPServer) handleDocumentPDF(w http.ResponseWriter, r *http.Request) {
	id, err := documentID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	result, err := s.service.ExportDocumentPDF(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeFile(w, result)
}

func (s *HTTPServer) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, message := mapError(err)
	event := s.log.Warn()
	if status >= http.StatusInternalServerError {
		event = s.log.Error()
	}
	event.Err(err).
		Str("request_id", middleware.GetReqID(r.Context())).
		Int("status", status).
		Msg("http.request.failed")
	writeMessage(w, status, message)
}

func documentID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, badRequest("Invalid document id")
	}
	return id, nil
}

func queryInt(raw string, fallback int) int {
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || value < 0 {
		return fallback
	}
	return value
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}

func writeFile(w http.ResponseWriter, result *export.Result) {
	w.Header().Set("Content-Type", result.MimeType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.Filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(result.Data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(result.Data)
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return fmt.Errorf("request body is required")
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("request body is required")
		}
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}
