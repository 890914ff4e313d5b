package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"

	"github.com/54b3r/docvec-go/internal/docstore"
	"github.com/54b3r/docvec-go/internal/logging"
)

// Search and list bounds enforced at the HTTP boundary.
const (
	defaultListLimit = 100
	defaultNResults  = 5
	maxNResults      = 50
)

// ragDocumentIDPattern matches the UUID-shaped ids the RAG service issues.
var ragDocumentIDPattern = regexp.MustCompile(`^[0-9a-fA-F-]{36}$`)

const notFoundDetail = "Document not found"

// handleCreate handles POST /documents.
func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if !s.decode(w, r, &req, false) {
		return
	}
	if req.Title == nil || req.Content == nil {
		writeError(r.Context(), w, http.StatusBadRequest, "title and content are required")
		return
	}

	doc, err := s.store.Create(r.Context(), *req.Title, *req.Content, req.Metadata)
	if err != nil {
		s.storeError(w, r, err)
		return
	}
	writeJSON(r.Context(), w, http.StatusCreated, doc)
}

// handleList handles GET /documents?limit=&offset=.
func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", defaultListLimit)
	if err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, err.Error())
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, err.Error())
		return
	}

	docs, err := s.store.List(r.Context(), limit, offset)
	if err != nil {
		s.storeError(w, r, err)
		return
	}
	writeJSON(r.Context(), w, http.StatusOK, docs)
}

// handleGet handles GET /documents/{id}.
func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	doc, found, err := s.store.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.storeError(w, r, err)
		return
	}
	if !found {
		writeError(r.Context(), w, http.StatusNotFound, notFoundDetail)
		return
	}
	writeJSON(r.Context(), w, http.StatusOK, doc)
}

// handleUpdate handles PUT /documents/{id}. Omitted fields keep their value.
func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	var req updateRequest
	if !s.decode(w, r, &req, false) {
		return
	}

	doc, found, err := s.store.Update(r.Context(), r.PathValue("id"), docstore.Patch{
		Title:    req.Title,
		Content:  req.Content,
		Metadata: req.Metadata,
	})
	if err != nil {
		s.storeError(w, r, err)
		return
	}
	if !found {
		writeError(r.Context(), w, http.StatusNotFound, notFoundDetail)
		return
	}
	writeJSON(r.Context(), w, http.StatusOK, doc)
}

// handleDelete handles DELETE /documents/{id}.
func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	deleted, err := s.store.Delete(r.Context(), r.PathValue("id"))
	if err != nil {
		s.storeError(w, r, err)
		return
	}
	if !deleted {
		writeError(r.Context(), w, http.StatusNotFound, notFoundDetail)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleSearch handles POST /documents/search.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if !s.decode(w, r, &req, false) {
		return
	}
	if req.Query == nil {
		writeError(r.Context(), w, http.StatusBadRequest, "query is required")
		return
	}
	n := defaultNResults
	if req.NResults != nil {
		n = *req.NResults
	}
	if n < 1 || n > maxNResults {
		writeError(r.Context(), w, http.StatusBadRequest, fmt.Sprintf("n_results must be between 1 and %d", maxNResults))
		return
	}

	docs, err := s.store.Search(r.Context(), *req.Query, n)
	if err != nil {
		s.storeError(w, r, err)
		return
	}
	writeJSON(r.Context(), w, http.StatusOK, docs)
}

// handleImportRAG handles POST /documents/import/rag/{ragDocumentId}. The
// body is optional.
func (s *Server) handleImportRAG(w http.ResponseWriter, r *http.Request) {
	if s.cfg.RAG == nil {
		writeError(r.Context(), w, http.StatusServiceUnavailable, "RAG import is not configured")
		return
	}
	id := r.PathValue("ragDocumentId")
	if !ragDocumentIDPattern.MatchString(id) {
		writeError(r.Context(), w, http.StatusBadRequest, "ragDocumentId must be a valid UUID")
		return
	}

	var req importRequest
	if !s.decode(w, r, &req, true) {
		return
	}

	doc, err := s.store.ImportRAG(r.Context(), s.cfg.RAG, id, docstore.ImportRequest{
		Title:         req.Title,
		Metadata:      req.Metadata,
		JoinSeparator: req.JoinSeparator,
	})
	if err != nil {
		s.storeError(w, r, err)
		return
	}
	writeJSON(r.Context(), w, http.StatusCreated, doc)
}

// decode reads a JSON body into v. When optional is true an empty body is
// accepted. On failure it writes a 400 and returns false.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any, optional bool) bool {
	body := http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
	err := json.NewDecoder(body).Decode(v)
	if err == nil || (optional && errors.Is(err, io.EOF)) {
		return true
	}

	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeError(r.Context(), w, http.StatusRequestEntityTooLarge, "request body too large")
		return false
	}
	writeError(r.Context(), w, http.StatusBadRequest, "invalid request body: "+err.Error())
	return false
}

// storeError maps a store error onto a status code.
func (s *Server) storeError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	switch {
	case errors.Is(err, docstore.ErrInvalidInput):
		writeError(ctx, w, http.StatusBadRequest, err.Error())
	case errors.Is(err, docstore.ErrUpstream):
		logging.FromContext(ctx).Warn("server: upstream failure", slog.Any("error", err))
		writeError(ctx, w, http.StatusBadGateway, err.Error())
	case errors.Is(err, context.Canceled):
		// Client went away; nothing useful to send.
		w.WriteHeader(499)
	default:
		logging.FromContext(ctx).Error("server: store failure", slog.Any("error", err))
		writeError(ctx, w, http.StatusInternalServerError, "internal storage error")
	}
}

// queryInt parses an integer query parameter, returning def when absent.
func queryInt(r *http.Request, key string, def int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", key)
	}
	return v, nil
}
