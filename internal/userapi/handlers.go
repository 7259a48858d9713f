package userapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/xdung24/restload/pkg/jsonpath"
	"github.com/xdung24/restload/pkg/jsonschema"
)

// MaxDocumentBytes caps the size of an upserted document.
const MaxDocumentBytes = 1 << 20

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error   string   `json:"error"`
	Details []string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(body)
}

func writeError(w http.ResponseWriter, status int, message string, details ...string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{Error: message, Details: details})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.Write([]byte("OK"))
}

func (s *Server) handleNamespaces(w http.ResponseWriter, r *http.Request) {
	data, err := json.Marshal(map[string][]string{"namespaces": s.store.Namespaces()})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, data)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	namespace, id := chi.URLParam(r, "namespace"), chi.URLParam(r, "id")

	doc, err := s.store.Get(namespace, id)
	if errors.Is(err, ErrNotFound) {
		writeError(w, http.StatusNotFound, "no document "+id+" in namespace "+namespace)
		return
	}
	if err != nil {
		s.logger.Error("get document", zap.String("namespace", namespace), zap.String("id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if fields := jsonpath.SplitFields(r.URL.Query().Get("fields")); len(fields) > 0 {
		if doc, err = jsonpath.Project(doc, fields); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}
	writeJSON(w, http.StatusOK, doc)
}

// handleUpsert serves both POST and PUT: 201 when the id is new, 200 when an
// existing document was replaced.
func (s *Server) handleUpsert(w http.ResponseWriter, r *http.Request) {
	namespace, id := chi.URLParam(r, "namespace"), chi.URLParam(r, "id")

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxDocumentBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "document exceeds 1MB")
			return
		}
		writeError(w, http.StatusBadRequest, "read body: "+err.Error())
		return
	}

	if schema := s.schemas.lookup(namespace); schema != nil {
		if err := schema.Validate(body); err != nil {
			writeValidationError(w, err)
			return
		}
	} else if !json.Valid(body) {
		writeError(w, http.StatusBadRequest, "body is not valid JSON")
		return
	}

	created, err := s.store.Put(namespace, id, body)
	if err != nil {
		s.logger.Error("store document", zap.String("namespace", namespace), zap.String("id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
		s.metrics.documents.WithLabelValues(namespace).Inc()
		w.Header().Set("Location", r.URL.Path)
	}
	writeJSON(w, status, body)
}

func writeValidationError(w http.ResponseWriter, err error) {
	var verrs jsonschema.ValidationErrors
	if errors.As(err, &verrs) {
		details := make([]string, len(verrs))
		for i, e := range verrs {
			details[i] = e.Error()
		}
		writeError(w, http.StatusBadRequest, "document does not match schema", details...)
		return
	}
	writeError(w, http.StatusBadRequest, "body is not valid JSON", err.Error())
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	namespace, id := chi.URLParam(r, "namespace"), chi.URLParam(r, "id")

	err := s.store.Delete(namespace, id)
	if errors.Is(err, ErrNotFound) {
		writeError(w, http.StatusNotFound, "no document "+id+" in namespace "+namespace)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.metrics.documents.WithLabelValues(namespace).Dec()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	namespace := chi.URLParam(r, "namespace")

	docs, err := s.store.List(namespace)
	if errors.Is(err, ErrNotFound) {
		writeError(w, http.StatusNotFound, "no namespace "+namespace)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	fields := jsonpath.SplitFields(r.URL.Query().Get("fields"))
	out := make(map[string]json.RawMessage, len(docs))
	for id, doc := range docs {
		if doc, err = jsonpath.Project(doc, fields); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		out[id] = doc
	}
	data, err := json.Marshal(out)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, data)
}

func (s *Server) handleDrop(w http.ResponseWriter, r *http.Request) {
	namespace := chi.URLParam(r, "namespace")

	n, err := s.store.Drop(namespace)
	if errors.Is(err, ErrNotFound) {
		writeError(w, http.StatusNotFound, "no namespace "+namespace)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.metrics.documents.DeleteLabelValues(namespace)
	s.logger.Info("namespace dropped", zap.String("namespace", namespace), zap.Int("documents", n))
	w.WriteHeader(http.StatusNoContent)
}

// SearchResult is one match of a namespace search.
type SearchResult struct {
	Key   string          `json:"key"`
	Value json.RawMessage `json:"value"`
}

// handleSearch returns the documents of a namespace matching ?filter=, a
// gjson condition such as age>30. Results are ordered by id.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	namespace := chi.URLParam(r, "namespace")
	query := r.URL.Query()

	docs, err := s.store.List(namespace)
	if errors.Is(err, ErrNotFound) {
		writeError(w, http.StatusNotFound, "no namespace "+namespace)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	ids := make([]string, 0, len(docs))
	for id := range docs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	filter := query.Get("filter")
	fields := jsonpath.SplitFields(query.Get("fields"))
	results := make([]SearchResult, 0)
	for _, id := range ids {
		ok, err := jsonpath.Match(docs[id], filter)
		if err != nil {
			s.logger.Warn("search skipped invalid document", zap.String("namespace", namespace), zap.String("id", id))
			continue
		}
		if !ok {
			continue
		}
		doc, err := jsonpath.Project(docs[id], fields)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		results = append(results, SearchResult{Key: id, Value: doc})
	}

	data, err := json.Marshal(map[string][]SearchResult{"results": results})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, data)
}

func (s *Server) handleSchemas(w http.ResponseWriter, r *http.Request) {
	data, err := json.Marshal(map[string][]string{"schemas": s.schemas.namespaces()})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, data)
}

func (s *Server) handleGetSchema(w http.ResponseWriter, r *http.Request) {
	namespace := chi.URLParam(r, "namespace")
	raw, ok := s.schemas.get(namespace)
	if !ok {
		writeError(w, http.StatusNotFound, "no schema for namespace "+namespace)
		return
	}
	writeJSON(w, http.StatusOK, raw)
}

// handlePutSchema registers the body as the JSON Schema for a namespace:
// 201 for a new schema, 200 when one was replaced.
func (s *Server) handlePutSchema(w http.ResponseWriter, r *http.Request) {
	namespace := chi.URLParam(r, "namespace")

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxDocumentBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "read body: "+err.Error())
		return
	}
	if !json.Valid(body) {
		writeError(w, http.StatusBadRequest, "schema is not valid JSON")
		return
	}

	created, err := s.schemas.set(namespace, body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid schema", err.Error())
		return
	}
	s.logger.Info("schema registered", zap.String("namespace", namespace), zap.Bool("created", created))

	status := http.StatusOK
	if created {
		status = http.StatusCreated
		w.Header().Set("Location", r.URL.Path)
	}
	writeJSON(w, status, body)
}

func (s *Server) handleDeleteSchema(w http.ResponseWriter, r *http.Request) {
	namespace := chi.URLParam(r, "namespace")
	if !s.schemas.remove(namespace) {
		writeError(w, http.StatusNotFound, "no schema for namespace "+namespace)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
