// Package api exposes the read-only HTTP surface: course listings and store
// stats for the indexing pipeline, plus the placeholder /query endpoint the
// future retrieval layer will take over.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"lectio/internal/config"
	"lectio/internal/storage"
	"lectio/internal/vectorstore"
)

type Server struct {
	cfg        config.Config
	courseRepo *storage.CourseRepo
	docRepo    *storage.DocumentRepo
	runRepo    *storage.RunRepo
}

// NewServer builds the API server. db may be nil when no catalog is
// configured; catalog-backed endpoints then answer 503.
func NewServer(cfg config.Config, db *storage.DB) *Server {
	s := &Server{cfg: cfg}
	if db != nil {
		s.courseRepo = storage.NewCourseRepo(db)
		s.docRepo = storage.NewDocumentRepo(db)
		s.runRepo = storage.NewRunRepo(db)
	}
	return s
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/courses", s.handleCourses)
	mux.HandleFunc("/courses/", s.handleCourseScoped)
	mux.HandleFunc("/query", s.handleQuery)
	return withCORS(mux)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// handleCourses lists every course with a persisted store pair. The store
// directory, not the catalog, is the source of truth for what is indexed.
func (s *Server) handleCourses(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	entries, err := os.ReadDir(s.cfg.StoreRoot)
	if err != nil && !os.IsNotExist(err) {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	courses := make([]string, 0)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if name, ok := strings.CutSuffix(e.Name(), "_index.vec"); ok {
			courses = append(courses, name)
		}
	}
	sort.Strings(courses)
	resp := map[string]any{"courses": courses}
	if s.courseRepo != nil {
		// Known courses from the catalog may not all have a store yet.
		known, err := s.courseRepo.ListCourses(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		resp["catalog"] = known
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCourseScoped(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, "/courses/")
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[0] == "" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	course := parts[0]
	switch parts[1] {
	case "stats":
		s.handleCourseStats(w, course)
	case "documents":
		s.handleCourseDocuments(w, r, course)
	case "runs":
		s.handleCourseRuns(w, r, course)
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

func (s *Server) handleCourseStats(w http.ResponseWriter, course string) {
	store, err := vectorstore.Load(s.cfg.StoreRoot, course)
	if err != nil {
		switch {
		case errors.Is(err, os.ErrNotExist):
			writeError(w, http.StatusNotFound, "no store for course "+course)
		case errors.Is(err, vectorstore.ErrStoreCorrupted):
			writeError(w, http.StatusInternalServerError, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"course":    course,
		"vectors":   store.Count(),
		"dimension": store.Dimension(),
		"index":     filepath.Base(vectorstore.IndexPath(s.cfg.StoreRoot, course)),
		"metadata":  filepath.Base(vectorstore.MetadataPath(s.cfg.StoreRoot, course)),
	})
}

func (s *Server) handleCourseDocuments(w http.ResponseWriter, r *http.Request, course string) {
	if s.docRepo == nil {
		writeError(w, http.StatusServiceUnavailable, "catalog is not configured")
		return
	}
	docs, err := s.docRepo.ListDocumentsByCourse(r.Context(), course)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": docs})
}

func (s *Server) handleCourseRuns(w http.ResponseWriter, r *http.Request, course string) {
	if s.runRepo == nil {
		writeError(w, http.StatusServiceUnavailable, "catalog is not configured")
		return
	}
	runs, err := s.runRepo.ListRunsByCourse(r.Context(), course, 20)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

type queryRequest struct {
	Course   string `json:"course"`
	Question string `json:"question"`
	Mode     string `json:"mode,omitempty"`
}

// handleQuery is the front-end boundary: the web form posts a course and a
// free-text question here. Retrieval and answer generation do not exist yet;
// the endpoint validates the request shape and says so.
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Course) == "" || strings.TrimSpace(req.Question) == "" {
		writeError(w, http.StatusBadRequest, "course and question are required")
		return
	}
	writeError(w, http.StatusNotImplemented, "query-time retrieval is not implemented yet")
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]any{"error": msg})
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
