package main

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/sells-group/terms-extractor/internal/config"
	"github.com/sells-group/terms-extractor/internal/engine"
	"github.com/sells-group/terms-extractor/internal/learning"
	"github.com/sells-group/terms-extractor/internal/model"
)

// resolveRequest is the JSON form of POST /v1/resolve. Content is base64.
type resolveRequest struct {
	EntityID string `json:"entity_id"`
	Name     string `json:"name"`
	Text     string `json:"text"`
	Content  []byte `json:"content"`
	Fallback bool   `json:"fallback"`
}

type api struct {
	svc       *engine.Service
	maxUpload int64
}

// newRouter builds the HTTP API. A nil gatherer leaves /metrics unmounted.
func newRouter(svc *engine.Service, gatherer prometheus.Gatherer, sc config.ServerConfig) http.Handler {
	maxUpload := int64(sc.MaxUploadMB) << 20
	if maxUpload <= 0 {
		maxUpload = 32 << 20
	}
	origins := sc.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	a := &api{svc: svc, maxUpload: maxUpload}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/v1", func(r chi.Router) {
		r.Post("/resolve", a.resolve)
		r.Post("/documents", a.registerDocument)
		r.Post("/corrections", a.correct)
		r.Get("/statistics", a.statistics)
		r.Get("/patterns", a.patterns)
		r.Get("/cache", a.cache)
		r.Delete("/cache", a.purgeCache)
		r.Post("/learning/batch", a.batch)
		r.Post("/learning/backlog", a.backlog)
	})
	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Debug("api: write response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// readDocument accepts either a multipart upload (entity_id, fallback and a
// "document" file part) or a JSON resolveRequest.
func (a *api) readDocument(w http.ResponseWriter, r *http.Request) (model.Document, bool, error) {
	r.Body = http.MaxBytesReader(w, r.Body, a.maxUpload)

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
		if err := r.ParseMultipartForm(a.maxUpload); err != nil {
			return model.Document{}, false, err
		}
		doc := model.Document{
			EntityID: r.FormValue("entity_id"),
			Name:     r.FormValue("name"),
			Text:     r.FormValue("text"),
		}
		fallback, _ := strconv.ParseBool(r.FormValue("fallback"))
		file, header, err := r.FormFile("document")
		switch {
		case errors.Is(err, http.ErrMissingFile):
		case err != nil:
			return doc, fallback, err
		default:
			defer file.Close() //nolint:errcheck
			if doc.Content, err = io.ReadAll(file); err != nil {
				return doc, fallback, err
			}
			if doc.Name == "" {
				doc.Name = header.Filename
			}
		}
		return doc, fallback, nil
	}

	var req resolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return model.Document{}, false, err
	}
	return model.Document{EntityID: req.EntityID, Name: req.Name, Text: req.Text, Content: req.Content}, req.Fallback, nil
}

func (a *api) resolve(w http.ResponseWriter, r *http.Request) {
	doc, fallback, err := a.readDocument(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(doc.EntityID) == "" {
		writeError(w, http.StatusBadRequest, "entity_id is required")
		return
	}

	var resp *engine.Response
	if fallback {
		resp, err = a.svc.ResolveWithFallback(r.Context(), doc)
	} else {
		resp, err = a.svc.Resolve(r.Context(), doc)
	}
	if err != nil {
		zap.L().Error("api: resolve failed", zap.String("entity_id", doc.EntityID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "resolve failed")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *api) registerDocument(w http.ResponseWriter, r *http.Request) {
	doc, _, err := a.readDocument(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(doc.EntityID) == "" {
		writeError(w, http.StatusBadRequest, "entity_id is required")
		return
	}
	if err := a.svc.RegisterDocument(r.Context(), doc); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"status": "registered", "entity_id": strings.TrimSpace(doc.EntityID)})
}

func (a *api) correct(w http.ResponseWriter, r *http.Request) {
	var c learning.Correction
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, a.maxUpload)).Decode(&c); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(c.EntityID) == "" {
		writeError(w, http.StatusBadRequest, "entity_id is required")
		return
	}
	rec, err := a.svc.LogCorrection(r.Context(), c)
	if err != nil {
		zap.L().Error("api: log correction failed", zap.String("entity_id", c.EntityID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "log correction failed")
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

func (a *api) statistics(w http.ResponseWriter, r *http.Request) {
	stats, err := a.svc.Statistics(r.Context())
	if err != nil {
		zap.L().Error("api: statistics failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "statistics unavailable")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (a *api) patterns(w http.ResponseWriter, r *http.Request) {
	activeOnly := true
	if v := r.URL.Query().Get("active"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "active must be a boolean")
			return
		}
		activeOnly = b
	}
	patterns, err := a.svc.Patterns(r.Context(), activeOnly)
	if err != nil {
		zap.L().Error("api: list patterns failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "patterns unavailable")
		return
	}
	if patterns == nil {
		patterns = []learning.ScoredPattern{}
	}
	writeJSON(w, http.StatusOK, patterns)
}

func (a *api) cache(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, a.svc.CacheMetrics())
}

func (a *api) purgeCache(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]int{"purged": a.svc.PurgeCache()})
}

func (a *api) batch(w http.ResponseWriter, r *http.Request) {
	report, err := a.svc.BatchLearn(r.Context())
	if err != nil {
		zap.L().Error("api: batch learn failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "batch learn failed")
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (a *api) backlog(w http.ResponseWriter, r *http.Request) {
	report, err := a.svc.ProcessBacklog(r.Context())
	if err != nil {
		zap.L().Error("api: backlog failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "backlog failed")
		return
	}
	writeJSON(w, http.StatusOK, report)
}
