package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/openplan/storyplan/internal/config"
	"github.com/openplan/storyplan/internal/graph"
	"github.com/openplan/storyplan/internal/parser"
	"github.com/openplan/storyplan/internal/planner"
	"github.com/openplan/storyplan/internal/storage"
)

// Server is the REST API server. It owns snapshot persistence and plan
// history; the graph and planner calls underneath it are pure.
type Server struct {
	config  *config.Config
	storage storage.Storage
	hub     *Hub

	mu      sync.RWMutex
	server  *http.Server
	running bool
}

// NewServer creates a new API server
func NewServer(cfg *config.Config, store storage.Storage) *Server {
	return &Server{
		config:  cfg,
		storage: store,
		hub:     NewHub(),
	}
}

// Hub returns the WebSocket hub for event broadcasting
func (s *Server) Hub() *Hub {
	return s.hub
}

// RefreshFromFile parses the configured stories file and stores the snapshot.
// Used at startup and by the file watcher.
func (s *Server) RefreshFromFile(ctx context.Context) error {
	doc, err := parser.ParseStoriesFile(s.config.StoriesPath)
	if err != nil {
		return fmt.Errorf("refresh stories: %w", err)
	}
	if err := s.storage.SaveSnapshot(ctx, doc.ID, doc.Name, doc.Stories); err != nil {
		return fmt.Errorf("refresh stories: %w", err)
	}
	s.hub.Broadcast(EventSnapshotRefreshed, SnapshotRefreshedData{
		DocumentID: doc.ID,
		StoryCount: len(doc.Stories),
	})
	return nil
}

// Start starts the API server on the configured port
func (s *Server) Start() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("server already running")
	}
	s.running = true

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.APIPort),
		Handler:      s.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	s.mu.Unlock()

	go s.hub.Run()

	return s.server.ListenAndServe()
}

// Stop stops the API server
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}
	s.running = false
	s.hub.Stop()

	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// Routes configures all API routes
func (s *Server) Routes() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(corsMiddleware(s.config.CORSAllowedOrigins))

	// Health check (public, no auth required)
	r.Get("/health", s.healthHandler)

	r.Route("/api", func(r chi.Router) {
		r.Use(apiKeyAuthMiddleware(s.config.APIKey))

		// Documents and snapshots
		r.Get("/documents", s.listDocumentsHandler)
		r.Post("/documents/refresh", s.refreshDocumentsHandler)
		r.Get("/documents/{id}/stories", s.getStoriesHandler)

		// Engine queries
		r.Get("/documents/{id}/graph", s.getGraphHandler)
		r.Get("/documents/{id}/validation", s.getValidationHandler)
		r.Post("/documents/{id}/schedule", s.scheduleHandler)

		// Plan history
		r.Get("/plans", s.listPlansHandler)
		r.Get("/plans/{id}", s.getPlanHandler)
		r.Delete("/plans/{id}", s.deletePlanHandler)

		// WebSocket endpoint
		r.Get("/ws", s.hub.ServeWs)
	})

	return r
}

// corsMiddleware creates CORS middleware requiring explicit origin
// configuration; wildcard patterns like "http://localhost:*" are supported
func corsMiddleware(allowedOrigins []string) func(http.Handler) http.Handler {
	exactOrigins := make(map[string]bool)
	var patterns []string
	for _, origin := range allowedOrigins {
		if strings.Contains(origin, "*") {
			patterns = append(patterns, origin)
		} else {
			exactOrigins[origin] = true
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			allowed := false
			if origin != "" {
				if exactOrigins[origin] {
					allowed = true
				} else {
					for _, pattern := range patterns {
						if matchOriginPattern(origin, pattern) {
							allowed = true
							break
						}
					}
				}
			}

			if allowed {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Credentials", "true")
			}

			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type, X-API-Key")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// apiKeyAuthMiddleware validates the API key from the X-API-Key header or a
// Bearer token. An empty configured key disables authentication.
func apiKeyAuthMiddleware(apiKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if apiKey == "" {
				next.ServeHTTP(w, r)
				return
			}

			providedKey := r.Header.Get("X-API-Key")
			if providedKey == "" {
				if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
					providedKey = strings.TrimPrefix(auth, "Bearer ")
				}
			}

			if providedKey != apiKey {
				http.Error(w, `{"error": "unauthorized"}`, http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// matchOriginPattern checks if an origin matches a pattern with wildcards,
// e.g. "http://localhost:3000" matches "http://localhost:*"
func matchOriginPattern(origin, pattern string) bool {
	if strings.HasSuffix(pattern, "*") {
		return strings.HasPrefix(origin, strings.TrimSuffix(pattern, "*"))
	}
	if strings.HasPrefix(pattern, "*.") {
		suffix := strings.TrimPrefix(pattern, "*")
		parts := strings.SplitN(origin, "://", 2)
		if len(parts) == 2 {
			host := strings.Split(parts[1], "/")[0]
			host = strings.Split(host, ":")[0]
			return strings.HasSuffix(host, suffix) || host == strings.TrimPrefix(suffix, ".")
		}
	}
	return false
}

// Response helpers

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// Handlers

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) listDocumentsHandler(w http.ResponseWriter, r *http.Request) {
	docs, err := s.storage.ListDocuments(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	out := make([]map[string]interface{}, 0, len(docs))
	for _, d := range docs {
		out = append(out, map[string]interface{}{
			"id":         d.ID,
			"name":       d.Name,
			"storyCount": d.StoryCount,
			"updatedAt":  d.UpdatedAt,
		})
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"documents": out,
		"count":     len(out),
	})
}

func (s *Server) refreshDocumentsHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.RefreshFromFile(r.Context()); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "refreshed"})
}

func (s *Server) getStoriesHandler(w http.ResponseWriter, r *http.Request) {
	documentID := chi.URLParam(r, "id")

	stories, err := s.storage.GetSnapshot(r.Context(), documentID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if len(stories) == 0 {
		respondError(w, http.StatusNotFound, "document not found")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"documentId": documentID,
		"stories":    stories,
		"count":      len(stories),
	})
}

func (s *Server) getGraphHandler(w http.ResponseWriter, r *http.Request) {
	documentID := chi.URLParam(r, "id")

	stories, err := s.storage.GetSnapshot(r.Context(), documentID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if len(stories) == 0 {
		respondError(w, http.StatusNotFound, "document not found")
		return
	}

	respondJSON(w, http.StatusOK, graph.Build(documentID, stories))
}

func (s *Server) getValidationHandler(w http.ResponseWriter, r *http.Request) {
	documentID := chi.URLParam(r, "id")

	stories, err := s.storage.GetSnapshot(r.Context(), documentID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if len(stories) == 0 {
		respondError(w, http.StatusNotFound, "document not found")
		return
	}

	respondJSON(w, http.StatusOK, planner.Validate(stories))
}

// scheduleRequest is the body of POST /documents/{id}/schedule
type scheduleRequest struct {
	Capacity     int                       `json:"capacity"`
	CapacityMode string                    `json:"capacityMode"`
	Candidate    *planner.SprintAssignment `json:"candidate,omitempty"`
	Save         *bool                     `json:"save,omitempty"`
}

func (s *Server) scheduleHandler(w http.ResponseWriter, r *http.Request) {
	documentID := chi.URLParam(r, "id")

	var req scheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	mode, err := planner.ParseCapacityMode(req.CapacityMode)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	stories, err := s.storage.GetSnapshot(r.Context(), documentID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if len(stories) == 0 {
		respondError(w, http.StatusNotFound, "document not found")
		return
	}

	plan, err := planner.Schedule(stories, req.Capacity, mode, req.Candidate)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	response := map[string]interface{}{
		"documentId": documentID,
		"plan":       plan,
		"violations": planner.CheckPrecedence(plan, stories),
	}

	if req.Save == nil || *req.Save {
		planID, err := s.storage.SavePlan(r.Context(), documentID, req.Capacity, mode, plan)
		if err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		response["planId"] = planID
		s.hub.Broadcast(EventPlanSaved, PlanSavedData{
			DocumentID:   documentID,
			PlanID:       planID,
			TotalSprints: plan.TotalSprints,
		})
	}

	respondJSON(w, http.StatusOK, response)
}

func (s *Server) listPlansHandler(w http.ResponseWriter, r *http.Request) {
	filter := &storage.PlanFilter{
		DocumentID: r.URL.Query().Get("document"),
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Limit = n
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Offset = n
		}
	}

	plans, err := s.storage.ListPlans(r.Context(), filter)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	out := make([]map[string]interface{}, 0, len(plans))
	for _, p := range plans {
		out = append(out, map[string]interface{}{
			"id":           p.ID,
			"documentId":   p.DocumentID,
			"capacity":     p.Capacity,
			"capacityMode": p.CapacityMode,
			"totalWeight":  p.TotalWeight,
			"totalSprints": p.TotalSprints,
			"createdAt":    p.CreatedAt,
		})
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"plans": out,
		"count": len(out),
	})
}

func (s *Server) getPlanHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	rec, err := s.storage.GetPlan(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusNotFound, "plan not found")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"id":           rec.ID,
		"documentId":   rec.DocumentID,
		"capacity":     rec.Capacity,
		"capacityMode": rec.CapacityMode,
		"createdAt":    rec.CreatedAt,
		"plan":         rec.Assignment,
	})
}

func (s *Server) deletePlanHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := s.storage.DeletePlan(r.Context(), id); err != nil {
		respondError(w, http.StatusNotFound, "plan not found")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
