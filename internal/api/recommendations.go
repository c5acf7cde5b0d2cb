package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/patrickwarner/openbidtuner/internal/db"
)

// ListRecommendationsHandler returns stored recommendations, newest first.
// Query parameters: country, campaign_id, unimplemented=true, limit.
func (s *Server) ListRecommendationsHandler(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/api/recommendations"
	method := r.Method

	f := db.RecommendationFilter{
		Country: r.URL.Query().Get("country"),
	}
	if v := r.URL.Query().Get("campaign_id"); v != "" {
		id, err := strconv.Atoi(v)
		if err != nil {
			s.Metrics.IncrementRequests(endpoint, method, "400")
			http.Error(w, "invalid campaign_id", http.StatusBadRequest)
			return
		}
		f.CampaignID = id
	}
	if v := r.URL.Query().Get("unimplemented"); v == "true" || v == "1" {
		f.UnimplementedOnly = true
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.Metrics.IncrementRequests(endpoint, method, "400")
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		f.Limit = n
	}

	recs, err := s.PG.ListRecommendations(r.Context(), f)
	if err != nil {
		s.Logger.Error("list recommendations", zap.Error(err))
		s.Metrics.IncrementRequests(endpoint, method, "500")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	s.Metrics.IncrementRequests(endpoint, method, "200")
	writeJSON(w, recs)
}

// GetRecommendationHandler returns a single recommendation by ID.
func (s *Server) GetRecommendationHandler(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/api/recommendations/{id}"
	method := r.Method

	id := mux.Vars(r)["id"]
	rec, err := s.PG.GetRecommendation(r.Context(), id)
	if errors.Is(err, db.ErrNotFound) {
		s.Metrics.IncrementRequests(endpoint, method, "404")
		http.Error(w, "recommendation not found", http.StatusNotFound)
		return
	}
	if err != nil {
		s.Logger.Error("get recommendation", zap.String("id", id), zap.Error(err))
		s.Metrics.IncrementRequests(endpoint, method, "500")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	s.Metrics.IncrementRequests(endpoint, method, "200")
	writeJSON(w, rec)
}

// MarkImplementedHandler stamps a recommendation as applied on the platform.
// Marking twice returns 404 since the row is no longer unimplemented.
func (s *Server) MarkImplementedHandler(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/api/recommendations/{id}/implemented"
	method := r.Method

	id := mux.Vars(r)["id"]
	if err := s.PG.MarkImplemented(r.Context(), id, time.Now().UTC()); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			s.Metrics.IncrementRequests(endpoint, method, "404")
			http.Error(w, "recommendation not found or already implemented", http.StatusNotFound)
			return
		}
		s.Logger.Error("mark implemented", zap.String("id", id), zap.Error(err))
		s.Metrics.IncrementRequests(endpoint, method, "500")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	s.Metrics.IncrementRequests(endpoint, method, "200")
	writeJSON(w, map[string]string{"status": "implemented", "id": id})
}
