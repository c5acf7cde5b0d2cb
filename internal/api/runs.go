package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/patrickwarner/openbidtuner/internal/db"
)

// TriggerRunRequest optionally restricts a run to specific campaigns.
type TriggerRunRequest struct {
	CampaignIDs []int `json:"campaign_ids,omitempty"`
}

// TriggerRunHandler starts a synchronous recommendation run for a country.
// A run already in flight for the same country returns 409.
func (s *Server) TriggerRunHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	const endpoint = "/runs"
	method := r.Method

	country := mux.Vars(r)["country"]
	if country == "" {
		s.Metrics.IncrementRequests(endpoint, method, "400")
		http.Error(w, "country is required", http.StatusBadRequest)
		return
	}

	var req TriggerRunRequest
	if r.Body != nil && r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.Metrics.IncrementRequests(endpoint, method, "400")
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
	}

	recs, summary, err := s.Engine.GenerateRecommendations(r.Context(), country, req.CampaignIDs)
	if errors.Is(err, db.ErrRunInProgress) {
		s.Metrics.IncrementRequests(endpoint, method, "409")
		http.Error(w, "run already in progress for "+country, http.StatusConflict)
		return
	}
	if err != nil {
		s.Logger.Error("recommendation run failed", zap.String("country", country), zap.Error(err))
		s.Metrics.IncrementRequests(endpoint, method, "500")
		s.Metrics.RecordRequestLatency(endpoint, method, time.Since(start))
		http.Error(w, "run failed: "+err.Error(), http.StatusInternalServerError)
		return
	}

	s.Metrics.IncrementRequests(endpoint, method, "200")
	s.Metrics.RecordRequestLatency(endpoint, method, time.Since(start))
	writeJSON(w, map[string]any{
		"summary":         summary,
		"recommendations": recs,
	})
}

// LatestRunHandler returns the cached summary of the most recent run for a country.
func (s *Server) LatestRunHandler(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/runs/latest"
	method := r.Method

	country := mux.Vars(r)["country"]
	summary, err := s.Summaries.LatestRunSummary(r.Context(), country)
	if errors.Is(err, db.ErrNotFound) {
		s.Metrics.IncrementRequests(endpoint, method, "404")
		http.Error(w, "no completed run for "+country, http.StatusNotFound)
		return
	}
	if err != nil {
		s.Logger.Error("latest run summary", zap.String("country", country), zap.Error(err))
		s.Metrics.IncrementRequests(endpoint, method, "500")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	s.Metrics.IncrementRequests(endpoint, method, "200")
	writeJSON(w, summary)
}
