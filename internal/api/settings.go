package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/patrickwarner/openbidtuner/internal/db"
	"github.com/patrickwarner/openbidtuner/internal/models"
)

// GetWeightsHandler returns the window weights used for a country, including
// the global or built-in fallback when no country row exists.
func (s *Server) GetWeightsHandler(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/api/weights"
	method := r.Method

	country := mux.Vars(r)["country"]
	weights, err := s.PG.GetWeights(r.Context(), country)
	if err != nil {
		s.Logger.Error("get weights", zap.String("country", country), zap.Error(err))
		s.Metrics.IncrementRequests(endpoint, method, "500")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	s.Metrics.IncrementRequests(endpoint, method, "200")
	writeJSON(w, weights)
}

// PutWeightsHandler writes the window weights for a country. Weights must be
// non-negative and sum to 1.0.
func (s *Server) PutWeightsHandler(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/api/weights"
	method := r.Method

	var weights models.Weights
	if err := json.NewDecoder(r.Body).Decode(&weights); err != nil {
		s.Metrics.IncrementRequests(endpoint, method, "400")
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	weights.Country = mux.Vars(r)["country"]
	if err := weights.Validate(); err != nil {
		s.Metrics.IncrementRequests(endpoint, method, "400")
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := s.PG.UpsertWeights(r.Context(), weights); err != nil {
		s.Logger.Error("upsert weights", zap.String("country", weights.Country), zap.Error(err))
		s.Metrics.IncrementRequests(endpoint, method, "500")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	s.Metrics.IncrementRequests(endpoint, method, "200")
	writeJSON(w, weights)
}

// TargetPayload is the body for writing a campaign's target ACOS.
type TargetPayload struct {
	Country    string  `json:"country"`
	TargetACOS float64 `json:"target_acos"`
}

// GetTargetHandler returns the configured target ACOS for a campaign.
func (s *Server) GetTargetHandler(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/api/targets"
	method := r.Method

	campaignID, err := strconv.Atoi(mux.Vars(r)["campaignID"])
	if err != nil {
		s.Metrics.IncrementRequests(endpoint, method, "400")
		http.Error(w, "invalid campaign id", http.StatusBadRequest)
		return
	}

	target, err := s.PG.GetTarget(r.Context(), campaignID)
	if errors.Is(err, db.ErrNotFound) {
		s.Metrics.IncrementRequests(endpoint, method, "404")
		http.Error(w, "no target configured", http.StatusNotFound)
		return
	}
	if err != nil {
		s.Logger.Error("get target", zap.Int("campaign_id", campaignID), zap.Error(err))
		s.Metrics.IncrementRequests(endpoint, method, "500")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	s.Metrics.IncrementRequests(endpoint, method, "200")
	writeJSON(w, map[string]any{"campaign_id": campaignID, "target_acos": target})
}

// PutTargetHandler writes the target ACOS for a campaign.
func (s *Server) PutTargetHandler(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/api/targets"
	method := r.Method

	campaignID, err := strconv.Atoi(mux.Vars(r)["campaignID"])
	if err != nil {
		s.Metrics.IncrementRequests(endpoint, method, "400")
		http.Error(w, "invalid campaign id", http.StatusBadRequest)
		return
	}

	var payload TargetPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		s.Metrics.IncrementRequests(endpoint, method, "400")
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if payload.TargetACOS <= 0 || payload.TargetACOS >= 10 {
		s.Metrics.IncrementRequests(endpoint, method, "400")
		http.Error(w, "target_acos must be a positive ratio", http.StatusBadRequest)
		return
	}
	if payload.Country == "" {
		s.Metrics.IncrementRequests(endpoint, method, "400")
		http.Error(w, "country is required", http.StatusBadRequest)
		return
	}

	if err := s.PG.UpsertTarget(r.Context(), campaignID, payload.Country, payload.TargetACOS); err != nil {
		s.Logger.Error("upsert target", zap.Int("campaign_id", campaignID), zap.Error(err))
		s.Metrics.IncrementRequests(endpoint, method, "500")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	s.Metrics.IncrementRequests(endpoint, method, "200")
	writeJSON(w, map[string]any{"campaign_id": campaignID, "country": payload.Country, "target_acos": payload.TargetACOS})
}

// RecordChangeHandler appends one bid change to the history. Implemented
// recommendations should be recorded here so the cooldown gate and T0 window
// see them.
func (s *Server) RecordChangeHandler(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/api/changes"
	method := r.Method

	var change models.BidChange
	if err := json.NewDecoder(r.Body).Decode(&change); err != nil {
		s.Metrics.IncrementRequests(endpoint, method, "400")
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if change.Entity.CampaignID <= 0 || change.Entity.Targeting == "" {
		s.Metrics.IncrementRequests(endpoint, method, "400")
		http.Error(w, "entity campaign_id and targeting are required", http.StatusBadRequest)
		return
	}
	if change.Entity.Kind != models.EntityKeyword && change.Entity.Kind != models.EntityPlacement {
		s.Metrics.IncrementRequests(endpoint, method, "400")
		http.Error(w, "entity kind must be keyword or placement", http.StatusBadRequest)
		return
	}
	if change.ChangeDate.IsZero() {
		change.ChangeDate = time.Now().UTC()
	}

	if err := s.PG.InsertBidChange(r.Context(), change); err != nil {
		s.Logger.Error("insert bid change", zap.String("entity", change.Entity.Key()), zap.Error(err))
		s.Metrics.IncrementRequests(endpoint, method, "500")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	s.Metrics.IncrementRequests(endpoint, method, "201")
	w.WriteHeader(http.StatusCreated)
	writeJSON(w, change)
}
