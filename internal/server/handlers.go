package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"runtime"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/grainflow/grainflow/internal/domain"
	"github.com/grainflow/grainflow/internal/modules/accumulators"
	"github.com/grainflow/grainflow/internal/modules/signals"
)

// handleHealth reports database integrity.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := http.StatusOK
	databases := make(map[string]string, len(s.databases))
	for _, db := range s.databases {
		if err := db.HealthCheck(ctx); err != nil {
			databases[db.Name()] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		databases[db.Name()] = "ok"
	}

	overall := "healthy"
	if status != http.StatusOK {
		overall = "degraded"
	}

	s.writeJSON(w, status, map[string]interface{}{
		"status":    overall,
		"service":   "grainflow",
		"databases": databases,
	})
}

// handleSystemInfo reports host resource usage and process uptime.
func (s *Server) handleSystemInfo(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"uptime_seconds": int64(time.Since(s.startupTime).Seconds()),
		"goroutines":     runtime.NumGoroutine(),
	}

	if vm, err := mem.VirtualMemory(); err == nil {
		response["memory"] = map[string]interface{}{
			"total_mb":     vm.Total / 1024 / 1024,
			"used_mb":      vm.Used / 1024 / 1024,
			"used_percent": vm.UsedPercent,
		}
	}

	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		response["cpu_percent"] = percents[0]
	}

	s.writeJSON(w, http.StatusOK, response)
}

type signalResponse struct {
	UUID               string          `json:"uuid"`
	BusinessID         string          `json:"business_id"`
	Instrument         string          `json:"instrument"`
	Commodity          string          `json:"commodity"`
	CropYear           int             `json:"crop_year"`
	IsNewCrop          bool            `json:"is_new_crop"`
	Strength           string          `json:"strength"`
	Status             string          `json:"status"`
	CurrentPrice       float64         `json:"current_price"`
	TargetPrice        float64         `json:"target_price"`
	BreakEven          float64         `json:"break_even"`
	Title              string          `json:"title"`
	Summary            string          `json:"summary"`
	Rationale          string          `json:"rationale"`
	RecommendedBushels *float64        `json:"recommended_bushels,omitempty"`
	ContextType        string          `json:"context_type"`
	Context            json.RawMessage `json:"context,omitempty"`
	ExpiresAt          time.Time       `json:"expires_at"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

func toSignalResponse(sig *domain.MarketingSignal) signalResponse {
	return signalResponse{
		UUID:               sig.UUID,
		BusinessID:         sig.BusinessID,
		Instrument:         string(sig.Instrument),
		Commodity:          string(sig.Commodity),
		CropYear:           sig.CropYear,
		IsNewCrop:          sig.IsNewCrop,
		Strength:           string(sig.Strength),
		Status:             string(sig.Status),
		CurrentPrice:       sig.CurrentPrice,
		TargetPrice:        sig.TargetPrice,
		BreakEven:          sig.BreakEven,
		Title:              sig.Title,
		Summary:            sig.Summary,
		Rationale:          sig.Rationale,
		RecommendedBushels: sig.RecommendedBushels,
		ContextType:        string(sig.ContextType),
		Context:            json.RawMessage(sig.Context),
		ExpiresAt:          sig.ExpiresAt,
		CreatedAt:          sig.CreatedAt,
		UpdatedAt:          sig.UpdatedAt,
	}
}

// handleListSignals returns the active signals for a business and stamps
// their first-viewed time.
func (s *Server) handleListSignals(w http.ResponseWriter, r *http.Request) {
	businessID := r.URL.Query().Get("business_id")
	if businessID == "" {
		s.writeError(w, http.StatusBadRequest, "business_id is required")
		return
	}

	active, err := s.signals.ActiveForBusiness(businessID)
	if err != nil {
		s.log.Error().Err(err).Str("business_id", businessID).Msg("Failed to list signals")
		s.writeError(w, http.StatusInternalServerError, "failed to list signals")
		return
	}

	response := make([]signalResponse, 0, len(active))
	for _, sig := range active {
		response = append(response, toSignalResponse(sig))
		if err := s.signals.MarkViewed(sig.UUID); err != nil {
			s.log.Warn().Err(err).Str("signal", sig.UUID).Msg("Failed to mark signal viewed")
		}
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"signals": response,
		"count":   len(response),
	})
}

// handleDismissSignal marks a signal as dismissed by the operator.
func (s *Server) handleDismissSignal(w http.ResponseWriter, r *http.Request) {
	s.transitionSignal(w, chi.URLParam(r, "id"), "dismissed", s.signals.Dismiss)
}

// handleSignalActed marks a signal as acted upon.
func (s *Server) handleSignalActed(w http.ResponseWriter, r *http.Request) {
	s.transitionSignal(w, chi.URLParam(r, "id"), "triggered", s.signals.MarkActioned)
}

func (s *Server) transitionSignal(w http.ResponseWriter, id, outcome string, apply func(string) error) {
	err := apply(id)
	switch {
	case errors.Is(err, signals.ErrSignalNotFound):
		s.writeError(w, http.StatusNotFound, "signal not found")
	case errors.Is(err, signals.ErrTerminalSignal):
		s.writeError(w, http.StatusConflict, "signal already resolved")
	case err != nil:
		s.log.Error().Err(err).Str("signal", id).Msg("Failed to transition signal")
		s.writeError(w, http.StatusInternalServerError, "failed to update signal")
	default:
		s.writeJSON(w, http.StatusOK, map[string]string{"uuid": id, "status": outcome})
	}
}

type contractResponse struct {
	ID                string  `json:"id"`
	BusinessID        string  `json:"business_id"`
	Commodity         string  `json:"commodity"`
	Variant           string  `json:"variant"`
	BasePrice         float64 `json:"base_price"`
	KnockoutPrice     float64 `json:"knockout_price"`
	DoubleUpPrice     float64 `json:"double_up_price"`
	DailyBushels      float64 `json:"daily_bushels"`
	TotalBushels      float64 `json:"total_bushels"`
	StartDate         string  `json:"start_date"`
	EndDate           string  `json:"end_date"`
	MarketedBushels   float64 `json:"marketed_bushels"`
	DoubledBushels    float64 `json:"doubled_bushels"`
	KnockedOut        bool    `json:"knocked_out"`
	CurrentlyDoubled  bool    `json:"currently_doubled"`
	LastProcessedDate *string `json:"last_processed_date,omitempty"`
}

// handleListAccumulators returns a business's contracts with accrual state.
func (s *Server) handleListAccumulators(w http.ResponseWriter, r *http.Request) {
	businessID := r.URL.Query().Get("business_id")
	if businessID == "" {
		s.writeError(w, http.StatusBadRequest, "business_id is required")
		return
	}

	contracts, states, err := s.accumulators.ForBusiness(businessID)
	if err != nil {
		s.log.Error().Err(err).Str("business_id", businessID).Msg("Failed to list accumulators")
		s.writeError(w, http.StatusInternalServerError, "failed to list accumulators")
		return
	}

	response := make([]contractResponse, 0, len(contracts))
	for _, c := range contracts {
		resp := contractResponse{
			ID:            c.ID,
			BusinessID:    c.BusinessID,
			Commodity:     string(c.Commodity),
			Variant:       string(c.Variant),
			BasePrice:     c.BasePrice,
			KnockoutPrice: c.KnockoutPrice,
			DoubleUpPrice: c.DoubleUpPrice,
			DailyBushels:  c.DailyBushels,
			TotalBushels:  c.TotalBushels,
			StartDate:     c.StartDate.Format(accumulators.DateLayout),
			EndDate:       c.EndDate.Format(accumulators.DateLayout),
		}
		if state, ok := states[c.ID]; ok {
			resp.MarketedBushels = state.BushelsMarketed
			resp.DoubledBushels = state.BushelsDoubled
			resp.KnockedOut = state.KnockedOut
			resp.CurrentlyDoubled = state.CurrentlyDoubled
			if state.LastProcessed != nil {
				formatted := state.LastProcessed.Format(accumulators.DateLayout)
				resp.LastProcessedDate = &formatted
			}
		}
		response = append(response, resp)
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"contracts": response,
		"count":     len(response),
	})
}

// handleListJobs returns the registered background job names.
func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"jobs": s.jobs.JobNames()})
}

// handleRunJob triggers a background job outside its schedule.
func (s *Server) handleRunJob(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if err := s.jobs.RunNow(name); err != nil {
		s.writeError(w, http.StatusNotFound, err.Error())
		return
	}
	s.writeJSON(w, http.StatusAccepted, map[string]string{"job": name, "status": "started"})
}

// writeJSON writes a JSON response.
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeError writes a JSON error response.
func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
