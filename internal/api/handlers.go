package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/foxzi/campaigner/internal/campaign"
	"github.com/foxzi/campaigner/internal/email"
	"github.com/foxzi/campaigner/internal/models"
	"github.com/foxzi/campaigner/internal/transport"
)

// HealthResponse is returned by /health
type HealthResponse struct {
	Status string `json:"status"`
	Uptime string `json:"uptime"`
}

// CampaignSummary is a campaign without its recipient list
type CampaignSummary struct {
	Name            string                `json:"name"`
	Status          models.CampaignStatus `json:"status"`
	CreatedDate     time.Time             `json:"created_date"`
	CompletedDate   *time.Time            `json:"completed_date,omitempty"`
	TotalRecipients int                   `json:"total_recipients"`
	Statistics      *models.DispatchStats `json:"statistics,omitempty"`
}

// ErrorResponse is the body of every error
type ErrorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.sendJSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
		Uptime: time.Since(s.startTime).Round(time.Second).String(),
	})
}

func (s *Server) handleListCampaigns(w http.ResponseWriter, r *http.Request) {
	list, err := s.campaigns.List(r.Context())
	if err != nil {
		s.logger.Error("failed to list campaigns", "error", err)
		s.sendError(w, http.StatusInternalServerError, "failed to list campaigns")
		return
	}

	out := make([]CampaignSummary, 0, len(list))
	for _, c := range list {
		out = append(out, CampaignSummary{
			Name:            c.Name,
			Status:          c.Status,
			CreatedDate:     c.CreatedDate,
			CompletedDate:   c.CompletedDate,
			TotalRecipients: c.TotalRecipients,
			Statistics:      c.Statistics,
		})
	}
	s.sendJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetCampaign(w http.ResponseWriter, r *http.Request) {
	c, err := s.campaigns.Get(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		s.campaignError(w, err)
		return
	}
	s.sendJSON(w, http.StatusOK, c)
}

func (s *Server) handleCampaignHistory(w http.ResponseWriter, r *http.Request) {
	records, err := s.campaigns.History(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		s.campaignError(w, err)
		return
	}

	if status := r.URL.Query().Get("status"); status != "" {
		filtered := records[:0]
		for _, rec := range records {
			if string(rec.Status) == status {
				filtered = append(filtered, rec)
			}
		}
		records = filtered
	}
	if records == nil {
		records = []*models.HistoryRecord{}
	}
	s.sendJSON(w, http.StatusOK, records)
}

func (s *Server) handleSuppressionCount(w http.ResponseWriter, r *http.Request) {
	n, err := s.suppressions.CountSuppressions(r.Context())
	if err != nil {
		s.logger.Error("failed to count suppressions", "error", err)
		s.sendError(w, http.StatusInternalServerError, "failed to count suppressions")
		return
	}
	s.sendJSON(w, http.StatusOK, map[string]int{"total": n})
}

func (s *Server) handleSuppressionCheck(w http.ResponseWriter, r *http.Request) {
	addr := email.Normalize(chi.URLParam(r, "email"))
	if !email.IsValid(addr) {
		s.sendError(w, http.StatusBadRequest, "invalid email")
		return
	}

	suppressed, err := s.suppressions.IsSuppressed(r.Context(), addr)
	if err != nil {
		s.logger.Error("failed to check suppression", "error", err)
		s.sendError(w, http.StatusInternalServerError, "failed to check suppression")
		return
	}
	s.sendJSON(w, http.StatusOK, map[string]any{"email": addr, "suppressed": suppressed})
}

func (s *Server) handleSandboxMessages(w http.ResponseWriter, r *http.Request) {
	filter := transport.SandboxFilter{
		Campaign: r.URL.Query().Get("campaign"),
		To:       r.URL.Query().Get("to"),
		Limit:    100,
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			s.sendError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		filter.Limit = n
	}

	msgs, err := s.sandbox.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("failed to list sandbox messages", "error", err)
		s.sendError(w, http.StatusInternalServerError, "failed to list sandbox messages")
		return
	}
	if msgs == nil {
		msgs = []*transport.Captured{}
	}
	s.sendJSON(w, http.StatusOK, msgs)
}

func (s *Server) campaignError(w http.ResponseWriter, err error) {
	if errors.Is(err, campaign.ErrCampaignNotFound) {
		s.sendError(w, http.StatusNotFound, "campaign not found")
		return
	}
	s.logger.Error("campaign lookup failed", "error", err)
	s.sendError(w, http.StatusInternalServerError, "campaign lookup failed")
}

func (s *Server) sendJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) sendError(w http.ResponseWriter, status int, message string) {
	s.sendJSON(w, status, ErrorResponse{Error: message})
}
