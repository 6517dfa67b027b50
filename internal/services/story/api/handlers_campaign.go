package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

type createCampaignRequest struct {
	Name string `json:"name"`
}

func (h *handler) createCampaign(w http.ResponseWriter, r *http.Request) {
	var req createCampaignRequest
	if err := decodeJSON(r, &req); err != nil {
		respond(w, http.StatusBadRequest, errorResponse{Error: errorBody{Code: "BAD_JSON", Message: err.Error()}})
		return
	}

	record, err := h.svc.CreateCampaign(r.Context(), identity(r, ""), req.Name)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respond(w, http.StatusCreated, toCampaignView(record))
}

func (h *handler) getCampaign(w http.ResponseWriter, r *http.Request) {
	campaignID := chi.URLParam(r, "campaignID")
	record, err := h.svc.GetCampaign(r.Context(), identity(r, campaignID), campaignID)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respond(w, http.StatusOK, toCampaignView(record))
}

type campaignPageResponse struct {
	Campaigns     []campaignView `json:"campaigns"`
	NextPageToken string         `json:"next_page_token,omitempty"`
}

func (h *handler) listCampaigns(w http.ResponseWriter, r *http.Request) {
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
	page, err := h.svc.ListCampaigns(r.Context(), pageSize, r.URL.Query().Get("page_token"))
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	views := make([]campaignView, 0, len(page.Campaigns))
	for _, record := range page.Campaigns {
		views = append(views, toCampaignView(record))
	}
	respond(w, http.StatusOK, campaignPageResponse{Campaigns: views, NextPageToken: page.NextPageToken})
}

func (h *handler) deleteCampaign(w http.ResponseWriter, r *http.Request) {
	campaignID := chi.URLParam(r, "campaignID")
	if err := h.svc.DeleteCampaign(r.Context(), identity(r, campaignID), campaignID); err != nil {
		respondError(w, h.logger, err)
		return
	}
	respond(w, http.StatusNoContent, nil)
}

func (h *handler) pauseCampaign(w http.ResponseWriter, r *http.Request) {
	campaignID := chi.URLParam(r, "campaignID")
	record, err := h.svc.PauseCampaign(r.Context(), identity(r, campaignID), campaignID)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respond(w, http.StatusOK, toCampaignView(record))
}

func (h *handler) unpauseCampaign(w http.ResponseWriter, r *http.Request) {
	campaignID := chi.URLParam(r, "campaignID")
	record, err := h.svc.UnpauseCampaign(r.Context(), identity(r, campaignID), campaignID)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respond(w, http.StatusOK, toCampaignView(record))
}

func (h *handler) beginResolve(w http.ResponseWriter, r *http.Request) {
	campaignID := chi.URLParam(r, "campaignID")
	record, err := h.svc.BeginResolve(r.Context(), identity(r, campaignID), campaignID)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respond(w, http.StatusOK, toCampaignView(record))
}

func (h *handler) forceResolve(w http.ResponseWriter, r *http.Request) {
	campaignID := chi.URLParam(r, "campaignID")
	record, err := h.svc.ForceResolve(r.Context(), identity(r, campaignID), campaignID)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respond(w, http.StatusOK, toCampaignView(record))
}

func (h *handler) beginWrite(w http.ResponseWriter, r *http.Request) {
	campaignID := chi.URLParam(r, "campaignID")
	record, err := h.svc.BeginWrite(r.Context(), identity(r, campaignID), campaignID)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respond(w, http.StatusOK, toCampaignView(record))
}

type statisticsResponse struct {
	Campaigns  int64 `json:"campaigns"`
	Scenes     int64 `json:"scenes"`
	Characters int64 `json:"characters"`
	Posts      int64 `json:"posts"`
	Locks      int64 `json:"locks"`
}

func (h *handler) getStatistics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.Statistics(r.Context())
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respond(w, http.StatusOK, statisticsResponse{
		Campaigns:  stats.CampaignCount,
		Scenes:     stats.SceneCount,
		Characters: stats.CharacterCount,
		Posts:      stats.PostCount,
		Locks:      stats.LockCount,
	})
}
