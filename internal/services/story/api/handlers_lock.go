package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/inkhaven/inkhaven/internal/services/story/app"
)

type acquireLockRequest struct {
	CharacterID string `json:"character_id"`
	Hidden      bool   `json:"hidden,omitempty"`
}

func (h *handler) acquireLock(w http.ResponseWriter, r *http.Request) {
	campaignID := chi.URLParam(r, "campaignID")
	var req acquireLockRequest
	if err := decodeJSON(r, &req); err != nil {
		respond(w, http.StatusBadRequest, errorResponse{Error: errorBody{Code: "BAD_JSON", Message: err.Error()}})
		return
	}

	record, err := h.svc.AcquireLock(r.Context(), identity(r, campaignID), app.AcquireLockInput{
		CampaignID:  campaignID,
		SceneID:     chi.URLParam(r, "sceneID"),
		CharacterID: req.CharacterID,
		Hidden:      req.Hidden,
	})
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respond(w, http.StatusCreated, toLockView(record))
}

func (h *handler) listLocks(w http.ResponseWriter, r *http.Request) {
	campaignID := chi.URLParam(r, "campaignID")
	records, err := h.svc.ListLocks(r.Context(), identity(r, campaignID), campaignID)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	views := make([]lockView, 0, len(records))
	for _, record := range records {
		views = append(views, toLockView(record))
	}
	respond(w, http.StatusOK, map[string][]lockView{"locks": views})
}

func (h *handler) heartbeatLock(w http.ResponseWriter, r *http.Request) {
	campaignID := chi.URLParam(r, "campaignID")
	record, err := h.svc.HeartbeatLock(r.Context(), identity(r, campaignID), campaignID, chi.URLParam(r, "lockID"))
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respond(w, http.StatusOK, toLockView(record))
}

func (h *handler) releaseLock(w http.ResponseWriter, r *http.Request) {
	campaignID := chi.URLParam(r, "campaignID")
	err := h.svc.ReleaseLock(r.Context(), identity(r, campaignID), campaignID,
		chi.URLParam(r, "sceneID"), chi.URLParam(r, "characterID"))
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respond(w, http.StatusNoContent, nil)
}

func (h *handler) forceReleaseLock(w http.ResponseWriter, r *http.Request) {
	campaignID := chi.URLParam(r, "campaignID")
	err := h.svc.ForceReleaseLock(r.Context(), identity(r, campaignID), campaignID, chi.URLParam(r, "lockID"))
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respond(w, http.StatusNoContent, nil)
}
