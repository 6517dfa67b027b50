package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/inkhaven/inkhaven/internal/services/story/app"
	"github.com/inkhaven/inkhaven/internal/services/story/dice"
)

type requestRollRequest struct {
	SceneID     string          `json:"scene_id"`
	CharacterID string          `json:"character_id"`
	Dice        []dice.DiceSpec `json:"dice"`
}

func (h *handler) requestRoll(w http.ResponseWriter, r *http.Request) {
	campaignID := chi.URLParam(r, "campaignID")
	var req requestRollRequest
	if err := decodeJSON(r, &req); err != nil {
		respond(w, http.StatusBadRequest, errorResponse{Error: errorBody{Code: "BAD_JSON", Message: err.Error()}})
		return
	}

	record, err := h.svc.RequestRoll(r.Context(), identity(r, campaignID), app.RequestRollInput{
		CampaignID:  campaignID,
		SceneID:     req.SceneID,
		CharacterID: req.CharacterID,
		Dice:        req.Dice,
	})
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respond(w, http.StatusCreated, toRollView(record))
}

func (h *handler) getRoll(w http.ResponseWriter, r *http.Request) {
	campaignID := chi.URLParam(r, "campaignID")
	record, err := h.svc.GetRoll(r.Context(), identity(r, campaignID), campaignID, chi.URLParam(r, "rollID"))
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respond(w, http.StatusOK, toRollView(record))
}

func (h *handler) listPendingRolls(w http.ResponseWriter, r *http.Request) {
	campaignID := chi.URLParam(r, "campaignID")
	records, err := h.svc.ListPendingRolls(r.Context(), identity(r, campaignID), campaignID)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	views := make([]rollView, 0, len(records))
	for _, record := range records {
		views = append(views, toRollView(record))
	}
	respond(w, http.StatusOK, map[string][]rollView{"rolls": views})
}

func (h *handler) resolveRoll(w http.ResponseWriter, r *http.Request) {
	campaignID := chi.URLParam(r, "campaignID")
	record, err := h.svc.ResolveRoll(r.Context(), identity(r, campaignID), campaignID, chi.URLParam(r, "rollID"))
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respond(w, http.StatusOK, toRollView(record))
}
