package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/inkhaven/inkhaven/internal/platform/errors"
	"github.com/inkhaven/inkhaven/internal/services/story/app"
	"github.com/inkhaven/inkhaven/internal/services/story/domain/character"
	"github.com/inkhaven/inkhaven/internal/services/story/domain/pass"
)

type createCharacterRequest struct {
	Name             string `json:"name"`
	Kind             string `json:"kind"`
	ControllerUserID string `json:"controller_user_id,omitempty"`
}

func (h *handler) createCharacter(w http.ResponseWriter, r *http.Request) {
	campaignID := chi.URLParam(r, "campaignID")
	var req createCharacterRequest
	if err := decodeJSON(r, &req); err != nil {
		respond(w, http.StatusBadRequest, errorResponse{Error: errorBody{Code: "BAD_JSON", Message: err.Error()}})
		return
	}

	kind, _ := character.ParseKind(req.Kind)
	record, err := h.svc.CreateCharacter(r.Context(), identity(r, campaignID), app.CreateCharacterInput{
		CampaignID:       campaignID,
		Name:             req.Name,
		Kind:             kind,
		ControllerUserID: req.ControllerUserID,
	})
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respond(w, http.StatusCreated, toCharacterView(record))
}

func (h *handler) getCharacter(w http.ResponseWriter, r *http.Request) {
	campaignID := chi.URLParam(r, "campaignID")
	record, err := h.svc.GetCharacter(r.Context(), identity(r, campaignID), campaignID, chi.URLParam(r, "characterID"))
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respond(w, http.StatusOK, toCharacterView(record))
}

func (h *handler) listCharacters(w http.ResponseWriter, r *http.Request) {
	campaignID := chi.URLParam(r, "campaignID")
	records, err := h.svc.ListCharacters(r.Context(), identity(r, campaignID), campaignID)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	views := make([]characterView, 0, len(records))
	for _, record := range records {
		views = append(views, toCharacterView(record))
	}
	respond(w, http.StatusOK, map[string][]characterView{"characters": views})
}

type assignControllerRequest struct {
	UserID string `json:"user_id"`
}

func (h *handler) assignController(w http.ResponseWriter, r *http.Request) {
	campaignID := chi.URLParam(r, "campaignID")
	var req assignControllerRequest
	if err := decodeJSON(r, &req); err != nil {
		respond(w, http.StatusBadRequest, errorResponse{Error: errorBody{Code: "BAD_JSON", Message: err.Error()}})
		return
	}

	record, err := h.svc.AssignController(r.Context(), identity(r, campaignID), campaignID,
		chi.URLParam(r, "characterID"), req.UserID)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respond(w, http.StatusOK, toCharacterView(record))
}

func (h *handler) archiveCharacter(w http.ResponseWriter, r *http.Request) {
	campaignID := chi.URLParam(r, "campaignID")
	record, err := h.svc.ArchiveCharacter(r.Context(), identity(r, campaignID), campaignID, chi.URLParam(r, "characterID"))
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respond(w, http.StatusOK, toCharacterView(record))
}

type setPassRequest struct {
	State string `json:"state"`
}

func (h *handler) setPass(w http.ResponseWriter, r *http.Request) {
	campaignID := chi.URLParam(r, "campaignID")
	var req setPassRequest
	if err := decodeJSON(r, &req); err != nil {
		respond(w, http.StatusBadRequest, errorResponse{Error: errorBody{Code: "BAD_JSON", Message: err.Error()}})
		return
	}

	state, ok := pass.Parse(req.State)
	if !ok {
		respondError(w, h.logger, apperrors.New(apperrors.CodeInvalidPassState, "unknown pass state"))
		return
	}

	err := h.svc.SetPass(r.Context(), identity(r, campaignID), campaignID, chi.URLParam(r, "characterID"), state)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respond(w, http.StatusNoContent, nil)
}

func (h *handler) clearPass(w http.ResponseWriter, r *http.Request) {
	campaignID := chi.URLParam(r, "campaignID")
	err := h.svc.ClearPass(r.Context(), identity(r, campaignID), campaignID, chi.URLParam(r, "characterID"))
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respond(w, http.StatusNoContent, nil)
}
