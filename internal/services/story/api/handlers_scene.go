package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/inkhaven/inkhaven/internal/services/story/app"
)

type createSceneRequest struct {
	Name string `json:"name"`
}

type createSceneResponse struct {
	Scene            sceneView `json:"scene"`
	EvictedSceneID   string    `json:"evicted_scene_id,omitempty"`
	WarningThreshold int       `json:"warning_threshold,omitempty"`
}

func (h *handler) createScene(w http.ResponseWriter, r *http.Request) {
	campaignID := chi.URLParam(r, "campaignID")
	var req createSceneRequest
	if err := decodeJSON(r, &req); err != nil {
		respond(w, http.StatusBadRequest, errorResponse{Error: errorBody{Code: "BAD_JSON", Message: err.Error()}})
		return
	}

	result, err := h.svc.CreateScene(r.Context(), identity(r, campaignID), app.CreateSceneInput{
		CampaignID: campaignID,
		Name:       req.Name,
	})
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respond(w, http.StatusCreated, createSceneResponse{
		Scene:            toSceneView(result.Scene),
		EvictedSceneID:   result.EvictedSceneID,
		WarningThreshold: result.WarningThreshold,
	})
}

func (h *handler) getScene(w http.ResponseWriter, r *http.Request) {
	campaignID := chi.URLParam(r, "campaignID")
	record, err := h.svc.GetScene(r.Context(), identity(r, campaignID), campaignID,
		chi.URLParam(r, "sceneID"), r.URL.Query().Get("character_id"))
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respond(w, http.StatusOK, toSceneView(record))
}

func (h *handler) listScenes(w http.ResponseWriter, r *http.Request) {
	campaignID := chi.URLParam(r, "campaignID")
	records, err := h.svc.ListScenes(r.Context(), identity(r, campaignID), campaignID,
		r.URL.Query().Get("character_id"))
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respond(w, http.StatusOK, map[string][]sceneView{"scenes": toSceneViews(records)})
}

func (h *handler) archiveScene(w http.ResponseWriter, r *http.Request) {
	campaignID := chi.URLParam(r, "campaignID")
	record, err := h.svc.ArchiveScene(r.Context(), identity(r, campaignID), campaignID, chi.URLParam(r, "sceneID"))
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respond(w, http.StatusOK, toSceneView(record))
}

func (h *handler) unarchiveScene(w http.ResponseWriter, r *http.Request) {
	campaignID := chi.URLParam(r, "campaignID")
	record, err := h.svc.UnarchiveScene(r.Context(), identity(r, campaignID), campaignID, chi.URLParam(r, "sceneID"))
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respond(w, http.StatusOK, toSceneView(record))
}

func (h *handler) deleteScene(w http.ResponseWriter, r *http.Request) {
	campaignID := chi.URLParam(r, "campaignID")
	if err := h.svc.DeleteScene(r.Context(), identity(r, campaignID), campaignID, chi.URLParam(r, "sceneID")); err != nil {
		respondError(w, h.logger, err)
		return
	}
	respond(w, http.StatusNoContent, nil)
}

func (h *handler) addOccupant(w http.ResponseWriter, r *http.Request) {
	campaignID := chi.URLParam(r, "campaignID")
	err := h.svc.AddOccupant(r.Context(), identity(r, campaignID), campaignID,
		chi.URLParam(r, "sceneID"), chi.URLParam(r, "characterID"))
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respond(w, http.StatusNoContent, nil)
}

func (h *handler) removeOccupant(w http.ResponseWriter, r *http.Request) {
	campaignID := chi.URLParam(r, "campaignID")
	err := h.svc.RemoveOccupant(r.Context(), identity(r, campaignID), campaignID,
		chi.URLParam(r, "sceneID"), chi.URLParam(r, "characterID"))
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respond(w, http.StatusNoContent, nil)
}
