package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/inkhaven/inkhaven/internal/services/story/app"
)

type createPostRequest struct {
	AuthorCharacterID string   `json:"author_character_id,omitempty"`
	Body              string   `json:"body"`
	Hidden            bool     `json:"hidden,omitempty"`
	WitnessIDs        []string `json:"witness_ids,omitempty"`
}

func (h *handler) createPost(w http.ResponseWriter, r *http.Request) {
	campaignID := chi.URLParam(r, "campaignID")
	var req createPostRequest
	if err := decodeJSON(r, &req); err != nil {
		respond(w, http.StatusBadRequest, errorResponse{Error: errorBody{Code: "BAD_JSON", Message: err.Error()}})
		return
	}

	record, err := h.svc.CreatePost(r.Context(), identity(r, campaignID), app.CreatePostInput{
		CampaignID:        campaignID,
		SceneID:           chi.URLParam(r, "sceneID"),
		AuthorCharacterID: req.AuthorCharacterID,
		Body:              req.Body,
		Hidden:            req.Hidden,
		WitnessIDs:        req.WitnessIDs,
	})
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respond(w, http.StatusCreated, toPostView(record))
}

func (h *handler) getPost(w http.ResponseWriter, r *http.Request) {
	campaignID := chi.URLParam(r, "campaignID")
	record, err := h.svc.GetPost(r.Context(), identity(r, campaignID), campaignID,
		chi.URLParam(r, "postID"), r.URL.Query().Get("character_id"))
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respond(w, http.StatusOK, toPostView(record))
}

func (h *handler) listScenePosts(w http.ResponseWriter, r *http.Request) {
	campaignID := chi.URLParam(r, "campaignID")
	records, err := h.svc.ListScenePosts(r.Context(), identity(r, campaignID), campaignID,
		chi.URLParam(r, "sceneID"), r.URL.Query().Get("character_id"))
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respond(w, http.StatusOK, map[string][]postView{"posts": toPostViews(records)})
}

type editPostRequest struct {
	Body string `json:"body"`
}

func (h *handler) editPost(w http.ResponseWriter, r *http.Request) {
	campaignID := chi.URLParam(r, "campaignID")
	var req editPostRequest
	if err := decodeJSON(r, &req); err != nil {
		respond(w, http.StatusBadRequest, errorResponse{Error: errorBody{Code: "BAD_JSON", Message: err.Error()}})
		return
	}

	record, err := h.svc.EditPost(r.Context(), identity(r, campaignID), campaignID, chi.URLParam(r, "postID"), req.Body)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respond(w, http.StatusOK, toPostView(record))
}

func (h *handler) deletePost(w http.ResponseWriter, r *http.Request) {
	campaignID := chi.URLParam(r, "campaignID")
	if err := h.svc.DeletePost(r.Context(), identity(r, campaignID), campaignID, chi.URLParam(r, "postID")); err != nil {
		respondError(w, h.logger, err)
		return
	}
	respond(w, http.StatusNoContent, nil)
}

type revealPostRequest struct {
	WitnessIDs []string `json:"witness_ids"`
}

func (h *handler) revealPost(w http.ResponseWriter, r *http.Request) {
	campaignID := chi.URLParam(r, "campaignID")
	var req revealPostRequest
	if err := decodeJSON(r, &req); err != nil {
		respond(w, http.StatusBadRequest, errorResponse{Error: errorBody{Code: "BAD_JSON", Message: err.Error()}})
		return
	}

	record, err := h.svc.RevealPost(r.Context(), identity(r, campaignID), campaignID,
		chi.URLParam(r, "postID"), req.WitnessIDs)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respond(w, http.StatusOK, toPostView(record))
}
