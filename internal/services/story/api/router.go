package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/inkhaven/inkhaven/internal/services/story/app"
	"github.com/inkhaven/inkhaven/internal/services/story/notify"
)

type handler struct {
	svc      *app.Service
	hub      *notify.Hub
	logger   zerolog.Logger
	upgrader websocket.Upgrader
}

// NewRouter wires the story service onto an HTTP router. All routes require a
// bearer token; privilege is judged per campaign from the token's claims.
func NewRouter(svc *app.Service, hub *notify.Hub, secret string, logger zerolog.Logger) http.Handler {
	h := &handler{svc: svc, hub: hub, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		respond(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Group(func(r chi.Router) {
		r.Use(authenticate(secret))
		r.Use(newRateLimiter(rate.Limit(20), 40).middleware)

		r.Route("/v1", func(r chi.Router) {
			r.Get("/stats", h.getStatistics)

			r.Route("/campaigns", func(r chi.Router) {
				r.Post("/", h.createCampaign)
				r.Get("/", h.listCampaigns)

				r.Route("/{campaignID}", func(r chi.Router) {
					r.Get("/", h.getCampaign)
					r.Delete("/", h.deleteCampaign)
					r.Post("/pause", h.pauseCampaign)
					r.Post("/unpause", h.unpauseCampaign)
					r.Post("/phase/resolve", h.beginResolve)
					r.Post("/phase/force-resolve", h.forceResolve)
					r.Post("/phase/write", h.beginWrite)
					r.Get("/events", h.subscribeEvents)

					r.Route("/scenes", func(r chi.Router) {
						r.Post("/", h.createScene)
						r.Get("/", h.listScenes)

						r.Route("/{sceneID}", func(r chi.Router) {
							r.Get("/", h.getScene)
							r.Delete("/", h.deleteScene)
							r.Post("/archive", h.archiveScene)
							r.Post("/unarchive", h.unarchiveScene)
							r.Put("/occupants/{characterID}", h.addOccupant)
							r.Delete("/occupants/{characterID}", h.removeOccupant)
							r.Post("/posts", h.createPost)
							r.Get("/posts", h.listScenePosts)
							r.Post("/locks", h.acquireLock)
							r.Delete("/locks/{characterID}", h.releaseLock)
						})
					})

					r.Route("/characters", func(r chi.Router) {
						r.Post("/", h.createCharacter)
						r.Get("/", h.listCharacters)

						r.Route("/{characterID}", func(r chi.Router) {
							r.Get("/", h.getCharacter)
							r.Put("/controller", h.assignController)
							r.Post("/archive", h.archiveCharacter)
							r.Put("/pass", h.setPass)
							r.Delete("/pass", h.clearPass)
						})
					})

					r.Route("/posts/{postID}", func(r chi.Router) {
						r.Get("/", h.getPost)
						r.Patch("/", h.editPost)
						r.Delete("/", h.deletePost)
						r.Post("/reveal", h.revealPost)
					})

					r.Route("/locks", func(r chi.Router) {
						r.Get("/", h.listLocks)
						r.Post("/{lockID}/heartbeat", h.heartbeatLock)
						r.Delete("/{lockID}", h.forceReleaseLock)
					})

					r.Route("/rolls", func(r chi.Router) {
						r.Post("/", h.requestRoll)
						r.Get("/", h.listPendingRolls)
						r.Get("/{rollID}", h.getRoll)
						r.Post("/{rollID}/resolve", h.resolveRoll)
					})
				})
			})
		})
	})

	return r
}

// subscribeEvents upgrades the connection and streams campaign events until
// the client goes away.
func (h *handler) subscribeEvents(w http.ResponseWriter, r *http.Request) {
	campaignID := chi.URLParam(r, "campaignID")
	caller := identity(r, campaignID)

	if _, err := h.svc.GetCampaign(r.Context(), caller, campaignID); err != nil {
		respondError(w, h.logger, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	unsubscribe := h.hub.Subscribe(campaignID, conn, caller.UserID, caller.Privileged)
	defer unsubscribe()
	defer conn.Close()

	// Drain the read side so pings and closes are processed.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
