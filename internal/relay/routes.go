package relay

import "github.com/go-chi/chi/v5"

func RegisterRoutes(r chi.Router, h *Handler) {
	r.Get("/assistant/stream", h.HandleChat)
	r.Post("/assistant/stream", h.HandleVoice)
	r.MethodNotAllowed(h.HandleInvalidMethod)
}
