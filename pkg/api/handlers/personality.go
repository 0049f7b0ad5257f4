package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/sallie/companion/pkg/api/response"
	"github.com/sallie/companion/pkg/companion"
	"github.com/sallie/companion/pkg/emotion"
	"github.com/sallie/companion/pkg/personality"
)

// PersonalityHandler exposes the personality adapter.
type PersonalityHandler struct {
	companion *companion.Companion
	validate  *validator.Validate
	logger    Logger
}

// NewPersonalityHandler creates a new personality handler.
func NewPersonalityHandler(c *companion.Companion, log Logger) *PersonalityHandler {
	return &PersonalityHandler{
		companion: c,
		validate:  newValidator(),
		logger:    orNop(log),
	}
}

type adjustTraitRequest struct {
	Delta *float64 `json:"delta" validate:"required"`
}

type traitResponse struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

type evolveRequest struct {
	Positive int    `json:"positive" validate:"gte=0"`
	Negative int    `json:"negative" validate:"gte=0"`
	Neutral  int    `json:"neutral" validate:"gte=0"`
	Dominant string `json:"dominant,omitempty" validate:"omitempty,emotion_label"`
}

// Traits handles GET /api/v1/personality/traits
func (h *PersonalityHandler) Traits(w http.ResponseWriter, r *http.Request) {
	adapter := h.companion.Personality()
	response.JSON(w, http.StatusOK, map[string]any{
		"archetype": adapter.Archetype().String(),
		"traits":    adapter.Traits(),
	})
}

// Trait handles GET /api/v1/personality/traits/{name}
func (h *PersonalityHandler) Trait(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	value, err := h.companion.Personality().Trait(name)
	if err != nil {
		response.HandleError(w, err, getRequestID(r.Context()))
		return
	}
	response.JSON(w, http.StatusOK, traitResponse{Name: name, Value: value})
}

// Adjust handles POST /api/v1/personality/traits/{name}/adjust
func (h *PersonalityHandler) Adjust(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	name := chi.URLParam(r, "name")

	var req adjustTraitRequest
	if !decodeJSON(w, r, h.validate, &req) {
		return
	}

	adapter := h.companion.Personality()
	value, err := adapter.Adjust(name, *req.Delta)
	if err != nil {
		response.HandleError(w, err, getRequestID(ctx))
		return
	}
	if err := adapter.Save(ctx); err != nil {
		h.logger.Warn("Personality state not persisted", "trait", name, "error", err)
	}
	response.JSON(w, http.StatusOK, traitResponse{Name: name, Value: value})
}

// Style handles GET /api/v1/personality/style
func (h *PersonalityHandler) Style(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, h.companion.Personality().ResponseStyle())
}

// Evolve handles POST /api/v1/personality/evolve
func (h *PersonalityHandler) Evolve(w http.ResponseWriter, r *http.Request) {
	var req evolveRequest
	if !decodeJSON(w, r, h.validate, &req) {
		return
	}
	summary := personality.InteractionSummary{
		Positive: req.Positive,
		Negative: req.Negative,
		Neutral:  req.Neutral,
	}
	if req.Dominant != "" {
		// Already validated.
		summary.Dominant, _ = emotion.ParseLabel(req.Dominant)
	}

	traits := h.companion.Evolve(r.Context(), summary)
	response.JSON(w, http.StatusOK, map[string]any{"traits": traits})
}
