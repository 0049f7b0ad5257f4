package handlers

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/sallie/companion/pkg/api/response"
	"github.com/sallie/companion/pkg/companion"
	"github.com/sallie/companion/pkg/emotion"
)

// EmotionHandler exposes the emotional state tracker.
type EmotionHandler struct {
	companion *companion.Companion
	validate  *validator.Validate
	logger    Logger
}

// NewEmotionHandler creates a new emotion handler.
func NewEmotionHandler(c *companion.Companion, log Logger) *EmotionHandler {
	return &EmotionHandler{
		companion: c,
		validate:  newValidator(),
		logger:    orNop(log),
	}
}

type analyzeRequest struct {
	Text string `json:"text" validate:"required,max=8192"`
}

// updateEmotionRequest is a partial state; omitted fields keep their value.
type updateEmotionRequest struct {
	Primary   *string  `json:"primary,omitempty" validate:"omitempty,emotion_label"`
	Secondary []string `json:"secondary,omitempty" validate:"omitempty,max=6,dive,emotion_label"`
	Intensity *float64 `json:"intensity,omitempty"`
	Valence   *float64 `json:"valence,omitempty"`
	Arousal   *float64 `json:"arousal,omitempty"`
	Dominance *float64 `json:"dominance,omitempty"`
}

func (req updateEmotionRequest) toUpdate() (emotion.Update, error) {
	u := emotion.Update{
		Intensity: req.Intensity,
		Valence:   req.Valence,
		Arousal:   req.Arousal,
		Dominance: req.Dominance,
	}
	if req.Primary != nil {
		l, err := emotion.ParseLabel(*req.Primary)
		if err != nil {
			return u, err
		}
		u.Primary = &l
	}
	if req.Secondary != nil {
		u.Secondary = make([]emotion.Label, 0, len(req.Secondary))
		for _, s := range req.Secondary {
			l, err := emotion.ParseLabel(s)
			if err != nil {
				return u, err
			}
			u.Secondary = append(u.Secondary, l)
		}
	}
	return u, nil
}

// Analyze handles POST /api/v1/emotions/analyze. It does not change state.
func (h *EmotionHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if !decodeJSON(w, r, h.validate, &req) {
		return
	}
	response.JSON(w, http.StatusOK, h.companion.Emotions().AnalyzeText(req.Text))
}

// Update handles POST /api/v1/emotions
func (h *EmotionHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req updateEmotionRequest
	if !decodeJSON(w, r, h.validate, &req) {
		return
	}
	u, err := req.toUpdate()
	if err != nil {
		response.HandleError(w, err, getRequestID(r.Context()))
		return
	}

	state := h.companion.UpdateEmotion(r.Context(), u)
	h.logger.Debug("Emotion updated", "primary", state.Primary, "intensity", state.Intensity)
	response.JSON(w, http.StatusOK, state)
}

// Current handles GET /api/v1/emotions/current
func (h *EmotionHandler) Current(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, h.companion.Emotions().Current())
}

// History handles GET /api/v1/emotions/history?limit=...
// The most recent states are returned, oldest first.
func (h *EmotionHandler) History(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		response.HandleError(w, err, getRequestID(r.Context()))
		return
	}
	history := h.companion.Emotions().History()
	if limit > 0 && len(history) > limit {
		history = history[len(history)-limit:]
	}
	if history == nil {
		history = []emotion.State{}
	}
	response.JSON(w, http.StatusOK, map[string]any{
		"history": history,
		"count":   len(history),
	})
}

// Context handles GET /api/v1/emotions/context
func (h *EmotionHandler) Context(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, h.companion.Emotions().Context())
}
