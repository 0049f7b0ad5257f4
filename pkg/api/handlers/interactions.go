package handlers

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/sallie/companion/pkg/api/response"
	"github.com/sallie/companion/pkg/companion"
)

// InteractionHandler runs the full observe flow for a user message.
type InteractionHandler struct {
	companion *companion.Companion
	validate  *validator.Validate
	logger    Logger
}

// NewInteractionHandler creates a new interaction handler.
func NewInteractionHandler(c *companion.Companion, log Logger) *InteractionHandler {
	return &InteractionHandler{
		companion: c,
		validate:  newValidator(),
		logger:    orNop(log),
	}
}

type observeRequest struct {
	Text string `json:"text" validate:"required,max=8192"`
	// Record defaults to true.
	Record *bool `json:"record,omitempty"`
}

// Observe handles POST /api/v1/interactions
func (h *InteractionHandler) Observe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req observeRequest
	if !decodeJSON(w, r, h.validate, &req) {
		return
	}
	record := req.Record == nil || *req.Record

	out, err := h.companion.Observe(ctx, req.Text, record)
	if err != nil {
		h.logger.Error("Failed to observe interaction", "error", err)
		response.HandleError(w, err, getRequestID(ctx))
		return
	}

	status := http.StatusOK
	if out.MemoryID != "" {
		status = http.StatusCreated
	}
	response.JSON(w, status, out)
}
