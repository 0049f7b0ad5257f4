package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/sallie/companion/pkg/api/response"
	"github.com/sallie/companion/pkg/companion"
	"github.com/sallie/companion/pkg/memory"
)

// MemoryHandler handles memory-related API endpoints.
type MemoryHandler struct {
	companion *companion.Companion
	validate  *validator.Validate
	logger    Logger
}

// NewMemoryHandler creates a new memory handler.
func NewMemoryHandler(c *companion.Companion, log Logger) *MemoryHandler {
	return &MemoryHandler{
		companion: c,
		validate:  newValidator(),
		logger:    orNop(log),
	}
}

type storeMemoryRequest struct {
	Content    string   `json:"content" validate:"required,max=8192"`
	Kind       string   `json:"kind,omitempty" validate:"omitempty,memory_kind"`
	Importance *float64 `json:"importance,omitempty"`
	Tags       []string `json:"tags,omitempty" validate:"max=32,dive,max=64"`
}

type storeMemoryResponse struct {
	ID string `json:"id"`
}

type memoryItemResponse struct {
	memory.Item
	Partition memory.Partition `json:"partition"`
}

type memoryListResponse struct {
	Items []memory.Item `json:"items"`
	Count int           `json:"count"`
}

// StoreMemory handles POST /api/v1/memories
func (h *MemoryHandler) StoreMemory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req storeMemoryRequest
	if !decodeJSON(w, r, h.validate, &req) {
		return
	}
	kind, err := memory.ParseKind(req.Kind)
	if err != nil {
		response.HandleError(w, err, getRequestID(ctx))
		return
	}

	opts := []memory.StoreOption{memory.WithTags(req.Tags...)}
	if req.Importance != nil {
		opts = append(opts, memory.WithImportance(*req.Importance))
	}

	id, err := h.companion.Remember(ctx, req.Content, kind, opts...)
	if err != nil {
		h.logger.Error("Failed to store memory", "kind", kind, "error", err)
		response.HandleError(w, err, getRequestID(ctx))
		return
	}

	response.JSON(w, http.StatusCreated, storeMemoryResponse{ID: id})
}

// QueryMemory handles GET /api/v1/memories?query=...&kind=...&limit=...
func (h *MemoryHandler) QueryMemory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	query := strings.TrimSpace(r.URL.Query().Get("query"))
	if query == "" {
		response.Error(w, http.StatusBadRequest, response.ErrCodeValidationFailed, "Query parameter is required", getRequestID(ctx))
		return
	}

	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		response.HandleError(w, err, getRequestID(ctx))
		return
	}
	var opts []memory.RetrieveOption
	if limit > 0 {
		opts = append(opts, memory.WithLimit(limit))
	}
	if raw := r.URL.Query().Get("kind"); raw != "" {
		kind, err := memory.ParseKind(raw)
		if err != nil {
			response.HandleError(w, err, getRequestID(ctx))
			return
		}
		opts = append(opts, memory.WithKind(kind))
	}

	items, err := h.companion.Memory().RetrieveRelevant(ctx, query, opts...)
	if err != nil {
		h.logger.Error("Failed to query memory", "error", err)
		response.HandleError(w, err, getRequestID(ctx))
		return
	}

	response.JSON(w, http.StatusOK, memoryListResponse{Items: nonNilItems(items), Count: len(items)})
}

// GetMemory handles GET /api/v1/memories/{id}
func (h *MemoryHandler) GetMemory(w http.ResponseWriter, r *http.Request) {
	item, partition, err := h.companion.Memory().Get(chi.URLParam(r, "id"))
	if err != nil {
		response.HandleError(w, err, getRequestID(r.Context()))
		return
	}
	response.JSON(w, http.StatusOK, memoryItemResponse{Item: item, Partition: partition})
}

// ListPartition handles GET /api/v1/memories/partitions/{partition}
func (h *MemoryHandler) ListPartition(w http.ResponseWriter, r *http.Request) {
	partition, err := memory.ParsePartition(chi.URLParam(r, "partition"))
	if err != nil {
		response.HandleError(w, err, getRequestID(r.Context()))
		return
	}
	items := h.companion.Memory().Items(partition)
	response.JSON(w, http.StatusOK, memoryListResponse{Items: nonNilItems(items), Count: len(items)})
}

// GetContext handles GET /api/v1/memories/context?query=...
func (h *MemoryHandler) GetContext(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	memCtx, err := h.companion.Memory().GetContext(ctx, r.URL.Query().Get("query"))
	if err != nil {
		h.logger.Error("Failed to build memory context", "error", err)
		response.HandleError(w, err, getRequestID(ctx))
		return
	}
	response.JSON(w, http.StatusOK, memCtx)
}

// GetStats handles GET /api/v1/memories/stats
func (h *MemoryHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, h.companion.Memory().Stats())
}

// Consolidate handles POST /api/v1/memories/consolidate
func (h *MemoryHandler) Consolidate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	report, err := h.companion.Consolidate(ctx)
	if err != nil {
		if !errors.Is(err, ctx.Err()) {
			h.logger.Error("Consolidation failed", "error", err)
		}
		response.HandleError(w, err, getRequestID(ctx))
		return
	}
	status := http.StatusOK
	if report.Skipped {
		status = http.StatusAccepted
	}
	response.JSON(w, status, report)
}

func nonNilItems(items []memory.Item) []memory.Item {
	if items == nil {
		return []memory.Item{}
	}
	return items
}
