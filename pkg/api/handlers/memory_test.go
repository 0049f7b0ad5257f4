package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sallie/companion/pkg/api/response"
	"github.com/sallie/companion/pkg/memory"
)

func storeMemory(t *testing.T, h *MemoryHandler, body any) string {
	t.Helper()
	w := httptest.NewRecorder()
	h.StoreMemory(w, jsonRequest(t, http.MethodPost, "/api/v1/memories", body))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var resp storeMemoryResponse
	decodeBody(t, w, &resp)
	require.NotEmpty(t, resp.ID)
	return resp.ID
}

func TestMemoryHandler_StoreMemory(t *testing.T) {
	c := newTestCompanion(t)
	h := NewMemoryHandler(c, nil)

	id := storeMemory(t, h, map[string]any{
		"content":    "User loves black coffee in the morning",
		"kind":       "preference",
		"importance": 0.8,
		"tags":       []string{"coffee"},
	})

	item, partition, err := c.Memory().Get(id)
	require.NoError(t, err)
	assert.Equal(t, memory.ShortTerm, partition)
	assert.Equal(t, memory.KindPreference, item.Kind)
	assert.InDelta(t, 0.8, item.Importance, 1e-9)
	assert.Equal(t, []string{"coffee"}, item.Tags)
}

func TestMemoryHandler_StoreMemory_DefaultKind(t *testing.T) {
	c := newTestCompanion(t)
	h := NewMemoryHandler(c, nil)

	id := storeMemory(t, h, map[string]any{"content": "hello there"})
	item, _, err := c.Memory().Get(id)
	require.NoError(t, err)
	assert.Equal(t, memory.KindConversation, item.Kind)
}

func TestMemoryHandler_StoreMemory_Invalid(t *testing.T) {
	tests := []struct {
		name     string
		body     any
		wantCode string
	}{
		{"missing content", map[string]any{"kind": "fact"}, response.ErrCodeValidationFailed},
		{"unknown kind", map[string]any{"content": "x", "kind": "dream"}, response.ErrCodeValidationFailed},
		{"unknown field", map[string]any{"content": "x", "session_id": "s1"}, response.ErrCodeBadRequest},
		{"malformed json", "{not json", response.ErrCodeBadRequest},
		{"empty body", nil, response.ErrCodeBadRequest},
	}

	h := NewMemoryHandler(newTestCompanion(t), nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			h.StoreMemory(w, jsonRequest(t, http.MethodPost, "/api/v1/memories", tt.body))
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, tt.wantCode, errorCode(t, w))
		})
	}
}

func TestMemoryHandler_StoreMemory_ClampsImportance(t *testing.T) {
	tests := []struct {
		name       string
		importance float64
		want       float64
	}{
		{"above one", 1.5, 1.0},
		{"below zero", -0.2, 0.0},
	}

	c := newTestCompanion(t)
	h := NewMemoryHandler(c, nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id := storeMemory(t, h, map[string]any{"content": "x y z", "importance": tt.importance})
			item, _, err := c.Memory().Get(id)
			require.NoError(t, err)
			assert.Equal(t, tt.want, item.Importance)
		})
	}
}

func TestMemoryHandler_StoreMemory_BlankContent(t *testing.T) {
	h := NewMemoryHandler(newTestCompanion(t), nil)

	w := httptest.NewRecorder()
	h.StoreMemory(w, jsonRequest(t, http.MethodPost, "/api/v1/memories", map[string]any{"content": "   "}))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMemoryHandler_QueryMemory(t *testing.T) {
	h := NewMemoryHandler(newTestCompanion(t), nil)
	coffee := storeMemory(t, h, map[string]any{"content": "User loves black coffee", "kind": "preference"})
	storeMemory(t, h, map[string]any{"content": "We talked about hiking trails", "kind": "experience"})

	w := httptest.NewRecorder()
	h.QueryMemory(w, httptest.NewRequest(http.MethodGet, "/api/v1/memories?query=coffee", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp memoryListResponse
	decodeBody(t, w, &resp)
	require.Equal(t, 1, resp.Count)
	assert.Equal(t, coffee, resp.Items[0].ID)

	w = httptest.NewRecorder()
	h.QueryMemory(w, httptest.NewRequest(http.MethodGet, "/api/v1/memories?query=coffee&kind=experience", nil))
	require.Equal(t, http.StatusOK, w.Code)
	decodeBody(t, w, &resp)
	assert.Equal(t, 0, resp.Count)
	assert.NotNil(t, resp.Items)
}

func TestMemoryHandler_QueryMemory_BadParams(t *testing.T) {
	h := NewMemoryHandler(newTestCompanion(t), nil)

	for _, target := range []string{
		"/api/v1/memories",
		"/api/v1/memories?query=x&limit=zero",
		"/api/v1/memories?query=x&limit=-1",
		"/api/v1/memories?query=x&kind=dream",
	} {
		w := httptest.NewRecorder()
		h.QueryMemory(w, httptest.NewRequest(http.MethodGet, target, nil))
		assert.Equal(t, http.StatusBadRequest, w.Code, target)
	}
}

func TestMemoryHandler_GetMemory(t *testing.T) {
	h := NewMemoryHandler(newTestCompanion(t), nil)
	id := storeMemory(t, h, map[string]any{"content": "the cat is called Miso", "kind": "fact"})

	w := httptest.NewRecorder()
	h.GetMemory(w, withChiURLParam(httptest.NewRequest(http.MethodGet, "/api/v1/memories/"+id, nil), "id", id))
	require.Equal(t, http.StatusOK, w.Code)

	var resp memoryItemResponse
	decodeBody(t, w, &resp)
	assert.Equal(t, id, resp.ID)
	assert.Equal(t, memory.ShortTerm, resp.Partition)

	w = httptest.NewRecorder()
	h.GetMemory(w, withChiURLParam(httptest.NewRequest(http.MethodGet, "/api/v1/memories/missing", nil), "id", "missing"))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, response.ErrCodeNotFound, errorCode(t, w))
}

func TestMemoryHandler_ConsolidateAndListPartition(t *testing.T) {
	h := NewMemoryHandler(newTestCompanion(t), nil)
	important := storeMemory(t, h, map[string]any{"content": "birthday is in June", "kind": "fact", "importance": 0.9})
	storeMemory(t, h, map[string]any{"content": "small talk", "importance": 0.2})

	w := httptest.NewRecorder()
	h.Consolidate(w, httptest.NewRequest(http.MethodPost, "/api/v1/memories/consolidate", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var report memory.ConsolidationReport
	decodeBody(t, w, &report)
	assert.Equal(t, 1, report.Promoted)
	assert.False(t, report.Skipped)

	list := func(partition string) memoryListResponse {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/api/v1/memories/partitions/"+partition, nil)
		h.ListPartition(w, withChiURLParam(r, "partition", partition))
		require.Equal(t, http.StatusOK, w.Code)
		var resp memoryListResponse
		decodeBody(t, w, &resp)
		return resp
	}

	long := list("long_term")
	require.Equal(t, 1, long.Count)
	assert.Equal(t, important, long.Items[0].ID)
	assert.Equal(t, 1, list("short_term").Count)

	w = httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/api/v1/memories/partitions/archive", nil)
	h.ListPartition(w, withChiURLParam(r, "partition", "archive"))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMemoryHandler_GetStats(t *testing.T) {
	h := NewMemoryHandler(newTestCompanion(t), nil)
	storeMemory(t, h, map[string]any{"content": "likes jazz", "kind": "preference"})
	storeMemory(t, h, map[string]any{"content": "likes blues", "kind": "preference"})

	w := httptest.NewRecorder()
	h.GetStats(w, httptest.NewRequest(http.MethodGet, "/api/v1/memories/stats", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var stats memory.Stats
	decodeBody(t, w, &stats)
	assert.Equal(t, 2, stats.ShortTerm)
	assert.Equal(t, 0, stats.LongTerm)
	assert.Equal(t, 2, stats.ByKind[memory.KindPreference])
}

func TestMemoryHandler_GetContext(t *testing.T) {
	h := NewMemoryHandler(newTestCompanion(t), nil)
	storeMemory(t, h, map[string]any{"content": "prefers tea over coffee", "kind": "preference"})

	w := httptest.NewRecorder()
	h.GetContext(w, httptest.NewRequest(http.MethodGet, "/api/v1/memories/context?query=tea", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var ctx memory.Context
	decodeBody(t, w, &ctx)
	require.Len(t, ctx.Preference, 1)
	assert.Equal(t, "prefers tea over coffee", ctx.Preference[0].Content)
}
