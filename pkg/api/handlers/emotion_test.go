package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sallie/companion/pkg/api/response"
	"github.com/sallie/companion/pkg/emotion"
)

func TestEmotionHandler_AnalyzeDoesNotChangeState(t *testing.T) {
	c := newTestCompanion(t)
	h := NewEmotionHandler(c, nil)

	w := httptest.NewRecorder()
	h.Analyze(w, jsonRequest(t, http.MethodPost, "/api/v1/emotions/analyze", map[string]any{
		"text": "I feel so sad and lonely tonight",
	}))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var state emotion.State
	decodeBody(t, w, &state)
	assert.Equal(t, emotion.Sadness, state.Primary)
	assert.Equal(t, emotion.Neutral, c.Emotions().Current().Primary)
	assert.Empty(t, c.Emotions().History())
}

func TestEmotionHandler_AnalyzeRequiresText(t *testing.T) {
	h := NewEmotionHandler(newTestCompanion(t), nil)

	w := httptest.NewRecorder()
	h.Analyze(w, jsonRequest(t, http.MethodPost, "/api/v1/emotions/analyze", map[string]any{}))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, response.ErrCodeValidationFailed, errorCode(t, w))
}

func TestEmotionHandler_UpdatePartial(t *testing.T) {
	c := newTestCompanion(t)
	h := NewEmotionHandler(c, nil)

	w := httptest.NewRecorder()
	h.Update(w, jsonRequest(t, http.MethodPost, "/api/v1/emotions", map[string]any{
		"primary":   "happy",
		"intensity": 0.7,
	}))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var state emotion.State
	decodeBody(t, w, &state)
	assert.Equal(t, emotion.Joy, state.Primary)
	assert.InDelta(t, 0.7, state.Intensity, 1e-9)
	assert.Equal(t, testEpoch, state.Timestamp.UTC())

	// Only the valence changes; the label and intensity are kept.
	w = httptest.NewRecorder()
	h.Update(w, jsonRequest(t, http.MethodPost, "/api/v1/emotions", map[string]any{"valence": -0.2}))
	require.Equal(t, http.StatusOK, w.Code)
	decodeBody(t, w, &state)
	assert.Equal(t, emotion.Joy, state.Primary)
	assert.InDelta(t, 0.7, state.Intensity, 1e-9)
	assert.InDelta(t, -0.2, state.Valence, 1e-9)
}

func TestEmotionHandler_UpdateRejectsUnknownLabel(t *testing.T) {
	h := NewEmotionHandler(newTestCompanion(t), nil)

	for _, body := range []map[string]any{
		{"primary": "boredom"},
		{"secondary": []string{"joy", "boredom"}},
	} {
		w := httptest.NewRecorder()
		h.Update(w, jsonRequest(t, http.MethodPost, "/api/v1/emotions", body))
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
	}
}

func TestEmotionHandler_UpdateClampsDimensions(t *testing.T) {
	h := NewEmotionHandler(newTestCompanion(t), nil)

	w := httptest.NewRecorder()
	h.Update(w, jsonRequest(t, http.MethodPost, "/api/v1/emotions", map[string]any{
		"primary":   "anger",
		"intensity": 2,
		"valence":   -3,
		"arousal":   1.4,
		"dominance": -0.5,
	}))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var state emotion.State
	decodeBody(t, w, &state)
	assert.Equal(t, emotion.Anger, state.Primary)
	assert.Equal(t, 1.0, state.Intensity)
	assert.Equal(t, -1.0, state.Valence)
	assert.Equal(t, 1.0, state.Arousal)
	assert.Equal(t, 0.0, state.Dominance)
}

func TestEmotionHandler_CurrentHistoryContext(t *testing.T) {
	c := newTestCompanion(t)
	h := NewEmotionHandler(c, nil)

	for _, label := range []string{"joy", "fear", "anger"} {
		w := httptest.NewRecorder()
		h.Update(w, jsonRequest(t, http.MethodPost, "/api/v1/emotions", map[string]any{"primary": label}))
		require.Equal(t, http.StatusOK, w.Code)
	}

	w := httptest.NewRecorder()
	h.Current(w, httptest.NewRequest(http.MethodGet, "/api/v1/emotions/current", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var current emotion.State
	decodeBody(t, w, &current)
	assert.Equal(t, emotion.Anger, current.Primary)

	w = httptest.NewRecorder()
	h.History(w, httptest.NewRequest(http.MethodGet, "/api/v1/emotions/history?limit=2", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var history struct {
		History []emotion.State `json:"history"`
		Count   int             `json:"count"`
	}
	decodeBody(t, w, &history)
	require.Equal(t, 2, history.Count)
	assert.Equal(t, emotion.Fear, history.History[0].Primary)
	assert.Equal(t, emotion.Anger, history.History[1].Primary)

	w = httptest.NewRecorder()
	h.History(w, httptest.NewRequest(http.MethodGet, "/api/v1/emotions/history?limit=abc", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	h.Context(w, httptest.NewRequest(http.MethodGet, "/api/v1/emotions/context", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var ctx emotion.Context
	decodeBody(t, w, &ctx)
	assert.Equal(t, emotion.Anger, ctx.UserEmotion.Primary)
}
