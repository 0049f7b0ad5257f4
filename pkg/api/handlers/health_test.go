package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sallie/companion/pkg/companion"
	"github.com/sallie/companion/pkg/emotion"
	"github.com/sallie/companion/pkg/memory"
	"github.com/sallie/companion/pkg/personality"
)

type fakeDegraded bool

func (f fakeDegraded) Degraded() bool { return bool(f) }

func TestHealthHandler_Health(t *testing.T) {
	handler := NewHealthHandler(newTestCompanion(t), nil)

	w := httptest.NewRecorder()
	handler.Health(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHealthHandler_Ready(t *testing.T) {
	c, err := companion.New(companion.Options{
		Memory:      memory.DefaultOptions(),
		Emotion:     emotion.DefaultOptions(),
		Personality: personality.DefaultOptions(),
	})
	require.NoError(t, err)
	handler := NewHealthHandler(c, nil)

	w := httptest.NewRecorder()
	handler.Ready(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	ctx := context.Background()
	require.NoError(t, c.Start(ctx))
	defer func() { _ = c.Stop(ctx) }()

	w = httptest.NewRecorder()
	handler.Ready(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHealthHandler_Status(t *testing.T) {
	tests := []struct {
		name     string
		events   DegradedReporter
		expected string
	}{
		{"no event bus", nil, "ok"},
		{"healthy event bus", fakeDegraded(false), "ok"},
		{"degraded event bus", fakeDegraded(true), "degraded"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestCompanion(t)
			_, err := c.Remember(context.Background(), "likes rainy days", memory.KindPreference)
			require.NoError(t, err)

			handler := NewHealthHandler(c, tt.events)
			w := httptest.NewRecorder()
			handler.Status(w, httptest.NewRequest(http.MethodGet, "/status", nil))
			require.Equal(t, http.StatusOK, w.Code)

			var status StatusResponse
			decodeBody(t, w, &status)
			assert.Equal(t, tt.expected, status.Status)
			assert.Equal(t, tt.expected == "degraded", status.EventsDegraded)
			assert.Equal(t, 1, status.Memory.ShortTerm)
			assert.Equal(t, string(emotion.Neutral), status.Emotion)
			assert.NotEmpty(t, status.Archetype)
			assert.NotEmpty(t, status.Version.Version)
		})
	}
}
